// internal/models/user.go
package models

import (
	"fmt"
	"strconv"
)

type Role string

const (
	RoleStudent        Role = "student"
	RoleRepresentative Role = "representative"
	RoleStaff          Role = "staff"
)

// User is one of the three actor kinds. Exactly the field matching Role is set.
type User struct {
	Role           Role            `json:"role"`
	Student        *Student        `json:"student,omitempty"`
	Representative *Representative `json:"representative,omitempty"`
	Staff          *Staff          `json:"staff,omitempty"`
}

func NewStudentUser(s Student) User { return User{Role: RoleStudent, Student: &s} }

func NewRepresentativeUser(r Representative) User {
	return User{Role: RoleRepresentative, Representative: &r}
}

func NewStaffUser(s Staff) User { return User{Role: RoleStaff, Staff: &s} }

// ID returns the id of whichever actor the user wraps.
func (u User) ID() string {
	switch u.Role {
	case RoleStudent:
		if u.Student != nil {
			return u.Student.ID
		}
	case RoleRepresentative:
		if u.Representative != nil {
			return u.Representative.ID
		}
	case RoleStaff:
		if u.Staff != nil {
			return u.Staff.ID
		}
	}
	return ""
}

// DisplayFields returns the role-specific profile fields shown to the actor.
func (u User) DisplayFields() (map[string]string, error) {
	switch u.Role {
	case RoleStudent:
		if u.Student == nil {
			break
		}
		return map[string]string{
			"role":        string(u.Role),
			"name":        u.Student.Name,
			"email":       u.Student.Email,
			"yearOfStudy": strconv.Itoa(u.Student.YearOfStudy),
			"major":       u.Student.Major,
		}, nil
	case RoleRepresentative:
		if u.Representative == nil {
			break
		}
		return map[string]string{
			"role":        string(u.Role),
			"name":        u.Representative.Name,
			"email":       u.Representative.Email,
			"companyName": u.Representative.CompanyName,
			"department":  u.Representative.Department,
			"position":    u.Representative.Position,
		}, nil
	case RoleStaff:
		if u.Staff == nil {
			break
		}
		return map[string]string{
			"role":       string(u.Role),
			"name":       u.Staff.Name,
			"email":      u.Staff.Email,
			"department": u.Staff.Department,
		}, nil
	default:
		return nil, fmt.Errorf("unknown role %q", u.Role)
	}
	return nil, fmt.Errorf("user with role %q has no %s record", u.Role, u.Role)
}
