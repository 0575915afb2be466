// internal/models/application.go
package models

import "time"

// ApplicationStatus is the status of one student-opportunity application.
type ApplicationStatus string

const (
	ApplicationPending    ApplicationStatus = "pending"
	ApplicationSuccessful ApplicationStatus = "successful"
	ApplicationRejected   ApplicationStatus = "rejected"
	ApplicationWithdrawn  ApplicationStatus = "withdrawn"
)

type Application struct {
	ID                string            `json:"id"`
	StudentID         string            `json:"studentId"`
	OpportunityID     string            `json:"opportunityId"`
	Status            ApplicationStatus `json:"status"`
	SubmittedAt       time.Time         `json:"submittedAt"`
	UpdatedAt         time.Time         `json:"updatedAt"`
	PlacementAccepted bool              `json:"placementAccepted"`
	AcceptedAt        *time.Time        `json:"acceptedAt,omitempty"`
	WithdrawnReason   string            `json:"withdrawnReason,omitempty"`
}

func (a Application) RecordID() string { return a.ID }

func (a Application) WithID(id string) Application {
	a.ID = id
	return a
}

func (a Application) Clone() Application {
	if a.AcceptedAt != nil {
		t := *a.AcceptedAt
		a.AcceptedAt = &t
	}
	return a
}

// HoldsSlot reports whether the application currently occupies a slot on its
// opportunity. Slots are committed on acceptance, not on approval.
func (a Application) HoldsSlot() bool {
	return a.Status == ApplicationSuccessful && a.PlacementAccepted
}
