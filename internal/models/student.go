// internal/models/student.go
package models

// Student is an applicant. Applications holds the ids of the student's
// pending and successful applications; AcceptedPlacement is the application id of the
// accepted offer, empty when none.
type Student struct {
	ID                string   `json:"id"`
	Name              string   `json:"name"`
	Email             string   `json:"email"`
	YearOfStudy       int      `json:"yearOfStudy"`
	Major             string   `json:"major"`
	Applications      []string `json:"applications"`
	AcceptedPlacement string   `json:"acceptedPlacement,omitempty"`
}

func (s Student) RecordID() string { return s.ID }

func (s Student) WithID(id string) Student {
	s.ID = id
	return s
}

func (s Student) Clone() Student {
	s.Applications = cloneStrings(s.Applications)
	return s
}

// HasPlacement reports whether the student has accepted an offer.
func (s Student) HasPlacement() bool {
	return s.AcceptedPlacement != ""
}

// HasApplication reports whether id is among the student's active applications.
func (s Student) HasApplication(id string) bool {
	for _, a := range s.Applications {
		if a == id {
			return true
		}
	}
	return false
}

// RemoveApplications drops the given ids from the active list.
func (s *Student) RemoveApplications(ids ...string) {
	if len(ids) == 0 {
		return
	}
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	kept := s.Applications[:0:0]
	for _, a := range s.Applications {
		if _, ok := drop[a]; !ok {
			kept = append(kept, a)
		}
	}
	s.Applications = kept
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
