// internal/models/staff.go
package models

// Representative posts opportunities on behalf of a company.
type Representative struct {
	ID            string   `json:"id"`
	Name          string   `json:"name"`
	Email         string   `json:"email"`
	CompanyName   string   `json:"companyName"`
	Department    string   `json:"department,omitempty"`
	Position      string   `json:"position,omitempty"`
	Opportunities []string `json:"opportunities"`
}

func (r Representative) RecordID() string { return r.ID }

func (r Representative) WithID(id string) Representative {
	r.ID = id
	return r
}

func (r Representative) Clone() Representative {
	r.Opportunities = cloneStrings(r.Opportunities)
	return r
}

// Staff approve opportunities and decide withdrawals.
type Staff struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Department string `json:"department,omitempty"`
}

func (s Staff) RecordID() string { return s.ID }

func (s Staff) WithID(id string) Staff {
	s.ID = id
	return s
}

func (s Staff) Clone() Staff { return s }
