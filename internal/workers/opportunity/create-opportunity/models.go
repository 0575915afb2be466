// internal/workers/opportunity/create-opportunity/models.go
package createopportunity

// Input dates are RFC 3339 timestamps or plain YYYY-MM-DD days.
type Input struct {
	RepresentativeID string `json:"representativeId"`
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	Level            string `json:"level"`
	PreferredMajor   string `json:"preferredMajor,omitempty"`
	OpeningDate      string `json:"openingDate"`
	ClosingDate      string `json:"closingDate"`
	TotalSlots       int    `json:"totalSlots"`
}

type Output struct {
	OpportunityID string `json:"opportunityId"`
	Status        string `json:"status"`
}
