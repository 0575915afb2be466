// internal/workers/opportunity/approve-opportunity/models.go
package approveopportunity

type Input struct {
	StaffID       string `json:"staffId"`
	OpportunityID string `json:"opportunityId"`
	Approve       bool   `json:"approve"`
}

type Output struct {
	OpportunityID string `json:"opportunityId"`
	Status        string `json:"status"`
	Visible       bool   `json:"visible"`
}
