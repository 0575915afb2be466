// internal/workers/placement/accept-placement/models.go
package acceptplacement

type Input struct {
	StudentID     string `json:"studentId"`
	ApplicationID string `json:"applicationId"`
}

type Output struct {
	ApplicationID           string   `json:"applicationId"`
	OpportunityID           string   `json:"opportunityId"`
	WithdrawnApplicationIDs []string `json:"withdrawnApplicationIds"`
	FilledSlots             int      `json:"filledSlots"`
	TotalSlots              int      `json:"totalSlots"`
}
