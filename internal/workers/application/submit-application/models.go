// internal/workers/application/submit-application/models.go
package submitapplication

type Input struct {
	StudentID     string `json:"studentId"`
	OpportunityID string `json:"opportunityId"`
}

type Output struct {
	ApplicationID string `json:"applicationId"`
	Status        string `json:"status"`
}
