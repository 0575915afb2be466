// internal/workers/withdrawal/request-withdrawal/models.go
package requestwithdrawal

// Input carries StaffID when staff file on the student's behalf.
type Input struct {
	StudentID     string `json:"studentId"`
	ApplicationID string `json:"applicationId"`
	Reason        string `json:"reason"`
	StaffID       string `json:"staffId,omitempty"`
}

type Output struct {
	WithdrawalRequestID string `json:"withdrawalRequestId"`
	Status              string `json:"status"`
	PlacementAccepted   bool   `json:"placementAccepted"`
}
