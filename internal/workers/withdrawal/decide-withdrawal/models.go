// internal/workers/withdrawal/decide-withdrawal/models.go
package decidewithdrawal

type Input struct {
	StaffID             string `json:"staffId"`
	WithdrawalRequestID string `json:"withdrawalRequestId"`
	Approve             bool   `json:"approve"`
}

type Output struct {
	WithdrawalRequestID string `json:"withdrawalRequestId"`
	Status              string `json:"status"`
	ApplicationID       string `json:"applicationId"`
	ApplicationStatus   string `json:"applicationStatus"`
	SlotReleased        bool   `json:"slotReleased"`
}
