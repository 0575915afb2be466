// internal/models/withdrawal.go
package models

import "time"

type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "pending"
	WithdrawalApproved WithdrawalStatus = "approved"
	WithdrawalRejected WithdrawalStatus = "rejected"
)

// WithdrawalRequest asks staff to withdraw an application. OpportunityID is
// denormalized for reporting; PlacementAccepted records the application's
// state when the request was filed.
type WithdrawalRequest struct {
	ID                string           `json:"id"`
	StudentID         string           `json:"studentId"`
	ApplicationID     string           `json:"applicationId"`
	OpportunityID     string           `json:"opportunityId"`
	Reason            string           `json:"reason"`
	Status            WithdrawalStatus `json:"status"`
	RequestedAt       time.Time        `json:"requestedAt"`
	ProcessedBy       string           `json:"processedBy,omitempty"`
	ProcessedAt       *time.Time       `json:"processedAt,omitempty"`
	PlacementAccepted bool             `json:"placementAccepted"`
	FiledBy           string           `json:"filedBy"`
}

func (w WithdrawalRequest) RecordID() string { return w.ID }

func (w WithdrawalRequest) WithID(id string) WithdrawalRequest {
	w.ID = id
	return w
}

func (w WithdrawalRequest) Clone() WithdrawalRequest {
	if w.ProcessedAt != nil {
		t := *w.ProcessedAt
		w.ProcessedAt = &t
	}
	return w
}
