// internal/models/opportunity.go
package models

import (
	"strings"
	"time"
)

// Level is the difficulty tier of an opportunity.
type Level string

const (
	LevelBasic        Level = "basic"
	LevelIntermediate Level = "intermediate"
	LevelAdvanced     Level = "advanced"
)

// ParseLevel accepts any casing of a known level.
func ParseLevel(s string) (Level, bool) {
	switch l := Level(strings.ToLower(strings.TrimSpace(s))); l {
	case LevelBasic, LevelIntermediate, LevelAdvanced:
		return l, true
	default:
		return "", false
	}
}

// OpportunityStatus is the lifecycle status of an opportunity.
type OpportunityStatus string

const (
	OpportunityPending  OpportunityStatus = "pending"
	OpportunityApproved OpportunityStatus = "approved"
	OpportunityRejected OpportunityStatus = "rejected"
	OpportunityFilled   OpportunityStatus = "filled"
)

// AnyMajor is the preferred-major wildcard.
const AnyMajor = "any"

// Slot bounds for an opportunity.
const (
	MinSlots = 1
	MaxSlots = 10
)

// Opportunity is an internship posting. FilledSlots is written only by the
// capacity ledger.
type Opportunity struct {
	ID               string            `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description,omitempty"`
	CompanyName      string            `json:"companyName"`
	RepresentativeID string            `json:"representativeId"`
	Level            Level             `json:"level"`
	PreferredMajor   string            `json:"preferredMajor"`
	OpeningDate      time.Time         `json:"openingDate"`
	ClosingDate      time.Time         `json:"closingDate"`
	TotalSlots       int               `json:"totalSlots"`
	FilledSlots      int               `json:"filledSlots"`
	Status           OpportunityStatus `json:"status"`
	Visible          bool              `json:"visible"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func (o Opportunity) RecordID() string { return o.ID }

func (o Opportunity) WithID(id string) Opportunity {
	o.ID = id
	return o
}

func (o Opportunity) Clone() Opportunity { return o }

// HasFreeSlot reports whether another placement can be committed.
func (o Opportunity) HasFreeSlot() bool {
	return o.FilledSlots < o.TotalSlots
}

// RemainingSlots is TotalSlots minus FilledSlots.
func (o Opportunity) RemainingSlots() int {
	return o.TotalSlots - o.FilledSlots
}
