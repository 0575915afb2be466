package placement

import (
	"context"
	"fmt"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/metrics"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"
)

const RuleNoSlotToRelease = "NO_SLOT_TO_RELEASE"

// Ledger is the only writer of Opportunity.FilledSlots. Each call is one
// atomic read-modify-write on the opportunity record.
type Ledger struct {
	opportunities storage.Store[models.Opportunity]
	now           Clock
	metrics       metrics.Recorder
}

func NewLedger(opportunities storage.Store[models.Opportunity], clock Clock, rec metrics.Recorder) *Ledger {
	if rec == nil {
		rec = metrics.NopRecorder{}
	}
	return &Ledger{opportunities: opportunities, now: clock, metrics: rec}
}

// CommitSlot consumes one slot, marking the opportunity filled and hidden
// when the last slot goes.
func (l *Ledger) CommitSlot(ctx context.Context, opportunityID string) (models.Opportunity, error) {
	opp, err := l.opportunities.Update(ctx, opportunityID, func(o *models.Opportunity) error {
		if o.FilledSlots >= o.TotalSlots {
			return apperrors.NewCapacityExceededError(o.ID, o.FilledSlots, o.TotalSlots)
		}
		o.FilledSlots++
		if o.FilledSlots == o.TotalSlots {
			o.Status = models.OpportunityFilled
			o.Visible = false
		}
		o.UpdatedAt = l.now()
		return nil
	})
	l.metrics.SlotChange("commit", outcomeOf(err))
	return opp, err
}

// ReleaseSlot frees one slot, reopening a filled opportunity.
func (l *Ledger) ReleaseSlot(ctx context.Context, opportunityID string) (models.Opportunity, error) {
	opp, err := l.opportunities.Update(ctx, opportunityID, func(o *models.Opportunity) error {
		if o.FilledSlots <= 0 {
			return apperrors.NewInvalidStateError(RuleNoSlotToRelease, "opportunity has no filled slot to release",
				fmt.Sprintf("opportunityId: %s, filledSlots: %d", o.ID, o.FilledSlots))
		}
		wasFilled := o.Status == models.OpportunityFilled
		o.FilledSlots--
		if wasFilled {
			o.Status = models.OpportunityApproved
			o.Visible = true
		}
		o.UpdatedAt = l.now()
		return nil
	})
	l.metrics.SlotChange("release", outcomeOf(err))
	return opp, err
}

func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperrors.CodeOf(err))
}
