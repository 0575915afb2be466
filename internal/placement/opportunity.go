package placement

import (
	"context"
	"fmt"
	"strings"
	"time"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/lock"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	RuleOpportunityLimitReached = "OPPORTUNITY_LIMIT_REACHED"
	RuleOpportunityNotPending   = "OPPORTUNITY_NOT_PENDING"
	RuleOpportunityNotApproved  = "OPPORTUNITY_NOT_APPROVED"
)

// OpportunityDraft is what a representative submits when posting.
type OpportunityDraft struct {
	Title          string
	Description    string
	Level          string
	PreferredMajor string
	OpeningDate    time.Time
	ClosingDate    time.Time
	TotalSlots     int
}

func (d OpportunityDraft) validate() (models.Level, error) {
	if strings.TrimSpace(d.Title) == "" {
		return "", apperrors.NewInvalidInputError("title", "title is required")
	}
	level, ok := models.ParseLevel(d.Level)
	if !ok {
		return "", apperrors.NewInvalidValueError("level", "level must be basic, intermediate or advanced",
			fmt.Sprintf("level: %q", d.Level))
	}
	if d.TotalSlots < models.MinSlots || d.TotalSlots > models.MaxSlots {
		return "", apperrors.NewInvalidValueError("slot_count",
			fmt.Sprintf("slot count must be between %d and %d", models.MinSlots, models.MaxSlots),
			fmt.Sprintf("totalSlots: %d", d.TotalSlots))
	}
	if d.OpeningDate.IsZero() || d.ClosingDate.IsZero() || calendarDay(d.OpeningDate) > calendarDay(d.ClosingDate) {
		return "", apperrors.NewInvalidValueError("date_range", "opening date must not be after closing date",
			fmt.Sprintf("openingDate: %s, closingDate: %s", d.OpeningDate.Format(time.DateOnly), d.ClosingDate.Format(time.DateOnly)))
	}
	return level, nil
}

// CreateOpportunity posts a new opportunity for staff review. It starts
// pending and hidden with no filled slots.
func (s *Service) CreateOpportunity(ctx context.Context, representativeID string, draft OpportunityDraft) (models.Opportunity, error) {
	var opp models.Opportunity
	attrs := []attribute.KeyValue{attribute.String("representative.id", representativeID)}

	err := s.run(ctx, "create_opportunity", attrs, func(ctx context.Context) error {
		level, err := draft.validate()
		if err != nil {
			return err
		}

		return s.withLock(ctx, lock.RepresentativeKey(representativeID), func() error {
			rep, err := s.representative(ctx, representativeID)
			if err != nil {
				return err
			}
			if limit := s.policy.MaxOpportunitiesPerRepresentative; limit > 0 && len(rep.Opportunities) >= limit {
				return apperrors.NewBusinessRuleError(RuleOpportunityLimitReached,
					fmt.Sprintf("maximum %d opportunities per representative", limit),
					fmt.Sprintf("representativeId: %s, opportunities: %d", representativeID, len(rep.Opportunities)))
			}

			major := strings.TrimSpace(draft.PreferredMajor)
			if major == "" {
				major = models.AnyMajor
			}
			now := s.now()
			g := s.newSaga("create_opportunity", map[string]interface{}{"representativeId": representativeID})

			err = g.do(ctx, "save_opportunity", func(ctx context.Context) error {
				saved, err := s.stores.Opportunities.Save(ctx, models.Opportunity{
					Title:            strings.TrimSpace(draft.Title),
					Description:      draft.Description,
					CompanyName:      rep.CompanyName,
					RepresentativeID: representativeID,
					Level:            level,
					PreferredMajor:   major,
					OpeningDate:      draft.OpeningDate.UTC(),
					ClosingDate:      draft.ClosingDate.UTC(),
					TotalSlots:       draft.TotalSlots,
					Status:           models.OpportunityPending,
					CreatedAt:        now,
					UpdatedAt:        now,
				})
				opp = saved
				return err
			}, func(ctx context.Context) error {
				_, err := s.stores.Opportunities.DeleteByID(ctx, opp.ID)
				return err
			})
			if err != nil {
				return err
			}

			err = g.do(ctx, "link_representative", func(ctx context.Context) error {
				_, err := s.stores.Representatives.Update(ctx, representativeID, func(r *models.Representative) error {
					r.Opportunities = append(r.Opportunities, opp.ID)
					return nil
				})
				return err
			}, nil)
			if err != nil {
				return g.abort(ctx, err)
			}

			s.project(ctx, opp)
			s.record(ctx, storage.AuditEvent{
				Type:         storage.EventOpportunityCreated,
				ResourceType: "opportunity",
				ResourceID:   opp.ID,
				ActorID:      representativeID,
				Details:      map[string]interface{}{"title": opp.Title, "totalSlots": opp.TotalSlots, "level": string(opp.Level)},
			})
			s.log.Info("opportunity created", map[string]interface{}{
				"opportunityId": opp.ID, "representativeId": representativeID,
			})
			return nil
		})
	})
	return opp, err
}

// ApproveOpportunity records staff's decision on a pending opportunity.
// Approval makes it visible; capacity is not re-checked.
func (s *Service) ApproveOpportunity(ctx context.Context, staffID, opportunityID string, approve bool) (models.Opportunity, error) {
	var opp models.Opportunity
	attrs := []attribute.KeyValue{
		attribute.String("staff.id", staffID),
		attribute.String("opportunity.id", opportunityID),
		attribute.Bool("approve", approve),
	}

	err := s.run(ctx, "approve_opportunity", attrs, func(ctx context.Context) error {
		if _, err := s.staff(ctx, staffID); err != nil {
			return err
		}

		var err error
		opp, err = s.stores.Opportunities.Update(ctx, opportunityID, func(o *models.Opportunity) error {
			if o.Status != models.OpportunityPending {
				return apperrors.NewBusinessRuleError(RuleOpportunityNotPending,
					"opportunity has already been reviewed",
					fmt.Sprintf("opportunityId: %s, status: %s", o.ID, o.Status))
			}
			if approve {
				o.Status = models.OpportunityApproved
				o.Visible = true
			} else {
				o.Status = models.OpportunityRejected
				o.Visible = false
			}
			o.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return err
		}

		s.project(ctx, opp)
		s.record(ctx, storage.AuditEvent{
			Type:         storage.EventOpportunityDecided,
			ResourceType: "opportunity",
			ResourceID:   opp.ID,
			ActorID:      staffID,
			Details:      map[string]interface{}{"status": string(opp.Status)},
		})
		s.log.Info("opportunity reviewed", map[string]interface{}{"opportunityId": opp.ID, "status": string(opp.Status)})
		return nil
	})
	return opp, err
}

// SetOpportunityVisibility lets the owning representative show or hide an
// approved opportunity. Filled opportunities stay hidden until a slot frees.
func (s *Service) SetOpportunityVisibility(ctx context.Context, representativeID, opportunityID string, visible bool) (models.Opportunity, error) {
	var opp models.Opportunity
	attrs := []attribute.KeyValue{
		attribute.String("representative.id", representativeID),
		attribute.String("opportunity.id", opportunityID),
		attribute.Bool("visible", visible),
	}

	err := s.run(ctx, "set_opportunity_visibility", attrs, func(ctx context.Context) error {
		var err error
		opp, err = s.stores.Opportunities.Update(ctx, opportunityID, func(o *models.Opportunity) error {
			if o.RepresentativeID != representativeID {
				return apperrors.NewUnauthorizedError(RuleNotOpportunityOwner,
					"representative does not own this internship",
					fmt.Sprintf("opportunityId: %s, representativeId: %s", o.ID, representativeID))
			}
			if visible && o.Status != models.OpportunityApproved {
				return apperrors.NewBusinessRuleError(RuleOpportunityNotApproved,
					"only approved internships can be shown",
					fmt.Sprintf("opportunityId: %s, status: %s", o.ID, o.Status))
			}
			o.Visible = visible
			o.UpdatedAt = s.now()
			return nil
		})
		if err != nil {
			return err
		}

		s.project(ctx, opp)
		s.record(ctx, storage.AuditEvent{
			Type:         storage.EventOpportunityVisible,
			ResourceType: "opportunity",
			ResourceID:   opp.ID,
			ActorID:      representativeID,
			Details:      map[string]interface{}{"visible": visible},
		})
		return nil
	})
	return opp, err
}
