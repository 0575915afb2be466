package placement

import (
	"context"
	"errors"
	"fmt"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	RuleOfferNotAcceptable = "OFFER_NOT_ACCEPTABLE"

	// SupersededReason is stamped on applications withdrawn by an acceptance.
	SupersededReason = "superseded by accepted placement"
)

// AcceptResult is the state left behind by a successful acceptance.
type AcceptResult struct {
	Application models.Application `json:"application"`
	Student     models.Student     `json:"student"`
	Opportunity models.Opportunity `json:"opportunity"`
	Withdrawn   []string           `json:"withdrawnApplicationIds"`
}

// AcceptPlacement accepts a successful offer: it flags the application,
// points the student at it, withdraws the student's other applications and
// finally commits a slot. If the slot cannot be committed every earlier
// write is reverted before the error is returned.
func (s *Service) AcceptPlacement(ctx context.Context, studentID, applicationID string) (AcceptResult, error) {
	var result AcceptResult
	attrs := []attribute.KeyValue{
		attribute.String("student.id", studentID),
		attribute.String("application.id", applicationID),
	}

	err := s.run(ctx, "accept_placement", attrs, func(ctx context.Context) error {
		return s.withStudentLock(ctx, studentID, func() error {
			var err error
			result, err = s.acceptPlacement(ctx, studentID, applicationID)
			return err
		})
	})
	return result, err
}

func (s *Service) acceptPlacement(ctx context.Context, studentID, applicationID string) (AcceptResult, error) {
	var result AcceptResult

	student, err := s.student(ctx, studentID)
	if err != nil {
		return result, err
	}
	if student.HasPlacement() {
		return result, apperrors.NewConflictError(RulePlacementAlreadyAccepted,
			"student already has an accepted placement",
			fmt.Sprintf("studentId: %s, applicationId: %s", studentID, student.AcceptedPlacement))
	}

	app, err := s.application(ctx, applicationID)
	if err != nil {
		return result, err
	}
	if app.StudentID != studentID {
		return result, apperrors.NewUnauthorizedError(RuleNotApplicationOwner,
			"application belongs to another student",
			fmt.Sprintf("applicationId: %s, studentId: %s", applicationID, studentID))
	}
	if err := checkAcceptable(app); err != nil {
		return result, err
	}
	if _, err := s.opportunity(ctx, app.OpportunityID); err != nil {
		return result, err
	}

	now := s.now()
	g := s.newSaga("accept_placement", map[string]interface{}{"studentId": studentID, "applicationId": applicationID})

	// Step 4: flag the application.
	err = g.do(ctx, "flag_application", func(ctx context.Context) error {
		updated, err := s.stores.Applications.Update(ctx, applicationID, func(a *models.Application) error {
			if err := checkAcceptable(*a); err != nil {
				return err
			}
			accepted := now
			a.PlacementAccepted = true
			a.AcceptedAt = &accepted
			a.UpdatedAt = now
			return nil
		})
		result.Application = updated
		return err
	}, func(ctx context.Context) error {
		return s.restoreApplication(ctx, app)
	})
	if err != nil {
		return result, err
	}

	// Step 5: point the student at the placement.
	err = g.do(ctx, "set_student_placement", func(ctx context.Context) error {
		_, err := s.stores.Students.Update(ctx, studentID, func(st *models.Student) error {
			if st.HasPlacement() {
				return apperrors.NewConflictError(RulePlacementAlreadyAccepted,
					"student already has an accepted placement", fmt.Sprintf("studentId: %s", studentID))
			}
			st.AcceptedPlacement = applicationID
			return nil
		})
		return err
	}, func(ctx context.Context) error {
		_, err := s.stores.Students.Update(ctx, studentID, func(st *models.Student) error {
			if st.AcceptedPlacement == applicationID {
				st.AcceptedPlacement = ""
			}
			return nil
		})
		return err
	})
	if err != nil {
		return result, g.abort(ctx, err)
	}

	// Step 6: cascade-withdraw every other pending or successful application.
	others, err := s.stores.Applications.FindAll(ctx, func(a models.Application) bool {
		return a.StudentID == studentID && a.ID != applicationID && isActive(a)
	})
	if err != nil {
		return result, g.abort(ctx, err)
	}
	for _, other := range others {
		err = g.do(ctx, "withdraw_"+other.ID, func(ctx context.Context) error {
			_, err := s.stores.Applications.Update(ctx, other.ID, func(a *models.Application) error {
				if err := transition(a, models.ApplicationWithdrawn, now); err != nil {
					return err
				}
				a.WithdrawnReason = SupersededReason
				return nil
			})
			return err
		}, func(ctx context.Context) error {
			return s.restoreApplication(ctx, other)
		})
		if err != nil {
			return result, g.abort(ctx, err)
		}
		result.Withdrawn = append(result.Withdrawn, other.ID)
	}

	if len(result.Withdrawn) > 0 {
		var before []string
		err = g.do(ctx, "unlink_withdrawn", func(ctx context.Context) error {
			_, err := s.stores.Students.Update(ctx, studentID, func(st *models.Student) error {
				before = append([]string(nil), st.Applications...)
				st.RemoveApplications(result.Withdrawn...)
				return nil
			})
			return err
		}, func(ctx context.Context) error {
			_, err := s.stores.Students.Update(ctx, studentID, func(st *models.Student) error {
				st.Applications = before
				return nil
			})
			return err
		})
		if err != nil {
			return result, g.abort(ctx, err)
		}
	}

	// Step 7: consume the slot. A lost race may be retried.
	err = g.do(ctx, "commit_slot", func(ctx context.Context) error {
		var err error
		for attempt := 0; ; attempt++ {
			result.Opportunity, err = s.ledger.CommitSlot(ctx, app.OpportunityID)
			if err == nil || !errors.Is(err, apperrors.ErrCapacityExceeded) || attempt >= s.policy.CapacityRetries {
				return err
			}
			s.log.Debug("slot commit lost a race, retrying", map[string]interface{}{
				"opportunityId": app.OpportunityID, "attempt": attempt + 1,
			})
		}
	}, nil)
	if err != nil {
		return result, g.abort(ctx, err)
	}

	result.Student, err = s.student(ctx, studentID)
	if err != nil {
		return result, err
	}

	s.project(ctx, result.Opportunity)
	s.record(ctx, storage.AuditEvent{
		Type:         storage.EventPlacementAccepted,
		ResourceType: "application",
		ResourceID:   applicationID,
		ActorID:      studentID,
		Details:      map[string]interface{}{"opportunityId": app.OpportunityID, "withdrawn": result.Withdrawn},
	})
	s.record(ctx, storage.AuditEvent{
		Type:         storage.EventSlotCommitted,
		ResourceType: "opportunity",
		ResourceID:   app.OpportunityID,
		ActorID:      studentID,
		Details:      map[string]interface{}{"filledSlots": result.Opportunity.FilledSlots, "totalSlots": result.Opportunity.TotalSlots},
	})
	s.log.Info("placement accepted", map[string]interface{}{
		"studentId":     studentID,
		"applicationId": applicationID,
		"opportunityId": app.OpportunityID,
		"withdrawn":     len(result.Withdrawn),
		"filledSlots":   result.Opportunity.FilledSlots,
	})
	return result, nil
}

func checkAcceptable(app models.Application) error {
	if app.Status == models.ApplicationSuccessful && !app.PlacementAccepted {
		return nil
	}
	return apperrors.NewBusinessRuleError(RuleOfferNotAcceptable,
		"only a successful, not yet accepted offer can be accepted",
		fmt.Sprintf("applicationId: %s, status: %s, placementAccepted: %t", app.ID, app.Status, app.PlacementAccepted))
}

// restoreApplication writes a snapshot back, undoing a saga step.
func (s *Service) restoreApplication(ctx context.Context, snapshot models.Application) error {
	_, err := s.stores.Applications.Update(ctx, snapshot.ID, func(a *models.Application) error {
		*a = snapshot.Clone()
		return nil
	})
	return err
}
