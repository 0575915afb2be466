package placement

import (
	"context"
	"fmt"
	"strings"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	RuleNotWithdrawable            = "NOT_WITHDRAWABLE"
	RuleWithdrawalAlreadyPending   = "WITHDRAWAL_ALREADY_PENDING"
	RuleWithdrawalNotPending       = "WITHDRAWAL_NOT_PENDING"
	RuleApplicationNotWithdrawable = "APPLICATION_NOT_WITHDRAWABLE"
)

// WithdrawalDecision is the state left behind by DecideWithdrawal.
type WithdrawalDecision struct {
	Request      models.WithdrawalRequest `json:"withdrawalRequest"`
	Application  models.Application       `json:"application"`
	Opportunity  *models.Opportunity      `json:"opportunity,omitempty"`
	SlotReleased bool                     `json:"slotReleased"`
}

// RequestWithdrawal files a pending withdrawal for one of the student's
// applications. Accepted placements cannot be withdrawn this way.
func (s *Service) RequestWithdrawal(ctx context.Context, studentID, applicationID, reason string) (models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	attrs := []attribute.KeyValue{
		attribute.String("student.id", studentID),
		attribute.String("application.id", applicationID),
	}

	err := s.run(ctx, "request_withdrawal", attrs, func(ctx context.Context) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return apperrors.NewInvalidInputError("reason", "withdrawal reason is required")
		}

		return s.withStudentLock(ctx, studentID, func() error {
			app, err := s.application(ctx, applicationID)
			if err != nil {
				return err
			}
			if app.StudentID != studentID {
				return apperrors.NewUnauthorizedError(RuleNotApplicationOwner,
					"application belongs to another student",
					fmt.Sprintf("applicationId: %s, studentId: %s", applicationID, studentID))
			}
			if !CanBeWithdrawn(app) {
				return apperrors.NewBusinessRuleError(RuleNotWithdrawable,
					"application cannot be withdrawn; accepted placements are withdrawn through staff",
					fmt.Sprintf("applicationId: %s, status: %s, placementAccepted: %t", app.ID, app.Status, app.PlacementAccepted))
			}

			req, err = s.fileWithdrawal(ctx, app, reason, studentID)
			return err
		})
	})
	return req, err
}

// FileStaffWithdrawal files a withdrawal on a student's behalf. Staff may
// file for any application that is still pending or successful, including
// an accepted placement.
func (s *Service) FileStaffWithdrawal(ctx context.Context, staffID, applicationID, reason string) (models.WithdrawalRequest, error) {
	var req models.WithdrawalRequest
	attrs := []attribute.KeyValue{
		attribute.String("staff.id", staffID),
		attribute.String("application.id", applicationID),
	}

	err := s.run(ctx, "file_staff_withdrawal", attrs, func(ctx context.Context) error {
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return apperrors.NewInvalidInputError("reason", "withdrawal reason is required")
		}
		if _, err := s.staff(ctx, staffID); err != nil {
			return err
		}
		current, err := s.application(ctx, applicationID)
		if err != nil {
			return err
		}

		return s.withStudentLock(ctx, current.StudentID, func() error {
			app, err := s.application(ctx, applicationID)
			if err != nil {
				return err
			}
			if app.Status != models.ApplicationPending && app.Status != models.ApplicationSuccessful {
				return apperrors.NewBusinessRuleError(RuleApplicationNotWithdrawable,
					"only pending or successful applications can be withdrawn",
					fmt.Sprintf("applicationId: %s, status: %s", app.ID, app.Status))
			}
			req, err = s.fileWithdrawal(ctx, app, reason, staffID)
			return err
		})
	})
	return req, err
}

// fileWithdrawal enforces one pending request per application. Callers hold the student lock.
func (s *Service) fileWithdrawal(ctx context.Context, app models.Application, reason, filedBy string) (models.WithdrawalRequest, error) {
	pending, err := s.stores.Withdrawals.FindAll(ctx, func(w models.WithdrawalRequest) bool {
		return w.ApplicationID == app.ID && w.Status == models.WithdrawalPending
	})
	if err != nil {
		return models.WithdrawalRequest{}, err
	}
	if len(pending) > 0 {
		return models.WithdrawalRequest{}, apperrors.NewConflictError(RuleWithdrawalAlreadyPending,
			"a withdrawal request is already pending for this application",
			fmt.Sprintf("applicationId: %s, withdrawalRequestId: %s", app.ID, pending[0].ID))
	}

	req, err := s.stores.Withdrawals.Save(ctx, models.WithdrawalRequest{
		StudentID:         app.StudentID,
		ApplicationID:     app.ID,
		OpportunityID:     app.OpportunityID,
		Reason:            reason,
		Status:            models.WithdrawalPending,
		RequestedAt:       s.now(),
		PlacementAccepted: app.PlacementAccepted,
		FiledBy:           filedBy,
	})
	if err != nil {
		return req, err
	}

	s.record(ctx, storage.AuditEvent{
		Type:         storage.EventWithdrawalRequested,
		ResourceType: "withdrawal",
		ResourceID:   req.ID,
		ActorID:      filedBy,
		Details:      map[string]interface{}{"applicationId": app.ID, "placementAccepted": app.PlacementAccepted},
	})
	s.log.Info("withdrawal requested", map[string]interface{}{
		"withdrawalRequestId": req.ID, "applicationId": app.ID, "filedBy": filedBy,
	})
	return req, nil
}

// DecideWithdrawal approves or rejects a pending withdrawal. Approval
// withdraws the application, releases its slot if it held one and clears
// the student's placement pointer; the request is stamped last.
func (s *Service) DecideWithdrawal(ctx context.Context, staffID, withdrawalID string, approve bool) (WithdrawalDecision, error) {
	var decision WithdrawalDecision
	attrs := []attribute.KeyValue{
		attribute.String("staff.id", staffID),
		attribute.String("withdrawal.id", withdrawalID),
		attribute.Bool("approve", approve),
	}

	err := s.run(ctx, "decide_withdrawal", attrs, func(ctx context.Context) error {
		if _, err := s.staff(ctx, staffID); err != nil {
			return err
		}
		current, err := s.withdrawal(ctx, withdrawalID)
		if err != nil {
			return err
		}

		return s.withStudentLock(ctx, current.StudentID, func() error {
			var err error
			decision, err = s.decideWithdrawal(ctx, staffID, withdrawalID, approve)
			return err
		})
	})
	return decision, err
}

func (s *Service) decideWithdrawal(ctx context.Context, staffID, withdrawalID string, approve bool) (WithdrawalDecision, error) {
	var decision WithdrawalDecision

	req, err := s.withdrawal(ctx, withdrawalID)
	if err != nil {
		return decision, err
	}
	if err := checkPending(req); err != nil {
		return decision, err
	}
	app, err := s.application(ctx, req.ApplicationID)
	if err != nil {
		return decision, err
	}
	decision.Application = app

	now := s.now()
	g := s.newSaga("decide_withdrawal", map[string]interface{}{"withdrawalRequestId": withdrawalID, "staffId": staffID})

	// A cascade may already have withdrawn the application, or the
	// representative rejected it meanwhile; then only the request is stamped.
	withdraw := approve && isActive(app)
	if withdraw {
		err = g.do(ctx, "withdraw_application", func(ctx context.Context) error {
			updated, err := s.stores.Applications.Update(ctx, app.ID, func(a *models.Application) error {
				if err := transition(a, models.ApplicationWithdrawn, now); err != nil {
					return err
				}
				a.WithdrawnReason = req.Reason
				return nil
			})
			decision.Application = updated
			return err
		}, func(ctx context.Context) error {
			return s.restoreApplication(ctx, app)
		})
		if err != nil {
			return decision, err
		}

		if app.HoldsSlot() {
			err = g.do(ctx, "release_slot", func(ctx context.Context) error {
				opp, err := s.ledger.ReleaseSlot(ctx, app.OpportunityID)
				if err == nil {
					decision.Opportunity = &opp
					decision.SlotReleased = true
				}
				return err
			}, func(ctx context.Context) error {
				_, err := s.ledger.CommitSlot(ctx, app.OpportunityID)
				return err
			})
			if err != nil {
				return decision, g.abort(ctx, err)
			}
		}

		var before models.Student
		err = g.do(ctx, "unlink_student", func(ctx context.Context) error {
			_, err := s.stores.Students.Update(ctx, app.StudentID, func(st *models.Student) error {
				before = st.Clone()
				st.RemoveApplications(app.ID)
				if st.AcceptedPlacement == app.ID {
					st.AcceptedPlacement = ""
				}
				return nil
			})
			return err
		}, func(ctx context.Context) error {
			_, err := s.stores.Students.Update(ctx, app.StudentID, func(st *models.Student) error {
				st.Applications = before.Applications
				st.AcceptedPlacement = before.AcceptedPlacement
				return nil
			})
			return err
		})
		if err != nil {
			return decision, g.abort(ctx, err)
		}
	}

	status := models.WithdrawalRejected
	if approve {
		status = models.WithdrawalApproved
	}
	err = g.do(ctx, "stamp_request", func(ctx context.Context) error {
		updated, err := s.stores.Withdrawals.Update(ctx, withdrawalID, func(w *models.WithdrawalRequest) error {
			if err := checkPending(*w); err != nil {
				return err
			}
			processed := now
			w.Status = status
			w.ProcessedBy = staffID
			w.ProcessedAt = &processed
			return nil
		})
		decision.Request = updated
		return err
	}, nil)
	if err != nil {
		return decision, g.abort(ctx, err)
	}

	if decision.Opportunity != nil {
		s.project(ctx, *decision.Opportunity)
		s.record(ctx, storage.AuditEvent{
			Type:         storage.EventSlotReleased,
			ResourceType: "opportunity",
			ResourceID:   decision.Opportunity.ID,
			ActorID:      staffID,
			Details:      map[string]interface{}{"filledSlots": decision.Opportunity.FilledSlots, "applicationId": app.ID},
		})
	}
	if withdraw {
		s.record(ctx, storage.AuditEvent{
			Type:         storage.EventApplicationWithdrawn,
			ResourceType: "application",
			ResourceID:   app.ID,
			ActorID:      staffID,
			Details:      map[string]interface{}{"reason": req.Reason},
		})
	}
	s.record(ctx, storage.AuditEvent{
		Type:         storage.EventWithdrawalDecided,
		ResourceType: "withdrawal",
		ResourceID:   withdrawalID,
		ActorID:      staffID,
		Details:      map[string]interface{}{"status": string(status), "slotReleased": decision.SlotReleased},
	})
	s.log.Info("withdrawal decided", map[string]interface{}{
		"withdrawalRequestId": withdrawalID,
		"status":              string(status),
		"slotReleased":        decision.SlotReleased,
	})
	return decision, nil
}

func checkPending(req models.WithdrawalRequest) error {
	if req.Status == models.WithdrawalPending {
		return nil
	}
	return apperrors.NewBusinessRuleError(RuleWithdrawalNotPending,
		"withdrawal request has already been decided",
		fmt.Sprintf("withdrawalRequestId: %s, status: %s", req.ID, req.Status))
}
