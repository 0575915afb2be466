package placement

import (
	"context"
	"fmt"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/attribute"
)

const (
	RuleDuplicateApplication  = "DUPLICATE_APPLICATION"
	RuleNotOpportunityOwner   = "NOT_OPPORTUNITY_OWNER"
	RuleApplicationNotPending = "APPLICATION_NOT_PENDING"
	RuleNotApplicationOwner   = "NOT_APPLICATION_OWNER"
)

// SubmitApplication records a pending application after the eligibility
// check passes and appends it to the student's active list.
func (s *Service) SubmitApplication(ctx context.Context, studentID, opportunityID string) (models.Application, error) {
	var app models.Application
	attrs := []attribute.KeyValue{
		attribute.String("student.id", studentID),
		attribute.String("opportunity.id", opportunityID),
	}

	err := s.run(ctx, "submit_application", attrs, func(ctx context.Context) error {
		return s.withStudentLock(ctx, studentID, func() error {
			student, err := s.student(ctx, studentID)
			if err != nil {
				return err
			}
			opp, err := s.opportunity(ctx, opportunityID)
			if err != nil {
				return err
			}

			now := s.now()
			if err := CanApply(student, opp, now, s.policy); err != nil {
				return err
			}

			existing, err := s.stores.Applications.FindAll(ctx, func(a models.Application) bool {
				return a.StudentID == studentID && a.OpportunityID == opportunityID && a.Status != models.ApplicationWithdrawn
			})
			if err != nil {
				return err
			}
			if len(existing) > 0 {
				return apperrors.NewBusinessRuleError(RuleDuplicateApplication,
					"student already applied to this internship",
					fmt.Sprintf("applicationId: %s", existing[0].ID))
			}

			g := s.newSaga("submit_application", map[string]interface{}{"studentId": studentID, "opportunityId": opportunityID})

			err = g.do(ctx, "create_application", func(ctx context.Context) error {
				saved, err := s.stores.Applications.Save(ctx, models.Application{
					StudentID:     studentID,
					OpportunityID: opportunityID,
					Status:        models.ApplicationPending,
					SubmittedAt:   now,
					UpdatedAt:     now,
				})
				app = saved
				return err
			}, func(ctx context.Context) error {
				_, err := s.stores.Applications.DeleteByID(ctx, app.ID)
				return err
			})
			if err != nil {
				return err
			}

			err = g.do(ctx, "link_student", func(ctx context.Context) error {
				_, err := s.stores.Students.Update(ctx, studentID, func(st *models.Student) error {
					// Re-check against the stored record; the lease only covers engine writers.
					if err := CanApply(*st, opp, now, s.policy); err != nil {
						return err
					}
					st.Applications = append(st.Applications, app.ID)
					return nil
				})
				return err
			}, nil)
			if err != nil {
				return g.abort(ctx, err)
			}

			s.record(ctx, storage.AuditEvent{
				Type:         storage.EventApplicationSubmitted,
				ResourceType: "application",
				ResourceID:   app.ID,
				ActorID:      studentID,
				Details:      map[string]interface{}{"opportunityId": opportunityID},
			})
			s.log.Info("application submitted", map[string]interface{}{
				"applicationId": app.ID, "studentId": studentID, "opportunityId": opportunityID,
			})
			return nil
		})
	})
	return app, err
}

// DecideApplication lets the owning representative approve or reject a
// pending application. Approval offers the placement; no slot is consumed.
func (s *Service) DecideApplication(ctx context.Context, representativeID, applicationID string, approve bool) (models.Application, error) {
	var app models.Application
	attrs := []attribute.KeyValue{
		attribute.String("representative.id", representativeID),
		attribute.String("application.id", applicationID),
		attribute.Bool("approve", approve),
	}

	err := s.run(ctx, "decide_application", attrs, func(ctx context.Context) error {
		if _, err := s.representative(ctx, representativeID); err != nil {
			return err
		}
		current, err := s.application(ctx, applicationID)
		if err != nil {
			return err
		}

		return s.withStudentLock(ctx, current.StudentID, func() error {
			opp, err := s.opportunity(ctx, current.OpportunityID)
			if err != nil {
				return err
			}
			if opp.RepresentativeID != representativeID {
				return apperrors.NewUnauthorizedError(RuleNotOpportunityOwner,
					"representative does not own this internship",
					fmt.Sprintf("opportunityId: %s, representativeId: %s", opp.ID, representativeID))
			}

			target := models.ApplicationRejected
			if approve {
				target = models.ApplicationSuccessful
			}

			g := s.newSaga("decide_application", map[string]interface{}{"applicationId": applicationID, "representativeId": representativeID})

			var before models.Application
			err = g.do(ctx, "set_status", func(ctx context.Context) error {
				updated, err := s.stores.Applications.Update(ctx, applicationID, func(a *models.Application) error {
					if a.Status != models.ApplicationPending {
						return apperrors.NewBusinessRuleError(RuleApplicationNotPending,
							"application has already been decided",
							fmt.Sprintf("applicationId: %s, status: %s", a.ID, a.Status))
					}
					if approve && !opp.HasFreeSlot() {
						return apperrors.NewBusinessRuleError(RuleOpportunityFull,
							"internship has no remaining slots",
							fmt.Sprintf("opportunityId: %s, filledSlots: %d, totalSlots: %d", opp.ID, opp.FilledSlots, opp.TotalSlots))
					}
					before = a.Clone()
					return transition(a, target, s.now())
				})
				app = updated
				return err
			}, func(ctx context.Context) error {
				return s.restoreApplication(ctx, before)
			})
			if err != nil {
				return err
			}

			// A rejection is final, so it no longer counts toward the student's limit.
			if !approve {
				err = g.do(ctx, "unlink_student", func(ctx context.Context) error {
					_, err := s.stores.Students.Update(ctx, app.StudentID, func(st *models.Student) error {
						st.RemoveApplications(app.ID)
						return nil
					})
					return err
				}, nil)
				if err != nil {
					return g.abort(ctx, err)
				}
			}

			s.record(ctx, storage.AuditEvent{
				Type:         storage.EventApplicationDecided,
				ResourceType: "application",
				ResourceID:   app.ID,
				ActorID:      representativeID,
				Details:      map[string]interface{}{"status": string(app.Status)},
			})
			s.log.Info("application decided", map[string]interface{}{
				"applicationId": app.ID, "status": string(app.Status), "representativeId": representativeID,
			})
			return nil
		})
	})
	return app, err
}
