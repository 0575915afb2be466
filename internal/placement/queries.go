package placement

import (
	"context"
	"sort"

	"placement-engine/internal/models"

	"go.opentelemetry.io/otel/attribute"
)

// ListOpenOpportunities returns the opportunities the student could apply
// to right now, soonest closing first.
func (s *Service) ListOpenOpportunities(ctx context.Context, studentID string) ([]models.Opportunity, error) {
	var out []models.Opportunity
	attrs := []attribute.KeyValue{attribute.String("student.id", studentID)}

	err := s.run(ctx, "list_open_opportunities", attrs, func(ctx context.Context) error {
		student, err := s.student(ctx, studentID)
		if err != nil {
			return err
		}
		now := s.now()
		out, err = s.stores.Opportunities.FindAll(ctx, func(o models.Opportunity) bool {
			return CanApply(student, o, now, s.policy) == nil
		})
		if err != nil {
			return err
		}
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].ClosingDate.Equal(out[j].ClosingDate) {
				return out[i].ClosingDate.Before(out[j].ClosingDate)
			}
			return out[i].ID < out[j].ID
		})
		return nil
	})
	return out, err
}

// ListPendingWithdrawals returns undecided withdrawal requests, oldest first.
func (s *Service) ListPendingWithdrawals(ctx context.Context) ([]models.WithdrawalRequest, error) {
	var out []models.WithdrawalRequest
	err := s.run(ctx, "list_pending_withdrawals", nil, func(ctx context.Context) error {
		var err error
		out, err = s.stores.Withdrawals.FindAll(ctx, func(w models.WithdrawalRequest) bool {
			return w.Status == models.WithdrawalPending
		})
		if err != nil {
			return err
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].RequestedAt.Before(out[j].RequestedAt)
		})
		return nil
	})
	return out, err
}

// ListStudentApplications returns every application the student filed,
// withdrawn ones included, in submission order.
func (s *Service) ListStudentApplications(ctx context.Context, studentID string) ([]models.Application, error) {
	var out []models.Application
	attrs := []attribute.KeyValue{attribute.String("student.id", studentID)}

	err := s.run(ctx, "list_student_applications", attrs, func(ctx context.Context) error {
		if _, err := s.student(ctx, studentID); err != nil {
			return err
		}
		var err error
		out, err = s.stores.Applications.FindAll(ctx, func(a models.Application) bool {
			return a.StudentID == studentID
		})
		if err != nil {
			return err
		}
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].SubmittedAt.Before(out[j].SubmittedAt)
		})
		return nil
	})
	return out, err
}
