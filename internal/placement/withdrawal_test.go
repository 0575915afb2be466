package placement

import (
	"testing"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withdrawalFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t)
	f.addStudent(t, "stu-1", 3, "Computer Science")
	f.addStudent(t, "stu-2", 3, "Computer Science")
	f.addRepresentative(t, "rep-1")
	f.addStaff(t, "staff-1")
	f.addOpportunity(t, "opp-1", "rep-1", models.LevelBasic, 1, 0)
	return f
}

// ==========================
// RequestWithdrawal
// ==========================

func TestRequestWithdrawal_Success(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationPending)

	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "  found another offer ")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.WithdrawalPending, req.Status)
	assert.Equal(t, "found another offer", req.Reason)
	assert.Equal(t, "opp-1", req.OpportunityID)
	assert.Equal(t, "stu-1", req.FiledBy)
	assert.Equal(t, testNow, req.RequestedAt)
	assert.False(t, req.PlacementAccepted)
	assert.Nil(t, req.ProcessedAt)

	// Filing alone changes nothing else.
	assert.Equal(t, models.ApplicationPending, f.getApplication(t, "a1").Status)
	assert.Contains(t, f.audit.EventTypes(), storage.EventWithdrawalRequested)
}

func TestRequestWithdrawal_SecondPendingRequestIsConflict(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationPending)

	_, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "first")
	require.NoError(t, err)

	_, err = f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "second")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.RuleIs(apperrors.ErrCodeConflict, RuleWithdrawalAlreadyPending))

	pending, err := f.svc.ListPendingWithdrawals(f.ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRequestWithdrawal_Rejections(t *testing.T) {
	tests := []struct {
		name      string
		studentID string
		status    models.ApplicationStatus
		accepted  bool
		reason    string
		wantErr   error
	}{
		{name: "blank reason", studentID: "stu-1", status: models.ApplicationPending, reason: "   ",
			wantErr: apperrors.RuleIs(apperrors.ErrCodeInvalidInput, "REASON_REQUIRED")},
		{name: "not the owner", studentID: "stu-2", status: models.ApplicationPending, reason: "x",
			wantErr: apperrors.RuleIs(apperrors.ErrCodeUnauthorized, RuleNotApplicationOwner)},
		{name: "accepted placement", studentID: "stu-1", status: models.ApplicationSuccessful, accepted: true, reason: "x",
			wantErr: apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleNotWithdrawable)},
		{name: "rejected application", studentID: "stu-1", status: models.ApplicationRejected, reason: "x",
			wantErr: apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleNotWithdrawable)},
		{name: "withdrawn application", studentID: "stu-1", status: models.ApplicationWithdrawn, reason: "x",
			wantErr: apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleNotWithdrawable)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := withdrawalFixture(t)
			f.addApplication(t, "a1", "stu-1", "opp-1", tt.status)
			if tt.accepted {
				_, err := f.stores.Applications.Update(f.ctx, "a1", func(a *models.Application) error {
					a.PlacementAccepted = true
					return nil
				})
				require.NoError(t, err)
			}

			_, err := f.svc.RequestWithdrawal(f.ctx, tt.studentID, "a1", tt.reason)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)

			all, err := f.stores.Withdrawals.FindAll(f.ctx, nil)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}

// ==========================
// DecideWithdrawal
// ==========================

func TestDecideWithdrawal_ApprovePendingApplication(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationPending)
	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "changed plans")
	require.NoError(t, err)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.NoError(t, err)

	assert.Equal(t, models.WithdrawalApproved, dec.Request.Status)
	assert.Equal(t, "staff-1", dec.Request.ProcessedBy)
	require.NotNil(t, dec.Request.ProcessedAt)
	assert.Equal(t, testNow, *dec.Request.ProcessedAt)
	assert.False(t, dec.SlotReleased)
	assert.Nil(t, dec.Opportunity)

	app := f.getApplication(t, "a1")
	assert.Equal(t, models.ApplicationWithdrawn, app.Status)
	assert.Equal(t, "changed plans", app.WithdrawnReason)
	assert.Empty(t, f.getStudent(t, "stu-1").Applications)
	assert.Equal(t, 0, f.getOpportunity(t, "opp-1").FilledSlots)
}

func TestDecideWithdrawal_ApproveSuccessfulOfferKeepsSlots(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationSuccessful)
	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "declining")
	require.NoError(t, err)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.NoError(t, err)
	assert.False(t, dec.SlotReleased)
	assert.Equal(t, models.ApplicationWithdrawn, f.getApplication(t, "a1").Status)
	assert.Equal(t, 0, f.getOpportunity(t, "opp-1").FilledSlots)
}

func TestDecideWithdrawal_Reject(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationPending)
	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "changed plans")
	require.NoError(t, err)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalRejected, dec.Request.Status)
	assert.Equal(t, models.ApplicationPending, f.getApplication(t, "a1").Status)
	assert.Equal(t, []string{"a1"}, f.getStudent(t, "stu-1").Applications)

	_, err = f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleWithdrawalNotPending))
}

func TestDecideWithdrawal_Rejections(t *testing.T) {
	f := withdrawalFixture(t)

	_, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", "ghost", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.DecideWithdrawal(f.ctx, "ghost-staff", "ghost", true)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDecideWithdrawal_ApplicationAlreadyWithdrawnByCascade(t *testing.T) {
	f := withdrawalFixture(t)
	f.addOpportunity(t, "opp-2", "rep-1", models.LevelBasic, 2, 0)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationSuccessful)
	f.addApplication(t, "a2", "stu-1", "opp-2", models.ApplicationPending)

	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a2", "no longer interested")
	require.NoError(t, err)
	_, err = f.svc.AcceptPlacement(f.ctx, "stu-1", "a1")
	require.NoError(t, err)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, dec.Request.Status)
	assert.Equal(t, SupersededReason, f.getApplication(t, "a2").WithdrawnReason)
	assert.Equal(t, "a1", f.getStudent(t, "stu-1").AcceptedPlacement)
	assert.Equal(t, 1, f.getOpportunity(t, "opp-1").FilledSlots)
}

// Accept then withdraw through staff leaves the opportunity as it was.
func TestStaffWithdrawal_ReleasesAcceptedPlacement(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationSuccessful)
	before := f.getOpportunity(t, "opp-1")

	_, err := f.svc.AcceptPlacement(f.ctx, "stu-1", "a1")
	require.NoError(t, err)
	filled := f.getOpportunity(t, "opp-1")
	require.Equal(t, models.OpportunityFilled, filled.Status)
	require.False(t, filled.Visible)

	// Students cannot withdraw an accepted placement themselves.
	_, err = f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "family emergency")
	require.ErrorIs(t, err, apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleNotWithdrawable))

	req, err := f.svc.FileStaffWithdrawal(f.ctx, "staff-1", "a1", "family emergency")
	require.NoError(t, err)
	assert.True(t, req.PlacementAccepted)
	assert.Equal(t, "staff-1", req.FiledBy)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.NoError(t, err)
	assert.True(t, dec.SlotReleased)

	app := f.getApplication(t, "a1")
	assert.Equal(t, models.ApplicationWithdrawn, app.Status)
	assert.False(t, app.PlacementAccepted)

	student := f.getStudent(t, "stu-1")
	assert.Empty(t, student.AcceptedPlacement)
	assert.Empty(t, student.Applications)

	after := f.getOpportunity(t, "opp-1")
	assert.Equal(t, before.FilledSlots, after.FilledSlots)
	assert.Equal(t, before.Status, after.Status)
	assert.Equal(t, before.Visible, after.Visible)

	assert.Subset(t, f.audit.EventTypes(), []string{
		storage.EventSlotReleased,
		storage.EventApplicationWithdrawn,
		storage.EventWithdrawalDecided,
	})
}

func TestFileStaffWithdrawal_Rejections(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationRejected)
	f.addApplication(t, "a2", "stu-2", "opp-1", models.ApplicationPending)

	_, err := f.svc.FileStaffWithdrawal(f.ctx, "staff-1", "a1", "x")
	assert.ErrorIs(t, err, apperrors.RuleIs(apperrors.ErrCodeBusinessRuleViolation, RuleApplicationNotWithdrawable))

	_, err = f.svc.FileStaffWithdrawal(f.ctx, "ghost", "a2", "x")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)

	_, err = f.svc.FileStaffWithdrawal(f.ctx, "staff-1", "a2", "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestDecideWithdrawal_RevertsWhenStudentUpdateFails(t *testing.T) {
	students := &faultyStore[models.Student]{}
	f := newFixture(t, func(d *Deps) {
		students.Store = d.Stores.Students
		d.Stores.Students = students
	})
	f.addStudent(t, "stu-1", 3, "Computer Science")
	f.addRepresentative(t, "rep-1")
	f.addStaff(t, "staff-1")
	f.addOpportunity(t, "opp-1", "rep-1", models.LevelBasic, 1, 0)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationSuccessful)

	_, err := f.svc.AcceptPlacement(f.ctx, "stu-1", "a1")
	require.NoError(t, err)
	req, err := f.svc.FileStaffWithdrawal(f.ctx, "staff-1", "a1", "visa issue")
	require.NoError(t, err)

	students.mu.Lock()
	students.updates = 0
	students.failOn = failCalls(1)
	students.mu.Unlock()

	_, err = f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrStorageFailure)

	app := f.getApplication(t, "a1")
	assert.Equal(t, models.ApplicationSuccessful, app.Status)
	assert.True(t, app.PlacementAccepted)

	opp := f.getOpportunity(t, "opp-1")
	assert.Equal(t, 1, opp.FilledSlots)
	assert.Equal(t, models.OpportunityFilled, opp.Status)

	stored, ok, err := f.stores.Withdrawals.FindByID(f.ctx, req.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.WithdrawalPending, stored.Status)
}

func TestDecideWithdrawal_ApprovalAfterRejectionOnlyStampsRequest(t *testing.T) {
	f := withdrawalFixture(t)
	f.addApplication(t, "a1", "stu-1", "opp-1", models.ApplicationPending)

	req, err := f.svc.RequestWithdrawal(f.ctx, "stu-1", "a1", "found another internship")
	require.NoError(t, err)
	_, err = f.svc.DecideApplication(f.ctx, "rep-1", "a1", false)
	require.NoError(t, err)

	dec, err := f.svc.DecideWithdrawal(f.ctx, "staff-1", req.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.WithdrawalApproved, dec.Request.Status)
	assert.Equal(t, "staff-1", dec.Request.ProcessedBy)
	assert.False(t, dec.SlotReleased)

	assert.Equal(t, models.ApplicationRejected, f.getApplication(t, "a1").Status)
	assert.Empty(t, f.getStudent(t, "stu-1").Applications)
	assert.Equal(t, 0, f.getOpportunity(t, "opp-1").FilledSlots)

	pending, err := f.svc.ListPendingWithdrawals(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
