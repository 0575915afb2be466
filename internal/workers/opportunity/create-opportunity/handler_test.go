package createopportunity

import (
	"context"
	"testing"
	"time"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/lock"
	"placement-engine/internal/models"
	"placement-engine/internal/placement"
	"placement-engine/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHandler(t *testing.T) (*Handler, storage.Stores) {
	t.Helper()
	stores := storage.NewMemoryStores()
	svc, err := placement.NewService(placement.Deps{
		Stores: stores,
		Locker: lock.NewLocalLocker(time.Second),
		Clock:  func() time.Time { return time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC) },
		Logger: logger.NewTestLogger(t),
	})
	require.NoError(t, err)

	_, err = stores.Representatives.Save(context.Background(), models.Representative{ID: "rep-1", CompanyName: "Acme"})
	require.NoError(t, err)

	return NewHandler(nil, svc, camunda.JobDeps{Logger: logger.NewTestLogger(t)}), stores
}

func validInput() *Input {
	return &Input{
		RepresentativeID: "rep-1",
		Title:            "Backend Intern",
		Level:            "Intermediate",
		OpeningDate:      "2025-04-01",
		ClosingDate:      "2025-04-30T17:00:00+08:00",
		TotalSlots:       2,
	}
}

func TestHandler_Execute_CreatesPendingOpportunity(t *testing.T) {
	h, stores := newHandler(t)

	out, err := h.Execute(context.Background(), validInput())
	require.NoError(t, err)
	assert.NotEmpty(t, out.OpportunityID)
	assert.Equal(t, "pending", out.Status)

	opp, ok, err := stores.Opportunities.FindByID(context.Background(), out.OpportunityID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, models.LevelIntermediate, opp.Level)
	assert.Equal(t, "Acme", opp.CompanyName)
	assert.Equal(t, models.AnyMajor, opp.PreferredMajor)
	assert.False(t, opp.Visible)
	assert.Equal(t, 0, opp.FilledSlots)

	rep, _, err := stores.Representatives.FindByID(context.Background(), "rep-1")
	require.NoError(t, err)
	assert.Equal(t, []string{out.OpportunityID}, rep.Opportunities)
}

func TestHandler_Execute_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *Input)
		wantBPMN string
	}{
		{"malformed opening date", func(in *Input) { in.OpeningDate = "01/04/2025" }, "INVALID_DATE_RANGE"},
		{"closing before opening", func(in *Input) { in.ClosingDate = "2025-03-15" }, "INVALID_DATE_RANGE"},
		{"blank title", func(in *Input) { in.Title = "  " }, "TITLE_REQUIRED"},
		{"unknown level", func(in *Input) { in.Level = "expert" }, "INVALID_LEVEL"},
		{"too many slots", func(in *Input) { in.TotalSlots = 11 }, "INVALID_SLOT_COUNT"},
		{"unknown representative", func(in *Input) { in.RepresentativeID = "rep-9" }, "REPRESENTATIVE_NOT_FOUND"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, stores := newHandler(t)
			in := validInput()
			tt.mutate(in)

			out, err := h.Execute(context.Background(), in)
			require.Error(t, err)
			assert.Nil(t, out)
			assert.Equal(t, tt.wantBPMN, apperrors.ConvertToBPMNError(apperrors.AsStandard(err)).Code)

			all, err := stores.Opportunities.FindAll(context.Background(), nil)
			require.NoError(t, err)
			assert.Empty(t, all)
		})
	}
}
