package decideapplication

import (
	"context"
	"testing"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/models"
	"placement-engine/internal/placement"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) DecideApplication(ctx context.Context, representativeID, applicationID string, approve bool) (models.Application, error) {
	args := m.Called(ctx, representativeID, applicationID, approve)
	return args.Get(0).(models.Application), args.Error(1)
}

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name       string
		approve    bool
		result     models.Application
		err        error
		wantStatus string
		wantBPMN   string
	}{
		{
			name:       "approve",
			approve:    true,
			result:     models.Application{ID: "app-1", Status: models.ApplicationSuccessful},
			wantStatus: "successful",
		},
		{
			name:       "reject",
			approve:    false,
			result:     models.Application{ID: "app-1", Status: models.ApplicationRejected},
			wantStatus: "rejected",
		},
		{
			name:     "not the owner",
			approve:  true,
			err:      apperrors.NewUnauthorizedError(placement.RuleNotOpportunityOwner, "not yours", ""),
			wantBPMN: "NOT_OPPORTUNITY_OWNER",
		},
		{
			name:     "already decided",
			approve:  false,
			err:      apperrors.NewBusinessRuleError(placement.RuleApplicationNotPending, "decided", ""),
			wantBPMN: "APPLICATION_NOT_PENDING",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockService{}
			svc.On("DecideApplication", mock.Anything, "rep-1", "app-1", tt.approve).Return(tt.result, tt.err)
			h := NewHandler(LoadConfig(), svc, camunda.JobDeps{Logger: logger.NewTestLogger(t)})

			out, err := h.Execute(context.Background(), &Input{RepresentativeID: "rep-1", ApplicationID: "app-1", Approve: tt.approve})
			svc.AssertExpectations(t)
			if tt.wantBPMN != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantBPMN, apperrors.ConvertToBPMNError(apperrors.AsStandard(err)).Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "app-1", out.ApplicationID)
			assert.Equal(t, tt.wantStatus, out.Status)
		})
	}
}
