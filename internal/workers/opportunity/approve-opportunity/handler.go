// internal/workers/opportunity/approve-opportunity/handler.go
package approveopportunity

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "approve-opportunity"

type Service interface {
	ApproveOpportunity(ctx context.Context, staffID, opportunityID string, approve bool) (models.Opportunity, error)
}

type Handler struct {
	config  *Config
	service Service
	runner  *camunda.JobRunner
}

func NewHandler(config *Config, service Service, deps camunda.JobDeps) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	return &Handler{
		config:  config,
		service: service,
		runner:  camunda.NewJobRunner(TaskType, config.Timeout, deps),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, func(ctx context.Context, variables string) (interface{}, error) {
		var input Input
		if err := json.Unmarshal([]byte(variables), &input); err != nil {
			return nil, apperrors.NewSchemaValidationError(err.Error())
		}
		return h.Execute(ctx, &input)
	})
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	opp, err := h.service.ApproveOpportunity(ctx, input.StaffID, input.OpportunityID, input.Approve)
	if err != nil {
		return nil, err
	}
	return &Output{OpportunityID: opp.ID, Status: string(opp.Status), Visible: opp.Visible}, nil
}
