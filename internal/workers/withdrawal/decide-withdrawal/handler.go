// internal/workers/withdrawal/decide-withdrawal/handler.go
package decidewithdrawal

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/placement"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decide-withdrawal"

type Service interface {
	DecideWithdrawal(ctx context.Context, staffID, withdrawalID string, approve bool) (placement.WithdrawalDecision, error)
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

// Execute records the staff decision. COMPENSATION_FAILED is retryable and
// leaves the request pending.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	dec, err := h.service.DecideWithdrawal(ctx, input.StaffID, input.WithdrawalRequestID, input.Approve)
	if err != nil {
		return nil, err
	}
	return &Output{
		WithdrawalRequestID: dec.Request.ID,
		Status:              string(dec.Request.Status),
		ApplicationID:       dec.Application.ID,
		ApplicationStatus:   string(dec.Application.Status),
		SlotReleased:        dec.SlotReleased,
	}, nil
}
