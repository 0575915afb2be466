// internal/workers/placement/accept-placement/handler.go
package acceptplacement

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/placement"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "accept-placement"

// Service is the slice of placement.Service this worker drives.
type Service interface {
	AcceptPlacement(ctx context.Context, studentID, applicationID string) (placement.AcceptResult, error)
}

type Handler struct {
	config  *Config
	service Service
	runner  *camunda.JobRunner
	logger  logger.Logger
}

func NewHandler(config *Config, service Service, deps camunda.JobDeps) *Handler {
	if config == nil {
		config = LoadConfig()
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Handler{
		config:  config,
		service: service,
		runner:  camunda.NewJobRunner(TaskType, config.Timeout, deps),
		logger:  log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.runner.Run(client, job, h.execute)
}

func (h *Handler) execute(ctx context.Context, variables string) (interface{}, error) {
	var input Input
	if err := json.Unmarshal([]byte(variables), &input); err != nil {
		return nil, apperrors.NewSchemaValidationError(err.Error())
	}
	return h.Execute(ctx, &input)
}

// Execute accepts the offer. A lost race for the last slot surfaces as
// NO_SLOT_AVAILABLE after every earlier write has been reverted.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	res, err := h.service.AcceptPlacement(ctx, input.StudentID, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	withdrawn := res.Withdrawn
	if withdrawn == nil {
		withdrawn = []string{}
	}
	h.logger.Info("placement accepted", map[string]interface{}{
		"applicationId": res.Application.ID,
		"withdrawn":     len(withdrawn),
	})
	return &Output{
		ApplicationID:           res.Application.ID,
		OpportunityID:           res.Opportunity.ID,
		WithdrawnApplicationIDs: withdrawn,
		FilledSlots:             res.Opportunity.FilledSlots,
		TotalSlots:              res.Opportunity.TotalSlots,
	}, nil
}
