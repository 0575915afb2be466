// internal/workers/application/submit-application/handler.go
package submitapplication

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "submit-application"

type Service interface {
	SubmitApplication(ctx context.Context, studentID, opportunityID string) (models.Application, error)
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

// Execute runs the eligibility check and records the application. Rule
// failures come back as BPMN errors named after the rule.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	app, err := h.service.SubmitApplication(ctx, input.StudentID, input.OpportunityID)
	if err != nil {
		return nil, err
	}
	return &Output{ApplicationID: app.ID, Status: string(app.Status)}, nil
}
