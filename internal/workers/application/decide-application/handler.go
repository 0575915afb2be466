// internal/workers/application/decide-application/handler.go
package decideapplication

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decide-application"

type Service interface {
	DecideApplication(ctx context.Context, representativeID, applicationID string, approve bool) (models.Application, error)
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
	app, err := h.service.DecideApplication(ctx, input.RepresentativeID, input.ApplicationID, input.Approve)
	if err != nil {
		return nil, err
	}
	return &Output{ApplicationID: app.ID, Status: string(app.Status)}, nil
}
