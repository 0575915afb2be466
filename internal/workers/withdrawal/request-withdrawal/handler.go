// internal/workers/withdrawal/request-withdrawal/handler.go
package requestwithdrawal

import (
	"context"
	"encoding/json"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "request-withdrawal"

type Service interface {
	RequestWithdrawal(ctx context.Context, studentID, applicationID, reason string) (models.WithdrawalRequest, error)
	FileStaffWithdrawal(ctx context.Context, staffID, applicationID, reason string) (models.WithdrawalRequest, error)
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
	h.runner.Run(client, job, func(ctx context.Context, variables string) (interface{}, error) {
		var input Input
		if err := json.Unmarshal([]byte(variables), &input); err != nil {
			return nil, apperrors.NewSchemaValidationError(err.Error())
		}
		return h.Execute(ctx, &input)
	})
}

// Execute files the request. With a staffId it takes the staff path, which
// also covers accepted placements; the application then identifies the student.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	var (
		req models.WithdrawalRequest
		err error
	)
	if input.StaffID != "" {
		req, err = h.service.FileStaffWithdrawal(ctx, input.StaffID, input.ApplicationID, input.Reason)
	} else {
		req, err = h.service.RequestWithdrawal(ctx, input.StudentID, input.ApplicationID, input.Reason)
	}
	if err != nil {
		return nil, err
	}

	h.logger.Info("withdrawal filed", map[string]interface{}{
		"withdrawalRequestId": req.ID,
		"filedBy":             req.FiledBy,
	})
	return &Output{
		WithdrawalRequestID: req.ID,
		Status:              string(req.Status),
		PlacementAccepted:   req.PlacementAccepted,
	}, nil
}
