// internal/workers/opportunity/create-opportunity/handler.go
package createopportunity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"placement-engine/internal/common/camunda"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"
	"placement-engine/internal/placement"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "create-opportunity"

type Service interface {
	CreateOpportunity(ctx context.Context, representativeID string, draft placement.OpportunityDraft) (models.Opportunity, error)
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
	draft, err := toDraft(input)
	if err != nil {
		return nil, err
	}
	opp, err := h.service.CreateOpportunity(ctx, input.RepresentativeID, draft)
	if err != nil {
		return nil, err
	}
	return &Output{OpportunityID: opp.ID, Status: string(opp.Status)}, nil
}

func toDraft(input *Input) (placement.OpportunityDraft, error) {
	opening, err := parseDate(input.OpeningDate)
	if err != nil {
		return placement.OpportunityDraft{}, invalidDate("openingDate", input.OpeningDate)
	}
	closing, err := parseDate(input.ClosingDate)
	if err != nil {
		return placement.OpportunityDraft{}, invalidDate("closingDate", input.ClosingDate)
	}
	return placement.OpportunityDraft{
		Title:          input.Title,
		Description:    input.Description,
		Level:          input.Level,
		PreferredMajor: input.PreferredMajor,
		OpeningDate:    opening,
		ClosingDate:    closing,
		TotalSlots:     input.TotalSlots,
	}, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, s)
}

func invalidDate(field, value string) error {
	return apperrors.NewInvalidValueError("date_range", "dates must be RFC 3339 or YYYY-MM-DD",
		fmt.Sprintf("%s: %q", field, value))
}
