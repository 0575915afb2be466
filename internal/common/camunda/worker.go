// internal/common/camunda/worker.go
package camunda

import (
	"context"
	"strings"
	"time"

	"placement-engine/internal/common/config"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/common/metrics"
	"placement-engine/internal/common/observability"
	"placement-engine/internal/common/validation"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

const defaultJobTimeout = 30 * time.Second

// JobDeps is the plumbing every job handler shares.
type JobDeps struct {
	Validator     *validation.JobValidator
	Observability *observability.Observability
	Logger        logger.Logger
}

// ExecuteFunc runs the operation behind a job and returns the variables to
// complete it with.
type ExecuteFunc func(ctx context.Context, variables string) (interface{}, error)

// JobRunner validates job variables against the task contract, runs the
// operation and either completes the job or hands the failure to the
// ErrorHandler.
type JobRunner struct {
	taskType  string
	timeout   time.Duration
	validator *validation.JobValidator
	errors    *apperrors.ErrorHandler
	obs       *observability.Observability
	logger    logger.Logger
}

func NewJobRunner(taskType string, timeout time.Duration, deps JobDeps) *JobRunner {
	if timeout <= 0 {
		timeout = defaultJobTimeout
	}
	log := deps.Logger
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	return &JobRunner{
		taskType:  taskType,
		timeout:   timeout,
		validator: deps.Validator,
		errors:    apperrors.NewErrorHandler(log),
		obs:       deps.Observability,
		logger:    log,
	}
}

// Run is called once per activated job.
func (r *JobRunner) Run(client worker.JobClient, job entities.Job, fn ExecuteFunc) {
	start := time.Now()
	metrics.WorkerJobsActive.WithLabelValues(r.taskType).Inc()
	defer metrics.WorkerJobsActive.WithLabelValues(r.taskType).Dec()

	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()

	r.logger.Info("processing job", map[string]interface{}{
		"jobKey":             job.GetKey(),
		"processInstanceKey": job.GetProcessInstanceKey(),
	})

	status := "completed"
	output, err := r.Process(ctx, job.GetVariables(), fn)
	if err != nil {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, string(apperrors.CodeOf(err))).Inc()
		r.errors.HandleJobError(ctx, client, job, err)
	} else if err := r.complete(ctx, client, job, output); err != nil {
		status = "failed"
		metrics.WorkerJobsFailed.WithLabelValues(r.taskType, "COMPLETE_FAILED").Inc()
	} else {
		metrics.WorkerJobsCompleted.WithLabelValues(r.taskType).Inc()
	}

	elapsed := time.Since(start)
	metrics.WorkerJobDuration.WithLabelValues(r.taskType).Observe(elapsed.Seconds())
	r.obs.RecordJobProcessed(ctx, r.taskType, status)
	r.obs.RecordJobDuration(ctx, r.taskType, elapsed, status)
}

// Process checks variables against the registered input schema, then runs fn.
func (r *JobRunner) Process(ctx context.Context, variables string, fn ExecuteFunc) (interface{}, error) {
	result, err := r.validator.Validate(r.taskType, variables)
	if err != nil {
		return nil, apperrors.NewSchemaValidationError(err.Error())
	}
	if !result.Valid {
		return nil, apperrors.NewSchemaValidationError(strings.Join(result.GetErrorMessages(), "; "))
	}
	return fn(ctx, variables)
}

func (r *JobRunner) complete(ctx context.Context, client worker.JobClient, job entities.Job, output interface{}) error {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.GetKey()).
		VariablesFromObject(output)
	if err != nil {
		r.logger.Error("failed to create complete job command", map[string]interface{}{"jobKey": job.GetKey(), "error": err})
		return err
	}
	if _, err := cmd.Send(ctx); err != nil {
		r.logger.Error("failed to send complete job command", map[string]interface{}{"jobKey": job.GetKey(), "error": err})
		return err
	}
	return nil
}

// OpenWorker starts polling for taskType unless the worker is disabled.
func OpenWorker(client zbc.Client, taskType string, wcfg config.WorkerConfig, handler worker.JobHandler, log logger.Logger) worker.JobWorker {
	if !wcfg.Enabled {
		log.Info("worker disabled", map[string]interface{}{"taskType": taskType})
		return nil
	}

	jw := client.NewJobWorker().
		JobType(taskType).
		Handler(handler).
		MaxJobsActive(wcfg.MaxJobsActive).
		Timeout(config.GetDuration(wcfg.Timeout)).
		Open()

	log.Info("worker started", map[string]interface{}{
		"taskType":      taskType,
		"maxJobsActive": wcfg.MaxJobsActive,
		"timeout_ms":    wcfg.Timeout,
	})
	return jw
}
