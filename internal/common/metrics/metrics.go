// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PlacementOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_operations_total",
			Help: "Placement engine operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	PlacementCompensations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_compensations_total",
			Help: "Saga compensations run, labelled by whether the rollback completed",
		},
		[]string{"operation", "outcome"},
	)

	PlacementSlotChanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "placement_slot_changes_total",
			Help: "Capacity ledger commits and releases",
		},
		[]string{"direction", "outcome"},
	)
)

// Recorder is the narrow metrics surface used by the placement engine.
type Recorder interface {
	Operation(operation, outcome string)
	Compensation(operation, outcome string)
	SlotChange(direction, outcome string)
}

// PrometheusRecorder writes to the package-level prometheus collectors.
type PrometheusRecorder struct{}

func (PrometheusRecorder) Operation(operation, outcome string) {
	PlacementOperations.WithLabelValues(operation, outcome).Inc()
}

func (PrometheusRecorder) Compensation(operation, outcome string) {
	PlacementCompensations.WithLabelValues(operation, outcome).Inc()
}

func (PrometheusRecorder) SlotChange(direction, outcome string) {
	PlacementSlotChanges.WithLabelValues(direction, outcome).Inc()
}

// NopRecorder discards everything.
type NopRecorder struct{}

func (NopRecorder) Operation(string, string)    {}
func (NopRecorder) Compensation(string, string) {}
func (NopRecorder) SlotChange(string, string)   {}
