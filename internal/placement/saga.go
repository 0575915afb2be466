package placement

import (
	"context"
	"errors"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/common/metrics"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// saga runs an ordered list of record writes and remembers how to undo each
// one. On failure the completed steps are reverted newest first.
type saga struct {
	name    string
	tracer  trace.Tracer
	log     logger.Logger
	metrics metrics.Recorder
	audit   func(context.Context, storage.AuditEvent)
	undo    []step
}

type step struct {
	name string
	fn   func(ctx context.Context) error
}

func (s *Service) newSaga(name string, fields map[string]interface{}) *saga {
	return &saga{
		name:    name,
		tracer:  s.tracer,
		log:     s.log.WithFields(fields).WithFields(map[string]interface{}{"saga": name}),
		metrics: s.metrics,
		audit:   s.record,
	}
}

// do runs action and, if it succeeds, registers compensate (which may be nil).
func (g *saga) do(ctx context.Context, name string, action, compensate func(ctx context.Context) error) error {
	ctx, span := g.tracer.Start(ctx, g.name+"."+name)
	defer span.End()

	if err := action(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if compensate != nil {
		g.undo = append(g.undo, step{name: name, fn: compensate})
	}
	return nil
}

// abort reverts every completed step and returns cause, or a
// COMPENSATION_FAILED error wrapping cause when a revert fails.
func (g *saga) abort(ctx context.Context, cause error) error {
	if len(g.undo) == 0 {
		return cause
	}

	// Compensation must finish even if the caller has gone away.
	ctx = context.WithoutCancel(ctx)
	ctx, span := g.tracer.Start(ctx, g.name+".compensate")
	defer span.End()

	var failures []error
	var reverted []string
	for i := len(g.undo) - 1; i >= 0; i-- {
		st := g.undo[i]
		if err := st.fn(ctx); err != nil {
			g.log.Error("compensation step failed", map[string]interface{}{"step": st.name, "error": err, "cause": cause})
			failures = append(failures, err)
			continue
		}
		reverted = append(reverted, st.name)
	}
	g.undo = nil

	g.audit(ctx, storage.AuditEvent{
		Type:         storage.EventCompensated,
		ResourceType: "saga",
		ResourceID:   g.name,
		Details: map[string]interface{}{
			"cause":    cause.Error(),
			"reverted": reverted,
			"failed":   len(failures),
		},
	})

	if len(failures) > 0 {
		g.metrics.Compensation(g.name, "failed")
		err := apperrors.NewCompensationError(g.name, cause, errors.Join(failures...))
		span.RecordError(err)
		span.SetStatus(codes.Error, "compensation failed")
		return err
	}

	g.metrics.Compensation(g.name, "reverted")
	g.log.Info("operation reverted", map[string]interface{}{"steps": reverted, "cause": cause.Error()})
	return cause
}
