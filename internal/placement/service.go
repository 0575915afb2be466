// Package placement is the placement lifecycle and capacity-consistency
// engine. It keeps a student's applications, an opportunity's filled slots
// and withdrawal requests consistent across record stores that share no
// transactions: single-record writes go through Store.Update, multi-record
// operations run as compensating sagas under a per-student lease.
package placement

import (
	"context"
	"fmt"
	"time"

	"placement-engine/internal/catalog"
	"placement-engine/internal/common/config"
	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/common/metrics"
	"placement-engine/internal/common/observability"
	"placement-engine/internal/lock"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// Clock returns the current time.
type Clock func() time.Time

// Policy holds the tunable business rules.
type Policy struct {
	MajorPolicy                       MajorPolicy
	MaxActiveApplications             int
	CapacityRetries                   int
	MaxOpportunitiesPerRepresentative int
}

func DefaultPolicy() Policy {
	return Policy{
		MajorPolicy:                       MajorPolicyOpen,
		MaxActiveApplications:             3,
		CapacityRetries:                   1,
		MaxOpportunitiesPerRepresentative: 5,
	}
}

// PolicyFromConfig maps the placement config section, keeping defaults for unset fields.
func PolicyFromConfig(cfg config.PlacementConfig) Policy {
	p := DefaultPolicy()
	if cfg.MajorPolicy != "" {
		p.MajorPolicy = MajorPolicy(cfg.MajorPolicy)
	}
	if cfg.MaxActiveApplications > 0 {
		p.MaxActiveApplications = cfg.MaxActiveApplications
	}
	if cfg.CapacityRetries > 0 {
		p.CapacityRetries = cfg.CapacityRetries
	}
	if cfg.MaxOpportunitiesPerRepresentative > 0 {
		p.MaxOpportunitiesPerRepresentative = cfg.MaxOpportunitiesPerRepresentative
	}
	return p
}

// Deps is everything a Service needs. Stores and Locker are required; the
// rest fall back to no-op implementations.
type Deps struct {
	Stores        storage.Stores
	Locker        lock.Locker
	Audit         storage.AuditLog
	Catalog       catalog.Indexer
	Metrics       metrics.Recorder
	Observability *observability.Observability
	Tracer        trace.Tracer
	Clock         Clock
	Policy        Policy
	Logger        logger.Logger
}

// Service exposes the engine operations.
type Service struct {
	stores  storage.Stores
	locker  lock.Locker
	ledger  *Ledger
	audit   storage.AuditLog
	catalog catalog.Indexer
	metrics metrics.Recorder
	obs     *observability.Observability
	tracer  trace.Tracer
	now     Clock
	policy  Policy
	log     logger.Logger
}

func NewService(d Deps) (*Service, error) {
	if err := d.Stores.Validate(); err != nil {
		return nil, err
	}
	if d.Locker == nil {
		return nil, fmt.Errorf("missing locker")
	}
	if d.Audit == nil {
		d.Audit = storage.NewMemoryAuditLog()
	}
	if d.Catalog == nil {
		d.Catalog = catalog.NopIndexer{}
	}
	if d.Metrics == nil {
		d.Metrics = metrics.NopRecorder{}
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer(observability.TracerName)
	}
	if d.Clock == nil {
		d.Clock = func() time.Time { return time.Now().UTC() }
	}
	if d.Policy == (Policy{}) {
		d.Policy = DefaultPolicy()
	}
	if d.Logger == nil {
		d.Logger = logger.NewNoOpLogger()
	}

	return &Service{
		stores:  d.Stores,
		locker:  d.Locker,
		ledger:  NewLedger(d.Stores.Opportunities, d.Clock, d.Metrics),
		audit:   d.Audit,
		catalog: d.Catalog,
		metrics: d.Metrics,
		obs:     d.Observability,
		tracer:  d.Tracer,
		now:     d.Clock,
		policy:  d.Policy,
		log:     d.Logger.WithFields(map[string]interface{}{"component": "placement"}),
	}, nil
}

// Ledger exposes the capacity ledger the service commits slots through.
func (s *Service) Ledger() *Ledger {
	return s.ledger
}

// run wraps one operation with a span, metrics and outcome logging.
func (s *Service) run(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(ctx context.Context) error) error {
	ctx, span := s.tracer.Start(ctx, "placement."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	err := fn(ctx)

	outcome := "ok"
	if err != nil {
		stdErr := apperrors.AsStandard(err)
		outcome = string(stdErr.Code)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		fields := map[string]interface{}{"operation": op, "code": string(stdErr.Code), "rule": stdErr.Rule, "error": err}
		for _, a := range attrs {
			fields[string(a.Key)] = a.Value.Emit()
		}
		if apperrors.GetErrorCategory(stdErr.Code) == "INFRASTRUCTURE" || stdErr.Code == apperrors.ErrCodeInternal {
			s.log.Error("operation failed", fields)
		} else {
			s.log.Warn("operation rejected", fields)
		}
	}

	s.metrics.Operation(op, outcome)
	s.obs.RecordOperation(ctx, op, time.Since(start), outcome)
	return err
}

// withStudentLock serialises fn against every other operation on the student.
func (s *Service) withStudentLock(ctx context.Context, studentID string, fn func() error) error {
	return s.withLock(ctx, lock.StudentKey(studentID), fn)
}

func (s *Service) withLock(ctx context.Context, key string, fn func() error) error {
	lease, err := s.locker.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		if err := lease.Release(context.WithoutCancel(ctx)); err != nil {
			s.log.Warn("failed to release lock", map[string]interface{}{"key": key, "error": err})
		}
	}()
	return fn()
}

// record writes an audit event; failures are logged and swallowed.
func (s *Service) record(ctx context.Context, event storage.AuditEvent) {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = s.now()
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("failed to write audit event", map[string]interface{}{
			"eventType":  event.Type,
			"resourceId": event.ResourceID,
			"error":      err,
		})
	}
}

// project pushes the opportunity to the catalog; failures are logged and swallowed.
func (s *Service) project(ctx context.Context, opp models.Opportunity) {
	if err := s.catalog.Index(ctx, opp); err != nil {
		s.log.Warn("failed to update catalog", map[string]interface{}{"opportunityId": opp.ID, "error": err})
	}
}

// ==========================
// Loaders
// ==========================

func (s *Service) student(ctx context.Context, id string) (models.Student, error) {
	st, ok, err := s.stores.Students.FindByID(ctx, id)
	if err != nil {
		return st, err
	}
	if !ok {
		return st, apperrors.NewNotFoundError("student", id)
	}
	return st, nil
}

func (s *Service) representative(ctx context.Context, id string) (models.Representative, error) {
	r, ok, err := s.stores.Representatives.FindByID(ctx, id)
	if err != nil {
		return r, err
	}
	if !ok {
		return r, apperrors.NewNotFoundError("representative", id)
	}
	return r, nil
}

func (s *Service) staff(ctx context.Context, id string) (models.Staff, error) {
	st, ok, err := s.stores.Staff.FindByID(ctx, id)
	if err != nil {
		return st, err
	}
	if !ok {
		return st, apperrors.NewNotFoundError("staff", id)
	}
	return st, nil
}

func (s *Service) opportunity(ctx context.Context, id string) (models.Opportunity, error) {
	o, ok, err := s.stores.Opportunities.FindByID(ctx, id)
	if err != nil {
		return o, err
	}
	if !ok {
		return o, apperrors.NewNotFoundError("opportunity", id)
	}
	return o, nil
}

func (s *Service) application(ctx context.Context, id string) (models.Application, error) {
	a, ok, err := s.stores.Applications.FindByID(ctx, id)
	if err != nil {
		return a, err
	}
	if !ok {
		return a, apperrors.NewNotFoundError("application", id)
	}
	return a, nil
}

func (s *Service) withdrawal(ctx context.Context, id string) (models.WithdrawalRequest, error) {
	w, ok, err := s.stores.Withdrawals.FindByID(ctx, id)
	if err != nil {
		return w, err
	}
	if !ok {
		return w, apperrors.NewNotFoundError("withdrawal", id)
	}
	return w, nil
}
