package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"sync"
	"time"

	apperrors "placement-engine/internal/common/errors"
)

// Audit event types.
const (
	EventApplicationSubmitted = "application.submitted"
	EventApplicationDecided   = "application.decided"
	EventApplicationWithdrawn = "application.withdrawn"
	EventPlacementAccepted    = "placement.accepted"
	EventSlotCommitted        = "slot.committed"
	EventSlotReleased         = "slot.released"
	EventWithdrawalRequested  = "withdrawal.requested"
	EventWithdrawalDecided    = "withdrawal.decided"
	EventOpportunityCreated   = "opportunity.created"
	EventOpportunityDecided   = "opportunity.decided"
	EventOpportunityVisible   = "opportunity.visibility"
	EventCompensated          = "saga.compensated"
)

// AuditEvent is one committed step of an engine operation.
type AuditEvent struct {
	Type         string                 `json:"eventType"`
	ResourceType string                 `json:"resourceType"`
	ResourceID   string                 `json:"resourceId"`
	ActorID      string                 `json:"actorId,omitempty"`
	Details      map[string]interface{} `json:"details,omitempty"`
	CreatedAt    time.Time              `json:"createdAt"`
}

// AuditLog records engine events. Callers treat failures as non-critical.
type AuditLog interface {
	Record(ctx context.Context, event AuditEvent) error
}

// PostgresAuditLog appends to the audit_log table.
type PostgresAuditLog struct {
	db *sql.DB
}

func NewPostgresAuditLog(db *sql.DB) *PostgresAuditLog {
	return &PostgresAuditLog{db: db}
}

func (l *PostgresAuditLog) Record(ctx context.Context, event AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	details, err := json.Marshal(event.Details)
	if err != nil {
		return apperrors.NewStorageError("encode audit details", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_log (event_type, resource_type, resource_id, actor_id, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, event.Type, event.ResourceType, event.ResourceID, event.ActorID, details, event.CreatedAt)
	if err != nil {
		return apperrors.NewStorageError("insert audit event", err)
	}
	return nil
}

// MemoryAuditLog keeps events in order of arrival.
type MemoryAuditLog struct {
	mu     sync.Mutex
	events []AuditEvent
}

func NewMemoryAuditLog() *MemoryAuditLog {
	return &MemoryAuditLog{}
}

func (l *MemoryAuditLog) Record(_ context.Context, event AuditEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	l.mu.Lock()
	l.events = append(l.events, event)
	l.mu.Unlock()
	return nil
}

// Events returns a copy of the recorded events.
func (l *MemoryAuditLog) Events() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEvent, len(l.events))
	copy(out, l.events)
	return out
}

// EventTypes returns the type of every recorded event, in order.
func (l *MemoryAuditLog) EventTypes() []string {
	events := l.Events()
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.Type
	}
	return out
}
