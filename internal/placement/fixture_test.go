package placement

import (
	"context"
	"sync"
	"testing"
	"time"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/common/logger"
	"placement-engine/internal/lock"
	"placement-engine/internal/models"
	"placement-engine/internal/storage"

	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

var testNow = time.Date(2025, time.March, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	svc    *Service
	stores storage.Stores
	audit  *storage.MemoryAuditLog
	spans  *tracetest.SpanRecorder
	ctx    context.Context
}

func newFixture(t *testing.T, opts ...func(*Deps)) *fixture {
	t.Helper()

	spans := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(spans))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	audit := storage.NewMemoryAuditLog()
	deps := Deps{
		Stores: storage.NewMemoryStores(),
		Locker: lock.NewLocalLocker(2 * time.Second),
		Audit:  audit,
		Tracer: tp.Tracer("placement-test"),
		Clock:  func() time.Time { return testNow },
		Policy: DefaultPolicy(),
		Logger: logger.NewTestLogger(t),
	}
	for _, opt := range opts {
		opt(&deps)
	}

	svc, err := NewService(deps)
	require.NoError(t, err)

	return &fixture{svc: svc, stores: deps.Stores, audit: audit, spans: spans, ctx: context.Background()}
}

func (f *fixture) addStudent(t *testing.T, id string, year int, major string) {
	t.Helper()
	_, err := f.stores.Students.Save(f.ctx, models.Student{ID: id, Name: id, YearOfStudy: year, Major: major})
	require.NoError(t, err)
}

func (f *fixture) addRepresentative(t *testing.T, id string) {
	t.Helper()
	_, err := f.stores.Representatives.Save(f.ctx, models.Representative{ID: id, Name: id, CompanyName: "Acme"})
	require.NoError(t, err)
}

func (f *fixture) addStaff(t *testing.T, id string) {
	t.Helper()
	_, err := f.stores.Staff.Save(f.ctx, models.Staff{ID: id, Name: id})
	require.NoError(t, err)
}

// addOpportunity stores an approved, visible opportunity open around testNow.
func (f *fixture) addOpportunity(t *testing.T, id, repID string, level models.Level, total, filled int) models.Opportunity {
	t.Helper()
	status := models.OpportunityApproved
	visible := true
	if filled >= total {
		status = models.OpportunityFilled
		visible = false
	}
	opp, err := f.stores.Opportunities.Save(f.ctx, models.Opportunity{
		ID:               id,
		Title:            "Internship " + id,
		RepresentativeID: repID,
		Level:            level,
		PreferredMajor:   models.AnyMajor,
		OpeningDate:      time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC),
		ClosingDate:      time.Date(2025, time.March, 31, 0, 0, 0, 0, time.UTC),
		TotalSlots:       total,
		FilledSlots:      filled,
		Status:           status,
		Visible:          visible,
	})
	require.NoError(t, err)
	return opp
}

// addApplication stores an application and links it to the student unless withdrawn.
func (f *fixture) addApplication(t *testing.T, id, studentID, oppID string, status models.ApplicationStatus) {
	t.Helper()
	_, err := f.stores.Applications.Save(f.ctx, models.Application{
		ID:            id,
		StudentID:     studentID,
		OpportunityID: oppID,
		Status:        status,
		SubmittedAt:   testNow.Add(-time.Hour),
	})
	require.NoError(t, err)
	if status == models.ApplicationWithdrawn || status == models.ApplicationRejected {
		return
	}
	_, err = f.stores.Students.Update(f.ctx, studentID, func(s *models.Student) error {
		s.Applications = append(s.Applications, id)
		return nil
	})
	require.NoError(t, err)
}

func (f *fixture) getStudent(t *testing.T, id string) models.Student {
	t.Helper()
	s, ok, err := f.stores.Students.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	return s
}

func (f *fixture) getOpportunity(t *testing.T, id string) models.Opportunity {
	t.Helper()
	o, ok, err := f.stores.Opportunities.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	return o
}

func (f *fixture) getApplication(t *testing.T, id string) models.Application {
	t.Helper()
	a, ok, err := f.stores.Applications.FindByID(f.ctx, id)
	require.NoError(t, err)
	require.True(t, ok)
	return a
}

func (f *fixture) spanNames() []string {
	var names []string
	for _, s := range f.spans.Ended() {
		names = append(names, s.Name())
	}
	return names
}

// faultyStore fails selected Update calls. failOn receives the 1-based
// call number and the record id.
type faultyStore[T storage.Record[T]] struct {
	storage.Store[T]

	mu      sync.Mutex
	updates int
	failOn  func(call int, id string) error
}

func (f *faultyStore[T]) Update(ctx context.Context, id string, fn func(*T) error) (T, error) {
	f.mu.Lock()
	f.updates++
	call := f.updates
	f.mu.Unlock()

	if f.failOn != nil {
		if err := f.failOn(call, id); err != nil {
			var zero T
			return zero, err
		}
	}
	return f.Store.Update(ctx, id, fn)
}

func failCalls(from int) func(int, string) error {
	return func(call int, _ string) error {
		if call >= from {
			return apperrors.NewStorageError("update", context.DeadlineExceeded)
		}
		return nil
	}
}
