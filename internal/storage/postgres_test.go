package storage

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	apperrors "placement-engine/internal/common/errors"
	"placement-engine/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ Store[models.Opportunity] = (*PostgresStore[models.Opportunity])(nil)

func newPostgresStore(t *testing.T) (*PostgresStore[models.Opportunity], sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore[models.Opportunity](db, "opportunities", "opportunity"), mock
}

func opportunityJSON(t *testing.T, o models.Opportunity) []byte {
	t.Helper()
	data, err := json.Marshal(o)
	require.NoError(t, err)
	return data
}

// ==========================
// Reads
// ==========================

func TestPostgresStore_FindByID(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(sqlmock.Sqlmock)
		wantFound bool
		wantErr   error
	}{
		{
			name: "found",
			setupMock: func(m sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"data"}).
					AddRow(opportunityJSON(t, models.Opportunity{ID: "o-1", Title: "Backend Intern", TotalSlots: 2}))
				m.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1`).WithArgs("o-1").WillReturnRows(rows)
			},
			wantFound: true,
		},
		{
			name: "not found",
			setupMock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1`).WithArgs("o-1").
					WillReturnRows(sqlmock.NewRows([]string{"data"}))
			},
			wantFound: false,
		},
		{
			name: "database error",
			setupMock: func(m sqlmock.Sqlmock) {
				m.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1`).WithArgs("o-1").
					WillReturnError(errors.New("connection refused"))
			},
			wantErr: apperrors.ErrStorageFailure,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mock := newPostgresStore(t)
			tt.setupMock(mock)

			got, found, err := store.FindByID(context.Background(), "o-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFound, found)
				if found {
					assert.Equal(t, "Backend Intern", got.Title)
				}
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestPostgresStore_FindAll(t *testing.T) {
	store, mock := newPostgresStore(t)

	rows := sqlmock.NewRows([]string{"data"}).
		AddRow(opportunityJSON(t, models.Opportunity{ID: "o-1", Status: models.OpportunityApproved})).
		AddRow(opportunityJSON(t, models.Opportunity{ID: "o-2", Status: models.OpportunityPending}))
	mock.ExpectQuery(`SELECT data FROM opportunities ORDER BY id`).WillReturnRows(rows)

	got, err := store.FindAll(context.Background(), func(o models.Opportunity) bool {
		return o.Status == models.OpportunityApproved
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "o-1", got[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ==========================
// Writes
// ==========================

func TestPostgresStore_Save(t *testing.T) {
	store, mock := newPostgresStore(t)

	mock.ExpectExec(`INSERT INTO opportunities`).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	saved, err := store.Save(context.Background(), models.Opportunity{Title: "Data Intern"})
	require.NoError(t, err)
	assert.NotEmpty(t, saved.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteByID(t *testing.T) {
	store, mock := newPostgresStore(t)

	mock.ExpectExec(`DELETE FROM opportunities WHERE id = \$1`).WithArgs("o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM opportunities WHERE id = \$1`).WithArgs("o-2").
		WillReturnResult(sqlmock.NewResult(0, 0))

	deleted, err := store.DeleteByID(context.Background(), "o-1")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = store.DeleteByID(context.Background(), "o-2")
	require.NoError(t, err)
	assert.False(t, deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Update(t *testing.T) {
	current := models.Opportunity{ID: "o-1", TotalSlots: 1, Status: models.OpportunityApproved, Visible: true}

	t.Run("commits under row lock", func(t *testing.T) {
		store, mock := newPostgresStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1 FOR UPDATE`).WithArgs("o-1").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(opportunityJSON(t, current)))
		mock.ExpectExec(`UPDATE opportunities SET data = \$2`).WithArgs("o-1", sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		updated, err := store.Update(context.Background(), "o-1", func(o *models.Opportunity) error {
			o.FilledSlots = 1
			o.Status = models.OpportunityFilled
			o.Visible = false
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, models.OpportunityFilled, updated.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("mutation error rolls back", func(t *testing.T) {
		store, mock := newPostgresStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1 FOR UPDATE`).WithArgs("o-1").
			WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(opportunityJSON(t, current)))
		mock.ExpectRollback()

		capacity := apperrors.NewCapacityExceededError("o-1", 1, 1)
		_, err := store.Update(context.Background(), "o-1", func(*models.Opportunity) error { return capacity })
		assert.ErrorIs(t, err, apperrors.ErrCapacityExceeded)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing row", func(t *testing.T) {
		store, mock := newPostgresStore(t)

		mock.ExpectBegin()
		mock.ExpectQuery(`SELECT data FROM opportunities WHERE id = \$1 FOR UPDATE`).WithArgs("o-9").
			WillReturnRows(sqlmock.NewRows([]string{"data"}))
		mock.ExpectRollback()

		_, err := store.Update(context.Background(), "o-9", func(*models.Opportunity) error { return nil })
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		store, mock := newPostgresStore(t)
		mock.ExpectBegin().WillReturnError(errors.New("too many connections"))

		_, err := store.Update(context.Background(), "o-1", func(*models.Opportunity) error { return nil })
		assert.ErrorIs(t, err, apperrors.ErrStorageFailure)
	})
}
