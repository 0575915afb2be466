package storage

import (
	"database/sql"

	"placement-engine/internal/common/database"
	"placement-engine/internal/models"
)

// Stores bundles one store per entity type.
type Stores struct {
	Students        Store[models.Student]
	Representatives Store[models.Representative]
	Staff           Store[models.Staff]
	Opportunities   Store[models.Opportunity]
	Applications    Store[models.Application]
	Withdrawals     Store[models.WithdrawalRequest]
}

func NewMemoryStores() Stores {
	return Stores{
		Students:        NewMemoryStore[models.Student]("student"),
		Representatives: NewMemoryStore[models.Representative]("representative"),
		Staff:           NewMemoryStore[models.Staff]("staff"),
		Opportunities:   NewMemoryStore[models.Opportunity]("opportunity"),
		Applications:    NewMemoryStore[models.Application]("application"),
		Withdrawals:     NewMemoryStore[models.WithdrawalRequest]("withdrawal"),
	}
}

// NewPostgresStores binds every store to its table; call
// database.PostgresClient.EnsureSchema first.
func NewPostgresStores(db *sql.DB) Stores {
	return Stores{
		Students:        NewPostgresStore[models.Student](db, database.TableStudents, "student"),
		Representatives: NewPostgresStore[models.Representative](db, database.TableRepresentatives, "representative"),
		Staff:           NewPostgresStore[models.Staff](db, database.TableStaff, "staff"),
		Opportunities:   NewPostgresStore[models.Opportunity](db, database.TableOpportunities, "opportunity"),
		Applications:    NewPostgresStore[models.Application](db, database.TableApplications, "application"),
		Withdrawals:     NewPostgresStore[models.WithdrawalRequest](db, database.TableWithdrawals, "withdrawal"),
	}
}

// Validate reports the first missing store.
func (s Stores) Validate() error {
	switch {
	case s.Students == nil:
		return errMissingStore("students")
	case s.Representatives == nil:
		return errMissingStore("representatives")
	case s.Staff == nil:
		return errMissingStore("staff")
	case s.Opportunities == nil:
		return errMissingStore("opportunities")
	case s.Applications == nil:
		return errMissingStore("applications")
	case s.Withdrawals == nil:
		return errMissingStore("withdrawals")
	}
	return nil
}

type errMissingStore string

func (e errMissingStore) Error() string { return "missing " + string(e) + " store" }
