package store

import (
	"database/sql"
	"errors"

	"github.com/dod-ccpo/atat-sub000/pkg/logging"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store is the Postgres persistence layer for the provisioning core.
type Store struct {
	db  *sql.DB
	log logging.Logger
}

// New wraps an open database handle.
func New(db *sql.DB, log logging.Logger) *Store {
	return &Store{db: db, log: log}
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// fundedClause gates a portfolio on active funding: at least one CLIN of a
// signed task order must cover the current date. The portfolio row is
// expected to be aliased p in the enclosing query.
const fundedClause = `EXISTS (
		SELECT 1 FROM task_orders t
		JOIN clins c ON c.task_order_id = t.id
		WHERE t.portfolio_id = p.id
		  AND t.signed_at IS NOT NULL
		  AND c.start_date <= CURRENT_DATE
		  AND c.end_date > CURRENT_DATE
	)`
