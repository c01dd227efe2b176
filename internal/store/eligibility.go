package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// The sweep queries below select the work a dispatcher tick enqueues. They
// only read; claiming happens in the worker so a task sitting in the queue
// does not hold a row.

// PendingPortfolios returns funded portfolios whose provisioning has not
// reached a terminal state. Claimed rows are skipped; a live claim means a
// worker is already on it.
func (s *Store) PendingPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+portfolioColumns+`
		FROM portfolios p
		LEFT JOIN portfolio_state_machines sm ON sm.portfolio_id = p.id
		WHERE p.deleted_at IS NULL
		  AND (p.claimed_until IS NULL OR p.claimed_until < now())
		  AND (sm.state IS NULL OR sm.state NOT IN ('COMPLETED', 'FAILED'))
		  AND `+fundedClause+`
		ORDER BY p.created_at`)
	if err != nil {
		return nil, fmt.Errorf("pending portfolios: %w", err)
	}
	defer rows.Close()

	var out []models.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("pending portfolios: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// PendingApplications returns applications awaiting their one-shot cloud
// creation. An application only becomes eligible once its portfolio's
// tenancy provisioning has completed.
func (s *Store) PendingApplications(ctx context.Context) ([]models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.portfolio_id, a.name, a.description, a.cloud_id, a.claimed_until,
		       a.created_at, a.updated_at, a.deleted_at
		FROM applications a
		JOIN portfolios p ON p.id = a.portfolio_id
		JOIN portfolio_state_machines sm ON sm.portfolio_id = p.id
		WHERE a.deleted_at IS NULL
		  AND a.cloud_id IS NULL
		  AND (a.claimed_until IS NULL OR a.claimed_until < now())
		  AND p.deleted_at IS NULL
		  AND sm.state = 'COMPLETED'
		  AND `+fundedClause+`
		ORDER BY a.created_at`)
	if err != nil {
		return nil, fmt.Errorf("pending applications: %w", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.PortfolioID, &a.Name, &a.Description, &a.CloudID, &a.ClaimedUntil,
			&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
			return nil, fmt.Errorf("pending applications: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// PendingEnvironment pairs an eligible environment with its portfolio.
type PendingEnvironment struct {
	Environment   models.Environment
	PortfolioID   string
	ApplicationID string
}

// PendingEnvironments returns environments awaiting cloud creation. An
// environment waits for its application's cloud identifier.
func (s *Store) PendingEnvironments(ctx context.Context) ([]PendingEnvironment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT e.id, e.application_id, e.name, e.cloud_id, e.claimed_until,
		       e.created_at, e.updated_at, e.deleted_at, a.portfolio_id
		FROM environments e
		JOIN applications a ON a.id = e.application_id
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE e.deleted_at IS NULL
		  AND e.cloud_id IS NULL
		  AND (e.claimed_until IS NULL OR e.claimed_until < now())
		  AND a.deleted_at IS NULL
		  AND a.cloud_id IS NOT NULL
		  AND p.deleted_at IS NULL
		  AND `+fundedClause+`
		ORDER BY e.created_at`)
	if err != nil {
		return nil, fmt.Errorf("pending environments: %w", err)
	}
	defer rows.Close()

	var out []PendingEnvironment
	for rows.Next() {
		var pe PendingEnvironment
		e := &pe.Environment
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Name, &e.CloudID, &e.ClaimedUntil,
			&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt, &pe.PortfolioID); err != nil {
			return nil, fmt.Errorf("pending environments: %w", err)
		}
		pe.ApplicationID = e.ApplicationID
		out = append(out, pe)
	}
	return out, rows.Err()
}

// RoleGroup is the unit of role provisioning: every unprovisioned role row
// for one user across one portfolio, handled as a single task.
type RoleGroup struct {
	PortfolioID string
	UserID      string
	RoleIDs     []string
}

// PendingRoleGroups returns role work grouped by portfolio and user.
// Eligible rows are active roles for active users in environments that
// already exist in the cloud.
func (s *Store) PendingRoleGroups(ctx context.Context) ([]RoleGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.portfolio_id, r.user_id, array_agg(r.id ORDER BY r.created_at)
		FROM environment_roles r
		JOIN users u ON u.id = r.user_id
		JOIN environments e ON e.id = r.environment_id
		JOIN applications a ON a.id = e.application_id
		JOIN portfolios p ON p.id = a.portfolio_id
		WHERE r.cloud_id IS NULL
		  AND r.status = 'active'
		  AND (r.claimed_until IS NULL OR r.claimed_until < now())
		  AND u.is_active
		  AND e.deleted_at IS NULL
		  AND e.cloud_id IS NOT NULL
		  AND a.deleted_at IS NULL
		  AND p.deleted_at IS NULL
		  AND `+fundedClause+`
		GROUP BY a.portfolio_id, r.user_id
		ORDER BY a.portfolio_id, r.user_id`)
	if err != nil {
		return nil, fmt.Errorf("pending role groups: %w", err)
	}
	defer rows.Close()

	var out []RoleGroup
	for rows.Next() {
		var g RoleGroup
		if err := rows.Scan(&g.PortfolioID, &g.UserID, pq.Array(&g.RoleIDs)); err != nil {
			return nil, fmt.Errorf("pending role groups: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
