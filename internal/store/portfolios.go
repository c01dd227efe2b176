package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

const portfolioColumns = `p.id, p.name, p.description, p.owner_id, p.csp_data,
		p.claimed_until, sm.state, sm.updated_at,
		p.created_at, p.updated_at, p.deleted_at`

func scanPortfolio(row interface{ Scan(...interface{}) error }) (*models.Portfolio, error) {
	var p models.Portfolio
	var state sql.NullString
	var stateUpdated sql.NullTime
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CSPData,
		&p.ClaimedUntil, &state, &stateUpdated,
		&p.CreatedAt, &p.UpdatedAt, &p.DeletedAt)
	if err != nil {
		return nil, err
	}
	if state.Valid {
		p.State = state.String
	}
	if stateUpdated.Valid {
		t := stateUpdated.Time
		p.StateUpdatedAt = &t
	}
	return &p, nil
}

// CreatePortfolio inserts a portfolio and its state machine row. A fresh
// portfolio starts in UNSTARTED.
func (s *Store) CreatePortfolio(ctx context.Context, p *models.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create portfolio: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO portfolios (name, description, owner_id, csp_data)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.Name, p.Description, p.OwnerID, p.CSPData,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create portfolio: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO portfolio_state_machines (portfolio_id) VALUES ($1)`, p.ID)
	if err != nil {
		return fmt.Errorf("create portfolio state machine: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create portfolio: %w", err)
	}
	p.State = "UNSTARTED"
	return nil
}

// GetPortfolio fetches a portfolio with its provisioning state.
func (s *Store) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+portfolioColumns+`
		FROM portfolios p
		LEFT JOIN portfolio_state_machines sm ON sm.portfolio_id = p.id
		WHERE p.id = $1 AND p.deleted_at IS NULL`, id)

	p, err := scanPortfolio(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get portfolio %s: %w", id, err)
	}
	return p, nil
}

// ListPortfolios returns all live portfolios with their states.
func (s *Store) ListPortfolios(ctx context.Context) ([]models.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+portfolioColumns+`
		FROM portfolios p
		LEFT JOIN portfolio_state_machines sm ON sm.portfolio_id = p.id
		WHERE p.deleted_at IS NULL
		ORDER BY p.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list portfolios: %w", err)
	}
	defer rows.Close()

	var out []models.Portfolio
	for rows.Next() {
		p, err := scanPortfolio(rows)
		if err != nil {
			return nil, fmt.Errorf("list portfolios: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// GetPortfolioForProvisioning fetches the portfolio and guarantees its
// state machine row exists. Portfolios created before the controller row
// was introduced get one lazily here.
func (s *Store) GetPortfolioForProvisioning(ctx context.Context, id string) (*models.Portfolio, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portfolio_state_machines (portfolio_id)
		VALUES ($1)
		ON CONFLICT (portfolio_id) DO NOTHING`, id)
	if err != nil {
		return nil, fmt.Errorf("ensure state machine for portfolio %s: %w", id, err)
	}
	return s.GetPortfolio(ctx, id)
}

// SaveTransition persists a completed state transition and the accumulated
// provisioning data it produced in one transaction, so the state and the
// data can never disagree.
func (s *Store) SaveTransition(ctx context.Context, portfolioID string, state string, data models.JSONB) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save transition: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE portfolio_state_machines
		SET state = $2, updated_at = now()
		WHERE portfolio_id = $1`, portfolioID, state)
	if err != nil {
		return fmt.Errorf("save transition state: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("save transition: %w", ErrNotFound)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE portfolios
		SET csp_data = $2, updated_at = now()
		WHERE id = $1`, portfolioID, data)
	if err != nil {
		return fmt.Errorf("save transition data: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save transition: %w", err)
	}
	return nil
}

// DeletePortfolio soft-deletes a portfolio.
func (s *Store) DeletePortfolio(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE portfolios SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete portfolio %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
