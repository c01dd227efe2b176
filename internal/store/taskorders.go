package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreateTaskOrder inserts a task order and its CLINs atomically.
func (s *Store) CreateTaskOrder(ctx context.Context, to *models.TaskOrder) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create task order: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO task_orders (portfolio_id, number, signed_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		to.PortfolioID, to.Number, to.SignedAt,
	).Scan(&to.ID, &to.CreatedAt, &to.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create task order: %w", err)
	}

	for i := range to.CLINs {
		c := &to.CLINs[i]
		c.TaskOrderID = to.ID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO clins (task_order_id, number, start_date, end_date, obligated_amount, total_amount)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`,
			c.TaskOrderID, c.Number, c.StartDate, c.EndDate, c.ObligatedAmount, c.TotalAmount,
		).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return fmt.Errorf("create clin %s: %w", c.Number, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create task order: %w", err)
	}
	return nil
}

// SignTaskOrder records a task order's signature time. Signing is what
// makes its CLINs count toward funding.
func (s *Store) SignTaskOrder(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE task_orders SET signed_at = now(), updated_at = now()
		WHERE id = $1 AND signed_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("sign task order %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListTaskOrders returns a portfolio's task orders with their CLINs.
func (s *Store) ListTaskOrders(ctx context.Context, portfolioID string) ([]models.TaskOrder, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, portfolio_id, number, signed_at, created_at, updated_at
		FROM task_orders
		WHERE portfolio_id = $1
		ORDER BY created_at`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("list task orders: %w", err)
	}
	defer rows.Close()

	var orders []models.TaskOrder
	byID := make(map[string]int)
	for rows.Next() {
		var to models.TaskOrder
		if err := rows.Scan(&to.ID, &to.PortfolioID, &to.Number, &to.SignedAt, &to.CreatedAt, &to.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list task orders: %w", err)
		}
		byID[to.ID] = len(orders)
		orders = append(orders, to)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list task orders: %w", err)
	}
	if len(orders) == 0 {
		return orders, nil
	}

	clinRows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.task_order_id, c.number, c.start_date, c.end_date,
		       c.obligated_amount, c.total_amount, c.created_at, c.updated_at
		FROM clins c
		JOIN task_orders t ON t.id = c.task_order_id
		WHERE t.portfolio_id = $1
		ORDER BY c.number`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("list clins: %w", err)
	}
	defer clinRows.Close()

	for clinRows.Next() {
		var c models.CLIN
		if err := clinRows.Scan(&c.ID, &c.TaskOrderID, &c.Number, &c.StartDate, &c.EndDate,
			&c.ObligatedAmount, &c.TotalAmount, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list clins: %w", err)
		}
		if i, ok := byID[c.TaskOrderID]; ok {
			orders[i].CLINs = append(orders[i].CLINs, c)
		}
	}
	return orders, clinRows.Err()
}

// PortfolioFunded reports whether the portfolio has active funding right
// now: a signed task order with a CLIN covering the current date.
func (s *Store) PortfolioFunded(ctx context.Context, portfolioID string) (bool, error) {
	var funded bool
	err := s.db.QueryRowContext(ctx, `
		SELECT `+fundedClause+`
		FROM portfolios p
		WHERE p.id = $1`, portfolioID).Scan(&funded)
	if err == sql.ErrNoRows {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("portfolio funded %s: %w", portfolioID, err)
	}
	return funded, nil
}
