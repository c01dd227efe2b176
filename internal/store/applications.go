package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreateApplication inserts an application as a pending provisioning
// target; its cloud_id stays empty until a worker provisions it.
func (s *Store) CreateApplication(ctx context.Context, a *models.Application) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO applications (portfolio_id, name, description)
		VALUES ($1, $2, $3)
		RETURNING id, created_at, updated_at`,
		a.PortfolioID, a.Name, a.Description,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// GetApplication fetches a live application.
func (s *Store) GetApplication(ctx context.Context, id string) (*models.Application, error) {
	var a models.Application
	err := s.db.QueryRowContext(ctx, `
		SELECT id, portfolio_id, name, description, cloud_id, claimed_until,
		       created_at, updated_at, deleted_at
		FROM applications
		WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&a.ID, &a.PortfolioID, &a.Name, &a.Description, &a.CloudID, &a.ClaimedUntil,
		&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get application %s: %w", id, err)
	}
	return &a, nil
}

// ListApplications returns a portfolio's live applications.
func (s *Store) ListApplications(ctx context.Context, portfolioID string) ([]models.Application, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, portfolio_id, name, description, cloud_id, claimed_until,
		       created_at, updated_at, deleted_at
		FROM applications
		WHERE portfolio_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		var a models.Application
		if err := rows.Scan(&a.ID, &a.PortfolioID, &a.Name, &a.Description, &a.CloudID, &a.ClaimedUntil,
			&a.CreatedAt, &a.UpdatedAt, &a.DeletedAt); err != nil {
			return nil, fmt.Errorf("list applications: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// SetApplicationCloudID records the provisioned cloud identifier and drops
// the claim in the same statement.
func (s *Store) SetApplicationCloudID(ctx context.Context, id, cloudID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications
		SET cloud_id = $2, claimed_until = NULL, updated_at = now()
		WHERE id = $1`, id, cloudID)
	if err != nil {
		return fmt.Errorf("set application cloud id %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteApplication soft-deletes an application.
func (s *Store) DeleteApplication(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE applications SET deleted_at = now()
		WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete application %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEnvironment inserts an environment under an application.
func (s *Store) CreateEnvironment(ctx context.Context, e *models.Environment) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO environments (application_id, name)
		VALUES ($1, $2)
		RETURNING id, created_at, updated_at`,
		e.ApplicationID, e.Name,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create environment: %w", err)
	}
	return nil
}

// GetEnvironment fetches a live environment.
func (s *Store) GetEnvironment(ctx context.Context, id string) (*models.Environment, error) {
	var e models.Environment
	err := s.db.QueryRowContext(ctx, `
		SELECT id, application_id, name, cloud_id, claimed_until,
		       created_at, updated_at, deleted_at
		FROM environments
		WHERE id = $1 AND deleted_at IS NULL`, id,
	).Scan(&e.ID, &e.ApplicationID, &e.Name, &e.CloudID, &e.ClaimedUntil,
		&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get environment %s: %w", id, err)
	}
	return &e, nil
}

// ListEnvironments returns an application's live environments.
func (s *Store) ListEnvironments(ctx context.Context, applicationID string) ([]models.Environment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, application_id, name, cloud_id, claimed_until,
		       created_at, updated_at, deleted_at
		FROM environments
		WHERE application_id = $1 AND deleted_at IS NULL
		ORDER BY created_at`, applicationID)
	if err != nil {
		return nil, fmt.Errorf("list environments: %w", err)
	}
	defer rows.Close()

	var out []models.Environment
	for rows.Next() {
		var e models.Environment
		if err := rows.Scan(&e.ID, &e.ApplicationID, &e.Name, &e.CloudID, &e.ClaimedUntil,
			&e.CreatedAt, &e.UpdatedAt, &e.DeletedAt); err != nil {
			return nil, fmt.Errorf("list environments: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SetEnvironmentCloudID records the provisioned cloud identifier and drops
// the claim.
func (s *Store) SetEnvironmentCloudID(ctx context.Context, id, cloudID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE environments
		SET cloud_id = $2, claimed_until = NULL, updated_at = now()
		WHERE id = $1`, id, cloudID)
	if err != nil {
		return fmt.Errorf("set environment cloud id %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}
