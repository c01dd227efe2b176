package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// CreateUser inserts a portal member.
func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (email, display_name)
		VALUES ($1, $2)
		RETURNING id, is_active, created_at, updated_at`,
		u.Email, u.DisplayName,
	).Scan(&u.ID, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, display_name, is_active, created_at, updated_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &u, nil
}

// SetUserActive toggles a user's portal access. Disabled users drop out of
// role provisioning sweeps.
func (s *Store) SetUserActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE users SET is_active = $2, updated_at = now() WHERE id = $1`, id, active)
	if err != nil {
		return fmt.Errorf("set user active %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// CreateEnvironmentRole assigns a user a role in an environment.
func (s *Store) CreateEnvironmentRole(ctx context.Context, r *models.EnvironmentRole) error {
	if r.Status == "" {
		r.Status = models.RoleStatusActive
	}
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO environment_roles (environment_id, user_id, role, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		r.EnvironmentID, r.UserID, r.Role, r.Status,
	).Scan(&r.ID, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return fmt.Errorf("create environment role: %w", err)
	}
	return nil
}

// GetEnvironmentRoles fetches role rows by id, in input order where
// possible.
func (s *Store) GetEnvironmentRoles(ctx context.Context, ids []string) ([]models.EnvironmentRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, environment_id, user_id, role, status, cloud_id, claimed_until,
		       created_at, updated_at
		FROM environment_roles
		WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, fmt.Errorf("get environment roles: %w", err)
	}
	defer rows.Close()

	var out []models.EnvironmentRole
	for rows.Next() {
		var r models.EnvironmentRole
		if err := rows.Scan(&r.ID, &r.EnvironmentID, &r.UserID, &r.Role, &r.Status,
			&r.CloudID, &r.ClaimedUntil, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("get environment roles: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListEnvironmentRoles returns all roles in an environment.
func (s *Store) ListEnvironmentRoles(ctx context.Context, environmentID string) ([]models.EnvironmentRole, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, environment_id, user_id, role, status, cloud_id, claimed_until,
		       created_at, updated_at
		FROM environment_roles
		WHERE environment_id = $1
		ORDER BY created_at`, environmentID)
	if err != nil {
		return nil, fmt.Errorf("list environment roles: %w", err)
	}
	defer rows.Close()

	var out []models.EnvironmentRole
	for rows.Next() {
		var r models.EnvironmentRole
		if err := rows.Scan(&r.ID, &r.EnvironmentID, &r.UserID, &r.Role, &r.Status,
			&r.CloudID, &r.ClaimedUntil, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list environment roles: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// SetEnvironmentRoleStatus toggles a role between active and disabled.
func (s *Store) SetEnvironmentRoleStatus(ctx context.Context, id, status string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE environment_roles SET status = $2, updated_at = now() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set environment role status %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// SetEnvironmentRoleCloudIDs records provisioned cloud identifiers for a
// batch of role rows and drops their claims.
func (s *Store) SetEnvironmentRoleCloudIDs(ctx context.Context, ids []string, cloudID string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE environment_roles
		SET cloud_id = $2, claimed_until = NULL, updated_at = now()
		WHERE id = ANY($1)`, pq.Array(ids), cloudID)
	if err != nil {
		return fmt.Errorf("set environment role cloud ids: %w", err)
	}
	return nil
}
