package store

import (
	"context"
	"fmt"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

// RecordJobFailure appends a failure record for a provisioning task.
func (s *Store) RecordJobFailure(ctx context.Context, f *models.JobFailure) error {
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO job_failures (entity_kind, entity_id, task_id, error)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		f.EntityKind, f.EntityID, f.TaskID, f.Error,
	).Scan(&f.ID, &f.CreatedAt)
	if err != nil {
		return fmt.Errorf("record job failure: %w", err)
	}
	return nil
}

// ListJobFailures returns the failure records for one entity, newest first.
func (s *Store) ListJobFailures(ctx context.Context, entityKind, entityID string) ([]models.JobFailure, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, entity_kind, entity_id, task_id, error, created_at
		FROM job_failures
		WHERE entity_kind = $1 AND entity_id = $2
		ORDER BY created_at DESC`, entityKind, entityID)
	if err != nil {
		return nil, fmt.Errorf("list job failures: %w", err)
	}
	defer rows.Close()

	var out []models.JobFailure
	for rows.Next() {
		var f models.JobFailure
		if err := rows.Scan(&f.ID, &f.EntityKind, &f.EntityID, &f.TaskID, &f.Error, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("list job failures: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
