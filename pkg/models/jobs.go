package models

import (
	"time"
)

// Entity kinds recorded on job failures and task messages.
const (
	EntityKindPortfolio       = "portfolio"
	EntityKindApplication     = "application"
	EntityKindEnvironment     = "environment"
	EntityKindEnvironmentRole = "environment_role"
)

// JobFailure is an append-only record of a provisioning task that ran out of
// retries or hit a permanent error. Kept for operator inspection.
type JobFailure struct {
	ID         int64     `json:"id" db:"id"`
	EntityKind string    `json:"entity_kind" db:"entity_kind"`
	EntityID   string    `json:"entity_id" db:"entity_id"`
	TaskID     string    `json:"task_id" db:"task_id"`
	Error      string    `json:"error" db:"error"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
