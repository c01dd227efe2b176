package models

import (
	"time"
)

// Application groups environments within a portfolio. CloudID is set once
// the corresponding cloud management group exists; until then the record is
// a pending one-shot provisioning target.
type Application struct {
	ID          string `json:"id" db:"id"`
	PortfolioID string `json:"portfolio_id" db:"portfolio_id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description" db:"description"`

	CloudID      *string    `json:"cloud_id,omitempty" db:"cloud_id"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Environment is a deployment environment under an application.
type Environment struct {
	ID            string `json:"id" db:"id"`
	ApplicationID string `json:"application_id" db:"application_id"`
	Name          string `json:"name" db:"name"`

	CloudID      *string    `json:"cloud_id,omitempty" db:"cloud_id"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// Environment role statuses.
const (
	RoleStatusActive   = "active"
	RoleStatusDisabled = "disabled"
)

// EnvironmentRole assigns a user a role in one environment.
type EnvironmentRole struct {
	ID            string `json:"id" db:"id"`
	EnvironmentID string `json:"environment_id" db:"environment_id"`
	UserID        string `json:"user_id" db:"user_id"`
	Role          string `json:"role" db:"role"`
	Status        string `json:"status" db:"status"`

	CloudID      *string    `json:"cloud_id,omitempty" db:"cloud_id"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// User is a portal member who can hold environment roles.
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	DisplayName string    `json:"display_name" db:"display_name"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
