package models

import (
	"time"
)

// Portfolio is the top-level billing and ownership unit. Its CSPData bag
// accumulates every provisioning stage result; the provisioning state lives
// in the 1:1 PortfolioStateMachine row.
type Portfolio struct {
	ID          string  `json:"id" db:"id"`
	Name        string  `json:"name" db:"name"`
	Description string  `json:"description" db:"description"`
	OwnerID     *string `json:"owner_id,omitempty" db:"owner_id"`

	CSPData      JSONB      `json:"csp_data,omitempty" db:"csp_data"`
	ClaimedUntil *time.Time `json:"claimed_until,omitempty" db:"claimed_until"`

	// State is the encoded provisioning state from the joined state machine
	// row ("UNSTARTED", "TENANT_IN_PROGRESS", ...). StateUpdatedAt is that
	// row's last change time, used to rate-limit failure recovery.
	State          string     `json:"state" db:"state"`
	StateUpdatedAt *time.Time `json:"state_updated_at,omitempty" db:"state_updated_at"`

	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" db:"deleted_at"`
}

// PortfolioStateMachine is the persisted controller row for one portfolio.
type PortfolioStateMachine struct {
	ID          string    `json:"id" db:"id"`
	PortfolioID string    `json:"portfolio_id" db:"portfolio_id"`
	State       string    `json:"state" db:"state"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// TaskOrder is a signed funding authorization attached to a portfolio.
type TaskOrder struct {
	ID          string     `json:"id" db:"id"`
	PortfolioID string     `json:"portfolio_id" db:"portfolio_id"`
	Number      string     `json:"number" db:"number"`
	SignedAt    *time.Time `json:"signed_at,omitempty" db:"signed_at"`
	CLINs       []CLIN     `json:"clins,omitempty" db:"-"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// CLIN is a date-bounded funding line item under a task order.
type CLIN struct {
	ID              string    `json:"id" db:"id"`
	TaskOrderID     string    `json:"task_order_id" db:"task_order_id"`
	Number          string    `json:"number" db:"number"`
	StartDate       time.Time `json:"start_date" db:"start_date"`
	EndDate         time.Time `json:"end_date" db:"end_date"`
	ObligatedAmount float64   `json:"obligated_amount" db:"obligated_amount"`
	TotalAmount     float64   `json:"total_amount" db:"total_amount"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// ActiveAt reports whether the CLIN's funding period covers t.
func (c CLIN) ActiveAt(t time.Time) bool {
	return !t.Before(c.StartDate) && t.Before(c.EndDate)
}
