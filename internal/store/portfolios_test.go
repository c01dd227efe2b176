package store

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/sirupsen/logrus"

	"github.com/dod-ccpo/atat-sub000/pkg/models"
)

func newStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return New(db, logger), mock
}

func portfolioRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "name", "description", "owner_id", "csp_data",
		"claimed_until", "state", "state_updated_at",
		"created_at", "updated_at", "deleted_at",
	})
}

func TestSaveTransitionIsAtomic(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE portfolio_state_machines\s+SET state = \$2`).
		WithArgs("p1", "TENANT_CREATED").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE portfolios\s+SET csp_data = \$2`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.SaveTransition(context.Background(), "p1", "TENANT_CREATED", models.JSONB{"tenant_id": "t1"})
	if err != nil {
		t.Fatalf("SaveTransition failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTransitionRollsBackOnDataWriteFailure(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE portfolio_state_machines`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE portfolios`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.SaveTransition(context.Background(), "p1", "TENANT_CREATED", models.JSONB{"tenant_id": "t1"})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestSaveTransitionMissingStateMachineRow(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE portfolio_state_machines`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := s.SaveTransition(context.Background(), "missing", "STARTED", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPortfolioJoinsState(t *testing.T) {
	s, mock := newStore(t)

	now := time.Now()
	mock.ExpectQuery(`FROM portfolios p[\s\S]+LEFT JOIN portfolio_state_machines`).
		WithArgs("p1").
		WillReturnRows(portfolioRows().AddRow(
			"p1", "Test", "", nil, []byte(`{"tenant_id":"t1"}`),
			nil, "TENANT_CREATED", now,
			now, now, nil,
		))

	p, err := s.GetPortfolio(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPortfolio failed: %v", err)
	}
	if p.State != "TENANT_CREATED" {
		t.Fatalf("state = %q, want TENANT_CREATED", p.State)
	}
	if p.StateUpdatedAt == nil {
		t.Fatal("state_updated_at not scanned")
	}
	if p.CSPData["tenant_id"] != "t1" {
		t.Fatalf("csp_data = %v", p.CSPData)
	}
}

func TestGetPortfolioNotFound(t *testing.T) {
	s, mock := newStore(t)

	mock.ExpectQuery(`FROM portfolios p`).
		WithArgs("missing").
		WillReturnRows(portfolioRows())

	_, err := s.GetPortfolio(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestGetPortfolioForProvisioningEnsuresStateMachineRow(t *testing.T) {
	s, mock := newStore(t)

	now := time.Now()
	mock.ExpectExec(`INSERT INTO portfolio_state_machines`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`FROM portfolios p`).
		WithArgs("p1").
		WillReturnRows(portfolioRows().AddRow(
			"p1", "Test", "", nil, nil,
			nil, "UNSTARTED", now,
			now, now, nil,
		))

	p, err := s.GetPortfolioForProvisioning(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetPortfolioForProvisioning failed: %v", err)
	}
	if p.State != "UNSTARTED" {
		t.Fatalf("state = %q, want UNSTARTED", p.State)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}
