package claim

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func newGuard(t *testing.T) (*Guard, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewGuard(db, 2*time.Minute), mock
}

func TestClaimPortfolioSucceedsWhenUnclaimed(t *testing.T) {
	g, mock := newGuard(t)

	mock.ExpectExec(`UPDATE portfolios\s+SET claimed_until = now\(\) \+ make_interval`).
		WithArgs("p1", float64(120)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := g.ClaimPortfolio(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ClaimPortfolio failed: %v", err)
	}
	if !ok {
		t.Fatal("expected claim to succeed")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimPortfolioLosesRace(t *testing.T) {
	g, mock := newGuard(t)

	// Another holder's claim is still live, so the CAS matches no row.
	mock.ExpectExec(`UPDATE portfolios`).
		WithArgs("p1", float64(120)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := g.ClaimPortfolio(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ClaimPortfolio failed: %v", err)
	}
	if ok {
		t.Fatal("expected claim to lose the race")
	}
}

func TestReleasePortfolioClearsClaim(t *testing.T) {
	g, mock := newGuard(t)

	mock.ExpectExec(`UPDATE portfolios SET claimed_until = NULL`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := g.ReleasePortfolio(context.Background(), "p1"); err != nil {
		t.Fatalf("ReleasePortfolio failed: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimApplicationSkipsProvisionedRows(t *testing.T) {
	g, mock := newGuard(t)

	// The CAS predicate excludes rows whose cloud_id is already set, so
	// a provisioned application is never claimable.
	mock.ExpectExec(`UPDATE applications[\s\S]+cloud_id IS NULL`).
		WithArgs("a1", float64(120)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := g.ClaimApplication(context.Background(), "a1")
	if err != nil {
		t.Fatalf("ClaimApplication failed: %v", err)
	}
	if ok {
		t.Fatal("expected provisioned application to be unclaimable")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimRolesAllOrNothing(t *testing.T) {
	g, mock := newGuard(t)

	ids := []string{"r1", "r2", "r3"}

	// Only two of three rows were claimable; the partial claim must be
	// rolled back, releasing exactly the rows this attempt acquired. r3
	// belongs to whoever holds it and stays untouched.
	mock.ExpectQuery(`UPDATE environment_roles[\s\S]+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r2"))
	mock.ExpectExec(`UPDATE environment_roles SET claimed_until = NULL`).
		WithArgs(pq.Array([]string{"r1", "r2"})).
		WillReturnResult(sqlmock.NewResult(0, 2))

	ok, err := g.ClaimRoles(context.Background(), ids)
	if err != nil {
		t.Fatalf("ClaimRoles failed: %v", err)
	}
	if ok {
		t.Fatal("expected partial claim to fail")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatal(err)
	}
}

func TestClaimRolesFullBatch(t *testing.T) {
	g, mock := newGuard(t)

	ids := []string{"r1", "r2"}
	mock.ExpectQuery(`UPDATE environment_roles[\s\S]+RETURNING id`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1").AddRow("r2"))

	ok, err := g.ClaimRoles(context.Background(), ids)
	if err != nil {
		t.Fatalf("ClaimRoles failed: %v", err)
	}
	if !ok {
		t.Fatal("expected full batch claim to succeed")
	}
}

func TestClaimRolesEmptyBatch(t *testing.T) {
	g, _ := newGuard(t)

	ok, err := g.ClaimRoles(context.Background(), nil)
	if err != nil {
		t.Fatalf("ClaimRoles failed: %v", err)
	}
	if ok {
		t.Fatal("empty batch must not claim anything")
	}
}
