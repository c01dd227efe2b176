package claim

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Guard hands out time-bounded exclusive claims over provisionable rows.
// A claim is a compare-and-set on the row's claimed_until column: it
// succeeds only when the column is empty or already expired, so two
// workers never hold the same row at once and a crashed holder's claim
// lapses on its own.
type Guard struct {
	db  *sql.DB
	ttl time.Duration
}

// NewGuard builds a guard issuing claims that expire after ttl.
func NewGuard(db *sql.DB, ttl time.Duration) *Guard {
	return &Guard{db: db, ttl: ttl}
}

// TTL returns the claim lifetime.
func (g *Guard) TTL() time.Duration {
	return g.ttl
}

const unclaimed = "(claimed_until IS NULL OR claimed_until < now())"

func (g *Guard) claimOne(ctx context.Context, table, id, cond string) (bool, error) {
	query := fmt.Sprintf(`
		UPDATE %s
		SET claimed_until = now() + make_interval(secs => $2)
		WHERE id = $1
		  AND %s`, table, cond)

	res, err := g.db.ExecContext(ctx, query, id, g.ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", table, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim %s %s: %w", table, id, err)
	}
	return n == 1, nil
}

func (g *Guard) releaseOne(ctx context.Context, table, id string) error {
	_, err := g.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE %s SET claimed_until = NULL WHERE id = $1`, table), id)
	if err != nil {
		return fmt.Errorf("release %s %s: %w", table, id, err)
	}
	return nil
}

// ClaimPortfolio takes the provisioning claim on a portfolio. It returns
// false when another holder's claim is still live.
func (g *Guard) ClaimPortfolio(ctx context.Context, id string) (bool, error) {
	return g.claimOne(ctx, "portfolios", id, unclaimed)
}

// ReleasePortfolio drops a portfolio claim early. Failing to release is
// harmless; the claim expires on its own.
func (g *Guard) ReleasePortfolio(ctx context.Context, id string) error {
	return g.releaseOne(ctx, "portfolios", id)
}

// ClaimApplication takes the provisioning claim on an application. Rows
// with a cloud_id already set are past provisioning and never claimable.
func (g *Guard) ClaimApplication(ctx context.Context, id string) (bool, error) {
	return g.claimOne(ctx, "applications", id, unclaimed+" AND cloud_id IS NULL")
}

// ReleaseApplication drops an application claim early.
func (g *Guard) ReleaseApplication(ctx context.Context, id string) error {
	return g.releaseOne(ctx, "applications", id)
}

// ClaimEnvironment takes the provisioning claim on an environment.
func (g *Guard) ClaimEnvironment(ctx context.Context, id string) (bool, error) {
	return g.claimOne(ctx, "environments", id, unclaimed+" AND cloud_id IS NULL")
}

// ReleaseEnvironment drops an environment claim early.
func (g *Guard) ReleaseEnvironment(ctx context.Context, id string) error {
	return g.releaseOne(ctx, "environments", id)
}

// ClaimRoles takes the claim on a batch of environment role rows as a
// unit. If any row is already held the rows this attempt did acquire are
// released and the claim fails, so a user's role grants for one portfolio
// are provisioned by a single worker. Rows held by other workers are
// never touched on rollback.
func (g *Guard) ClaimRoles(ctx context.Context, ids []string) (bool, error) {
	if len(ids) == 0 {
		return false, nil
	}

	rows, err := g.db.QueryContext(ctx, `
		UPDATE environment_roles
		SET claimed_until = now() + make_interval(secs => $2)
		WHERE id = ANY($1)
		  AND cloud_id IS NULL
		  AND (claimed_until IS NULL OR claimed_until < now())
		RETURNING id`,
		pq.Array(ids), g.ttl.Seconds())
	if err != nil {
		return false, fmt.Errorf("claim environment roles: %w", err)
	}
	defer rows.Close()

	var acquired []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return false, fmt.Errorf("claim environment roles: %w", err)
		}
		acquired = append(acquired, id)
	}
	if err := rows.Err(); err != nil {
		return false, fmt.Errorf("claim environment roles: %w", err)
	}

	if len(acquired) != len(ids) {
		if len(acquired) > 0 {
			_ = g.ReleaseRoles(ctx, acquired)
		}
		return false, nil
	}
	return true, nil
}

// ReleaseRoles drops the claims on a batch of environment role rows.
func (g *Guard) ReleaseRoles(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := g.db.ExecContext(ctx,
		`UPDATE environment_roles SET claimed_until = NULL WHERE id = ANY($1)`,
		pq.Array(ids))
	if err != nil {
		return fmt.Errorf("release environment roles: %w", err)
	}
	return nil
}
