// Package postgres provides a PostgreSQL-backed UsageLedger.
//
// Counters live in one row per tenant, period and resource. Commits upsert
// every delta inside a single transaction, so a commit is applied whole or
// not at all and survives restarts.
package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ineyio/aigate"
	"github.com/ineyio/aigate/quota"
)

// Ledger is a PostgreSQL-backed UsageLedger.
type Ledger struct {
	pool        *pgxpool.Pool
	tablePrefix string
}

var _ aigate.UsageLedger = (*Ledger)(nil)

// Option configures Ledger.
type Option func(*Ledger)

// WithTablePrefix sets the table name prefix (default "aigate_").
func WithTablePrefix(prefix string) Option {
	return func(l *Ledger) { l.tablePrefix = prefix }
}

// New creates a PostgreSQL-backed ledger.
func New(pool *pgxpool.Pool, opts ...Option) *Ledger {
	l := &Ledger{
		pool:        pool,
		tablePrefix: "aigate_",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Ledger) usageTable() string { return l.tablePrefix + "usage" }

// EnsureSchema creates the usage table if it doesn't exist.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	q := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			tenant_id TEXT NOT NULL,
			period TEXT NOT NULL,
			resource TEXT NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0 CHECK (amount >= 0),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			PRIMARY KEY (tenant_id, period, resource)
		);
	`, l.usageTable())
	if _, err := l.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("aigate/postgres: ensure schema: %w", err)
	}
	return nil
}

// Current returns the counter for one resource.
func (l *Ledger) Current(ctx context.Context, tenantID string, period aigate.Period, resource quota.Resource) (int64, error) {
	var amount int64
	err := l.pool.QueryRow(ctx,
		fmt.Sprintf(`SELECT amount FROM %s WHERE tenant_id = $1 AND period = $2 AND resource = $3`, l.usageTable()),
		tenantID, string(period), string(resource),
	).Scan(&amount)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("aigate/postgres: current: %w", err)
	}
	return amount, nil
}

// Commit upserts every delta in one transaction.
func (l *Ledger) Commit(ctx context.Context, tenantID string, period aigate.Period, deltas map[quota.Resource]int64) error {
	if err := aigate.ValidateDeltas(deltas); err != nil {
		return err
	}
	if len(deltas) == 0 {
		return nil
	}

	// Fixed row order keeps concurrent commits from deadlocking.
	resources := make([]string, 0, len(deltas))
	for r := range deltas {
		resources = append(resources, string(r))
	}
	sort.Strings(resources)

	tx, err := l.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("aigate/postgres: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	q := fmt.Sprintf(`INSERT INTO %s (tenant_id, period, resource, amount)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (tenant_id, period, resource)
		DO UPDATE SET amount = %s.amount + EXCLUDED.amount, updated_at = now()`,
		l.usageTable(), l.usageTable())

	for _, r := range resources {
		if _, err := tx.Exec(ctx, q, tenantID, string(period), r, deltas[quota.Resource(r)]); err != nil {
			return fmt.Errorf("aigate/postgres: commit %s: %w", r, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("aigate/postgres: commit: %w", err)
	}
	return nil
}

// Record returns all counters for the period.
func (l *Ledger) Record(ctx context.Context, tenantID string, period aigate.Period) (aigate.UsageRecord, error) {
	rows, err := l.pool.Query(ctx,
		fmt.Sprintf(`SELECT resource, amount FROM %s WHERE tenant_id = $1 AND period = $2`, l.usageTable()),
		tenantID, string(period),
	)
	if err != nil {
		return aigate.UsageRecord{}, fmt.Errorf("aigate/postgres: record: %w", err)
	}
	defer rows.Close()

	counters := make(map[quota.Resource]int64)
	for rows.Next() {
		var resource string
		var amount int64
		if err := rows.Scan(&resource, &amount); err != nil {
			return aigate.UsageRecord{}, fmt.Errorf("aigate/postgres: record scan: %w", err)
		}
		counters[quota.Resource(resource)] = amount
	}
	if err := rows.Err(); err != nil {
		return aigate.UsageRecord{}, fmt.Errorf("aigate/postgres: record: %w", err)
	}

	return aigate.UsageRecord{TenantID: tenantID, Period: period, Counters: counters}, nil
}

// Purge deletes periods lexically before the given one and returns the
// number of rows removed.
func (l *Ledger) Purge(ctx context.Context, before aigate.Period) (int64, error) {
	tag, err := l.pool.Exec(ctx,
		fmt.Sprintf(`DELETE FROM %s WHERE period < $1`, l.usageTable()),
		string(before),
	)
	if err != nil {
		return 0, fmt.Errorf("aigate/postgres: purge: %w", err)
	}
	return tag.RowsAffected(), nil
}
