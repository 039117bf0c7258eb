package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS pos_reconciliations (
	order_id    BIGINT PRIMARY KEY,
	branch_id   BIGINT NOT NULL,
	amount      NUMERIC(12,2) NOT NULL,
	method      TEXT NOT NULL,
	reason      TEXT NOT NULL DEFAULT '',
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	resolved_at TIMESTAMPTZ,
	resolved_by UUID
);
CREATE INDEX IF NOT EXISTS idx_pos_reconciliations_branch_open
	ON pos_reconciliations (branch_id) WHERE resolved_at IS NULL;
`

const entryColumns = `order_id, branch_id, amount::text, method, reason, created_at, resolved_at, resolved_by`

// PostgresStore keeps the ledger in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, verifies the connection, and creates the
// ledger table if it does not exist.
func NewPostgresStore(ctx context.Context, dbURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.refreshGauge(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Record(ctx context.Context, e Entry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO pos_reconciliations (order_id, branch_id, amount, method, reason, created_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)
		ON CONFLICT (order_id) DO NOTHING`,
		e.OrderID, e.BranchID, e.Amount.StringFixed(2), e.Method, e.Reason, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert reconciliation: %w", err)
	}
	return s.refreshGauge(ctx)
}

func (s *PostgresStore) List(ctx context.Context, branchID int64, includeResolved bool) ([]Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM pos_reconciliations WHERE branch_id = $1`
	if !includeResolved {
		query += ` AND resolved_at IS NULL`
	}
	query += ` ORDER BY created_at, order_id`

	rows, err := s.pool.Query(ctx, query, branchID)
	if err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	defer rows.Close()

	out := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list reconciliations: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Resolve(ctx context.Context, branchID, orderID int64, by uuid.UUID) (Entry, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Entry{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	e, err := scanEntry(tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM pos_reconciliations WHERE order_id = $1 AND branch_id = $2 FOR UPDATE`,
		orderID, branchID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, err
	}
	if !e.Open() {
		return e, ErrAlreadyResolved
	}

	e, err = scanEntry(tx.QueryRow(ctx, `
		UPDATE pos_reconciliations SET resolved_at = now(), resolved_by = $3
		WHERE order_id = $1 AND branch_id = $2
		RETURNING `+entryColumns,
		orderID, branchID, by,
	))
	if err != nil {
		return Entry{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Entry{}, fmt.Errorf("commit: %w", err)
	}
	return e, s.refreshGauge(ctx)
}

func (s *PostgresStore) refreshGauge(ctx context.Context) error {
	var n int
	if err := s.pool.QueryRow(ctx,
		`SELECT count(*) FROM pos_reconciliations WHERE resolved_at IS NULL`,
	).Scan(&n); err != nil {
		return fmt.Errorf("count open reconciliations: %w", err)
	}
	setOpenGauge(n)
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var (
		e      Entry
		amount string
	)
	err := row.Scan(&e.OrderID, &e.BranchID, &amount, &e.Method, &e.Reason,
		&e.CreatedAt, &e.ResolvedAt, &e.ResolvedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scan reconciliation: %w", err)
	}
	if e.Amount, err = decimal.NewFromString(amount); err != nil {
		return Entry{}, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return e, nil
}
