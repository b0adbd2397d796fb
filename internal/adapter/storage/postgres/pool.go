package postgres

import (
	"context"
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Pool is the subset of *pgxpool.Pool the repositories use. pgxmock's pool
// satisfies it, which is how the repositories are unit tested.
type Pool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// requireTx guards the write paths that are only valid inside a transaction.
func requireTx(tx pgx.Tx, op string) error {
	if tx == nil {
		return fmt.Errorf("%s: %w", op, domain.ErrNoTransaction)
	}
	return nil
}

// pageOffset converts a 1-based page into a row offset.
func pageOffset(page, pageSize int) int {
	if page < 1 {
		page = 1
	}
	return (page - 1) * pageSize
}
