package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const moneyTransactionSelect = `SELECT id, driver_id, type, status, amount::text, currency, metadata,
		created_at, processed_at FROM money_transactions`

// MoneyTransactionRepo implements ports.MoneyTransactionRepository.
type MoneyTransactionRepo struct {
	pool Pool
}

// NewMoneyTransactionRepo creates a new MoneyTransactionRepo.
func NewMoneyTransactionRepo(pool Pool) *MoneyTransactionRepo {
	return &MoneyTransactionRepo{pool: pool}
}

func scanMoneyTransaction(row pgx.Row) (*domain.MoneyTransaction, error) {
	t := &domain.MoneyTransaction{}
	var txType, status, amount string
	var metadata []byte
	err := row.Scan(&t.ID, &t.DriverID, &txType, &status, &amount, &t.Currency, &metadata,
		&t.CreatedAt, &t.ProcessedAt)
	if err != nil {
		return nil, err
	}
	t.Type = domain.TransactionType(txType)
	t.Status = domain.TransactionStatus(status)
	if t.Amount, err = domain.ParseBalance(amount); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &t.Metadata); err != nil {
			return nil, fmt.Errorf("decode transaction metadata: %w", err)
		}
	}
	return t, nil
}

// Create inserts a money transaction inside tx.
func (r *MoneyTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.MoneyTransaction) error {
	if err := requireTx(tx, "create money transaction"); err != nil {
		return err
	}
	metadata, err := json.Marshal(t.Metadata)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}

	query := `INSERT INTO money_transactions
		(id, driver_id, type, status, amount, currency, metadata, created_at, processed_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9)`

	_, err = tx.Exec(ctx, query,
		t.ID, t.DriverID, string(t.Type), string(t.Status), domain.FormatAmount(t.Amount),
		t.Currency, metadata, t.CreatedAt, t.ProcessedAt,
	)
	if err != nil {
		return fmt.Errorf("insert money transaction: %w", err)
	}
	return nil
}

// GetByID fetches a money transaction.
func (r *MoneyTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.MoneyTransaction, error) {
	t, err := scanMoneyTransaction(r.pool.QueryRow(ctx, moneyTransactionSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get money transaction: %w", err)
	}
	return t, nil
}

// GetByIDForUpdate fetches and locks a money transaction.
func (r *MoneyTransactionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MoneyTransaction, error) {
	if err := requireTx(tx, "lock money transaction"); err != nil {
		return nil, err
	}
	t, err := scanMoneyTransaction(tx.QueryRow(ctx, moneyTransactionSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get money transaction for update: %w", err)
	}
	return t, nil
}

// UpdateStatus performs a compare-and-set on the status column. Moving to
// PROCESSED stamps processed_at.
func (r *MoneyTransactionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) error {
	if err := requireTx(tx, "update money transaction status"); err != nil {
		return err
	}
	query := `UPDATE money_transactions
		SET status = $1,
		    processed_at = CASE WHEN $1 = 'PROCESSED' THEN NOW() ELSE processed_at END
		WHERE id = $2 AND status = $3`

	tag, err := tx.Exec(ctx, query, string(to), id, string(from))
	if err != nil {
		return fmt.Errorf("update money transaction status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("money transaction %s: %w", id, domain.ErrStaleStatus)
	}
	return nil
}

// MergeMetadata folds values into the JSONB metadata column.
func (r *MoneyTransactionRepo) MergeMetadata(ctx context.Context, tx pgx.Tx, id uuid.UUID, values map[string]string) error {
	if err := requireTx(tx, "merge money transaction metadata"); err != nil {
		return err
	}
	patch, err := json.Marshal(values)
	if err != nil {
		return fmt.Errorf("encode transaction metadata: %w", err)
	}
	tag, err := tx.Exec(ctx,
		`UPDATE money_transactions SET metadata = COALESCE(metadata, '{}'::jsonb) || $1::jsonb WHERE id = $2`,
		patch, id)
	if err != nil {
		return fmt.Errorf("merge money transaction metadata: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("money transaction %s: %w", id, pgx.ErrNoRows)
	}
	return nil
}

// UpdateAmount rewrites the amount of a pending transaction.
func (r *MoneyTransactionRepo) UpdateAmount(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	if err := requireTx(tx, "update money transaction amount"); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE money_transactions SET amount = $1::numeric WHERE id = $2 AND status = 'PENDING'`,
		domain.FormatAmount(amount), id)
	if err != nil {
		return fmt.Errorf("update money transaction amount: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("money transaction %s: %w", id, domain.ErrStaleStatus)
	}
	return nil
}
