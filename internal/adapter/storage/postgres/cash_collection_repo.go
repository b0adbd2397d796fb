package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const cashCollectionSelect = `SELECT id, transaction_id, driver_id, collection_point_id, collected_by_user_id,
		status, amount::text, currency, failure_reason, created_at, updated_at, completed_at
		FROM cash_collection_records`

// CashCollectionRepo implements ports.CashCollectionRepository.
type CashCollectionRepo struct {
	pool Pool
}

// NewCashCollectionRepo creates a new CashCollectionRepo.
func NewCashCollectionRepo(pool Pool) *CashCollectionRepo {
	return &CashCollectionRepo{pool: pool}
}

func scanCashCollection(row pgx.Row) (*domain.CashCollectionRecord, error) {
	rec := &domain.CashCollectionRecord{}
	var status, amount string
	err := row.Scan(&rec.ID, &rec.TransactionID, &rec.DriverID, &rec.CollectionPointID, &rec.CollectedByUserID,
		&status, &amount, &rec.Currency, &rec.FailureReason, &rec.CreatedAt, &rec.UpdatedAt, &rec.CompletedAt)
	if err != nil {
		return nil, err
	}
	rec.Status = domain.CCRStatus(status)
	if rec.Amount, err = domain.ParseBalance(amount); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a cash collection record inside tx. A second pending
// record for the same driver, point, amount and currency violates
// uq_ccr_pending_natural_key.
func (r *CashCollectionRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.CashCollectionRecord) error {
	if err := requireTx(tx, "create cash collection record"); err != nil {
		return err
	}
	query := `INSERT INTO cash_collection_records
		(id, transaction_id, driver_id, collection_point_id, collected_by_user_id,
		 status, amount, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10)`

	_, err := tx.Exec(ctx, query,
		rec.ID, rec.TransactionID, rec.DriverID, rec.CollectionPointID, rec.CollectedByUserID,
		string(rec.Status), domain.FormatAmount(rec.Amount), rec.Currency, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert cash collection record: %w", err)
	}
	return nil
}

// GetByID fetches a cash collection record.
func (r *CashCollectionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.CashCollectionRecord, error) {
	rec, err := scanCashCollection(r.pool.QueryRow(ctx, cashCollectionSelect+` WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cash collection record: %w", err)
	}
	return rec, nil
}

// GetByIDForUpdate fetches and locks a cash collection record.
func (r *CashCollectionRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashCollectionRecord, error) {
	if err := requireTx(tx, "lock cash collection record"); err != nil {
		return nil, err
	}
	rec, err := scanCashCollection(tx.QueryRow(ctx, cashCollectionSelect+` WHERE id = $1 FOR UPDATE`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get cash collection record for update: %w", err)
	}
	return rec, nil
}

// FindPending returns the pending record matching key, if any.
func (r *CashCollectionRepo) FindPending(ctx context.Context, tx pgx.Tx, key ports.CashCollectionKey) (*domain.CashCollectionRecord, error) {
	if err := requireTx(tx, "find pending cash collection record"); err != nil {
		return nil, err
	}
	query := cashCollectionSelect + ` WHERE driver_id = $1 AND collection_point_id = $2
		AND amount = $3::numeric AND currency = $4 AND status = 'PENDING'`

	rec, err := scanCashCollection(tx.QueryRow(ctx, query,
		key.DriverID, key.CollectionPointID, domain.FormatAmount(key.Amount), key.Currency))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find pending cash collection record: %w", err)
	}
	return rec, nil
}

// UpdateStatus performs a compare-and-set on the status column. COMPLETED
// stamps completed_at; reason is stored when non-nil.
func (r *CashCollectionRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.CCRStatus, reason *string) error {
	if err := requireTx(tx, "update cash collection status"); err != nil {
		return err
	}
	query := `UPDATE cash_collection_records
		SET status = $1,
		    failure_reason = COALESCE($2, failure_reason),
		    completed_at = CASE WHEN $1 = 'COMPLETED' THEN NOW() ELSE completed_at END,
		    updated_at = NOW()
		WHERE id = $3 AND status = $4`

	tag, err := tx.Exec(ctx, query, string(to), reason, id, string(from))
	if err != nil {
		return fmt.Errorf("update cash collection status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("cash collection record %s: %w", id, domain.ErrStaleStatus)
	}
	return nil
}
