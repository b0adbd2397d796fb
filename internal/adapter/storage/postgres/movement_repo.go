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

const movementSelect = `SELECT id, sequence, wallet_id, amount::text, previous_balance::text, new_balance::text,
		transaction_id, note, created_at FROM wallet_movements`

// MovementRepo implements ports.MovementRepository. The table is append-only:
// there is no update or delete path.
type MovementRepo struct {
	pool Pool
}

// NewMovementRepo creates a new MovementRepo.
func NewMovementRepo(pool Pool) *MovementRepo {
	return &MovementRepo{pool: pool}
}

func scanMovement(row pgx.Row) (*domain.Movement, error) {
	m := &domain.Movement{}
	var amount, prev, next string
	err := row.Scan(&m.ID, &m.Sequence, &m.WalletID, &amount, &prev, &next,
		&m.TransactionID, &m.Note, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	if m.Amount, err = domain.ParseBalance(amount); err != nil {
		return nil, err
	}
	if m.PreviousBalance, err = domain.ParseBalance(prev); err != nil {
		return nil, err
	}
	if m.NewBalance, err = domain.ParseBalance(next); err != nil {
		return nil, err
	}
	return m, nil
}

// Create appends a movement inside tx and fills in its sequence number.
func (r *MovementRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.Movement) error {
	if err := requireTx(tx, "record movement"); err != nil {
		return err
	}
	query := `INSERT INTO wallet_movements
		(id, wallet_id, amount, previous_balance, new_balance, transaction_id, note, created_at)
		VALUES ($1, $2, $3::numeric, $4::numeric, $5::numeric, $6, $7, $8)
		RETURNING sequence`

	err := tx.QueryRow(ctx, query,
		m.ID, m.WalletID,
		domain.FormatAmount(m.Amount), domain.FormatAmount(m.PreviousBalance), domain.FormatAmount(m.NewBalance),
		m.TransactionID, m.Note, m.CreatedAt,
	).Scan(&m.Sequence)
	if err != nil {
		return fmt.Errorf("insert movement: %w", err)
	}
	return nil
}

// FindLastByWallet returns the most recent movement of a wallet.
func (r *MovementRepo) FindLastByWallet(ctx context.Context, walletID uuid.UUID) (*domain.Movement, error) {
	m, err := scanMovement(r.pool.QueryRow(ctx,
		movementSelect+` WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT 1`, walletID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find last movement: %w", err)
	}
	return m, nil
}

// FindByTransactionID returns the movement a money transaction produced.
func (r *MovementRepo) FindByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Movement, error) {
	m, err := scanMovement(r.pool.QueryRow(ctx,
		movementSelect+` WHERE transaction_id = $1 ORDER BY sequence LIMIT 1`, transactionID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find movement by transaction: %w", err)
	}
	return m, nil
}

// ListByWallet returns a page of a wallet's statement, newest first.
func (r *MovementRepo) ListByWallet(ctx context.Context, params ports.MovementListParams) ([]domain.Movement, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_movements WHERE wallet_id = $1`, params.WalletID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count movements: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		movementSelect+` WHERE wallet_id = $1 ORDER BY sequence DESC LIMIT $2 OFFSET $3`,
		params.WalletID, params.PageSize, pageOffset(params.Page, params.PageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("list movements: %w", err)
	}
	movements, err := collectMovements(rows)
	if err != nil {
		return nil, 0, err
	}
	return movements, total, nil
}

// ListChain returns every movement of the wallet, oldest first.
func (r *MovementRepo) ListChain(ctx context.Context, walletID uuid.UUID) ([]domain.Movement, error) {
	rows, err := r.pool.Query(ctx, movementSelect+` WHERE wallet_id = $1 ORDER BY sequence`, walletID)
	if err != nil {
		return nil, fmt.Errorf("list movement chain: %w", err)
	}
	return collectMovements(rows)
}

func collectMovements(rows pgx.Rows) ([]domain.Movement, error) {
	defer rows.Close()

	var movements []domain.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement row: %w", err)
		}
		movements = append(movements, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate movement rows: %w", err)
	}
	return movements, nil
}
