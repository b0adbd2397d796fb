package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Balances travel as text so NUMERIC values keep their exact scale.
const walletSelect = `SELECT id, driver_id, balance::text, currency, created_at, updated_at FROM wallets`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var balance string
	if err := row.Scan(&w.ID, &w.DriverID, &balance, &w.Currency, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	b, err := domain.ParseBalance(balance)
	if err != nil {
		return nil, err
	}
	w.Balance = b
	return w, nil
}

// Create inserts a new wallet. A second wallet for the same driver violates
// the driver_id unique constraint.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, driver_id, balance, currency, created_at, updated_at)
		VALUES ($1, $2, $3::numeric, $4, $5, $6)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.DriverID, domain.FormatAmount(w.Balance), w.Currency, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByDriverID fetches a driver's wallet (without locking).
func (r *WalletRepo) GetByDriverID(ctx context.Context, driverID uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, walletSelect+` WHERE driver_id = $1`, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by driver: %w", err)
	}
	return w, nil
}

// GetByDriverIDForUpdate fetches a driver's wallet and locks the row until
// tx ends. Every code path that writes a movement goes through here first.
func (r *WalletRepo) GetByDriverIDForUpdate(ctx context.Context, tx pgx.Tx, driverID uuid.UUID) (*domain.Wallet, error) {
	if err := requireTx(tx, "lock wallet"); err != nil {
		return nil, err
	}
	w, err := scanWallet(tx.QueryRow(ctx, walletSelect+` WHERE driver_id = $1 FOR UPDATE`, driverID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update by driver: %w", err)
	}
	return w, nil
}

// ApplyDelta adds amount to the balance and returns the balances on either
// side of the update.
func (r *WalletRepo) ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (*domain.BalanceChange, error) {
	if err := requireTx(tx, "apply wallet delta"); err != nil {
		return nil, err
	}
	query := `UPDATE wallets SET balance = balance + $1::numeric, updated_at = NOW()
		WHERE id = $2
		RETURNING (balance - $1::numeric)::text, balance::text`

	var prev, next string
	err := tx.QueryRow(ctx, query, domain.FormatAmount(amount), walletID).Scan(&prev, &next)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("wallet not found: %s", walletID)
		}
		return nil, fmt.Errorf("apply wallet delta: %w", err)
	}

	change := &domain.BalanceChange{}
	if change.PreviousBalance, err = domain.ParseBalance(prev); err != nil {
		return nil, err
	}
	if change.NewBalance, err = domain.ParseBalance(next); err != nil {
		return nil, err
	}
	return change, nil
}

// List returns wallets in creation order.
func (r *WalletRepo) List(ctx context.Context, limit, offset int) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, walletSelect+` ORDER BY created_at, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		w, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wallet row: %w", err)
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet rows: %w", err)
	}
	return wallets, nil
}
