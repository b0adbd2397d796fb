package ports

import (
	"context"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Read methods return (nil, nil) when the row does not exist.
// Methods accepting pgx.Tx run inside the caller's transaction; the
// ForUpdate variants take a row lock held until commit or rollback.

// WalletRepository defines persistence operations for driver wallets.
type WalletRepository interface {
	Create(ctx context.Context, wallet *domain.Wallet) error
	GetByDriverID(ctx context.Context, driverID uuid.UUID) (*domain.Wallet, error)
	GetByDriverIDForUpdate(ctx context.Context, tx pgx.Tx, driverID uuid.UUID) (*domain.Wallet, error)
	// ApplyDelta adds amount to the wallet balance. The caller must already
	// hold the wallet row lock in tx.
	ApplyDelta(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (*domain.BalanceChange, error)
	List(ctx context.Context, limit, offset int) ([]domain.Wallet, error)
}

// MovementRepository is the append-only movement ledger.
type MovementRepository interface {
	Create(ctx context.Context, tx pgx.Tx, movement *domain.Movement) error
	FindLastByWallet(ctx context.Context, walletID uuid.UUID) (*domain.Movement, error)
	FindByTransactionID(ctx context.Context, transactionID uuid.UUID) (*domain.Movement, error)
	// ListByWallet returns one page, newest first, and the total count.
	ListByWallet(ctx context.Context, params MovementListParams) ([]domain.Movement, int64, error)
	// ListChain returns every movement of the wallet, oldest first.
	ListChain(ctx context.Context, walletID uuid.UUID) ([]domain.Movement, error)
}

// MovementListParams holds pagination for a wallet statement.
type MovementListParams struct {
	WalletID uuid.UUID
	Page     int
	PageSize int
}

// MoneyTransactionRepository defines persistence for money transactions.
type MoneyTransactionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, transaction *domain.MoneyTransaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MoneyTransaction, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MoneyTransaction, error)
	// UpdateStatus moves the row from one status to another and fails with
	// domain.ErrStaleStatus when it is not in the from status.
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) error
	UpdateAmount(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error
	// MergeMetadata adds values to the stored metadata, overwriting keys
	// that already exist.
	MergeMetadata(ctx context.Context, tx pgx.Tx, id uuid.UUID, values map[string]string) error
}

// CashCollectionRepository defines persistence for cash collection records.
type CashCollectionRepository interface {
	Create(ctx context.Context, tx pgx.Tx, record *domain.CashCollectionRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CashCollectionRecord, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashCollectionRecord, error)
	FindPending(ctx context.Context, tx pgx.Tx, key CashCollectionKey) (*domain.CashCollectionRecord, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.CCRStatus, reason *string) error
}

// CashCollectionKey is the natural key of a pending topup.
type CashCollectionKey struct {
	DriverID          uuid.UUID
	CollectionPointID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
}

// CollectionPointRepository reads collection points.
type CollectionPointRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CollectionPoint, error)
}

// OrderRepository defines persistence for trip orders. Soft-deleted orders
// are invisible to every read.
type OrderRepository interface {
	Create(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error)
	GetByTripID(ctx context.Context, tripID string) (*domain.Order, error)
	MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
	UpdateTerms(ctx context.Context, tx pgx.Tx, order *domain.Order) error
	SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// AuditRepository persists audit entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
