package ports

import (
	"context"
	"time"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService validates operator bearer tokens.
type TokenService interface {
	Generate(userID uuid.UUID, role string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   string
}

// IdempotencyCache is the Redis-layer replay cache (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// CommissionPolicy derives the commission charged to a driver for an order.
type CommissionPolicy interface {
	Calculate(order *domain.Order) (decimal.Decimal, error)
}

// --- Service Ports (Business Logic) ---

// TopupService settles cash handed in by drivers at collection points.
type TopupService interface {
	CreateCashTopupPending(ctx context.Context, req CreateTopupRequest) (*TopupResult, error)
	ConfirmCashTopup(ctx context.Context, req ConfirmTopupRequest) (*TopupConfirmation, error)
	FailCashTopup(ctx context.Context, req FailTopupRequest) (*TopupResult, error)
}

// CreateTopupRequest holds validated input for a pending cash topup.
type CreateTopupRequest struct {
	DriverID          uuid.UUID
	CollectionPointID uuid.UUID
	CollectedByUserID uuid.UUID
	Amount            decimal.Decimal
	Currency          string
}

// ConfirmTopupRequest identifies the CCR being confirmed.
type ConfirmTopupRequest struct {
	CCRID             uuid.UUID
	ConfirmedByUserID *uuid.UUID
}

// FailTopupRequest abandons a pending CCR.
type FailTopupRequest struct {
	CCRID  uuid.UUID
	Reason string
}

// TopupResult is a CCR with its paired money transaction.
type TopupResult struct {
	Record      *domain.CashCollectionRecord `json:"record"`
	Transaction *domain.MoneyTransaction     `json:"transaction"`
}

// TopupConfirmation is the settled outcome of a topup. AlreadyCompleted is
// set when the call replayed an earlier confirmation.
type TopupConfirmation struct {
	Record           *domain.CashCollectionRecord `json:"record"`
	Transaction      *domain.MoneyTransaction     `json:"transaction"`
	Movement         *domain.Movement             `json:"movement"`
	Balance          domain.BalanceChange         `json:"balance"`
	AlreadyCompleted bool                         `json:"-"`
}

// OrderService manages trip orders and their cash settlement.
type OrderService interface {
	CreateCashOrderOnTripClosure(ctx context.Context, req TripClosureRequest) (*OrderResult, error)
	ConfirmCashOrder(ctx context.Context, req ConfirmOrderRequest) (*OrderConfirmation, error)
	GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	UpdateOrder(ctx context.Context, req UpdateOrderRequest) (*domain.Order, error)
	DeleteOrder(ctx context.Context, id uuid.UUID) error
}

// TripClosureRequest holds validated trip-closure input.
type TripClosureRequest struct {
	TripID          string
	DriverID        uuid.UUID
	PassengerID     uuid.UUID
	RequestedAmount decimal.Decimal
	Currency        string
	PaymentType     string
}

// OrderResult reports whether the order was created by this call.
type OrderResult struct {
	Order   *domain.Order
	Created bool
}

// ConfirmOrderRequest identifies the order whose cash was received.
type ConfirmOrderRequest struct {
	OrderID           uuid.UUID
	ConfirmedByUserID *uuid.UUID
}

// OrderConfirmation is the settled outcome of a cash order. Movement is nil
// when the commission was zero. AlreadyPaid is set when the order was paid
// by an earlier call.
type OrderConfirmation struct {
	Order       *domain.Order            `json:"order"`
	Transaction *domain.MoneyTransaction `json:"transaction"`
	Movement    *domain.Movement         `json:"movement,omitempty"`
	Balance     domain.BalanceChange     `json:"balance"`
	AlreadyPaid bool                     `json:"-"`
}

// UpdateOrderRequest carries admin changes to a pending order. Nil fields
// are left untouched.
type UpdateOrderRequest struct {
	OrderID         uuid.UUID
	PassengerID     *uuid.UUID
	RequestedAmount *decimal.Decimal
}

// WalletService exposes wallet reads and wallet opening.
type WalletService interface {
	OpenWallet(ctx context.Context, driverID uuid.UUID, currency string) (*domain.Wallet, bool, error)
	GetWallet(ctx context.Context, driverID uuid.UUID) (*domain.Wallet, error)
	ListMovements(ctx context.Context, driverID uuid.UUID, page, pageSize int) ([]domain.Movement, int64, error)
}

// ReconciliationService compares stored balances with the movement ledger.
type ReconciliationService interface {
	ReconcileDriver(ctx context.Context, driverID uuid.UUID) (*ReconciliationReport, error)
	Run(ctx context.Context) error
}

// ReconciliationReport is the outcome of checking one wallet.
type ReconciliationReport struct {
	WalletID       uuid.UUID
	DriverID       uuid.UUID
	Currency       string
	StoredBalance  decimal.Decimal
	LedgerBalance  decimal.Decimal
	MovementCount  int
	Consistent     bool
	Discrepancy    string
	LastMovementID *uuid.UUID
	CheckedAt      time.Time
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}
