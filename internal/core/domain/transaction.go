package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of financial intent.
type TransactionType string

const (
	TransactionTypeWalletTopup TransactionType = "WALLET_TOPUP"
	TransactionTypeCharge      TransactionType = "CHARGE"
	TransactionTypeCommission  TransactionType = "COMMISSION"
)

// TransactionStatus represents the lifecycle state of a money transaction.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusProcessed TransactionStatus = "PROCESSED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

var transactionTransitions = map[TransactionStatus][]TransactionStatus{
	TransactionStatusPending: {TransactionStatusProcessed, TransactionStatusFailed},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s TransactionStatus) CanTransitionTo(next TransactionStatus) bool {
	for _, allowed := range transactionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no transition leaves s.
func (s TransactionStatus) IsTerminal() bool {
	return len(transactionTransitions[s]) == 0
}

// MetadataConfirmedBy is the metadata key naming the operator who confirmed
// the cash behind a settled transaction.
const MetadataConfirmedBy = "confirmedByUserId"

// MoneyTransaction is a unit of financial intent, created before any
// ledger effect and settled at most once.
type MoneyTransaction struct {
	ID          uuid.UUID         `json:"id"`
	DriverID    uuid.UUID         `json:"driverId"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Amount      decimal.Decimal   `json:"amount"`
	Currency    string            `json:"currency"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
	ProcessedAt *time.Time        `json:"processedAt,omitempty"`
}

// LedgerDelta is the signed wallet effect of settling t: topups credit the
// driver, charges and commissions debit.
func (t *MoneyTransaction) LedgerDelta() decimal.Decimal {
	if t.Type == TransactionTypeWalletTopup {
		return t.Amount
	}
	return t.Amount.Neg()
}
