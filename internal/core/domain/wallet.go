package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Wallet holds the settled balance of a single driver.
// Balance changes only together with a Movement in the same DB transaction.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	DriverID  uuid.UUID       `json:"driverId"`
	Balance   decimal.Decimal `json:"balance"`
	Currency  string          `json:"currency"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// BalanceChange is the before/after pair returned when a delta is applied.
type BalanceChange struct {
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
}

// Movement is an immutable ledger entry documenting one balance change.
type Movement struct {
	ID              uuid.UUID       `json:"id"`
	Sequence        int64           `json:"sequence"`
	WalletID        uuid.UUID       `json:"walletId"`
	Amount          decimal.Decimal `json:"amount"`
	PreviousBalance decimal.Decimal `json:"previousBalance"`
	NewBalance      decimal.Decimal `json:"newBalance"`
	TransactionID   *uuid.UUID      `json:"transactionId,omitempty"`
	Note            string          `json:"note,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
}

// Consistent reports whether NewBalance = PreviousBalance + Amount.
func (m *Movement) Consistent() bool {
	return m.PreviousBalance.Add(m.Amount).Equal(m.NewBalance)
}

// ChainError describes the first point where a wallet's movement chain
// stops reducing to its stored balance.
type ChainError struct {
	MovementID *uuid.UUID
	Sequence   int64
	Expected   decimal.Decimal
	Actual     decimal.Decimal
	Reason     string
}

func (e *ChainError) Error() string {
	if e.MovementID != nil {
		return fmt.Sprintf("movement %s (seq %d): %s: expected %s, got %s",
			e.MovementID, e.Sequence, e.Reason, FormatAmount(e.Expected), FormatAmount(e.Actual))
	}
	return fmt.Sprintf("%s: expected %s, got %s", e.Reason, FormatAmount(e.Expected), FormatAmount(e.Actual))
}

// VerifyMovementChain checks that movements, ordered oldest first, form a
// gapless chain starting at zero and ending at balance.
func VerifyMovementChain(balance decimal.Decimal, movements []Movement) error {
	expected := decimal.Zero
	for i := range movements {
		m := movements[i]
		if !m.PreviousBalance.Equal(expected) {
			return &ChainError{
				MovementID: &m.ID, Sequence: m.Sequence,
				Expected: expected, Actual: m.PreviousBalance,
				Reason: "previous balance does not continue the chain",
			}
		}
		if !m.Consistent() {
			return &ChainError{
				MovementID: &m.ID, Sequence: m.Sequence,
				Expected: m.PreviousBalance.Add(m.Amount), Actual: m.NewBalance,
				Reason: "new balance is not previous balance plus amount",
			}
		}
		expected = m.NewBalance
	}
	if !expected.Equal(balance) {
		return &ChainError{Expected: expected, Actual: balance, Reason: "stored balance differs from ledger"}
	}
	return nil
}

// LedgerBalance folds the movement amounts.
func LedgerBalance(movements []Movement) decimal.Decimal {
	sum := decimal.Zero
	for _, m := range movements {
		sum = sum.Add(m.Amount)
	}
	return sum
}
