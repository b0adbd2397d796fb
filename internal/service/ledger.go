package service

import (
	"context"
	"fmt"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Ledger applies a signed amount to a locked wallet and records the
// matching movement in the same transaction.
type Ledger struct {
	wallets   ports.WalletRepository
	movements ports.MovementRepository
}

func NewLedger(wallets ports.WalletRepository, movements ports.MovementRepository) *Ledger {
	return &Ledger{wallets: wallets, movements: movements}
}

// Apply must be called with wallet read through GetByDriverIDForUpdate on
// the same tx. On success wallet.Balance holds the new balance.
func (l *Ledger) Apply(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet, amount decimal.Decimal, transactionID *uuid.UUID, note string) (*domain.Movement, error) {
	if tx == nil {
		return nil, apperror.ErrInvariantViolation("ledger mutation attempted outside a transaction")
	}
	if wallet == nil {
		return nil, apperror.ErrInvariantViolation("ledger mutation without a locked wallet")
	}
	if amount.IsZero() || !amount.Equal(amount.Round(domain.AmountScale)) {
		return nil, apperror.ErrInvariantViolation(fmt.Sprintf("ledger amount %s is not a non-zero cent value", amount))
	}

	change, err := l.wallets.ApplyDelta(ctx, tx, wallet.ID, amount)
	if err != nil {
		return nil, storageError("apply wallet delta", err)
	}
	if !change.PreviousBalance.Equal(wallet.Balance) {
		return nil, apperror.ErrInvariantViolation(fmt.Sprintf(
			"wallet %s balance moved under lock: read %s, updated from %s",
			wallet.ID, domain.FormatAmount(wallet.Balance), domain.FormatAmount(change.PreviousBalance)))
	}
	if !change.PreviousBalance.Add(amount).Equal(change.NewBalance) {
		return nil, apperror.ErrInvariantViolation(fmt.Sprintf(
			"wallet %s: %s + %s != %s", wallet.ID,
			domain.FormatAmount(change.PreviousBalance), domain.FormatAmount(amount), domain.FormatAmount(change.NewBalance)))
	}

	now := time.Now().UTC()
	movement := &domain.Movement{
		ID:              uuid.New(),
		WalletID:        wallet.ID,
		Amount:          amount,
		PreviousBalance: change.PreviousBalance,
		NewBalance:      change.NewBalance,
		TransactionID:   transactionID,
		Note:            note,
		CreatedAt:       now,
	}
	if err := l.movements.Create(ctx, tx, movement); err != nil {
		return nil, storageError("record movement", err)
	}

	wallet.Balance = change.NewBalance
	wallet.UpdatedAt = now
	return movement, nil
}

// stampConfirmer records who confirmed the cash on the settling transaction.
// A nil confirmer leaves the metadata alone.
func stampConfirmer(ctx context.Context, transactions ports.MoneyTransactionRepository, tx pgx.Tx, txn *domain.MoneyTransaction, confirmer *uuid.UUID) error {
	if confirmer == nil {
		return nil
	}
	values := map[string]string{domain.MetadataConfirmedBy: confirmer.String()}
	if err := transactions.MergeMetadata(ctx, tx, txn.ID, values); err != nil {
		return storageError("record confirmer", err)
	}
	if txn.Metadata == nil {
		txn.Metadata = make(map[string]string, len(values))
	}
	for k, v := range values {
		txn.Metadata[k] = v
	}
	return nil
}
