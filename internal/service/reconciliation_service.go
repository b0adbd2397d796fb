package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/internal/observability"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// reconcileAttempts bounds how often a wallet is re-read while settlements
// keep landing on it.
const reconcileAttempts = 3

// ReconciliationServiceImpl folds each wallet's movement chain and compares
// it with the stored balance. It only reads; mismatches are reported, never
// repaired.
type ReconciliationServiceImpl struct {
	wallets   ports.WalletRepository
	movements ports.MovementRepository
	batchSize int
	log       zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(wallets ports.WalletRepository, movements ports.MovementRepository, batchSize int, log zerolog.Logger) *ReconciliationServiceImpl {
	if batchSize <= 0 {
		batchSize = 200
	}
	return &ReconciliationServiceImpl{
		wallets:   wallets,
		movements: movements,
		batchSize: batchSize,
		log:       log,
	}
}

// ReconcileDriver checks a single driver's wallet on demand.
func (s *ReconciliationServiceImpl) ReconcileDriver(ctx context.Context, driverID uuid.UUID) (*ports.ReconciliationReport, error) {
	wallet, err := s.wallets.GetByDriverID(ctx, driverID)
	if err != nil {
		return nil, storageError("load wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return s.reconcileWallet(ctx, logger.FromContext(ctx, s.log), wallet)
}

// Run checks every wallet in batches. It fails only when storage does; a
// mismatching wallet is logged and counted.
func (s *ReconciliationServiceImpl) Run(ctx context.Context) error {
	started := time.Now()
	log := logger.FromContext(ctx, s.log)
	var checked, mismatched int

	for offset := 0; ; offset += s.batchSize {
		if err := ctx.Err(); err != nil {
			return err
		}
		wallets, err := s.wallets.List(ctx, s.batchSize, offset)
		if err != nil {
			return fmt.Errorf("list wallets at offset %d: %w", offset, err)
		}
		for i := range wallets {
			report, err := s.reconcileWallet(ctx, log, &wallets[i])
			if apperror.IsKind(err, apperror.KindTransient) {
				log.Warn().Err(err).Str("wallet_id", wallets[i].ID.String()).Msg("wallet skipped, still settling")
				continue
			}
			if err != nil {
				return err
			}
			checked++
			if !report.Consistent {
				mismatched++
			}
		}
		if len(wallets) < s.batchSize {
			break
		}
	}

	log.Info().
		Int("wallets", checked).
		Int("mismatched", mismatched).
		Dur("took", time.Since(started)).
		Msg("reconciliation run complete")
	return nil
}

// stableChain reads the movement chain and then the wallet again. The pair is
// only used once the wallet read after the chain matches the one before it;
// a settlement that committed in between changes the balance and forces
// another round with the fresher wallet.
func (s *ReconciliationServiceImpl) stableChain(ctx context.Context, wallet *domain.Wallet) (*domain.Wallet, []domain.Movement, error) {
	for attempt := 1; ; attempt++ {
		chain, err := s.movements.ListChain(ctx, wallet.ID)
		if err != nil {
			return nil, nil, storageError("load movement chain", err)
		}
		fresh, err := s.wallets.GetByDriverID(ctx, wallet.DriverID)
		if err != nil {
			return nil, nil, storageError("reload wallet", err)
		}
		if fresh == nil {
			return nil, nil, apperror.ErrNotFound("wallet")
		}
		if fresh.Balance.Equal(wallet.Balance) && fresh.UpdatedAt.Equal(wallet.UpdatedAt) {
			return fresh, chain, nil
		}
		if attempt == reconcileAttempts {
			return nil, nil, apperror.ErrTransient(fmt.Errorf("wallet %s changed on every read", wallet.ID))
		}
		wallet = fresh
	}
}

func (s *ReconciliationServiceImpl) reconcileWallet(ctx context.Context, log *zerolog.Logger, wallet *domain.Wallet) (*ports.ReconciliationReport, error) {
	wallet, chain, err := s.stableChain(ctx, wallet)
	if err != nil {
		return nil, err
	}

	report := &ports.ReconciliationReport{
		WalletID:      wallet.ID,
		DriverID:      wallet.DriverID,
		Currency:      wallet.Currency,
		StoredBalance: wallet.Balance,
		LedgerBalance: domain.LedgerBalance(chain),
		MovementCount: len(chain),
		Consistent:    true,
		CheckedAt:     time.Now().UTC(),
	}
	if n := len(chain); n > 0 {
		last := chain[n-1].ID
		report.LastMovementID = &last
	}

	if err := domain.VerifyMovementChain(wallet.Balance, chain); err != nil {
		var chainErr *domain.ChainError
		if !errors.As(err, &chainErr) {
			return nil, apperror.InternalError(err)
		}
		report.Consistent = false
		report.Discrepancy = chainErr.Error()
		observability.IncrementLedgerMismatch(wallet.Currency)
		log.Error().
			Str("wallet_id", wallet.ID.String()).
			Str("driver_id", wallet.DriverID.String()).
			Str("stored_balance", domain.FormatAmount(wallet.Balance)).
			Str("ledger_balance", domain.FormatAmount(report.LedgerBalance)).
			Str("discrepancy", report.Discrepancy).
			Msg("wallet balance diverges from movement ledger")
	}
	return report, nil
}
