package service

import (
	"context"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	wallets   ports.WalletRepository
	movements ports.MovementRepository
	log       zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(wallets ports.WalletRepository, movements ports.MovementRepository, log zerolog.Logger) *WalletServiceImpl {
	return &WalletServiceImpl{wallets: wallets, movements: movements, log: log}
}

// OpenWallet creates a zero-balance wallet for the driver. It reports false
// when the wallet already existed in the same currency.
func (s *WalletServiceImpl) OpenWallet(ctx context.Context, driverID uuid.UUID, currency string) (*domain.Wallet, bool, error) {
	code, err := domain.NormalizeCurrency(currency)
	if err != nil {
		return nil, false, apperror.Validation(err.Error())
	}

	existing, err := s.wallets.GetByDriverID(ctx, driverID)
	if err != nil {
		return nil, false, storageError("load wallet", err)
	}
	if existing != nil {
		return existingWallet(existing, code)
	}

	now := time.Now().UTC()
	wallet := &domain.Wallet{
		ID:        uuid.New(),
		DriverID:  driverID,
		Balance:   decimal.Zero,
		Currency:  code,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.wallets.Create(ctx, wallet); err != nil {
		err = storageError("create wallet", err)
		if !apperror.IsKind(err, apperror.KindConflict) {
			return nil, false, err
		}
		winner, readErr := s.wallets.GetByDriverID(ctx, driverID)
		if readErr != nil || winner == nil {
			return nil, false, err
		}
		return existingWallet(winner, code)
	}

	logger.FromContext(ctx, s.log).Info().
		Str("driver_id", driverID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("currency", code).
		Msg("wallet opened")
	return wallet, true, nil
}

func existingWallet(w *domain.Wallet, currency string) (*domain.Wallet, bool, error) {
	if w.Currency != currency {
		return nil, false, apperror.ErrCurrencyMismatch(w.Currency, currency)
	}
	return w, false, nil
}

// GetWallet returns the driver's stored balance.
func (s *WalletServiceImpl) GetWallet(ctx context.Context, driverID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.wallets.GetByDriverID(ctx, driverID)
	if err != nil {
		return nil, storageError("load wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return wallet, nil
}

// ListMovements returns one page of the driver's statement, newest first.
func (s *WalletServiceImpl) ListMovements(ctx context.Context, driverID uuid.UUID, page, pageSize int) ([]domain.Movement, int64, error) {
	wallet, err := s.GetWallet(ctx, driverID)
	if err != nil {
		return nil, 0, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	movements, total, err := s.movements.ListByWallet(ctx, ports.MovementListParams{
		WalletID: wallet.ID,
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		return nil, 0, storageError("list movements", err)
	}
	return movements, total, nil
}
