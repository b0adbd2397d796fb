package service

import (
	"context"
	"strings"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/internal/observability"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	opCreateTopup  = "create_topup"
	opConfirmTopup = "confirm_topup"
	opFailTopup    = "fail_topup"

	topupMovementNote = "cash topup"
)

// TopupServiceImpl implements ports.TopupService.
type TopupServiceImpl struct {
	wallets      ports.WalletRepository
	movements    ports.MovementRepository
	transactions ports.MoneyTransactionRepository
	records      ports.CashCollectionRepository
	points       ports.CollectionPointRepository
	transactor   ports.DBTransactor
	ledger       *Ledger
	confirmed    confirmationCache
	log          zerolog.Logger
}

// NewTopupService creates a new TopupServiceImpl.
func NewTopupService(
	wallets ports.WalletRepository,
	movements ports.MovementRepository,
	transactions ports.MoneyTransactionRepository,
	records ports.CashCollectionRepository,
	points ports.CollectionPointRepository,
	cache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *TopupServiceImpl {
	return &TopupServiceImpl{
		wallets:      wallets,
		movements:    movements,
		transactions: transactions,
		records:      records,
		points:       points,
		transactor:   transactor,
		ledger:       NewLedger(wallets, movements),
		confirmed:    confirmationCache{cache: cache, ttl: cacheTTL},
		log:          log,
	}
}

// CreateCashTopupPending records cash announced at a collection point as a
// PENDING money transaction plus a PENDING CCR. No balance changes here.
func (s *TopupServiceImpl) CreateCashTopupPending(ctx context.Context, req ports.CreateTopupRequest) (_ *ports.TopupResult, err error) {
	log := logger.FromContext(ctx, s.log).With().
		Str("driver_id", req.DriverID.String()).
		Str("collection_point_id", req.CollectionPointID.String()).
		Logger()
	defer func() { err = finish(&log, opCreateTopup, err) }()

	if err := domain.ValidateAmount(req.Amount); err != nil {
		return nil, apperror.ErrInvalidAmount()
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	point, err := s.points.GetByID(ctx, req.CollectionPointID)
	if err != nil {
		return nil, storageError("load collection point", err)
	}
	if point == nil {
		return nil, apperror.ErrNotFound("collection point")
	}
	if !point.Active {
		return nil, apperror.ErrInvalidState("collection point is not active")
	}

	wallet, err := s.wallets.GetByDriverID(ctx, req.DriverID)
	if err != nil {
		return nil, storageError("load wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.Currency != currency {
		return nil, apperror.ErrCurrencyMismatch(wallet.Currency, currency)
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	existing, err := s.records.FindPending(ctx, dbTx, ports.CashCollectionKey{
		DriverID:          req.DriverID,
		CollectionPointID: req.CollectionPointID,
		Amount:            req.Amount,
		Currency:          currency,
	})
	if err != nil {
		return nil, storageError("find pending topup", err)
	}
	if existing != nil {
		return nil, apperror.ErrConflict("a pending topup for this driver, collection point, amount and currency already exists")
	}

	now := time.Now().UTC()
	recordID := uuid.New()
	txn := &domain.MoneyTransaction{
		ID:       uuid.New(),
		DriverID: req.DriverID,
		Type:     domain.TransactionTypeWalletTopup,
		Status:   domain.TransactionStatusPending,
		Amount:   req.Amount,
		Currency: currency,
		Metadata: map[string]string{
			"cashCollectionRecordId": recordID.String(),
			"collectionPointId":      req.CollectionPointID.String(),
			"collectedByUserId":      req.CollectedByUserID.String(),
		},
		CreatedAt: now,
	}
	record := &domain.CashCollectionRecord{
		ID:                recordID,
		TransactionID:     txn.ID,
		DriverID:          req.DriverID,
		CollectionPointID: req.CollectionPointID,
		CollectedByUserID: req.CollectedByUserID,
		Status:            domain.CCRStatusPending,
		Amount:            req.Amount,
		Currency:          currency,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if err := s.transactions.Create(ctx, dbTx, txn); err != nil {
		return nil, storageError("create topup transaction", err)
	}
	if err := s.records.Create(ctx, dbTx, record); err != nil {
		return nil, storageError("create cash collection record", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit topup", err)
	}

	log.Info().
		Str("ccr_id", record.ID.String()).
		Str("tx_id", txn.ID.String()).
		Str("amount", domain.FormatAmount(record.Amount)).
		Msg("cash topup pending")

	return &ports.TopupResult{Record: record, Transaction: txn}, nil
}

// ConfirmCashTopup settles a pending topup: the transaction becomes
// PROCESSED, the CCR COMPLETED and the wallet is credited, all in one DB
// transaction. Confirming a COMPLETED CCR replays the stored result.
func (s *TopupServiceImpl) ConfirmCashTopup(ctx context.Context, req ports.ConfirmTopupRequest) (_ *ports.TopupConfirmation, err error) {
	log := logger.FromContext(ctx, s.log).With().Str("ccr_id", req.CCRID.String()).Logger()
	defer func() { err = finish(&log, opConfirmTopup, err) }()

	key := domain.BuildTopupConfirmKey(req.CCRID)
	var cached ports.TopupConfirmation
	if s.confirmed.load(ctx, &log, key, &cached) && cached.Record != nil {
		cached.AlreadyCompleted = true
		observability.IncrementReplay(opConfirmTopup, "cache")
		return &cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	record, err := s.records.GetByIDForUpdate(ctx, dbTx, req.CCRID)
	if err != nil {
		return nil, storageError("lock cash collection record", err)
	}
	if record == nil {
		return nil, apperror.ErrNotFound("cash collection record")
	}

	switch record.Status {
	case domain.CCRStatusCompleted:
		result, err := s.replayTopup(ctx, record)
		if err != nil {
			return nil, err
		}
		observability.IncrementReplay(opConfirmTopup, "store")
		s.confirmed.store(ctx, &log, key, result)
		return result, nil
	case domain.CCRStatusFailed:
		return nil, apperror.ErrInvalidState("cash collection record has failed and cannot be confirmed")
	}

	txn, err := s.transactions.GetByIDForUpdate(ctx, dbTx, record.TransactionID)
	if err != nil {
		return nil, storageError("lock topup transaction", err)
	}
	if txn == nil {
		return nil, apperror.ErrInvariantViolation("cash collection record has no money transaction")
	}
	if !txn.Status.CanTransitionTo(domain.TransactionStatusProcessed) {
		return nil, apperror.ErrInvalidState("topup transaction is " + string(txn.Status))
	}

	wallet, err := s.wallets.GetByDriverIDForUpdate(ctx, dbTx, record.DriverID)
	if err != nil {
		return nil, storageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.Currency != record.Currency {
		return nil, apperror.ErrCurrencyMismatch(wallet.Currency, record.Currency)
	}

	if err := stampConfirmer(ctx, s.transactions, dbTx, txn, req.ConfirmedByUserID); err != nil {
		return nil, err
	}
	if err := s.transactions.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusProcessed); err != nil {
		return nil, storageError("mark topup transaction processed", err)
	}
	if err := s.records.UpdateStatus(ctx, dbTx, record.ID, domain.CCRStatusPending, domain.CCRStatusCompleted, nil); err != nil {
		return nil, storageError("complete cash collection record", err)
	}
	movement, err := s.ledger.Apply(ctx, dbTx, wallet, txn.LedgerDelta(), &txn.ID, topupMovementNote)
	if err != nil {
		return nil, err
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit topup confirmation", err)
	}

	now := time.Now().UTC()
	txn.Status = domain.TransactionStatusProcessed
	txn.ProcessedAt = &now
	record.Status = domain.CCRStatusCompleted
	record.CompletedAt = &now
	record.UpdatedAt = now

	result := &ports.TopupConfirmation{
		Record:      record,
		Transaction: txn,
		Movement:    movement,
		Balance:     domain.BalanceChange{PreviousBalance: movement.PreviousBalance, NewBalance: movement.NewBalance},
	}
	s.confirmed.store(ctx, &log, key, result)

	log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_id", wallet.ID.String()).
		Str("confirmed_by", txn.Metadata[domain.MetadataConfirmedBy]).
		Str("amount", domain.FormatAmount(movement.Amount)).
		Str("new_balance", domain.FormatAmount(movement.NewBalance)).
		Msg("cash topup confirmed")

	return result, nil
}

// FailCashTopup abandons a pending topup. Both records become FAILED and
// the wallet is not touched.
func (s *TopupServiceImpl) FailCashTopup(ctx context.Context, req ports.FailTopupRequest) (_ *ports.TopupResult, err error) {
	log := logger.FromContext(ctx, s.log).With().Str("ccr_id", req.CCRID.String()).Logger()
	defer func() { err = finish(&log, opFailTopup, err) }()

	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, apperror.Validation("reason is required")
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	record, err := s.records.GetByIDForUpdate(ctx, dbTx, req.CCRID)
	if err != nil {
		return nil, storageError("lock cash collection record", err)
	}
	if record == nil {
		return nil, apperror.ErrNotFound("cash collection record")
	}
	if !record.Status.CanTransitionTo(domain.CCRStatusFailed) {
		return nil, apperror.ErrInvalidState("cash collection record is " + string(record.Status))
	}

	txn, err := s.transactions.GetByIDForUpdate(ctx, dbTx, record.TransactionID)
	if err != nil {
		return nil, storageError("lock topup transaction", err)
	}
	if txn == nil {
		return nil, apperror.ErrInvariantViolation("cash collection record has no money transaction")
	}
	if !txn.Status.CanTransitionTo(domain.TransactionStatusFailed) {
		return nil, apperror.ErrInvalidState("topup transaction is " + string(txn.Status))
	}

	if err := s.transactions.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusFailed); err != nil {
		return nil, storageError("fail topup transaction", err)
	}
	if err := s.records.UpdateStatus(ctx, dbTx, record.ID, domain.CCRStatusPending, domain.CCRStatusFailed, &reason); err != nil {
		return nil, storageError("fail cash collection record", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit topup failure", err)
	}

	now := time.Now().UTC()
	txn.Status = domain.TransactionStatusFailed
	record.Status = domain.CCRStatusFailed
	record.FailureReason = &reason
	record.UpdatedAt = now

	log.Info().Str("reason", reason).Msg("cash topup failed")
	return &ports.TopupResult{Record: record, Transaction: txn}, nil
}

// replayTopup rebuilds the confirmation of an already COMPLETED record from
// the stored transaction and movement.
func (s *TopupServiceImpl) replayTopup(ctx context.Context, record *domain.CashCollectionRecord) (*ports.TopupConfirmation, error) {
	txn, err := s.transactions.GetByID(ctx, record.TransactionID)
	if err != nil {
		return nil, storageError("load topup transaction", err)
	}
	movement, err := s.movements.FindByTransactionID(ctx, record.TransactionID)
	if err != nil {
		return nil, storageError("load topup movement", err)
	}
	if txn == nil || movement == nil {
		return nil, apperror.ErrInvariantViolation("completed cash collection record has no settled transaction or movement")
	}
	return &ports.TopupConfirmation{
		Record:           record,
		Transaction:      txn,
		Movement:         movement,
		Balance:          domain.BalanceChange{PreviousBalance: movement.PreviousBalance, NewBalance: movement.NewBalance},
		AlreadyCompleted: true,
	}, nil
}
