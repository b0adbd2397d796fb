package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/internal/observability"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	opCreateOrder  = "create_order"
	opConfirmOrder = "confirm_order"
	opUpdateOrder  = "update_order"
	opDeleteOrder  = "delete_order"
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orders       ports.OrderRepository
	wallets      ports.WalletRepository
	movements    ports.MovementRepository
	transactions ports.MoneyTransactionRepository
	commission   ports.CommissionPolicy
	transactor   ports.DBTransactor
	ledger       *Ledger
	confirmed    confirmationCache
	log          zerolog.Logger
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orders ports.OrderRepository,
	wallets ports.WalletRepository,
	movements ports.MovementRepository,
	transactions ports.MoneyTransactionRepository,
	commission ports.CommissionPolicy,
	cache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	cacheTTL time.Duration,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orders:       orders,
		wallets:      wallets,
		movements:    movements,
		transactions: transactions,
		commission:   commission,
		transactor:   transactor,
		ledger:       NewLedger(wallets, movements),
		confirmed:    confirmationCache{cache: cache, ttl: cacheTTL},
		log:          log,
	}
}

// CreateCashOrderOnTripClosure creates the order for a closed trip together
// with its PENDING commission transaction. Replaying the same trip with the
// same terms returns the existing order; different terms are a Conflict.
func (s *OrderServiceImpl) CreateCashOrderOnTripClosure(ctx context.Context, req ports.TripClosureRequest) (_ *ports.OrderResult, err error) {
	log := logger.FromContext(ctx, s.log).With().Str("trip_id", req.TripID).Logger()
	defer func() { err = finish(&log, opCreateOrder, err) }()

	terms, err := validateTripClosure(req)
	if err != nil {
		return nil, err
	}

	existing, err := s.orders.GetByTripID(ctx, req.TripID)
	if err != nil {
		return nil, storageError("load order by trip", err)
	}
	if existing != nil {
		return existingOrderResult(existing, terms)
	}

	now := time.Now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		TripID:          req.TripID,
		DriverID:        terms.DriverID,
		PassengerID:     terms.PassengerID,
		RequestedAmount: terms.RequestedAmount,
		PaymentType:     terms.PaymentType,
		Status:          domain.OrderStatusPending,
		Currency:        terms.Currency,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.CommissionAmount, err = s.commission.Calculate(order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("calculate commission: %w", err))
	}
	txn := &domain.MoneyTransaction{
		ID:        uuid.New(),
		DriverID:  order.DriverID,
		Type:      domain.TransactionTypeCommission,
		Status:    domain.TransactionStatusPending,
		Amount:    order.CommissionAmount,
		Currency:  order.Currency,
		Metadata:  map[string]string{"orderId": order.ID.String(), "tripId": order.TripID},
		CreatedAt: now,
	}
	order.TransactionID = &txn.ID

	if err := s.insertOrder(ctx, order, txn); err != nil {
		if !apperror.IsKind(err, apperror.KindConflict) {
			return nil, err
		}
		// Lost the insert race on the trip: compare against the winner.
		winner, readErr := s.orders.GetByTripID(ctx, req.TripID)
		if readErr != nil {
			return nil, storageError("reload order by trip", readErr)
		}
		if winner == nil {
			return nil, err
		}
		return existingOrderResult(winner, terms)
	}

	log.Info().
		Str("order_id", order.ID.String()).
		Str("requested_amount", domain.FormatAmount(order.RequestedAmount)).
		Str("commission", domain.FormatAmount(order.CommissionAmount)).
		Msg("cash order created")

	return &ports.OrderResult{Order: order, Created: true}, nil
}

func (s *OrderServiceImpl) insertOrder(ctx context.Context, order *domain.Order, txn *domain.MoneyTransaction) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.transactions.Create(ctx, dbTx, txn); err != nil {
		return storageError("create commission transaction", err)
	}
	if err := s.orders.Create(ctx, dbTx, order); err != nil {
		return storageError("create order", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storageError("commit order", err)
	}
	return nil
}

func existingOrderResult(existing *domain.Order, terms domain.OrderTerms) (*ports.OrderResult, error) {
	if !existing.SameTerms(terms) {
		return nil, apperror.ErrConflict("trip already has an order with different terms")
	}
	return &ports.OrderResult{Order: existing, Created: false}, nil
}

func validateTripClosure(req ports.TripClosureRequest) (domain.OrderTerms, error) {
	if strings.TrimSpace(req.TripID) == "" {
		return domain.OrderTerms{}, apperror.Validation("tripId is required")
	}
	if err := domain.ValidateAmount(req.RequestedAmount); err != nil {
		return domain.OrderTerms{}, apperror.ErrInvalidAmount()
	}
	currency, err := domain.NormalizeCurrency(req.Currency)
	if err != nil {
		return domain.OrderTerms{}, apperror.Validation(err.Error())
	}
	paymentType := strings.ToUpper(strings.TrimSpace(req.PaymentType))
	if paymentType == "" {
		paymentType = domain.PaymentTypeCash
	}
	if paymentType != domain.PaymentTypeCash {
		return domain.OrderTerms{}, apperror.Validation("only CASH orders are settled by this service")
	}
	return domain.OrderTerms{
		DriverID:        req.DriverID,
		PassengerID:     req.PassengerID,
		RequestedAmount: req.RequestedAmount,
		Currency:        currency,
		PaymentType:     paymentType,
	}, nil
}

// ConfirmCashOrder records that the driver collected the fare in cash: the
// commission is debited from the wallet, its transaction becomes PROCESSED
// and the order PAID. A PAID order is returned as is with AlreadyPaid set.
func (s *OrderServiceImpl) ConfirmCashOrder(ctx context.Context, req ports.ConfirmOrderRequest) (_ *ports.OrderConfirmation, err error) {
	log := logger.FromContext(ctx, s.log).With().Str("order_id", req.OrderID.String()).Logger()
	defer func() { err = finish(&log, opConfirmOrder, err) }()

	key := domain.BuildOrderConfirmKey(req.OrderID)
	var cached ports.OrderConfirmation
	if s.confirmed.load(ctx, &log, key, &cached) && cached.Order != nil {
		cached.AlreadyPaid = true
		observability.IncrementReplay(opConfirmOrder, "cache")
		return &cached, nil
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.orders.GetByIDForUpdate(ctx, dbTx, req.OrderID)
	if err != nil {
		return nil, storageError("lock order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.IsPaid() {
		result, err := s.replayOrder(ctx, order)
		if err != nil {
			return nil, err
		}
		observability.IncrementReplay(opConfirmOrder, "store")
		s.confirmed.store(ctx, &log, key, result)
		return result, nil
	}
	if order.Status != domain.OrderStatusPending {
		return nil, apperror.ErrInvalidState("order is " + string(order.Status))
	}
	if order.TransactionID == nil {
		return nil, apperror.ErrInvariantViolation("order has no commission transaction")
	}

	txn, err := s.transactions.GetByIDForUpdate(ctx, dbTx, *order.TransactionID)
	if err != nil {
		return nil, storageError("lock commission transaction", err)
	}
	if txn == nil {
		return nil, apperror.ErrInvariantViolation("order commission transaction is missing")
	}
	if !txn.Status.CanTransitionTo(domain.TransactionStatusProcessed) {
		return nil, apperror.ErrInvalidState("commission transaction is " + string(txn.Status))
	}

	wallet, err := s.wallets.GetByDriverIDForUpdate(ctx, dbTx, order.DriverID)
	if err != nil {
		return nil, storageError("lock wallet", err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if wallet.Currency != order.Currency {
		return nil, apperror.ErrCurrencyMismatch(wallet.Currency, order.Currency)
	}

	balance := domain.BalanceChange{PreviousBalance: wallet.Balance, NewBalance: wallet.Balance}
	var movement *domain.Movement
	if txn.Amount.IsPositive() {
		movement, err = s.ledger.Apply(ctx, dbTx, wallet, txn.LedgerDelta(), &txn.ID, "trip commission "+order.TripID)
		if err != nil {
			return nil, err
		}
		balance = domain.BalanceChange{PreviousBalance: movement.PreviousBalance, NewBalance: movement.NewBalance}
	}

	if err := stampConfirmer(ctx, s.transactions, dbTx, txn, req.ConfirmedByUserID); err != nil {
		return nil, err
	}
	if err := s.transactions.UpdateStatus(ctx, dbTx, txn.ID, domain.TransactionStatusPending, domain.TransactionStatusProcessed); err != nil {
		return nil, storageError("mark commission processed", err)
	}
	if err := s.orders.MarkPaid(ctx, dbTx, order.ID); err != nil {
		return nil, storageError("mark order paid", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit order confirmation", err)
	}

	now := time.Now().UTC()
	txn.Status = domain.TransactionStatusProcessed
	txn.ProcessedAt = &now
	order.Status = domain.OrderStatusPaid
	order.PaidAt = &now
	order.UpdatedAt = now

	result := &ports.OrderConfirmation{Order: order, Transaction: txn, Movement: movement, Balance: balance}
	s.confirmed.store(ctx, &log, key, result)

	log.Info().
		Str("wallet_id", wallet.ID.String()).
		Str("confirmed_by", txn.Metadata[domain.MetadataConfirmedBy]).
		Str("commission", domain.FormatAmount(txn.Amount)).
		Str("new_balance", domain.FormatAmount(balance.NewBalance)).
		Msg("cash order paid")

	return result, nil
}

// replayOrder rebuilds the confirmation of a PAID order from storage.
func (s *OrderServiceImpl) replayOrder(ctx context.Context, order *domain.Order) (*ports.OrderConfirmation, error) {
	result := &ports.OrderConfirmation{Order: order, AlreadyPaid: true}
	if order.TransactionID == nil {
		return nil, apperror.ErrInvariantViolation("paid order has no commission transaction")
	}

	txn, err := s.transactions.GetByID(ctx, *order.TransactionID)
	if err != nil {
		return nil, storageError("load commission transaction", err)
	}
	if txn == nil {
		return nil, apperror.ErrInvariantViolation("paid order commission transaction is missing")
	}
	result.Transaction = txn

	movement, err := s.movements.FindByTransactionID(ctx, txn.ID)
	if err != nil {
		return nil, storageError("load commission movement", err)
	}
	if movement != nil {
		result.Movement = movement
		result.Balance = domain.BalanceChange{PreviousBalance: movement.PreviousBalance, NewBalance: movement.NewBalance}
		return result, nil
	}
	if txn.Amount.IsPositive() {
		return nil, apperror.ErrInvariantViolation("paid order commission has no movement")
	}

	// Zero commission never touched the ledger; report the current balance.
	wallet, err := s.wallets.GetByDriverID(ctx, order.DriverID)
	if err != nil {
		return nil, storageError("load wallet", err)
	}
	if wallet != nil {
		result.Balance = domain.BalanceChange{PreviousBalance: wallet.Balance, NewBalance: wallet.Balance}
	}
	return result, nil
}

// GetOrder returns a live order.
func (s *OrderServiceImpl) GetOrder(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, storageError("load order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	return order, nil
}

// UpdateOrder changes the passenger or amount of a PENDING order and
// recomputes its commission.
func (s *OrderServiceImpl) UpdateOrder(ctx context.Context, req ports.UpdateOrderRequest) (_ *domain.Order, err error) {
	log := logger.FromContext(ctx, s.log).With().Str("order_id", req.OrderID.String()).Logger()
	defer func() { err = finish(&log, opUpdateOrder, err) }()

	if req.RequestedAmount != nil {
		if err := domain.ValidateAmount(*req.RequestedAmount); err != nil {
			return nil, apperror.ErrInvalidAmount()
		}
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.lockPendingOrder(ctx, dbTx, req.OrderID, "updated")
	if err != nil {
		return nil, err
	}

	if req.PassengerID != nil {
		order.PassengerID = *req.PassengerID
	}
	if req.RequestedAmount != nil {
		order.RequestedAmount = *req.RequestedAmount
	}
	if order.CommissionAmount, err = s.commission.Calculate(order); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("calculate commission: %w", err))
	}
	order.UpdatedAt = time.Now().UTC()

	if err := s.orders.UpdateTerms(ctx, dbTx, order); err != nil {
		return nil, storageError("update order", err)
	}
	if order.TransactionID != nil {
		if err := s.transactions.UpdateAmount(ctx, dbTx, *order.TransactionID, order.CommissionAmount); err != nil {
			return nil, storageError("update commission amount", err)
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return nil, storageError("commit order update", err)
	}

	log.Info().
		Str("requested_amount", domain.FormatAmount(order.RequestedAmount)).
		Str("commission", domain.FormatAmount(order.CommissionAmount)).
		Msg("order updated")
	return order, nil
}

// DeleteOrder soft-deletes a PENDING order and fails its commission
// transaction. The trip can then be closed again.
func (s *OrderServiceImpl) DeleteOrder(ctx context.Context, id uuid.UUID) (err error) {
	log := logger.FromContext(ctx, s.log).With().Str("order_id", id.String()).Logger()
	defer func() { err = finish(&log, opDeleteOrder, err) }()

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return beginError(err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	order, err := s.lockPendingOrder(ctx, dbTx, id, "deleted")
	if err != nil {
		return err
	}
	if err := s.orders.SoftDelete(ctx, dbTx, order.ID); err != nil {
		return storageError("delete order", err)
	}
	if order.TransactionID != nil {
		err := s.transactions.UpdateStatus(ctx, dbTx, *order.TransactionID,
			domain.TransactionStatusPending, domain.TransactionStatusFailed)
		if err != nil {
			return storageError("fail commission transaction", err)
		}
	}
	if err := dbTx.Commit(ctx); err != nil {
		return storageError("commit order deletion", err)
	}

	log.Info().Str("trip_id", order.TripID).Msg("order deleted")
	return nil
}

func (s *OrderServiceImpl) lockPendingOrder(ctx context.Context, dbTx pgx.Tx, id uuid.UUID, verb string) (*domain.Order, error) {
	order, err := s.orders.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, storageError("lock order", err)
	}
	if order == nil {
		return nil, apperror.ErrNotFound("order")
	}
	if order.Status != domain.OrderStatusPending {
		return nil, apperror.ErrInvalidState(fmt.Sprintf("only pending orders can be %s", verb))
	}
	return order, nil
}
