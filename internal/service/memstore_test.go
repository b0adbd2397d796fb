package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

// memStore is a transactional in-memory stand-in for the Postgres adapters.
// Transactions run concurrently. ForUpdate reads and updates take a row lock
// that is held until Commit or Rollback, every write inside a transaction
// records an undo step that Rollback replays, and unique indexes are enforced
// with SQLSTATE 23505.
type memStore struct {
	mu sync.Mutex

	lockMu   sync.Mutex
	rowLocks map[string]*sync.Mutex

	wallets     map[uuid.UUID]domain.Wallet
	walletOrder []uuid.UUID
	movements   []domain.Movement
	txns        map[uuid.UUID]domain.MoneyTransaction
	records     map[uuid.UUID]domain.CashCollectionRecord
	points      map[uuid.UUID]domain.CollectionPoint
	orders      map[uuid.UUID]domain.Order
	seq         int64

	beginErr        error
	movementErr     error
	recordUpdateErr error
}

func newMemStore() *memStore {
	return &memStore{
		rowLocks: make(map[string]*sync.Mutex),
		wallets:  make(map[uuid.UUID]domain.Wallet),
		txns:     make(map[uuid.UUID]domain.MoneyTransaction),
		records:  make(map[uuid.UUID]domain.CashCollectionRecord),
		points:   make(map[uuid.UUID]domain.CollectionPoint),
		orders:   make(map[uuid.UUID]domain.Order),
	}
}

func uniqueViolation(constraint string) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: constraint}
}

// --- transactions ---

type memTx struct {
	pgx.Tx
	store *memStore
	held  map[string]*sync.Mutex
	undo  []func()
	done  bool
}

// lock blocks until tx owns the row id in table. Locks are re-entrant
// within a transaction.
func (t *memTx) lock(table string, id uuid.UUID) {
	key := table + "/" + id.String()
	if _, ok := t.held[key]; ok {
		return
	}
	t.store.lockMu.Lock()
	m, ok := t.store.rowLocks[key]
	if !ok {
		m = &sync.Mutex{}
		t.store.rowLocks[key] = m
	}
	t.store.lockMu.Unlock()

	m.Lock()
	t.held[key] = m
}

// onRollback registers an undo step. Callers hold store.mu.
func (t *memTx) onRollback(fn func()) {
	t.undo = append(t.undo, fn)
}

func (t *memTx) release() {
	for _, m := range t.held {
		m.Unlock()
	}
	t.held = nil
}

func (t *memTx) Commit(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.release()
	return nil
}

func (t *memTx) Rollback(context.Context) error {
	if t.done {
		return pgx.ErrTxClosed
	}
	t.done = true
	t.store.mu.Lock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.store.mu.Unlock()
	t.release()
	return nil
}

type memTransactor struct{ store *memStore }

func (m memTransactor) Begin(context.Context) (pgx.Tx, error) {
	if m.store.beginErr != nil {
		return nil, m.store.beginErr
	}
	return &memTx{store: m.store, held: make(map[string]*sync.Mutex)}, nil
}

func activeTx(tx pgx.Tx, op string) (*memTx, error) {
	mt, ok := tx.(*memTx)
	if tx == nil || !ok || mt == nil || mt.done {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrNoTransaction)
	}
	return mt, nil
}

// --- wallets ---

type memWallets struct{ *memStore }

func (r memWallets) Create(_ context.Context, w *domain.Wallet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.wallets {
		if existing.DriverID == w.DriverID {
			return uniqueViolation("wallets_driver_id_key")
		}
	}
	r.wallets[w.ID] = *w
	r.walletOrder = append(r.walletOrder, w.ID)
	return nil
}

func (r memWallets) byDriver(driverID uuid.UUID) *domain.Wallet {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, w := range r.wallets {
		if w.DriverID == driverID {
			out := w
			return &out
		}
	}
	return nil
}

func (r memWallets) GetByDriverID(_ context.Context, driverID uuid.UUID) (*domain.Wallet, error) {
	return r.byDriver(driverID), nil
}

func (r memWallets) GetByDriverIDForUpdate(_ context.Context, tx pgx.Tx, driverID uuid.UUID) (*domain.Wallet, error) {
	mt, err := activeTx(tx, "lock wallet")
	if err != nil {
		return nil, err
	}
	w := r.byDriver(driverID)
	if w == nil {
		return nil, nil
	}
	mt.lock("wallets", w.ID)
	return r.byDriver(driverID), nil
}

func (r memWallets) ApplyDelta(_ context.Context, tx pgx.Tx, walletID uuid.UUID, amount decimal.Decimal) (*domain.BalanceChange, error) {
	mt, err := activeTx(tx, "apply wallet delta")
	if err != nil {
		return nil, err
	}
	mt.lock("wallets", walletID)
	r.mu.Lock()
	defer r.mu.Unlock()
	w, ok := r.wallets[walletID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	prev := w
	mt.onRollback(func() { r.wallets[walletID] = prev })
	change := &domain.BalanceChange{PreviousBalance: w.Balance, NewBalance: w.Balance.Add(amount)}
	w.Balance = change.NewBalance
	w.UpdatedAt = time.Now().UTC()
	r.wallets[walletID] = w
	return change, nil
}

func (r memWallets) List(_ context.Context, limit, offset int) ([]domain.Wallet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Wallet
	for i := offset; i < len(r.walletOrder) && len(out) < limit; i++ {
		out = append(out, r.wallets[r.walletOrder[i]])
	}
	return out, nil
}

// setBalance corrupts a stored balance without writing a movement.
func (r memWallets) setBalance(driverID uuid.UUID, balance string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, w := range r.wallets {
		if w.DriverID == driverID {
			w.Balance = decimal.RequireFromString(balance)
			r.wallets[id] = w
		}
	}
}

// --- movements ---

type memMovements struct{ *memStore }

func (r memMovements) Create(_ context.Context, tx pgx.Tx, m *domain.Movement) error {
	mt, err := activeTx(tx, "create movement")
	if err != nil {
		return err
	}
	if r.movementErr != nil {
		return r.movementErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if m.TransactionID != nil {
		for _, existing := range r.movements {
			if existing.TransactionID != nil && *existing.TransactionID == *m.TransactionID {
				return uniqueViolation("uq_wallet_movements_transaction")
			}
		}
	}
	r.seq++
	m.Sequence = r.seq
	r.movements = append(r.movements, *m)
	id := m.ID
	mt.onRollback(func() {
		for i := range r.movements {
			if r.movements[i].ID == id {
				r.movements = append(r.movements[:i], r.movements[i+1:]...)
				return
			}
		}
	})
	return nil
}

func (r memMovements) walletChain(walletID uuid.UUID) []domain.Movement {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Movement
	for _, m := range r.movements {
		if m.WalletID == walletID {
			out = append(out, m)
		}
	}
	return out
}

func (r memMovements) FindLastByWallet(_ context.Context, walletID uuid.UUID) (*domain.Movement, error) {
	chain := r.walletChain(walletID)
	if len(chain) == 0 {
		return nil, nil
	}
	last := chain[len(chain)-1]
	return &last, nil
}

func (r memMovements) FindByTransactionID(_ context.Context, transactionID uuid.UUID) (*domain.Movement, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range r.movements {
		if m.TransactionID != nil && *m.TransactionID == transactionID {
			out := m
			return &out, nil
		}
	}
	return nil, nil
}

func (r memMovements) ListByWallet(_ context.Context, params ports.MovementListParams) ([]domain.Movement, int64, error) {
	chain := r.walletChain(params.WalletID)
	sort.Slice(chain, func(i, j int) bool { return chain[i].Sequence > chain[j].Sequence })
	start := (params.Page - 1) * params.PageSize
	if start > len(chain) {
		start = len(chain)
	}
	end := start + params.PageSize
	if end > len(chain) {
		end = len(chain)
	}
	return chain[start:end], int64(len(chain)), nil
}

func (r memMovements) ListChain(_ context.Context, walletID uuid.UUID) ([]domain.Movement, error) {
	return r.walletChain(walletID), nil
}

// --- money transactions ---

type memTransactions struct{ *memStore }

func (r memTransactions) Create(_ context.Context, tx pgx.Tx, t *domain.MoneyTransaction) error {
	mt, err := activeTx(tx, "create money transaction")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.txns[t.ID] = *t
	id := t.ID
	mt.onRollback(func() { delete(r.txns, id) })
	return nil
}

func (r memTransactions) GetByID(_ context.Context, id uuid.UUID) (*domain.MoneyTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r memTransactions) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.MoneyTransaction, error) {
	mt, err := activeTx(tx, "lock money transaction")
	if err != nil {
		return nil, err
	}
	mt.lock("txns", id)
	return r.GetByID(ctx, id)
}

// mutate locks the row and applies fn to it; fn returns an error to leave
// the row untouched.
func (r memTransactions) mutate(tx pgx.Tx, op string, id uuid.UUID, fn func(*domain.MoneyTransaction) error) error {
	mt, err := activeTx(tx, op)
	if err != nil {
		return err
	}
	mt.lock("txns", id)
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txns[id]
	if !ok {
		return pgx.ErrNoRows
	}
	prev := t
	if err := fn(&t); err != nil {
		return err
	}
	r.txns[id] = t
	mt.onRollback(func() { r.txns[id] = prev })
	return nil
}

func (r memTransactions) UpdateStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.TransactionStatus) error {
	err := r.mutate(tx, "update money transaction", id, func(t *domain.MoneyTransaction) error {
		if t.Status != from {
			return domain.ErrStaleStatus
		}
		t.Status = to
		if to == domain.TransactionStatusProcessed {
			now := time.Now().UTC()
			t.ProcessedAt = &now
		}
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStaleStatus
	}
	return err
}

func (r memTransactions) UpdateAmount(_ context.Context, tx pgx.Tx, id uuid.UUID, amount decimal.Decimal) error {
	err := r.mutate(tx, "update money transaction amount", id, func(t *domain.MoneyTransaction) error {
		if t.Status != domain.TransactionStatusPending {
			return domain.ErrStaleStatus
		}
		t.Amount = amount
		return nil
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrStaleStatus
	}
	return err
}

func (r memTransactions) MergeMetadata(_ context.Context, tx pgx.Tx, id uuid.UUID, values map[string]string) error {
	return r.mutate(tx, "merge money transaction metadata", id, func(t *domain.MoneyTransaction) error {
		merged := make(map[string]string, len(t.Metadata)+len(values))
		for k, v := range t.Metadata {
			merged[k] = v
		}
		for k, v := range values {
			merged[k] = v
		}
		t.Metadata = merged
		return nil
	})
}

// --- cash collection records ---

type memRecords struct{ *memStore }

func (r memRecords) Create(_ context.Context, tx pgx.Tx, rec *domain.CashCollectionRecord) error {
	mt, err := activeTx(tx, "create cash collection record")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.records {
		if existing.Status == domain.CCRStatusPending && rec.Status == domain.CCRStatusPending &&
			existing.DriverID == rec.DriverID && existing.CollectionPointID == rec.CollectionPointID &&
			existing.Amount.Equal(rec.Amount) && existing.Currency == rec.Currency {
			return uniqueViolation("uq_ccr_pending_natural_key")
		}
	}
	r.records[rec.ID] = *rec
	id := rec.ID
	mt.onRollback(func() { delete(r.records, id) })
	return nil
}

func (r memRecords) GetByID(_ context.Context, id uuid.UUID) (*domain.CashCollectionRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (r memRecords) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.CashCollectionRecord, error) {
	mt, err := activeTx(tx, "lock cash collection record")
	if err != nil {
		return nil, err
	}
	mt.lock("records", id)
	return r.GetByID(ctx, id)
}

func (r memRecords) FindPending(_ context.Context, tx pgx.Tx, key ports.CashCollectionKey) (*domain.CashCollectionRecord, error) {
	if _, err := activeTx(tx, "find pending cash collection record"); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.Status == domain.CCRStatusPending && rec.DriverID == key.DriverID &&
			rec.CollectionPointID == key.CollectionPointID && rec.Amount.Equal(key.Amount) &&
			rec.Currency == key.Currency {
			out := rec
			return &out, nil
		}
	}
	return nil, nil
}

func (r memRecords) UpdateStatus(_ context.Context, tx pgx.Tx, id uuid.UUID, from, to domain.CCRStatus, reason *string) error {
	mt, err := activeTx(tx, "update cash collection record")
	if err != nil {
		return err
	}
	if r.recordUpdateErr != nil {
		return r.recordUpdateErr
	}
	mt.lock("records", id)
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok || rec.Status != from {
		return domain.ErrStaleStatus
	}
	prev := rec
	mt.onRollback(func() { r.records[id] = prev })
	now := time.Now().UTC()
	rec.Status = to
	rec.UpdatedAt = now
	if reason != nil {
		rec.FailureReason = reason
	}
	if to == domain.CCRStatusCompleted {
		rec.CompletedAt = &now
	}
	r.records[id] = rec
	return nil
}

// --- collection points ---

type memPoints struct{ *memStore }

func (r memPoints) GetByID(_ context.Context, id uuid.UUID) (*domain.CollectionPoint, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.points[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// --- orders ---

type memOrders struct{ *memStore }

func (r memOrders) Create(_ context.Context, tx pgx.Tx, o *domain.Order) error {
	mt, err := activeTx(tx, "create order")
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.orders {
		if existing.DeletedAt == nil && existing.TripID == o.TripID {
			return uniqueViolation("uq_orders_trip_live")
		}
	}
	r.orders[o.ID] = *o
	id := o.ID
	mt.onRollback(func() { delete(r.orders, id) })
	return nil
}

func (r memOrders) live(match func(domain.Order) bool) *domain.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.DeletedAt == nil && match(o) {
			out := o
			return &out
		}
	}
	return nil
}

func (r memOrders) GetByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.live(func(o domain.Order) bool { return o.ID == id }), nil
}

func (r memOrders) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	mt, err := activeTx(tx, "lock order")
	if err != nil {
		return nil, err
	}
	mt.lock("orders", id)
	return r.GetByID(ctx, id)
}

func (r memOrders) GetByTripID(_ context.Context, tripID string) (*domain.Order, error) {
	return r.live(func(o domain.Order) bool { return o.TripID == tripID }), nil
}

func (r memOrders) mutatePending(tx pgx.Tx, op string, id uuid.UUID, fn func(*domain.Order)) error {
	mt, err := activeTx(tx, op)
	if err != nil {
		return err
	}
	mt.lock("orders", id)
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.DeletedAt != nil || o.Status != domain.OrderStatusPending {
		return domain.ErrStaleStatus
	}
	prev := o
	mt.onRollback(func() { r.orders[id] = prev })
	fn(&o)
	r.orders[id] = o
	return nil
}

func (r memOrders) MarkPaid(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.mutatePending(tx, "mark order paid", id, func(o *domain.Order) {
		now := time.Now().UTC()
		o.Status = domain.OrderStatusPaid
		o.PaidAt = &now
		o.UpdatedAt = now
	})
}

func (r memOrders) UpdateTerms(_ context.Context, tx pgx.Tx, order *domain.Order) error {
	return r.mutatePending(tx, "update order", order.ID, func(o *domain.Order) {
		o.PassengerID = order.PassengerID
		o.RequestedAmount = order.RequestedAmount
		o.CommissionAmount = order.CommissionAmount
		o.UpdatedAt = order.UpdatedAt
	})
}

func (r memOrders) SoftDelete(_ context.Context, tx pgx.Tx, id uuid.UUID) error {
	return r.mutatePending(tx, "delete order", id, func(o *domain.Order) {
		now := time.Now().UTC()
		o.DeletedAt = &now
	})
}

// --- fixtures ---

func (s *memStore) addWallet(driverID uuid.UUID, currency string) *domain.Wallet {
	now := time.Now().UTC()
	w := &domain.Wallet{ID: uuid.New(), DriverID: driverID, Balance: decimal.Zero, Currency: currency, CreatedAt: now, UpdatedAt: now}
	if err := (memWallets{s}).Create(context.Background(), w); err != nil {
		panic(err)
	}
	return w
}

func (s *memStore) addPoint(active bool) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.CollectionPoint{ID: uuid.New(), Name: "Central depot", Active: active, CreatedAt: time.Now().UTC()}
	s.points[p.ID] = p
	return p.ID
}

func (s *memStore) wallet(driverID uuid.UUID) domain.Wallet {
	w := (memWallets{s}).byDriver(driverID)
	if w == nil {
		panic(errors.New("no wallet for driver"))
	}
	return *w
}

func (s *memStore) txn(id uuid.UUID) domain.MoneyTransaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.txns[id]
}

func (s *memStore) record(id uuid.UUID) domain.CashCollectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id]
}

func (s *memStore) order(id uuid.UUID) domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orders[id]
}

func (s *memStore) movementCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.movements)
}

func (s *memStore) topupService(cache ports.IdempotencyCache) *TopupServiceImpl {
	return NewTopupService(memWallets{s}, memMovements{s}, memTransactions{s}, memRecords{s}, memPoints{s},
		cache, memTransactor{s}, time.Hour, newTestLogger())
}

func (s *memStore) orderService(commission ports.CommissionPolicy, cache ports.IdempotencyCache) *OrderServiceImpl {
	return NewOrderService(memOrders{s}, memWallets{s}, memMovements{s}, memTransactions{s}, commission,
		cache, memTransactor{s}, time.Hour, newTestLogger())
}

func (s *memStore) walletService() *WalletServiceImpl {
	return NewWalletService(memWallets{s}, memMovements{s}, newTestLogger())
}

func (s *memStore) reconciliationService(batch int) *ReconciliationServiceImpl {
	return NewReconciliationService(memWallets{s}, memMovements{s}, batch, newTestLogger())
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
