package postgres

import (
	"context"
	"errors"
	"fmt"

	"ride-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const orderSelect = `SELECT id, trip_id, driver_id, passenger_id, requested_amount::text, commission_amount::text,
		payment_type, status, currency, transaction_id, created_at, updated_at, paid_at, deleted_at
		FROM orders`

// OrderRepo implements ports.OrderRepository.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	o := &domain.Order{}
	var requested, commission, status string
	err := row.Scan(&o.ID, &o.TripID, &o.DriverID, &o.PassengerID, &requested, &commission,
		&o.PaymentType, &status, &o.Currency, &o.TransactionID, &o.CreatedAt, &o.UpdatedAt, &o.PaidAt, &o.DeletedAt)
	if err != nil {
		return nil, err
	}
	o.Status = domain.OrderStatus(status)
	if o.RequestedAmount, err = domain.ParseBalance(requested); err != nil {
		return nil, err
	}
	if o.CommissionAmount, err = domain.ParseBalance(commission); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *OrderRepo) getOne(ctx context.Context, q pgx.Row, op string) (*domain.Order, error) {
	o, err := scanOrder(q)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return o, nil
}

// Create inserts an order inside tx. A second live order for the same trip
// violates uq_orders_trip_live.
func (r *OrderRepo) Create(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	if err := requireTx(tx, "create order"); err != nil {
		return err
	}
	query := `INSERT INTO orders
		(id, trip_id, driver_id, passenger_id, requested_amount, commission_amount,
		 payment_type, status, currency, transaction_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7, $8, $9, $10, $11, $12)`

	_, err := tx.Exec(ctx, query,
		o.ID, o.TripID, o.DriverID, o.PassengerID,
		domain.FormatAmount(o.RequestedAmount), domain.FormatAmount(o.CommissionAmount),
		o.PaymentType, string(o.Status), o.Currency, o.TransactionID, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (r *OrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	return r.getOne(ctx, r.pool.QueryRow(ctx, orderSelect+` WHERE id = $1 AND deleted_at IS NULL`, id), "get order")
}

// GetByIDForUpdate fetches and locks a live order.
func (r *OrderRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Order, error) {
	if err := requireTx(tx, "lock order"); err != nil {
		return nil, err
	}
	return r.getOne(ctx,
		tx.QueryRow(ctx, orderSelect+` WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id),
		"get order for update")
}

func (r *OrderRepo) GetByTripID(ctx context.Context, tripID string) (*domain.Order, error) {
	return r.getOne(ctx,
		r.pool.QueryRow(ctx, orderSelect+` WHERE trip_id = $1 AND deleted_at IS NULL`, tripID),
		"get order by trip")
}

// MarkPaid moves a pending order to PAID.
func (r *OrderRepo) MarkPaid(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if err := requireTx(tx, "mark order paid"); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET status = 'PAID', paid_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'PENDING' AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrStaleStatus)
	}
	return nil
}

// UpdateTerms rewrites the editable fields of a pending order.
func (r *OrderRepo) UpdateTerms(ctx context.Context, tx pgx.Tx, o *domain.Order) error {
	if err := requireTx(tx, "update order"); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET passenger_id = $1, requested_amount = $2::numeric, commission_amount = $3::numeric,
		 updated_at = $4
		 WHERE id = $5 AND status = 'PENDING' AND deleted_at IS NULL`,
		o.PassengerID, domain.FormatAmount(o.RequestedAmount), domain.FormatAmount(o.CommissionAmount),
		o.UpdatedAt, o.ID)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", o.ID, domain.ErrStaleStatus)
	}
	return nil
}

// SoftDelete hides a pending order and frees its trip for a new order.
func (r *OrderRepo) SoftDelete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	if err := requireTx(tx, "delete order"); err != nil {
		return err
	}
	tag, err := tx.Exec(ctx,
		`UPDATE orders SET deleted_at = NOW(), updated_at = NOW()
		 WHERE id = $1 AND status = 'PENDING' AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s: %w", id, domain.ErrStaleStatus)
	}
	return nil
}
