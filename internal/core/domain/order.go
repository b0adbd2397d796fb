package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusPaid    OrderStatus = "PAID"
)

// PaymentTypeCash is the only payment type settled by this service.
const PaymentTypeCash = "CASH"

// Order is the amount owed for a single trip. At most one live order
// exists per trip.
type Order struct {
	ID               uuid.UUID       `json:"id"`
	TripID           string          `json:"tripId"`
	DriverID         uuid.UUID       `json:"driverId"`
	PassengerID      uuid.UUID       `json:"passengerId"`
	RequestedAmount  decimal.Decimal `json:"requestedAmount"`
	CommissionAmount decimal.Decimal `json:"commissionAmount"`
	PaymentType      string          `json:"paymentType"`
	Status           OrderStatus     `json:"status"`
	Currency         string          `json:"currency"`
	TransactionID    *uuid.UUID      `json:"transactionId,omitempty"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	DeletedAt        *time.Time      `json:"deletedAt,omitempty"`
}

// OrderTerms are the caller-supplied values an order is compared on when a
// trip closure is replayed.
type OrderTerms struct {
	DriverID        uuid.UUID
	PassengerID     uuid.UUID
	RequestedAmount decimal.Decimal
	Currency        string
	PaymentType     string
}

// SameTerms reports whether o was created from terms.
func (o *Order) SameTerms(terms OrderTerms) bool {
	return o.DriverID == terms.DriverID &&
		o.PassengerID == terms.PassengerID &&
		o.RequestedAmount.Equal(terms.RequestedAmount) &&
		o.Currency == terms.Currency &&
		o.PaymentType == terms.PaymentType
}

// IsPaid returns true once the commission has been settled.
func (o *Order) IsPaid() bool {
	return o.Status == OrderStatusPaid
}
