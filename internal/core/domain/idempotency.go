package domain

import (
	"github.com/google/uuid"
)

// BuildTopupConfirmKey is the cache key of a settled topup confirmation.
func BuildTopupConfirmKey(ccrID uuid.UUID) string {
	return "topup-confirm:" + ccrID.String()
}

// BuildOrderConfirmKey is the cache key of a settled cash order.
func BuildOrderConfirmKey(orderID uuid.UUID) string {
	return "order-confirm:" + orderID.String()
}
