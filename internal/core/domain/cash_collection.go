package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CCRStatus is the lifecycle state of a cash collection record.
type CCRStatus string

const (
	CCRStatusPending   CCRStatus = "PENDING"
	CCRStatusCompleted CCRStatus = "COMPLETED"
	CCRStatusFailed    CCRStatus = "FAILED"
)

var ccrTransitions = map[CCRStatus][]CCRStatus{
	CCRStatusPending: {CCRStatusCompleted, CCRStatusFailed},
}

// CanTransitionTo reports whether the lifecycle allows moving to next.
func (s CCRStatus) CanTransitionTo(next CCRStatus) bool {
	for _, allowed := range ccrTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CashCollectionRecord documents a physical cash handoff from a driver at a
// collection point. It is paired 1:1 with a WALLET_TOPUP money transaction.
type CashCollectionRecord struct {
	ID                uuid.UUID       `json:"id"`
	TransactionID     uuid.UUID       `json:"transactionId"`
	DriverID          uuid.UUID       `json:"driverId"`
	CollectionPointID uuid.UUID       `json:"collectionPointId"`
	CollectedByUserID uuid.UUID       `json:"collectedByUserId"`
	Status            CCRStatus       `json:"status"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	FailureReason     *string         `json:"failureReason,omitempty"`
	CreatedAt         time.Time       `json:"createdAt"`
	UpdatedAt         time.Time       `json:"updatedAt"`
	CompletedAt       *time.Time      `json:"completedAt,omitempty"`
}

// CollectionPoint is a place where drivers hand in cash.
type CollectionPoint struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"createdAt"`
}
