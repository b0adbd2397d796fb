package dto

// Path parameters. IDs are validated here so handlers can uuid.MustParse.

type DriverURI struct {
	DriverID string `uri:"driverId" binding:"required,uuid"`
}

type RecordURI struct {
	CCRID string `uri:"ccrId" binding:"required,uuid"`
}

type OrderURI struct {
	OrderID string `uri:"orderId" binding:"required,uuid"`
}

type TripURI struct {
	TripID string `uri:"tripId" binding:"required,max=64,safe_id"`
}

// OpenWalletRequest is the request body for opening a driver wallet.
type OpenWalletRequest struct {
	Currency string `json:"currency" binding:"required,currency"`
}

// MovementListQuery holds statement paging. Zero values fall back to the
// service defaults.
type MovementListQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// CreateTopupRequest announces cash handed in at a collection point.
type CreateTopupRequest struct {
	CollectionPointID string `json:"collectionPointId" binding:"required,uuid"`
	CollectedByUserID string `json:"collectedByUserId" binding:"required,uuid"`
	Amount            string `json:"amount" binding:"required,money"`
	Currency          string `json:"currency" binding:"required,currency"`
}

// ConfirmRequest is the optional body of the confirmation endpoints.
type ConfirmRequest struct {
	ConfirmedByUserID *string `json:"confirmedByUserId,omitempty" binding:"omitempty,uuid"`
}

// FailTopupRequest abandons a pending topup.
type FailTopupRequest struct {
	Reason string `json:"reason" binding:"required,max=500"`
}

// TripClosureRequest is sent by dispatch when a cash trip ends.
type TripClosureRequest struct {
	DriverID        string `json:"driverId" binding:"required,uuid"`
	PassengerID     string `json:"passengerId" binding:"required,uuid"`
	RequestedAmount string `json:"requestedAmount" binding:"required,money"`
	Currency        string `json:"currency" binding:"required,currency"`
	PaymentType     string `json:"paymentType" binding:"omitempty,max=16"`
}

// UpdateOrderRequest carries admin changes to a pending order.
type UpdateOrderRequest struct {
	PassengerID     *string `json:"passengerId,omitempty" binding:"omitempty,uuid"`
	RequestedAmount *string `json:"requestedAmount,omitempty" binding:"omitempty,money"`
}

// WalletResponse is a driver's wallet with its stored balance.
type WalletResponse struct {
	WalletID  string `json:"walletId"`
	DriverID  string `json:"driverId"`
	Balance   string `json:"balance"`
	Currency  string `json:"currency"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
}

// OpenWalletResponse reports whether the wallet was created by this call.
type OpenWalletResponse struct {
	WalletResponse
	Created bool `json:"created"`
}

// MovementResponse is one statement line.
type MovementResponse struct {
	ID              string  `json:"id"`
	Sequence        int64   `json:"sequence"`
	Amount          string  `json:"amount"`
	PreviousBalance string  `json:"previousBalance"`
	NewBalance      string  `json:"newBalance"`
	TransactionID   *string `json:"transactionId,omitempty"`
	Note            string  `json:"note,omitempty"`
	CreatedAt       string  `json:"createdAt"`
}

// TopupResponse describes a cash collection record and its transaction.
type TopupResponse struct {
	CashCollectionRecordID string  `json:"cashCollectionRecordId"`
	TransactionID          string  `json:"transactionId"`
	Status                 string  `json:"status"`
	Currency               string  `json:"currency"`
	Amount                 string  `json:"amount"`
	CollectionPointID      string  `json:"collectionPointId"`
	CollectedByUserID      string  `json:"collectedByUserId"`
	FailureReason          *string `json:"failureReason,omitempty"`
}

// TopupConfirmResponse is the settled topup with the wallet effect.
type TopupConfirmResponse struct {
	CashCollectionRecordID string `json:"cashCollectionRecordId"`
	TransactionID          string `json:"transactionId"`
	MovementID             string `json:"movementId"`
	Status                 string `json:"status"`
	Currency               string `json:"currency"`
	Amount                 string `json:"amount"`
	PreviousBalance        string `json:"previousBalance"`
	NewBalance             string `json:"newBalance"`
	AlreadyCompleted       bool   `json:"alreadyCompleted"`
}

// OrderResponse is a trip order.
type OrderResponse struct {
	ID               string  `json:"id"`
	TripID           string  `json:"tripId"`
	DriverID         string  `json:"driverId"`
	PassengerID      string  `json:"passengerId"`
	RequestedAmount  string  `json:"requestedAmount"`
	CommissionAmount string  `json:"commissionAmount"`
	PaymentType      string  `json:"paymentType"`
	Status           string  `json:"status"`
	Currency         string  `json:"currency"`
	TransactionID    *string `json:"transactionId,omitempty"`
	CreatedAt        string  `json:"createdAt"`
	UpdatedAt        string  `json:"updatedAt"`
	PaidAt           *string `json:"paidAt,omitempty"`
}

// OrderCreateResponse reports whether the trip closure created the order.
type OrderCreateResponse struct {
	OrderResponse
	Created bool `json:"created"`
}

// OrderConfirmResponse is the paid order with the wallet effect.
type OrderConfirmResponse struct {
	OrderResponse
	MovementID      *string `json:"movementId,omitempty"`
	PreviousBalance string  `json:"previousBalance"`
	NewBalance      string  `json:"newBalance"`
	AlreadyPaid     bool    `json:"alreadyPaid"`
}

// ReconciliationResponse is the outcome of checking one wallet.
type ReconciliationResponse struct {
	WalletID       string  `json:"walletId"`
	DriverID       string  `json:"driverId"`
	Currency       string  `json:"currency"`
	StoredBalance  string  `json:"storedBalance"`
	LedgerBalance  string  `json:"ledgerBalance"`
	MovementCount  int     `json:"movementCount"`
	Consistent     bool    `json:"consistent"`
	Discrepancy    string  `json:"discrepancy,omitempty"`
	LastMovementID *string `json:"lastMovementId,omitempty"`
	CheckedAt      string  `json:"checkedAt"`
}
