package handler

import (
	"strings"
	"time"

	"ride-settlement/internal/adapter/http/dto"
	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"

	"github.com/google/uuid"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalTime(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func formatOptionalID(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func lowerStatus[S ~string](s S) string {
	return strings.ToLower(string(s))
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		WalletID:  w.ID.String(),
		DriverID:  w.DriverID.String(),
		Balance:   domain.FormatAmount(w.Balance),
		Currency:  w.Currency,
		CreatedAt: formatTime(w.CreatedAt),
		UpdatedAt: formatTime(w.UpdatedAt),
	}
}

func toMovementResponse(m *domain.Movement) dto.MovementResponse {
	return dto.MovementResponse{
		ID:              m.ID.String(),
		Sequence:        m.Sequence,
		Amount:          domain.FormatAmount(m.Amount),
		PreviousBalance: domain.FormatAmount(m.PreviousBalance),
		NewBalance:      domain.FormatAmount(m.NewBalance),
		TransactionID:   formatOptionalID(m.TransactionID),
		Note:            m.Note,
		CreatedAt:       formatTime(m.CreatedAt),
	}
}

func toTopupResponse(r *ports.TopupResult) dto.TopupResponse {
	return dto.TopupResponse{
		CashCollectionRecordID: r.Record.ID.String(),
		TransactionID:          r.Transaction.ID.String(),
		Status:                 lowerStatus(r.Record.Status),
		Currency:               r.Record.Currency,
		Amount:                 domain.FormatAmount(r.Record.Amount),
		CollectionPointID:      r.Record.CollectionPointID.String(),
		CollectedByUserID:      r.Record.CollectedByUserID.String(),
		FailureReason:          r.Record.FailureReason,
	}
}

func toTopupConfirmResponse(c *ports.TopupConfirmation) dto.TopupConfirmResponse {
	resp := dto.TopupConfirmResponse{
		CashCollectionRecordID: c.Record.ID.String(),
		TransactionID:          c.Transaction.ID.String(),
		Status:                 lowerStatus(c.Record.Status),
		Currency:               c.Record.Currency,
		Amount:                 domain.FormatAmount(c.Record.Amount),
		PreviousBalance:        domain.FormatAmount(c.Balance.PreviousBalance),
		NewBalance:             domain.FormatAmount(c.Balance.NewBalance),
		AlreadyCompleted:       c.AlreadyCompleted,
	}
	if c.Movement != nil {
		resp.MovementID = c.Movement.ID.String()
	}
	return resp
}

func toOrderResponse(o *domain.Order) dto.OrderResponse {
	return dto.OrderResponse{
		ID:               o.ID.String(),
		TripID:           o.TripID,
		DriverID:         o.DriverID.String(),
		PassengerID:      o.PassengerID.String(),
		RequestedAmount:  domain.FormatAmount(o.RequestedAmount),
		CommissionAmount: domain.FormatAmount(o.CommissionAmount),
		PaymentType:      lowerStatus(o.PaymentType),
		Status:           lowerStatus(o.Status),
		Currency:         o.Currency,
		TransactionID:    formatOptionalID(o.TransactionID),
		CreatedAt:        formatTime(o.CreatedAt),
		UpdatedAt:        formatTime(o.UpdatedAt),
		PaidAt:           formatOptionalTime(o.PaidAt),
	}
}

func toOrderConfirmResponse(c *ports.OrderConfirmation) dto.OrderConfirmResponse {
	resp := dto.OrderConfirmResponse{
		OrderResponse:   toOrderResponse(c.Order),
		PreviousBalance: domain.FormatAmount(c.Balance.PreviousBalance),
		NewBalance:      domain.FormatAmount(c.Balance.NewBalance),
		AlreadyPaid:     c.AlreadyPaid,
	}
	if c.Movement != nil {
		resp.MovementID = formatOptionalID(&c.Movement.ID)
	}
	return resp
}

func toReconciliationResponse(r *ports.ReconciliationReport) dto.ReconciliationResponse {
	return dto.ReconciliationResponse{
		WalletID:       r.WalletID.String(),
		DriverID:       r.DriverID.String(),
		Currency:       r.Currency,
		StoredBalance:  domain.FormatAmount(r.StoredBalance),
		LedgerBalance:  domain.FormatAmount(r.LedgerBalance),
		MovementCount:  r.MovementCount,
		Consistent:     r.Consistent,
		Discrepancy:    r.Discrepancy,
		LastMovementID: formatOptionalID(r.LastMovementID),
		CheckedAt:      formatTime(r.CheckedAt),
	}
}
