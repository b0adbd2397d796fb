package handler

import (
	"net/http"

	"ride-settlement/internal/adapter/http/dto"
	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderHandler handles trip orders and their cash confirmation.
type OrderHandler struct {
	orderSvc ports.OrderService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService) *OrderHandler {
	return &OrderHandler{orderSvc: orderSvc}
}

// CreateOnTripClosure handles POST /api/v1/orders/trips/:tripId.
// A repeated closure with the same terms returns the existing order with 200.
func (h *OrderHandler) CreateOnTripClosure(c *gin.Context) {
	var uri dto.TripURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.TripClosureRequest
	if !bindJSON(c, &req) {
		return
	}

	amount, err := domain.ParseAmount(req.RequestedAmount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.orderSvc.CreateCashOrderOnTripClosure(c.Request.Context(), ports.TripClosureRequest{
		TripID:          uri.TripID,
		DriverID:        uuid.MustParse(req.DriverID),
		PassengerID:     uuid.MustParse(req.PassengerID),
		RequestedAmount: amount,
		Currency:        req.Currency,
		PaymentType:     req.PaymentType,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.OrderCreateResponse{OrderResponse: toOrderResponse(result.Order), Created: result.Created}
	if result.Created {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// ConfirmCash handles PATCH /api/v1/orders/:orderId/confirm-cash.
func (h *OrderHandler) ConfirmCash(c *gin.Context) {
	var uri dto.OrderURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.ConfirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.orderSvc.ConfirmCashOrder(c.Request.Context(), ports.ConfirmOrderRequest{
		OrderID:           uuid.MustParse(uri.OrderID),
		ConfirmedByUserID: confirmedBy(c, req),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toOrderConfirmResponse(result))
}

// Get handles GET /api/v1/orders/:orderId.
func (h *OrderHandler) Get(c *gin.Context) {
	var uri dto.OrderURI
	if !bindURI(c, &uri) {
		return
	}

	order, err := h.orderSvc.GetOrder(c.Request.Context(), uuid.MustParse(uri.OrderID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

// Update handles PATCH /api/v1/orders/:orderId.
func (h *OrderHandler) Update(c *gin.Context) {
	var uri dto.OrderURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.UpdateOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.PassengerID == nil && req.RequestedAmount == nil {
		response.Error(c, apperror.Validation("nothing to update"))
		return
	}

	update := ports.UpdateOrderRequest{OrderID: uuid.MustParse(uri.OrderID)}
	if req.PassengerID != nil {
		id := uuid.MustParse(*req.PassengerID)
		update.PassengerID = &id
	}
	if req.RequestedAmount != nil {
		amount, err := domain.ParseAmount(*req.RequestedAmount)
		if err != nil {
			response.Error(c, apperror.ErrInvalidAmount())
			return
		}
		update.RequestedAmount = decimalPtr(amount)
	}

	order, err := h.orderSvc.UpdateOrder(c.Request.Context(), update)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOrderResponse(order))
}

// Delete handles DELETE /api/v1/orders/:orderId.
func (h *OrderHandler) Delete(c *gin.Context) {
	var uri dto.OrderURI
	if !bindURI(c, &uri) {
		return
	}

	if err := h.orderSvc.DeleteOrder(c.Request.Context(), uuid.MustParse(uri.OrderID)); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func decimalPtr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
