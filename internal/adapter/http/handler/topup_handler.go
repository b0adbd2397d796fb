package handler

import (
	"ride-settlement/internal/adapter/http/dto"
	"ride-settlement/internal/adapter/http/middleware"
	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TopupHandler handles cash topups at collection points.
type TopupHandler struct {
	topupSvc ports.TopupService
}

// NewTopupHandler creates a new TopupHandler.
func NewTopupHandler(topupSvc ports.TopupService) *TopupHandler {
	return &TopupHandler{topupSvc: topupSvc}
}

// CreatePending handles POST /api/v1/drivers-balance/:driverId/topups.
func (h *TopupHandler) CreatePending(c *gin.Context) {
	var uri dto.DriverURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.CreateTopupRequest
	if !bindJSON(c, &req) {
		return
	}

	amount, err := domain.ParseAmount(req.Amount)
	if err != nil {
		response.Error(c, apperror.ErrInvalidAmount())
		return
	}

	result, err := h.topupSvc.CreateCashTopupPending(c.Request.Context(), ports.CreateTopupRequest{
		DriverID:          uuid.MustParse(uri.DriverID),
		CollectionPointID: uuid.MustParse(req.CollectionPointID),
		CollectedByUserID: uuid.MustParse(req.CollectedByUserID),
		Amount:            amount,
		Currency:          req.Currency,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetAuditResource(c, result.Record.ID.String())
	response.Created(c, toTopupResponse(result))
}

// Confirm handles POST /api/v1/drivers-balance/topups/:ccrId/confirm.
// Confirming an already completed topup replays the original result.
func (h *TopupHandler) Confirm(c *gin.Context) {
	var uri dto.RecordURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.ConfirmRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	result, err := h.topupSvc.ConfirmCashTopup(c.Request.Context(), ports.ConfirmTopupRequest{
		CCRID:             uuid.MustParse(uri.CCRID),
		ConfirmedByUserID: confirmedBy(c, req),
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTopupConfirmResponse(result))
}

// Fail handles POST /api/v1/drivers-balance/topups/:ccrId/fail.
func (h *TopupHandler) Fail(c *gin.Context) {
	var uri dto.RecordURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.FailTopupRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.topupSvc.FailCashTopup(c.Request.Context(), ports.FailTopupRequest{
		CCRID:  uuid.MustParse(uri.CCRID),
		Reason: req.Reason,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, toTopupResponse(result))
}
