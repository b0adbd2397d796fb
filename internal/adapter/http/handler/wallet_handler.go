package handler

import (
	"ride-settlement/internal/adapter/http/dto"
	"ride-settlement/internal/core/ports"
	"ride-settlement/pkg/apperror"
	"ride-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// WalletHandler serves driver wallet reads and wallet opening.
type WalletHandler struct {
	walletSvc ports.WalletService
	reconSvc  ports.ReconciliationService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService, reconSvc ports.ReconciliationService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc, reconSvc: reconSvc}
}

// OpenWallet handles POST /api/v1/drivers-balance/:driverId/wallet.
// Opening an existing wallet in the same currency returns it with 200.
func (h *WalletHandler) OpenWallet(c *gin.Context) {
	var uri dto.DriverURI
	if !bindURI(c, &uri) {
		return
	}
	var req dto.OpenWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, created, err := h.walletSvc.OpenWallet(c.Request.Context(), uuid.MustParse(uri.DriverID), req.Currency)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := dto.OpenWalletResponse{WalletResponse: toWalletResponse(wallet), Created: created}
	if created {
		response.Created(c, resp)
		return
	}
	response.OK(c, resp)
}

// GetBalance handles GET /api/v1/drivers-balance/:driverId.
func (h *WalletHandler) GetBalance(c *gin.Context) {
	var uri dto.DriverURI
	if !bindURI(c, &uri) {
		return
	}

	wallet, err := h.walletSvc.GetWallet(c.Request.Context(), uuid.MustParse(uri.DriverID))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(wallet))
}

// ListMovements handles GET /api/v1/drivers-balance/:driverId/movements.
func (h *WalletHandler) ListMovements(c *gin.Context) {
	var uri dto.DriverURI
	if !bindURI(c, &uri) {
		return
	}
	var q dto.MovementListQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = 20
	}

	movements, total, err := h.walletSvc.ListMovements(c.Request.Context(), uuid.MustParse(uri.DriverID), q.Page, q.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]dto.MovementResponse, 0, len(movements))
	for i := range movements {
		items = append(items, toMovementResponse(&movements[i]))
	}
	response.Page(c, items, q.Page, q.PageSize, total)
}

// Reconcile handles GET /api/v1/drivers-balance/:driverId/reconciliation.
// A mismatch is reported in the body, not as an error status.
func (h *WalletHandler) Reconcile(c *gin.Context) {
	var uri dto.DriverURI
	if !bindURI(c, &uri) {
		return
	}

	report, err := h.reconSvc.ReconcileDriver(c.Request.Context(), uuid.MustParse(uri.DriverID))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "no-store")
	response.OK(c, toReconciliationResponse(report))
}
