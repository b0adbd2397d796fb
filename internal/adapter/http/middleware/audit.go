package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type auditRoute struct {
	method string
	path   string
}

type auditTarget struct {
	action       domain.AuditAction
	resourceType string
	// param names the URL parameter used when the handler did not set
	// CtxResourceID.
	param string
}

// auditRoutes maps route templates to the settlement action they perform.
var auditRoutes = map[auditRoute]auditTarget{
	{http.MethodPost, "/api/v1/drivers-balance/:driverId/wallet"}:      {domain.AuditActionWalletOpen, "wallet", "driverId"},
	{http.MethodPost, "/api/v1/drivers-balance/:driverId/topups"}:      {domain.AuditActionTopupCreate, "cash_collection_record", ""},
	{http.MethodPost, "/api/v1/drivers-balance/topups/:ccrId/confirm"}: {domain.AuditActionTopupConfirm, "cash_collection_record", "ccrId"},
	{http.MethodPost, "/api/v1/drivers-balance/topups/:ccrId/fail"}:    {domain.AuditActionTopupFail, "cash_collection_record", "ccrId"},
	{http.MethodPost, "/api/v1/orders/trips/:tripId"}:                  {domain.AuditActionOrderCreate, "order", "tripId"},
	{http.MethodPatch, "/api/v1/orders/:orderId/confirm-cash"}:         {domain.AuditActionOrderConfirm, "order", "orderId"},
	{http.MethodPatch, "/api/v1/orders/:orderId"}:                      {domain.AuditActionOrderUpdate, "order", "orderId"},
	{http.MethodDelete, "/api/v1/orders/:orderId"}:                     {domain.AuditActionOrderDelete, "order", "orderId"},
}

// AuditLog records successful settlement writes through the audit service.
func AuditLog(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status < 200 || status >= 300 {
			return
		}

		target, ok := mapRouteToAction(c.Request.Method, c.FullPath())
		if !ok {
			return
		}

		details, _ := json.Marshal(map[string]interface{}{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"status": status,
		})

		auditSvc.Log(c.Request.Context(), &domain.AuditLog{
			ID:           uuid.New(),
			ActorID:      ActorID(c),
			Action:       target.action,
			ResourceType: target.resourceType,
			ResourceID:   resourceID(c, target),
			IPAddress:    c.ClientIP(),
			Details:      string(details),
			CreatedAt:    time.Now(),
		})
	}
}

// SetAuditResource names the record a handler created so the audit entry
// points at it instead of at a URL parameter.
func SetAuditResource(c *gin.Context, id string) {
	c.Set(CtxResourceID, id)
}

func resourceID(c *gin.Context, target auditTarget) string {
	if id := c.GetString(CtxResourceID); id != "" {
		return id
	}
	if target.param == "" {
		return ""
	}
	return c.Param(target.param)
}

func mapRouteToAction(method, fullPath string) (auditTarget, bool) {
	target, ok := auditRoutes[auditRoute{method, fullPath}]
	return target, ok
}
