package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"ride-settlement/internal/core/domain"
	"ride-settlement/internal/core/ports/mocks"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditLog_TopupConfirm(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	actor := uuid.New()
	ccrID := uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = entry
		},
	)

	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(CtxUserID, actor)
		c.Next()
	})
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/drivers-balance/topups/:ccrId/confirm", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/drivers-balance/topups/"+ccrID.String()+"/confirm", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionTopupConfirm, got.Action)
	assert.Equal(t, "cash_collection_record", got.ResourceType)
	assert.Equal(t, ccrID.String(), got.ResourceID)
	require.NotNil(t, got.ActorID)
	assert.Equal(t, actor, *got.ActorID)
	assert.Contains(t, got.Details, `"status":200`)
}

func TestAuditLog_AnonymousCaller(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(
		func(_ context.Context, entry *domain.AuditLog) {
			assert.Equal(t, domain.AuditActionOrderCreate, entry.Action)
			assert.Equal(t, "T1", entry.ResourceID)
			assert.Nil(t, entry.ActorID)
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/orders/trips/:tripId", func(c *gin.Context) {
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/trips/T1", nil))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestAuditLog_TopupCreateUsesCreatedRecord(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	driverID := uuid.New()
	ccrID := uuid.New()

	var got *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, entry *domain.AuditLog) {
			got = entry
		},
	)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.POST("/api/v1/drivers-balance/:driverId/topups", func(c *gin.Context) {
		SetAuditResource(c, ccrID.String())
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/drivers-balance/"+driverID.String()+"/topups", nil))

	assert.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionTopupCreate, got.Action)
	assert.Equal(t, "cash_collection_record", got.ResourceType)
	assert.Equal(t, ccrID.String(), got.ResourceID)
	assert.Contains(t, got.Details, driverID.String())
}

func TestAuditLog_SkipsReads(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)
	// No expectations: Log must not be called for GET.

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.GET("/api/v1/orders/:orderId", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/orders/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditLog_SkipsFailedRequests(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditLog(mockAudit))
	r.DELETE("/api/v1/orders/:orderId", func(c *gin.Context) {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "paid"})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/orders/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestMapRouteToAction(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		expected domain.AuditAction
		resource string
		param    string
	}{
		{"POST", "/api/v1/drivers-balance/:driverId/wallet", domain.AuditActionWalletOpen, "wallet", "driverId"},
		{"POST", "/api/v1/drivers-balance/:driverId/topups", domain.AuditActionTopupCreate, "cash_collection_record", ""},
		{"POST", "/api/v1/drivers-balance/topups/:ccrId/confirm", domain.AuditActionTopupConfirm, "cash_collection_record", "ccrId"},
		{"POST", "/api/v1/drivers-balance/topups/:ccrId/fail", domain.AuditActionTopupFail, "cash_collection_record", "ccrId"},
		{"POST", "/api/v1/orders/trips/:tripId", domain.AuditActionOrderCreate, "order", "tripId"},
		{"PATCH", "/api/v1/orders/:orderId/confirm-cash", domain.AuditActionOrderConfirm, "order", "orderId"},
		{"PATCH", "/api/v1/orders/:orderId", domain.AuditActionOrderUpdate, "order", "orderId"},
		{"DELETE", "/api/v1/orders/:orderId", domain.AuditActionOrderDelete, "order", "orderId"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			target, ok := mapRouteToAction(tt.method, tt.path)
			require.True(t, ok)
			assert.Equal(t, tt.expected, target.action)
			assert.Equal(t, tt.resource, target.resourceType)
			assert.Equal(t, tt.param, target.param)
		})
	}

	_, ok := mapRouteToAction("GET", "/api/v1/drivers-balance/:driverId")
	assert.False(t, ok)
}
