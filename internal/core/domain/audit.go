package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionWalletOpen   AuditAction = "WALLET_OPEN"
	AuditActionTopupCreate  AuditAction = "TOPUP_CREATE"
	AuditActionTopupConfirm AuditAction = "TOPUP_CONFIRM"
	AuditActionTopupFail    AuditAction = "TOPUP_FAIL"
	AuditActionOrderCreate  AuditAction = "ORDER_CREATE"
	AuditActionOrderConfirm AuditAction = "ORDER_CONFIRM"
	AuditActionOrderUpdate  AuditAction = "ORDER_UPDATE"
	AuditActionOrderDelete  AuditAction = "ORDER_DELETE"
)

// AuditLog records a single operator action against the settlement API.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actorId,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resourceType"`
	ResourceID   string      `json:"resourceId,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ipAddress"`
	CreatedAt    time.Time   `json:"createdAt"`
}
