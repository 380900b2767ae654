package models

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action performed
type AuditAction string

const (
	AuditActionCreate        AuditAction = "create"
	AuditActionUpdate        AuditAction = "update"
	AuditActionDelete        AuditAction = "delete"
	AuditActionRegister      AuditAction = "register"
	AuditActionLogin         AuditAction = "login"
	AuditActionLoginFailed   AuditAction = "login_failed"
	AuditActionAccountLocked AuditAction = "account_locked"
)

// AuditLog represents a record of system activity
type AuditLog struct {
	ID          uuid.UUID   `json:"id"`
	UserID      *uuid.UUID  `json:"user_id"`     // Optional: action might be system-generated
	Action      AuditAction `json:"action"`      // The type of action performed
	EntityType  string      `json:"entity_type"` // The type of entity affected (e.g., "user", "queue_entry")
	EntityID    string      `json:"entity_id"`
	Description string      `json:"description"`
	Metadata    string      `json:"metadata"` // JSON string containing additional context
	IPAddress   string      `json:"ip_address"`
	UserAgent   string      `json:"user_agent"`
	CreatedAt   time.Time   `json:"created_at"`
}

// CreateAuditLogRequest represents the request to create a new audit log entry
type CreateAuditLogRequest struct {
	UserID      *uuid.UUID  `json:"user_id"`
	Action      AuditAction `json:"action" binding:"required"`
	EntityType  string      `json:"entity_type" binding:"required"`
	EntityID    string      `json:"entity_id" binding:"required"`
	Description string      `json:"description" binding:"required"`
	Metadata    string      `json:"metadata"`
	IPAddress   string      `json:"ip_address"`
	UserAgent   string      `json:"user_agent"`
}
