package repository

import (
	"context"
	"time"

	"medqueue/internal/models"

	"github.com/google/uuid"
)

// AuditLogRepository defines the interface for audit log operations
type AuditLogRepository interface {
	Repository
	Create(ctx context.Context, log *models.CreateAuditLogRequest) error
	List(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, error)
	CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error)
}

// AuditLogFilter defines the filter options for listing audit logs
type AuditLogFilter struct {
	UserID        *uuid.UUID           // Filter by user ID
	Actions       []models.AuditAction // Filter by actions
	EntityTypes   []string             // Filter by entity types
	EntityIDs     []string             // Filter by entity IDs
	CreatedBefore *time.Time
	CreatedAfter  *time.Time
	Limit         *int
	Offset        *int
}
