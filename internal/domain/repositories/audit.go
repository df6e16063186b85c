package repositories

import (
	"context"

	"github.com/devilmonastery/creatorlink/internal/domain/entities"
)

// AuditRepository defines the interface for audit log data access
type AuditRepository interface {
	// Create a new audit log entry
	Create(ctx context.Context, log *entities.AuditLog) error

	// ListByUser retrieves the most recent audit logs for a user, newest first
	ListByUser(ctx context.Context, userID string, limit int) ([]*entities.AuditLog, error)
}
