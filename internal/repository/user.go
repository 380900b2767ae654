package repository

import (
	"context"
	"time"

	"medqueue/internal/models"

	"github.com/google/uuid"
)

// UserRepository defines the interface for user-related database operations.
// Lookups return ErrUserNotFound when nothing matches.
type UserRepository interface {
	Repository
	// Create stores a new account and assigns its id and external user id
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByUserID(ctx context.Context, userID string) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByResetCode(ctx context.Context, code string) (*models.User, error)
	// LockByID reads the account and holds a row lock until the surrounding
	// transaction ends
	LockByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	// UpdateCredentials persists password, two-factor and lockout state
	UpdateCredentials(ctx context.Context, user *models.User) error
	Count(ctx context.Context) (int, error)
	// PurgeExpiredCodes clears verification and reset codes that expired before now
	PurgeExpiredCodes(ctx context.Context, now time.Time) (int64, error)
}
