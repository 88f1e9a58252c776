package repositories

import (
	"context"

	"github.com/linkstash/backend/internal/models"
)

// UserRepository defines the data access contract for the user directory.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	// SearchByPrefix matches usernames case-insensitively against the prefix.
	// The result count is capped server-side regardless of the caller's limit.
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.UserSummary, error)
	SetAvatarURL(ctx context.Context, id, avatarURL string) error
	TouchLastActive(ctx context.Context, id string) error
}
