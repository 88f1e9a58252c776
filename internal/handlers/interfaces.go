package handlers

import (
	"context"
	"io"

	"github.com/linkstash/backend/internal/models"
	"github.com/linkstash/backend/internal/repositories"
	"github.com/linkstash/backend/internal/social"
)

// UserStore captures the user-directory operations required by the handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	FindByEmail(ctx context.Context, email string) (models.User, error)
	SearchByPrefix(ctx context.Context, prefix string, limit int) ([]models.UserSummary, error)
	SetAvatarURL(ctx context.Context, id, avatarURL string) error
}

// SessionManager issues and refreshes authentication tokens for users.
type SessionManager interface {
	Issue(ctx context.Context, userID string) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string) (models.SessionTokens, error)
}

// SocialGraph captures the friend-request protocol operations.
type SocialGraph interface {
	SendRequest(ctx context.Context, fromID, toUsername string) (social.RequestOutcome, error)
	Accept(ctx context.Context, toID, fromID string) error
	Reject(ctx context.Context, toID, fromID string) error
	Cancel(ctx context.Context, fromID, toID string) error
	Remove(ctx context.Context, userID, friendID string) error
	ListIncoming(ctx context.Context, userID string) ([]models.UserSummary, error)
	ListSent(ctx context.Context, userID string) ([]models.UserSummary, error)
	ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error)
	CanViewContent(ctx context.Context, requesterID string, target models.User) (bool, error)
}

// ContentStore captures persistence for saved content items.
type ContentStore interface {
	Add(ctx context.Context, item models.ContentItem) (models.ContentItem, error)
	ListForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page repositories.ListPage) ([]models.ContentItem, int, error)
	ListPublicForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page repositories.ListPage) ([]models.ContentItem, int, error)
	Remove(ctx context.Context, contentID, ownerID string) error
	SetVisibility(ctx context.Context, contentID, ownerID string, isPublic bool) error
	Stats(ctx context.Context, ownerID string) (models.ContentStats, error)
}

// AvatarStorage persists uploaded profile pictures and returns their public location.
type AvatarStorage interface {
	Save(ctx context.Context, name string, contentType string, r io.Reader) (string, error)
}
