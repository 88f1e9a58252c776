package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/linkstash/backend/internal/auth"
	"github.com/linkstash/backend/internal/config"
	"github.com/linkstash/backend/internal/db"
	"github.com/linkstash/backend/internal/handlers"
	"github.com/linkstash/backend/internal/middleware"
	"github.com/linkstash/backend/internal/repositories"
	"github.com/linkstash/backend/internal/social"
	"github.com/linkstash/backend/internal/storage"
)

// buildDependencies wires repositories, services, and handler collaborators
// around the shared connection pool.
func buildDependencies(ctx context.Context, pool db.Pool, cfg config.Config) (handlers.Dependencies, error) {
	users := repositories.NewPostgresUserRepository(pool)
	rels := repositories.NewPostgresRelationshipRepository(pool)
	content := repositories.NewPostgresContentRepository(pool, cfg.ContentRetentionCap)
	sessions := repositories.NewPostgresSessionStore(pool)

	manager := auth.NewManager([]byte(cfg.JWTSecret), cfg.AccessTokenTTL, cfg.RefreshTokenTTL, sessions)
	graph := social.NewService(users, rels)

	var avatars handlers.AvatarStorage
	if cfg.ObjectStore.Bucket != "" {
		s3, err := storage.NewS3Storage(ctx, cfg.ObjectStore)
		if err != nil {
			return handlers.Dependencies{}, err
		}
		avatars = s3
	} else {
		slog.Info("avatar storage disabled: no bucket configured")
	}

	limiter := middleware.NewIPRateLimiter(10, time.Minute, 5, 10*time.Minute)

	return handlers.Dependencies{
		Users:    users,
		Sessions: manager,
		Verifier: manager,
		Social:   graph,
		Content:  content,
		Avatars:  avatars,
		Limiter:  limiter,
	}, nil
}
