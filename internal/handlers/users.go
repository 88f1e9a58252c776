package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/linkstash/backend/internal/logging"
	"github.com/linkstash/backend/internal/middleware"
	"github.com/linkstash/backend/internal/repositories"
)

// maxAvatarBytes bounds avatar uploads.
const maxAvatarBytes = 2 << 20

// UserHandler exposes user search and profile endpoints.
type UserHandler struct {
	Users   UserStore
	Avatars AvatarStorage
}

// Search handles GET /api/v1/users/search?q=prefix. Results are capped
// server-side and carry only public-safe fields.
func (h UserHandler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if middleware.UserIDFromContext(ctx) == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		respondJSON(ctx, w, http.StatusOK, map[string]any{"users": []any{}})
		return
	}

	users, err := h.Users.SearchByPrefix(ctx, query, 5)
	if err != nil {
		logging.FromContext(ctx).Error("user search failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to search for users")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"users": emptyIfNil(users)})
}

// UploadAvatar handles PUT /api/v1/users/me/avatar. The raw image body is
// stored in the object store and its public location persisted on the user.
func (h UserHandler) UploadAvatar(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	if h.Avatars == nil {
		respondError(ctx, w, http.StatusServiceUnavailable, "avatar storage is not configured")
		return
	}

	contentType := r.Header.Get("Content-Type")
	ext, ok := avatarExtension(contentType)
	if !ok {
		respondError(ctx, w, http.StatusBadRequest, "unsupported image type")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxAvatarBytes)
	key := path.Join("avatars", fmt.Sprintf("%s%s", userID, ext))

	location, err := h.Avatars.Save(ctx, key, contentType, body)
	if err != nil {
		logger.Error("avatar upload failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to store avatar")
		return
	}

	if err := h.Users.SetAvatarURL(ctx, userID, location); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return
		}
		logger.Error("persist avatar url failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update profile")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"avatarUrl": location})
}

func avatarExtension(contentType string) (string, bool) {
	switch contentType {
	case "image/png":
		return ".png", true
	case "image/jpeg":
		return ".jpg", true
	case "image/webp":
		return ".webp", true
	default:
		return "", false
	}
}
