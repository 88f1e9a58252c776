package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/linkstash/backend/internal/logging"
	"github.com/linkstash/backend/internal/middleware"
	"github.com/linkstash/backend/internal/social"
)

// FriendHandler exposes the friend-request protocol over HTTP.
type FriendHandler struct {
	Social  SocialGraph
	Limiter RateLimiter
}

// Request handles POST /api/v1/friends/request.
func (h FriendHandler) Request(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	if !allowRequest(h.Limiter, r, "friend-request") {
		respondError(ctx, w, http.StatusTooManyRequests, "too many requests")
		return
	}

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req friendRequestPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid friend request payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.ToUsername = strings.TrimSpace(req.ToUsername)
	if req.ToUsername == "" {
		respondError(ctx, w, http.StatusBadRequest, "recipient username is required")
		return
	}

	outcome, err := h.Social.SendRequest(ctx, userID, req.ToUsername)
	if err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	message := "friend request sent"
	if outcome == social.OutcomeAutoAccepted {
		message = "mutual friend request auto-accepted"
	}
	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": message})
}

// ListIncoming handles GET /api/v1/friends/requests.
func (h FriendHandler) ListIncoming(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	pending, err := h.Social.ListIncoming(ctx, userID)
	if err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"pending": emptyIfNil(pending)})
}

// ListSent handles GET /api/v1/friends/sent-requests.
func (h FriendHandler) ListSent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	sent, err := h.Social.ListSent(ctx, userID)
	if err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"sent": emptyIfNil(sent)})
}

// Accept handles POST /api/v1/friends/accept.
func (h FriendHandler) Accept(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	fromID, ok := decodeCounterpart(ctx, w, r, "fromId")
	if !ok {
		return
	}

	if err := h.Social.Accept(ctx, userID, fromID); err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "friend request accepted"})
}

// Reject handles POST /api/v1/friends/reject.
func (h FriendHandler) Reject(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	fromID, ok := decodeCounterpart(ctx, w, r, "fromId")
	if !ok {
		return
	}

	if err := h.Social.Reject(ctx, userID, fromID); err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "friend request rejected"})
}

// Cancel handles POST /api/v1/friends/cancel.
func (h FriendHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	toID, ok := decodeCounterpart(ctx, w, r, "toId")
	if !ok {
		return
	}

	if err := h.Social.Cancel(ctx, userID, toID); err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "friend request cancelled"})
}

// Remove handles POST /api/v1/friends/remove.
func (h FriendHandler) Remove(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	friendID, ok := decodeCounterpart(ctx, w, r, "friendId")
	if !ok {
		return
	}

	if err := h.Social.Remove(ctx, userID, friendID); err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "friend removed"})
}

// List handles GET /api/v1/friends.
func (h FriendHandler) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	friends, err := h.Social.ListFriends(ctx, userID)
	if err != nil {
		respondProtocolError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{"friends": emptyIfNil(friends)})
}

type friendRequestPayload struct {
	ToUsername string `json:"toUsername"`
}

// decodeCounterpart extracts the single counterpart user id carried in the
// request body under the given JSON field name.
func decodeCounterpart(ctx context.Context, w http.ResponseWriter, r *http.Request, field string) (string, bool) {
	var body map[string]string
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		logging.FromContext(ctx).Warn("invalid payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return "", false
	}

	id := strings.TrimSpace(body[field])
	if id == "" {
		respondError(ctx, w, http.StatusBadRequest, field+" required")
		return "", false
	}
	return id, true
}

// respondProtocolError maps social protocol errors onto the HTTP contract.
func respondProtocolError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, social.ErrUserNotFound):
		respondError(ctx, w, http.StatusNotFound, "user not found")
	case errors.Is(err, social.ErrInvalidID):
		respondError(ctx, w, http.StatusBadRequest, "invalid user id")
	case errors.Is(err, social.ErrSelfRequest):
		respondError(ctx, w, http.StatusBadRequest, "you cannot add yourself")
	case errors.Is(err, social.ErrAlreadyFriends):
		respondError(ctx, w, http.StatusBadRequest, "already friends")
	case errors.Is(err, social.ErrDuplicateRequest):
		respondError(ctx, w, http.StatusBadRequest, "friend request already sent")
	case errors.Is(err, social.ErrNoSuchRequest):
		respondError(ctx, w, http.StatusBadRequest, "no such friend request")
	case errors.Is(err, social.ErrNotFriends):
		respondError(ctx, w, http.StatusBadRequest, "users are not friends")
	default:
		logging.FromContext(ctx).Error("social graph operation failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "something went wrong")
	}
}

// emptyIfNil keeps empty listings serialized as [] rather than null.
func emptyIfNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
