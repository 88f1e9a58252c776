package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/linkstash/backend/internal/logging"
	"github.com/linkstash/backend/internal/middleware"
	"github.com/linkstash/backend/internal/models"
	"github.com/linkstash/backend/internal/repositories"
)

// ContentHandler exposes saved-content endpoints.
type ContentHandler struct {
	Content ContentStore
	Users   UserStore
	Social  SocialGraph
	NowFunc func() time.Time
}

// Add handles POST /api/v1/content. The title, summary, url, and type arrive
// from the external extractor; this endpoint only validates and stores them.
func (h ContentHandler) Add(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req addContentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Warn("invalid content payload", "error", err)
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Title = strings.TrimSpace(req.Title)
	req.OriginalURL = strings.TrimSpace(req.OriginalURL)
	req.Domain = strings.TrimSpace(req.Domain)
	if req.Title == "" || req.Summary == "" || req.OriginalURL == "" || req.ContentType == "" || req.Domain == "" {
		respondError(ctx, w, http.StatusBadRequest, "missing required fields: title, summary, originalUrl, contentType, domain")
		return
	}

	switch req.ContentType {
	case models.ContentTypeArticle, models.ContentTypeVideo, models.ContentTypeOther:
	default:
		respondError(ctx, w, http.StatusBadRequest, "contentType must be article, video, or other")
		return
	}

	quality := 5.0
	if req.QualityScore != nil {
		quality = *req.QualityScore
		if quality < 0 || quality > 10 {
			respondError(ctx, w, http.StatusBadRequest, "qualityScore must be between 0 and 10")
			return
		}
	}

	isPublic := true
	if req.IsPublic != nil {
		isPublic = *req.IsPublic
	}

	item := models.ContentItem{
		ID:             uuid.NewString(),
		OwnerID:        userID,
		Title:          req.Title,
		Summary:        req.Summary,
		URL:            req.OriginalURL,
		ContentType:    req.ContentType,
		Domain:         req.Domain,
		Tags:           req.Tags,
		QualityScore:   quality,
		IsPublic:       isPublic,
		Author:         strings.TrimSpace(req.Author),
		PublishedAt:    req.PublishedDate,
		ReadingMinutes: req.ReadingTimeMinutes,
		Thumbnail:      req.Thumbnail,
		CreatedAt:      h.now(),
	}

	stored, err := h.Content.Add(ctx, item)
	if err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			respondJSON(ctx, w, http.StatusConflict, map[string]any{
				"error":   "content already exists",
				"content": stored,
			})
			return
		}
		logger.Error("add content failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to add content")
		return
	}

	respondJSON(ctx, w, http.StatusCreated, map[string]any{
		"message": "content added successfully",
		"content": stored,
	})
}

// ListOwn handles GET /api/v1/content/my.
func (h ContentHandler) ListOwn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	filter, page := listParams(r)

	items, total, err := h.Content.ListForOwner(ctx, userID, filter, page)
	if err != nil {
		logging.FromContext(ctx).Error("list own content failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch content")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"content":    emptyIfNil(items),
		"pagination": paginationBlock(page, len(items), total),
	})
}

// ListPublicForUser handles GET /api/v1/content/user/{username}. The path is
// public; it is gated on the target's profile visibility flag, not on
// friendship.
func (h ContentHandler) ListPublicForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	target, ok := h.lookupTarget(ctx, w, r)
	if !ok {
		return
	}

	if !target.IsProfilePublic {
		respondError(ctx, w, http.StatusForbidden, "user profile is private")
		return
	}

	filter, page := listParams(r)

	items, total, err := h.Content.ListPublicForOwner(ctx, target.ID, filter, page)
	if err != nil {
		logging.FromContext(ctx).Error("list public content failed", "error", err, "username", target.Username)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch user content")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"user": map[string]string{
			"username":    target.Username,
			"displayName": target.DisplayName,
			"avatarUrl":   target.AvatarURL,
		},
		"content":    emptyIfNil(items),
		"pagination": paginationBlock(page, len(items), total),
	})
}

// ListSavedForUser handles GET /api/v1/content/saved/{username}: the friend
// view of a user's saved list, readable only by the owner and the owner's
// friends regardless of the profile visibility flag.
func (h ContentHandler) ListSavedForUser(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requesterID := middleware.UserIDFromContext(ctx)
	if requesterID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	target, ok := h.lookupTarget(ctx, w, r)
	if !ok {
		return
	}

	allowed, err := h.Social.CanViewContent(ctx, requesterID, target)
	if err != nil {
		logging.FromContext(ctx).Error("content authorization check failed", "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch content")
		return
	}
	if !allowed {
		respondError(ctx, w, http.StatusForbidden, "you are not authorized to view this content")
		return
	}

	filter, page := listParams(r)

	items, total, err := h.Content.ListForOwner(ctx, target.ID, filter, page)
	if err != nil {
		logging.FromContext(ctx).Error("list saved content failed", "error", err, "username", target.Username)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch content")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]any{
		"data":       emptyIfNil(items),
		"pagination": paginationBlock(page, len(items), total),
	})
}

// Delete handles DELETE /api/v1/content/{contentId}. Missing and non-owned
// items return the same 404 so existence is not leaked.
func (h ContentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	contentID := r.PathValue("contentId")
	if err := h.Content.Remove(ctx, contentID, userID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "content not found or unauthorized")
			return
		}
		logging.FromContext(ctx).Error("delete content failed", "error", err, "contentId", contentID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete content")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "content deleted successfully"})
}

// SetPrivacy handles PATCH /api/v1/content/{contentId}/privacy.
func (h ContentHandler) SetPrivacy(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	var req struct {
		IsPublic bool `json:"isPublic"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(ctx, w, http.StatusBadRequest, "invalid request body")
		return
	}

	contentID := r.PathValue("contentId")
	if err := h.Content.SetVisibility(ctx, contentID, userID, req.IsPublic); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "content not found or unauthorized")
			return
		}
		logging.FromContext(ctx).Error("update content privacy failed", "error", err, "contentId", contentID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to update content privacy")
		return
	}

	respondJSON(ctx, w, http.StatusOK, map[string]string{"message": "content privacy updated"})
}

// Stats handles GET /api/v1/content/stats.
func (h ContentHandler) Stats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := middleware.UserIDFromContext(ctx)
	if userID == "" {
		respondError(ctx, w, http.StatusUnauthorized, "authentication required")
		return
	}

	stats, err := h.Content.Stats(ctx, userID)
	if err != nil {
		logging.FromContext(ctx).Error("content stats failed", "error", err, "userId", userID)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch content statistics")
		return
	}

	if stats.TopDomains == nil {
		stats.TopDomains = []models.DomainCount{}
	}
	respondJSON(ctx, w, http.StatusOK, map[string]any{"stats": stats})
}

func (h ContentHandler) lookupTarget(ctx context.Context, w http.ResponseWriter, r *http.Request) (models.User, bool) {
	username := strings.ToLower(strings.TrimSpace(r.PathValue("username")))
	target, err := h.Users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "user not found")
			return models.User{}, false
		}
		logging.FromContext(ctx).Error("target user lookup failed", "error", err, "username", username)
		respondError(ctx, w, http.StatusInternalServerError, "failed to fetch user")
		return models.User{}, false
	}
	return target, true
}

type addContentRequest struct {
	Title              string     `json:"title"`
	Summary            string     `json:"summary"`
	OriginalURL        string     `json:"originalUrl"`
	ContentType        string     `json:"contentType"`
	Domain             string     `json:"domain"`
	Tags               []string   `json:"tags"`
	QualityScore       *float64   `json:"qualityScore"`
	IsPublic           *bool      `json:"isPublic"`
	Author             string     `json:"author"`
	PublishedDate      *time.Time `json:"publishedDate"`
	ReadingTimeMinutes int        `json:"readingTimeMinutes"`
	Thumbnail          string     `json:"thumbnail"`
}

func listParams(r *http.Request) (models.ContentFilter, repositories.ListPage) {
	q := r.URL.Query()

	filter := models.ContentFilter{
		ContentType: strings.TrimSpace(q.Get("contentType")),
		Domain:      strings.TrimSpace(q.Get("domain")),
	}

	// Normalized here so the pagination block reports the same page size the
	// repository actually applies.
	page := repositories.ListPage{
		Page:      queryInt(q.Get("page"), 1),
		PageSize:  queryInt(q.Get("limit"), repositories.DefaultPageSize),
		SortBy:    q.Get("sortBy"),
		SortOrder: q.Get("sortOrder"),
	}.Normalize()
	return filter, page
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return fallback
	}
	return n
}

func paginationBlock(page repositories.ListPage, returned, total int) map[string]any {
	page = page.Normalize()
	totalPages := (total + page.PageSize - 1) / page.PageSize
	skip := (page.Page - 1) * page.PageSize
	current := page.Page
	return map[string]any{
		"currentPage": current,
		"totalPages":  totalPages,
		"totalCount":  total,
		"hasMore":     skip+returned < total,
	}
}

func (h ContentHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
