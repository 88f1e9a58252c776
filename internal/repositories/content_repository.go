package repositories

import (
	"context"

	"github.com/linkstash/backend/internal/models"
)

// Pagination bounds shared by the repositories and the HTTP layer, so the
// page math handlers report always matches the rows the repository returns.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// ListPage bounds and orders a paginated content listing.
type ListPage struct {
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Normalize clamps the page number and size into their supported ranges.
func (p ListPage) Normalize() ListPage {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize <= 0 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

// ContentRepository defines data access for saved content items.
type ContentRepository interface {
	// Add persists a new item. When the owner already saved the same URL the
	// existing item is returned alongside ErrConflict and nothing is inserted.
	Add(ctx context.Context, item models.ContentItem) (models.ContentItem, error)
	ListForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page ListPage) ([]models.ContentItem, int, error)
	// ListPublicForOwner narrows the listing to items flagged public.
	ListPublicForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page ListPage) ([]models.ContentItem, int, error)
	// Remove deletes an item owned by ownerID. A missing item and an item
	// owned by someone else both yield ErrNotFound.
	Remove(ctx context.Context, contentID, ownerID string) error
	SetVisibility(ctx context.Context, contentID, ownerID string, isPublic bool) error
	Stats(ctx context.Context, ownerID string) (models.ContentStats, error)
}
