package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkstash/backend/internal/db"
	"github.com/linkstash/backend/internal/models"
)

const topDomainLimit = 10

// sortColumns whitelists the caller-facing sort keys.
var sortColumns = map[string]string{
	"createdAt":    "created_at",
	"qualityScore": "quality_score",
	"title":        "title",
	"domain":       "domain",
}

// PostgresContentRepository provides PostgreSQL-backed persistence for saved
// content items. A retention cap greater than zero turns on most-recent-N
// semantics: inserting past the cap evicts the owner's oldest items first.
type PostgresContentRepository struct {
	pool         db.Pool
	retentionCap int
}

// NewPostgresContentRepository constructs a content repository backed by
// PostgreSQL. A retentionCap of zero disables eviction.
func NewPostgresContentRepository(pool db.Pool, retentionCap int) *PostgresContentRepository {
	return &PostgresContentRepository{pool: pool, retentionCap: retentionCap}
}

const contentColumns = `id, owner_id, title, summary, url, content_type, domain, tags, quality_score, is_public, author, published_at, reading_minutes, thumbnail, created_at`

func scanContentItem(row pgx.Row) (models.ContentItem, error) {
	var item models.ContentItem
	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&item.Title,
		&item.Summary,
		&item.URL,
		&item.ContentType,
		&item.Domain,
		&item.Tags,
		&item.QualityScore,
		&item.IsPublic,
		&item.Author,
		&item.PublishedAt,
		&item.ReadingMinutes,
		&item.Thumbnail,
		&item.CreatedAt,
	)
	return item, err
}

// Add persists a new content item. Saving a URL the owner already stored
// returns the existing item together with ErrConflict instead of inserting a
// duplicate.
func (r *PostgresContentRepository) Add(ctx context.Context, item models.ContentItem) (models.ContentItem, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ContentItem{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO content_items (id, owner_id, title, summary, url, content_type, domain, tags, quality_score, is_public, author, published_at, reading_minutes, thumbnail, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    `, item.ID, item.OwnerID, item.Title, item.Summary, item.URL, item.ContentType, item.Domain,
		item.Tags, item.QualityScore, item.IsPublic, item.Author, item.PublishedAt,
		item.ReadingMinutes, item.Thumbnail, item.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				existing, findErr := r.findByOwnerURL(ctx, conn, item.OwnerID, item.URL)
				if findErr != nil {
					return models.ContentItem{}, findErr
				}
				return existing, ErrConflict
			case "23503":
				return models.ContentItem{}, ErrNotFound
			}
		}
		return models.ContentItem{}, fmt.Errorf("insert content item: %w", err)
	}

	// Eviction runs only after the insert succeeds: a duplicate save is a
	// conflict, not a write, and must leave the owner's list untouched.
	if r.retentionCap > 0 {
		if err := r.evictOldest(ctx, conn, item.OwnerID); err != nil {
			return models.ContentItem{}, err
		}
	}

	return item, nil
}

// evictOldest trims the owner's items down to retentionCap, oldest first.
func (r *PostgresContentRepository) evictOldest(ctx context.Context, conn *pgxpool.Conn, ownerID string) error {
	_, err := conn.Exec(ctx, `
        DELETE FROM content_items
        WHERE owner_id = $1 AND id IN (
            SELECT id FROM content_items
            WHERE owner_id = $1
            ORDER BY created_at DESC
            OFFSET $2
        )
    `, ownerID, r.retentionCap)
	if err != nil {
		return fmt.Errorf("evict oldest content: %w", err)
	}
	return nil
}

func (r *PostgresContentRepository) findByOwnerURL(ctx context.Context, conn *pgxpool.Conn, ownerID, url string) (models.ContentItem, error) {
	row := conn.QueryRow(ctx, `
        SELECT `+contentColumns+` FROM content_items WHERE owner_id = $1 AND url = $2
    `, ownerID, url)
	item, err := scanContentItem(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.ContentItem{}, ErrNotFound
		}
		return models.ContentItem{}, fmt.Errorf("select content by url: %w", err)
	}
	return item, nil
}

// ListForOwner returns a page of the owner's items plus the total match count.
func (r *PostgresContentRepository) ListForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page ListPage) ([]models.ContentItem, int, error) {
	return r.list(ctx, ownerID, filter, page, false)
}

// ListPublicForOwner is ListForOwner narrowed to items flagged public.
func (r *PostgresContentRepository) ListPublicForOwner(ctx context.Context, ownerID string, filter models.ContentFilter, page ListPage) ([]models.ContentItem, int, error) {
	return r.list(ctx, ownerID, filter, page, true)
}

func (r *PostgresContentRepository) list(ctx context.Context, ownerID string, filter models.ContentFilter, page ListPage, publicOnly bool) ([]models.ContentItem, int, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	if publicOnly {
		where = append(where, "is_public = TRUE")
	}
	if filter.ContentType != "" {
		args = append(args, filter.ContentType)
		where = append(where, fmt.Sprintf("content_type = $%d", len(args)))
	}
	if filter.Domain != "" {
		args = append(args, filter.Domain)
		where = append(where, fmt.Sprintf("domain = $%d", len(args)))
	}
	whereClause := strings.Join(where, " AND ")

	var total int
	row := conn.QueryRow(ctx, `SELECT COUNT(*) FROM content_items WHERE `+whereClause, args...)
	if err := row.Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count content items: %w", err)
	}

	column, ok := sortColumns[page.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "DESC"
	if strings.EqualFold(page.SortOrder, "asc") {
		direction = "ASC"
	}

	page = page.Normalize()
	args = append(args, page.PageSize, (page.Page-1)*page.PageSize)
	query := fmt.Sprintf(`SELECT %s FROM content_items WHERE %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		contentColumns, whereClause, column, direction, len(args)-1, len(args))

	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query content items: %w", err)
	}
	defer rows.Close()

	var items []models.ContentItem
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan content item: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate content items: %w", err)
	}

	return items, total, nil
}

// Remove deletes an item owned by ownerID. Missing and non-owned items are
// indistinguishable to the caller.
func (r *PostgresContentRepository) Remove(ctx context.Context, contentID, ownerID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM content_items WHERE id = $1 AND owner_id = $2
    `, contentID, ownerID)
	if err != nil {
		return fmt.Errorf("delete content item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetVisibility flips the per-item public flag, with the same ownership check
// as Remove.
func (r *PostgresContentRepository) SetVisibility(ctx context.Context, contentID, ownerID string, isPublic bool) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        UPDATE content_items SET is_public = $3 WHERE id = $1 AND owner_id = $2
    `, contentID, ownerID, isPublic)
	if err != nil {
		return fmt.Errorf("update content visibility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates the owner's saved-content activity.
func (r *PostgresContentRepository) Stats(ctx context.Context, ownerID string) (models.ContentStats, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return models.ContentStats{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var stats models.ContentStats
	row := conn.QueryRow(ctx, `
        SELECT
            COUNT(*),
            COUNT(*) FILTER (WHERE content_type = 'article'),
            COUNT(*) FILTER (WHERE content_type = 'video'),
            COUNT(*) FILTER (WHERE content_type = 'other'),
            COALESCE(AVG(quality_score), 0),
            COALESCE(SUM(reading_minutes), 0),
            COUNT(*) FILTER (WHERE created_at >= NOW() - INTERVAL '7 days')
        FROM content_items
        WHERE owner_id = $1
    `, ownerID)
	if err := row.Scan(
		&stats.TotalContent,
		&stats.ArticleCount,
		&stats.VideoCount,
		&stats.OtherCount,
		&stats.AverageQualityScore,
		&stats.TotalReadingTime,
		&stats.RecentCount,
	); err != nil {
		return models.ContentStats{}, fmt.Errorf("aggregate content stats: %w", err)
	}

	rows, err := conn.Query(ctx, `
        SELECT domain, COUNT(*) AS cnt
        FROM content_items
        WHERE owner_id = $1
        GROUP BY domain
        ORDER BY cnt DESC, domain
        LIMIT $2
    `, ownerID, topDomainLimit)
	if err != nil {
		return models.ContentStats{}, fmt.Errorf("query top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dc models.DomainCount
		if err := rows.Scan(&dc.Domain, &dc.Count); err != nil {
			return models.ContentStats{}, fmt.Errorf("scan top domain: %w", err)
		}
		stats.TopDomains = append(stats.TopDomains, dc)
	}

	if err := rows.Err(); err != nil {
		return models.ContentStats{}, fmt.Errorf("iterate top domains: %w", err)
	}

	return stats, nil
}

var _ ContentRepository = (*PostgresContentRepository)(nil)
