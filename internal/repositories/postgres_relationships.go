package repositories

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/linkstash/backend/internal/db"
	"github.com/linkstash/backend/internal/models"
)

// PostgresRelationshipRepository persists friendship edges and pending friend
// requests. Each friendship direction is its own row, so the symmetric edge
// between two users is the row pair; additions use ON CONFLICT DO NOTHING and
// removals match by value, which keeps concurrent mutations of the same user's
// lists from corrupting each other.
type PostgresRelationshipRepository struct {
	pool db.Pool
}

// NewPostgresRelationshipRepository constructs a relationship repository
// backed by PostgreSQL.
func NewPostgresRelationshipRepository(pool db.Pool) *PostgresRelationshipRepository {
	return &PostgresRelationshipRepository{pool: pool}
}

// AddEdge records one direction of a friendship, skipping silently when the
// edge is already present.
func (r *PostgresRelationshipRepository) AddEdge(ctx context.Context, userID, friendID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friendships (user_id, friend_id, created_at)
        VALUES ($1, $2, NOW())
        ON CONFLICT (user_id, friend_id) DO NOTHING
    `, userID, friendID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrNotFound
		}
		return fmt.Errorf("insert friendship: %w", err)
	}
	return nil
}

// RemoveEdge deletes one direction of a friendship. Deleting an absent edge
// is a no-op so a retried removal cannot fail halfway.
func (r *PostgresRelationshipRepository) RemoveEdge(ctx context.Context, userID, friendID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, `
        DELETE FROM friendships WHERE user_id = $1 AND friend_id = $2
    `, userID, friendID); err != nil {
		return fmt.Errorf("delete friendship: %w", err)
	}
	return nil
}

// EdgeExists reports whether userID lists friendID as a friend.
func (r *PostgresRelationshipRepository) EdgeExists(ctx context.Context, userID, friendID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM friendships WHERE user_id = $1 AND friend_id = $2)
    `, userID, friendID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("select friendship: %w", err)
	}
	return exists, nil
}

// ListFriendIDs returns the identifiers in userID's friend set.
func (r *PostgresRelationshipRepository) ListFriendIDs(ctx context.Context, userID string) ([]string, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT friend_id FROM friendships WHERE user_id = $1 ORDER BY created_at
    `, userID)
	if err != nil {
		return nil, fmt.Errorf("query friendships: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan friendship: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friendships: %w", err)
	}

	return ids, nil
}

// AddRequest appends a pending friend request to toID's list. The list is
// unique per sender, enforced by the primary key.
func (r *PostgresRelationshipRepository) AddRequest(ctx context.Context, toID, fromID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO friend_requests (to_id, from_id, requested_at)
        VALUES ($1, $2, NOW())
    `, toID, fromID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case "23505":
				return ErrConflict
			case "23503":
				return ErrNotFound
			}
		}
		return fmt.Errorf("insert friend request: %w", err)
	}
	return nil
}

// RemoveRequest deletes the pending request from fromID on toID's list,
// matching by sender id rather than position.
func (r *PostgresRelationshipRepository) RemoveRequest(ctx context.Context, toID, fromID string) error {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `
        DELETE FROM friend_requests WHERE to_id = $1 AND from_id = $2
    `, toID, fromID)
	if err != nil {
		return fmt.Errorf("delete friend request: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// RequestExists reports whether fromID has a pending request on toID's list.
func (r *PostgresRelationshipRepository) RequestExists(ctx context.Context, toID, fromID string) (bool, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var exists bool
	row := conn.QueryRow(ctx, `
        SELECT EXISTS (SELECT 1 FROM friend_requests WHERE to_id = $1 AND from_id = $2)
    `, toID, fromID)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("select friend request: %w", err)
	}
	return exists, nil
}

// ListIncoming returns toID's pending requests, oldest first.
func (r *PostgresRelationshipRepository) ListIncoming(ctx context.Context, toID string) ([]models.FriendRequest, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT to_id, from_id, requested_at
        FROM friend_requests
        WHERE to_id = $1
        ORDER BY requested_at
    `, toID)
	if err != nil {
		return nil, fmt.Errorf("query friend requests: %w", err)
	}
	defer rows.Close()

	var requests []models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		if err := rows.Scan(&req.ToID, &req.FromID, &req.RequestedAt); err != nil {
			return nil, fmt.Errorf("scan friend request: %w", err)
		}
		requests = append(requests, req)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate friend requests: %w", err)
	}

	return requests, nil
}

// ListSentTargets returns identity summaries of the users who currently hold
// a pending request from fromID.
func (r *PostgresRelationshipRepository) ListSentTargets(ctx context.Context, fromID string) ([]models.UserSummary, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
        SELECT u.id, u.username, u.display_name
        FROM friend_requests fr
        JOIN users u ON u.id = fr.to_id
        WHERE fr.from_id = $1
        ORDER BY fr.requested_at
    `, fromID)
	if err != nil {
		return nil, fmt.Errorf("query sent requests: %w", err)
	}
	defer rows.Close()

	var targets []models.UserSummary
	for rows.Next() {
		var summary models.UserSummary
		if err := rows.Scan(&summary.ID, &summary.Username, &summary.DisplayName); err != nil {
			return nil, fmt.Errorf("scan sent request target: %w", err)
		}
		targets = append(targets, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sent request targets: %w", err)
	}

	return targets, nil
}

var _ RelationshipRepository = (*PostgresRelationshipRepository)(nil)
