package repositories

import (
	"context"

	"github.com/linkstash/backend/internal/models"
)

// RelationshipRepository owns the friendship edges and pending friend requests
// for every user. All mutations of either list funnel through it.
//
// Edge and request mutations are expressed as set operations: adds are
// add-if-absent and removes match by counterpart id, never by position, so a
// lost-update race between two concurrent calls degrades to a no-op instead of
// corrupting state.
type RelationshipRepository interface {
	// AddEdge records a single direction of a friendship. Adding an edge that
	// already exists is a no-op.
	AddEdge(ctx context.Context, userID, friendID string) error
	// RemoveEdge deletes a single direction of a friendship. Removing an edge
	// that is already gone is a no-op, which keeps retries of a partially
	// applied removal safe.
	RemoveEdge(ctx context.Context, userID, friendID string) error
	EdgeExists(ctx context.Context, userID, friendID string) (bool, error)
	ListFriendIDs(ctx context.Context, userID string) ([]string, error)

	// AddRequest appends a pending request from fromID on toID's list.
	// Returns ErrConflict when the sender already has a pending request there.
	AddRequest(ctx context.Context, toID, fromID string) error
	// RemoveRequest deletes the pending request from fromID on toID's list.
	// Returns ErrNotFound when no such request exists.
	RemoveRequest(ctx context.Context, toID, fromID string) error
	RequestExists(ctx context.Context, toID, fromID string) (bool, error)
	ListIncoming(ctx context.Context, toID string) ([]models.FriendRequest, error)
	// ListSentTargets returns the users holding a pending request from fromID.
	ListSentTargets(ctx context.Context, fromID string) ([]models.UserSummary, error)
}
