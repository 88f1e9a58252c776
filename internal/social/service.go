package social

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/linkstash/backend/internal/logging"
	"github.com/linkstash/backend/internal/models"
	"github.com/linkstash/backend/internal/repositories"
)

// Service orchestrates the friend-request protocol on top of the user
// directory and the relationship store.
//
// Every multi-document operation here reads two user records and writes both
// without a cross-document transaction. Mutations are therefore set
// operations (add-if-absent edges, remove-by-sender requests) so that a
// partial failure or a concurrent retry degrades to a no-op instead of
// corrupting the graph. Destructive operations check both sides before
// mutating either.
type Service struct {
	users repositories.UserRepository
	rels  repositories.RelationshipRepository
}

// NewService constructs the social graph service.
func NewService(users repositories.UserRepository, rels repositories.RelationshipRepository) *Service {
	return &Service{users: users, rels: rels}
}

// RequestOutcome describes how SendRequest resolved.
type RequestOutcome int

const (
	// OutcomePending means a new pending request was recorded.
	OutcomePending RequestOutcome = iota
	// OutcomeAutoAccepted means the recipient had already requested the
	// sender, so the pair became friends immediately.
	OutcomeAutoAccepted
)

// SendRequest records a pending friend request from fromID toward the user
// named toUsername.
//
// When the recipient has already requested the sender, the two opposite
// pending requests would otherwise deadlock; instead the collision
// auto-accepts: both edge directions are added and the reverse request is
// consumed, leaving no pending state on either side.
func (s *Service) SendRequest(ctx context.Context, fromID, toUsername string) (RequestOutcome, error) {
	ctx, span := logging.StartSpan(ctx, "social.send_request")
	defer span.End()

	fromUser, err := s.users.FindByID(ctx, fromID)
	if err != nil {
		return 0, userLookupErr(err)
	}
	toUser, err := s.users.FindByUsername(ctx, toUsername)
	if err != nil {
		return 0, userLookupErr(err)
	}

	if fromUser.ID == toUser.ID {
		return 0, ErrSelfRequest
	}

	alreadyFriends, err := s.rels.EdgeExists(ctx, toUser.ID, fromUser.ID)
	if err != nil {
		return 0, fmt.Errorf("check friendship: %w", err)
	}
	if alreadyFriends {
		return 0, ErrAlreadyFriends
	}

	// Reverse request on the sender's own list means the recipient asked first.
	reverse, err := s.rels.RequestExists(ctx, fromUser.ID, toUser.ID)
	if err != nil {
		return 0, fmt.Errorf("check reverse request: %w", err)
	}
	if reverse {
		if err := s.befriend(ctx, fromUser.ID, toUser.ID); err != nil {
			return 0, err
		}
		// The reverse request may already be gone if a concurrent accept
		// consumed it; that leaves the same end state.
		if err := s.rels.RemoveRequest(ctx, fromUser.ID, toUser.ID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
			return 0, fmt.Errorf("consume reverse request: %w", err)
		}
		return OutcomeAutoAccepted, nil
	}

	if err := s.rels.AddRequest(ctx, toUser.ID, fromUser.ID); err != nil {
		if errors.Is(err, repositories.ErrConflict) {
			return 0, ErrDuplicateRequest
		}
		return 0, fmt.Errorf("record friend request: %w", err)
	}

	if err := s.users.TouchLastActive(ctx, fromUser.ID); err != nil {
		logging.FromContext(ctx).Warn("touch last active failed", "userId", fromUser.ID, "error", err)
	}

	return OutcomePending, nil
}

// Accept consumes the pending request from fromID on toID's list and adds the
// friendship edge in both directions. Edge additions are add-if-absent, so
// re-running a half-applied accept cannot duplicate the edge.
func (s *Service) Accept(ctx context.Context, toID, fromID string) error {
	ctx, span := logging.StartSpan(ctx, "social.accept")
	defer span.End()

	if err := validateID(fromID); err != nil {
		return err
	}

	if _, err := s.users.FindByID(ctx, toID); err != nil {
		return userLookupErr(err)
	}
	if _, err := s.users.FindByID(ctx, fromID); err != nil {
		return userLookupErr(err)
	}

	exists, err := s.rels.RequestExists(ctx, toID, fromID)
	if err != nil {
		return fmt.Errorf("check request: %w", err)
	}
	if !exists {
		return ErrNoSuchRequest
	}

	if err := s.befriend(ctx, toID, fromID); err != nil {
		return err
	}

	if err := s.rels.RemoveRequest(ctx, toID, fromID); err != nil && !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("consume request: %w", err)
	}

	return nil
}

// Reject removes the pending request from fromID without creating an edge.
func (s *Service) Reject(ctx context.Context, toID, fromID string) error {
	ctx, span := logging.StartSpan(ctx, "social.reject")
	defer span.End()

	if err := validateID(fromID); err != nil {
		return err
	}

	if _, err := s.users.FindByID(ctx, toID); err != nil {
		return userLookupErr(err)
	}

	if err := s.rels.RemoveRequest(ctx, toID, fromID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNoSuchRequest
		}
		return fmt.Errorf("remove request: %w", err)
	}

	return nil
}

// Cancel withdraws a request the sender previously sent to toID.
func (s *Service) Cancel(ctx context.Context, fromID, toID string) error {
	ctx, span := logging.StartSpan(ctx, "social.cancel")
	defer span.End()

	if err := validateID(toID); err != nil {
		return err
	}

	if _, err := s.users.FindByID(ctx, toID); err != nil {
		return userLookupErr(err)
	}

	if err := s.rels.RemoveRequest(ctx, toID, fromID); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return ErrNoSuchRequest
		}
		return fmt.Errorf("cancel request: %w", err)
	}

	return nil
}

// Remove deletes the friendship between userID and friendID.
//
// The edge must exist on both sides before either side is mutated. Earlier
// iterations of this protocol checked only one side, which let a half-removed
// friendship be "removed" again and leave the graph permanently asymmetric.
func (s *Service) Remove(ctx context.Context, userID, friendID string) error {
	ctx, span := logging.StartSpan(ctx, "social.remove")
	defer span.End()

	if err := validateID(friendID); err != nil {
		return err
	}

	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return userLookupErr(err)
	}
	if _, err := s.users.FindByID(ctx, friendID); err != nil {
		return userLookupErr(err)
	}

	forward, err := s.rels.EdgeExists(ctx, userID, friendID)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	backward, err := s.rels.EdgeExists(ctx, friendID, userID)
	if err != nil {
		return fmt.Errorf("check friendship: %w", err)
	}
	if !forward || !backward {
		return ErrNotFriends
	}

	if err := s.rels.RemoveEdge(ctx, userID, friendID); err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	if err := s.rels.RemoveEdge(ctx, friendID, userID); err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}

	return nil
}

// ListIncoming returns the pending requests on userID's list, each enriched
// with the sender's public identity.
func (s *Service) ListIncoming(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, userLookupErr(err)
	}

	requests, err := s.rels.ListIncoming(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incoming requests: %w", err)
	}

	return s.summaries(ctx, senderIDs(requests))
}

// ListSent returns the users who hold a pending request from userID.
func (s *Service) ListSent(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, userLookupErr(err)
	}

	targets, err := s.rels.ListSentTargets(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sent requests: %w", err)
	}
	return targets, nil
}

// ListFriends resolves userID's friend set to public identity summaries.
func (s *Service) ListFriends(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, userLookupErr(err)
	}

	ids, err := s.rels.ListFriendIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friend ids: %w", err)
	}

	return s.summaries(ctx, ids)
}

// CanViewContent reports whether requesterID may read target's saved-content
// list: only the owner and the owner's friends qualify. This is distinct from
// the public-profile listing, which gates on the profile visibility flag.
func (s *Service) CanViewContent(ctx context.Context, requesterID string, target models.User) (bool, error) {
	if requesterID == target.ID {
		return true, nil
	}
	isFriend, err := s.rels.EdgeExists(ctx, target.ID, requesterID)
	if err != nil {
		return false, fmt.Errorf("check friendship: %w", err)
	}
	return isFriend, nil
}

// befriend adds the friendship edge in both directions. Either write may land
// first; both are add-if-absent.
func (s *Service) befriend(ctx context.Context, a, b string) error {
	if err := s.rels.AddEdge(ctx, a, b); err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	if err := s.rels.AddEdge(ctx, b, a); err != nil {
		return fmt.Errorf("add friendship: %w", err)
	}
	return nil
}

// summaries resolves user ids to public identity summaries, dropping ids that
// no longer resolve.
func (s *Service) summaries(ctx context.Context, ids []string) ([]models.UserSummary, error) {
	var result []models.UserSummary
	for _, id := range ids {
		user, err := s.users.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("resolve user %s: %w", id, err)
		}
		result = append(result, models.UserSummary{
			ID:          user.ID,
			Username:    user.Username,
			DisplayName: user.DisplayName,
		})
	}
	return result, nil
}

func senderIDs(requests []models.FriendRequest) []string {
	ids := make([]string, 0, len(requests))
	for _, req := range requests {
		ids = append(ids, req.FromID)
	}
	return ids
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrInvalidID
	}
	return nil
}

func userLookupErr(err error) error {
	if errors.Is(err, repositories.ErrNotFound) {
		return ErrUserNotFound
	}
	return fmt.Errorf("lookup user: %w", err)
}
