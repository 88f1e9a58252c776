package social

import "errors"

var (
	// ErrUserNotFound indicates one of the referenced users does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrInvalidID indicates a malformed user identifier.
	ErrInvalidID = errors.New("invalid user id")
	// ErrSelfRequest indicates a user tried to befriend themselves.
	ErrSelfRequest = errors.New("cannot send a friend request to yourself")
	// ErrAlreadyFriends indicates the pair already shares a friendship edge.
	ErrAlreadyFriends = errors.New("users are already friends")
	// ErrDuplicateRequest indicates the sender already has a pending request
	// toward the recipient.
	ErrDuplicateRequest = errors.New("friend request already sent")
	// ErrNoSuchRequest indicates the referenced pending request does not exist.
	ErrNoSuchRequest = errors.New("no such friend request")
	// ErrNotFriends indicates the pair does not share a mutual friendship edge.
	ErrNotFriends = errors.New("users are not friends")
)
