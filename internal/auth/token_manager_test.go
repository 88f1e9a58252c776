package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func newTestManager(store *InMemorySessionStore) *Manager {
	return NewManager([]byte("test-signing-key"), time.Minute, time.Hour, store)
}

func TestManagerIssueAndVerify(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)

	tokens, err := manager.Issue(context.Background(), "user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		t.Fatalf("expected both tokens, got %+v", tokens)
	}
	if !store.Has(tokens.RefreshToken) {
		t.Fatal("refresh token was not persisted")
	}

	userID, err := manager.Verify(tokens.AccessToken)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if userID != "user-123" {
		t.Fatalf("expected user-123, got %q", userID)
	}
}

func TestManagerVerifyRejectsForgedToken(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    tokenIssuer,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("wrong-key"))
	if err != nil {
		t.Fatalf("sign forged token: %v", err)
	}

	if _, err := manager.Verify(forged); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestManagerVerifyRejectsExpiredToken(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    tokenIssuer,
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	}).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign expired token: %v", err)
	}

	if _, err := manager.Verify(expired); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestManagerVerifyRejectsWrongIssuer(t *testing.T) {
	manager := newTestManager(NewInMemorySessionStore())

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-123",
		Issuer:    "someone-else",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("test-signing-key"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}

	if _, err := manager.Verify(token); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}
}

func TestManagerRefreshRotates(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, "user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	rotated, err := manager.Refresh(ctx, tokens.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}

	if rotated.RefreshToken == tokens.RefreshToken {
		t.Fatal("refresh token was not rotated")
	}
	if store.Has(tokens.RefreshToken) {
		t.Fatal("old refresh token must be consumed")
	}

	if _, err := manager.Refresh(ctx, tokens.RefreshToken); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound on replay, got %v", err)
	}
}

func TestManagerRefreshExpiredSession(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)
	ctx := context.Background()

	if err := store.Save(ctx, Session{
		RefreshToken: "stale-token",
		UserID:       "user-123",
		ExpiresAt:    time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("save session: %v", err)
	}

	if _, err := manager.Refresh(ctx, "stale-token"); !errors.Is(err, ErrRefreshTokenExpired) {
		t.Fatalf("expected ErrRefreshTokenExpired, got %v", err)
	}
	if store.Has("stale-token") {
		t.Fatal("expired session must be deleted")
	}
}

func TestManagerRevoke(t *testing.T) {
	store := NewInMemorySessionStore()
	manager := newTestManager(store)
	ctx := context.Background()

	tokens, err := manager.Issue(ctx, "user-123")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	manager.Revoke(ctx, tokens.RefreshToken)
	if store.Has(tokens.RefreshToken) {
		t.Fatal("revoked session must be removed")
	}
}
