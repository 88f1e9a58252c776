package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/linkstash/backend/internal/middleware"
	"github.com/linkstash/backend/internal/models"
	"github.com/linkstash/backend/internal/social"
)

type fakeSocialGraph struct {
	outcome social.RequestOutcome
	err     error

	sendFrom, sendTo     string
	acceptTo, acceptFrom string
	removeUser, removed  string

	pending []models.UserSummary
	sent    []models.UserSummary
	friends []models.UserSummary

	canView bool
}

func (f *fakeSocialGraph) SendRequest(_ context.Context, fromID, toUsername string) (social.RequestOutcome, error) {
	f.sendFrom, f.sendTo = fromID, toUsername
	return f.outcome, f.err
}

func (f *fakeSocialGraph) Accept(_ context.Context, toID, fromID string) error {
	f.acceptTo, f.acceptFrom = toID, fromID
	return f.err
}

func (f *fakeSocialGraph) Reject(_ context.Context, toID, fromID string) error { return f.err }

func (f *fakeSocialGraph) Cancel(_ context.Context, fromID, toID string) error { return f.err }

func (f *fakeSocialGraph) Remove(_ context.Context, userID, friendID string) error {
	f.removeUser, f.removed = userID, friendID
	return f.err
}

func (f *fakeSocialGraph) ListIncoming(_ context.Context, userID string) ([]models.UserSummary, error) {
	return f.pending, f.err
}

func (f *fakeSocialGraph) ListSent(_ context.Context, userID string) ([]models.UserSummary, error) {
	return f.sent, f.err
}

func (f *fakeSocialGraph) ListFriends(_ context.Context, userID string) ([]models.UserSummary, error) {
	return f.friends, f.err
}

func (f *fakeSocialGraph) CanViewContent(_ context.Context, requesterID string, target models.User) (bool, error) {
	return f.canView, f.err
}

func authenticated(req *http.Request, userID string) *http.Request {
	return req.WithContext(middleware.WithUserID(req.Context(), userID))
}

func postJSON(t *testing.T, target string, payload any) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return httptest.NewRequest(http.MethodPost, target, bytes.NewReader(body))
}

func TestFriendHandlerRequest(t *testing.T) {
	graph := &fakeSocialGraph{outcome: social.OutcomePending}
	handler := FriendHandler{Social: graph}

	req := authenticated(postJSON(t, "/api/v1/friends/request", friendRequestPayload{ToUsername: "bob"}), "user-1")
	rec := httptest.NewRecorder()

	handler.Request(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if graph.sendFrom != "user-1" || graph.sendTo != "bob" {
		t.Fatalf("unexpected send args: from=%q to=%q", graph.sendFrom, graph.sendTo)
	}
}

func TestFriendHandlerRequestAutoAcceptMessage(t *testing.T) {
	graph := &fakeSocialGraph{outcome: social.OutcomeAutoAccepted}
	handler := FriendHandler{Social: graph}

	req := authenticated(postJSON(t, "/api/v1/friends/request", friendRequestPayload{ToUsername: "bob"}), "user-1")
	rec := httptest.NewRecorder()

	handler.Request(rec, req)

	var resp map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["message"] != "mutual friend request auto-accepted" {
		t.Fatalf("unexpected message %q", resp["message"])
	}
}

func TestFriendHandlerRequestRequiresAuth(t *testing.T) {
	handler := FriendHandler{Social: &fakeSocialGraph{}}

	req := postJSON(t, "/api/v1/friends/request", friendRequestPayload{ToUsername: "bob"})
	rec := httptest.NewRecorder()

	handler.Request(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, rec.Code)
	}
}

func TestFriendHandlerProtocolErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{social.ErrUserNotFound, http.StatusNotFound},
		{social.ErrSelfRequest, http.StatusBadRequest},
		{social.ErrAlreadyFriends, http.StatusBadRequest},
		{social.ErrDuplicateRequest, http.StatusBadRequest},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}

	for _, tc := range cases {
		graph := &fakeSocialGraph{err: tc.err}
		handler := FriendHandler{Social: graph}

		req := authenticated(postJSON(t, "/api/v1/friends/request", friendRequestPayload{ToUsername: "bob"}), "user-1")
		rec := httptest.NewRecorder()

		handler.Request(rec, req)

		if rec.Code != tc.want {
			t.Fatalf("error %v: expected status %d got %d", tc.err, tc.want, rec.Code)
		}
	}
}

func TestFriendHandlerAccept(t *testing.T) {
	graph := &fakeSocialGraph{}
	handler := FriendHandler{Social: graph}

	req := authenticated(postJSON(t, "/api/v1/friends/accept", map[string]string{"fromId": "user-2"}), "user-1")
	rec := httptest.NewRecorder()

	handler.Accept(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if graph.acceptTo != "user-1" || graph.acceptFrom != "user-2" {
		t.Fatalf("unexpected accept args: to=%q from=%q", graph.acceptTo, graph.acceptFrom)
	}
}

func TestFriendHandlerAcceptMissingField(t *testing.T) {
	handler := FriendHandler{Social: &fakeSocialGraph{}}

	req := authenticated(postJSON(t, "/api/v1/friends/accept", map[string]string{}), "user-1")
	rec := httptest.NewRecorder()

	handler.Accept(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected status %d got %d", http.StatusBadRequest, rec.Code)
	}
}

func TestFriendHandlerRemove(t *testing.T) {
	graph := &fakeSocialGraph{}
	handler := FriendHandler{Social: graph}

	req := authenticated(postJSON(t, "/api/v1/friends/remove", map[string]string{"friendId": "user-2"}), "user-1")
	rec := httptest.NewRecorder()

	handler.Remove(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d: %s", http.StatusOK, rec.Code, rec.Body.String())
	}
	if graph.removeUser != "user-1" || graph.removed != "user-2" {
		t.Fatalf("unexpected remove args: user=%q friend=%q", graph.removeUser, graph.removed)
	}
}

func TestFriendHandlerListEmptySerializesAsArray(t *testing.T) {
	handler := FriendHandler{Social: &fakeSocialGraph{}}

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/v1/friends", nil), "user-1")
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d got %d", http.StatusOK, rec.Code)
	}
	if body := rec.Body.String(); !bytes.Contains([]byte(body), []byte(`"friends":[]`)) {
		t.Fatalf("expected empty array serialization, got %s", body)
	}
}

func TestFriendHandlerListIncoming(t *testing.T) {
	graph := &fakeSocialGraph{pending: []models.UserSummary{{ID: "user-2", Username: "bob", DisplayName: "Bob"}}}
	handler := FriendHandler{Social: graph}

	req := authenticated(httptest.NewRequest(http.MethodGet, "/api/v1/friends/requests", nil), "user-1")
	rec := httptest.NewRecorder()

	handler.ListIncoming(rec, req)

	var resp struct {
		Pending []models.UserSummary `json:"pending"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Pending) != 1 || resp.Pending[0].Username != "bob" {
		t.Fatalf("unexpected pending list: %+v", resp.Pending)
	}
}
