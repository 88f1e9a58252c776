package handlers

import (
	"net/http"

	"github.com/linkstash/backend/internal/middleware"
)

// RegisterRoutes wires HTTP handlers into the provided ServeMux. Every
// identity-bearing route sits behind the authentication middleware; the
// public-profile content listing and the auth endpoints do not.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{}
	authH := AuthHandler{Users: deps.Users, Sessions: deps.Sessions, Limiter: deps.Limiter}
	users := UserHandler{Users: deps.Users, Avatars: deps.Avatars}
	friends := FriendHandler{Social: deps.Social, Limiter: deps.Limiter}
	content := ContentHandler{Content: deps.Content, Users: deps.Users, Social: deps.Social}

	authn := middleware.Authenticate(deps.Verifier)
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authn(h))
	}

	mux.HandleFunc("GET /healthz", health.Handle)

	mux.HandleFunc("POST /api/v1/auth/signup", authH.SignUp)
	mux.HandleFunc("POST /api/v1/auth/login", authH.Login)
	mux.HandleFunc("POST /api/v1/auth/refresh", authH.Refresh)

	protected("GET /api/v1/users/search", users.Search)
	protected("PUT /api/v1/users/me/avatar", users.UploadAvatar)

	protected("POST /api/v1/friends/request", friends.Request)
	protected("GET /api/v1/friends/requests", friends.ListIncoming)
	protected("GET /api/v1/friends/sent-requests", friends.ListSent)
	protected("POST /api/v1/friends/accept", friends.Accept)
	protected("POST /api/v1/friends/reject", friends.Reject)
	protected("POST /api/v1/friends/cancel", friends.Cancel)
	protected("POST /api/v1/friends/remove", friends.Remove)
	protected("GET /api/v1/friends", friends.List)

	protected("POST /api/v1/content", content.Add)
	protected("GET /api/v1/content/my", content.ListOwn)
	protected("GET /api/v1/content/stats", content.Stats)
	protected("GET /api/v1/content/saved/{username}", content.ListSavedForUser)
	protected("DELETE /api/v1/content/{contentId}", content.Delete)
	protected("PATCH /api/v1/content/{contentId}/privacy", content.SetPrivacy)

	mux.HandleFunc("GET /api/v1/content/user/{username}", content.ListPublicForUser)
}

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Users    UserStore
	Sessions SessionManager
	Verifier middleware.TokenVerifier
	Social   SocialGraph
	Content  ContentStore
	Avatars  AvatarStorage
	Limiter  RateLimiter
}
