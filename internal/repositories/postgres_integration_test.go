package repositories

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/cockroachdb/cockroach-go/v2/testserver"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkstash/backend/internal/auth"
	"github.com/linkstash/backend/internal/models"
)

var testPool *pgxpool.Pool

func TestMain(m *testing.M) {
	server, err := testserver.NewTestServer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start cockroach test server: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, server.PGURL().String())
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect to cockroach test server: %v\n", err)
		server.Stop()
		os.Exit(1)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		fmt.Fprintf(os.Stderr, "apply migrations: %v\n", err)
		pool.Close()
		server.Stop()
		os.Exit(1)
	}

	testPool = pool

	code := m.Run()

	pool.Close()
	server.Stop()

	os.Exit(code)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrationsDir := filepath.Join("..", "..", "migrations")
	entries, err := os.ReadDir(migrationsDir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		contents, err := os.ReadFile(filepath.Join(migrationsDir, entry.Name()))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", entry.Name(), err)
		}

		if _, err := pool.Exec(ctx, string(contents)); err != nil {
			return fmt.Errorf("apply migration %s: %w", entry.Name(), err)
		}
	}

	return nil
}

func resetDatabase(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	conn, err := testPool.Acquire(ctx)
	if err != nil {
		t.Fatalf("acquire connection: %v", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "TRUNCATE TABLE friend_requests, friendships, content_items, sessions, users CASCADE"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

func createTestUser(t *testing.T, repo *PostgresUserRepository, username string) models.User {
	t.Helper()
	user := models.User{
		ID:              uuid.NewString(),
		Username:        username,
		Email:           username + "@example.com",
		Password:        "password-hash",
		DisplayName:     username,
		IsProfilePublic: true,
		CreatedAt:       time.Now().UTC(),
		LastActive:      time.Now().UTC(),
	}
	if err := repo.Create(context.Background(), user); err != nil {
		t.Fatalf("create test user %s: %v", username, err)
	}
	return user
}

func TestPostgresUserRepository(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	user := createTestUser(t, repo, "alice")

	dup := user
	dup.ID = uuid.NewString()
	if err := repo.Create(ctx, dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate username, got %v", err)
	}

	fetched, err := repo.FindByUsername(ctx, "Alice")
	if err != nil {
		t.Fatalf("find by username: %v", err)
	}
	if fetched.ID != user.ID {
		t.Fatalf("expected %s, got %s", user.ID, fetched.ID)
	}

	if _, err := repo.FindByUsername(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	fetched, err = repo.FindByEmail(ctx, "alice@example.com")
	if err != nil || fetched.ID != user.ID {
		t.Fatalf("find by email: id=%s err=%v", fetched.ID, err)
	}

	if err := repo.SetAvatarURL(ctx, user.ID, "https://cdn.example.com/avatars/a.png"); err != nil {
		t.Fatalf("set avatar url: %v", err)
	}
	fetched, err = repo.FindByID(ctx, user.ID)
	if err != nil {
		t.Fatalf("find by id: %v", err)
	}
	if fetched.AvatarURL != "https://cdn.example.com/avatars/a.png" {
		t.Fatalf("avatar url not persisted: %q", fetched.AvatarURL)
	}

	if err := repo.TouchLastActive(ctx, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound touching missing user, got %v", err)
	}
}

func TestPostgresUserRepositorySearchByPrefix(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	repo := NewPostgresUserRepository(testPool)
	for _, name := range []string{"alice", "albert", "alfred", "alma", "alva", "alwin", "bob"} {
		createTestUser(t, repo, name)
	}

	results, err := repo.SearchByPrefix(ctx, "al", 50)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != searchResultCap {
		t.Fatalf("expected results capped at %d, got %d", searchResultCap, len(results))
	}

	results, err = repo.SearchByPrefix(ctx, "", 10)
	if err != nil {
		t.Fatalf("empty search: %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("empty prefix must return no results, got %d", len(results))
	}
}

func TestPostgresRelationshipRepositoryEdges(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	repo := NewPostgresRelationshipRepository(testPool)

	if err := repo.AddEdge(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("add edge: %v", err)
	}
	// Adding the same edge again is a no-op.
	if err := repo.AddEdge(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("re-add edge: %v", err)
	}

	exists, err := repo.EdgeExists(ctx, alice.ID, bob.ID)
	if err != nil || !exists {
		t.Fatalf("edge should exist: exists=%v err=%v", exists, err)
	}
	exists, err = repo.EdgeExists(ctx, bob.ID, alice.ID)
	if err != nil {
		t.Fatalf("edge exists: %v", err)
	}
	if exists {
		t.Fatal("reverse edge must not exist implicitly")
	}

	ids, err := repo.ListFriendIDs(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list friend ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != bob.ID {
		t.Fatalf("unexpected friend ids %v", ids)
	}

	if err := repo.RemoveEdge(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("remove edge: %v", err)
	}
	// Removing an absent edge is a no-op.
	if err := repo.RemoveEdge(ctx, alice.ID, bob.ID); err != nil {
		t.Fatalf("re-remove edge: %v", err)
	}

	if err := repo.AddEdge(ctx, alice.ID, uuid.NewString()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for edge to missing user, got %v", err)
	}
}

func TestPostgresRelationshipRepositoryRequests(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	repo := NewPostgresRelationshipRepository(testPool)

	if err := repo.AddRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("add request: %v", err)
	}
	if err := repo.AddRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate request, got %v", err)
	}

	incoming, err := repo.ListIncoming(ctx, bob.ID)
	if err != nil {
		t.Fatalf("list incoming: %v", err)
	}
	if len(incoming) != 1 || incoming[0].FromID != alice.ID {
		t.Fatalf("unexpected incoming requests %+v", incoming)
	}

	sent, err := repo.ListSentTargets(ctx, alice.ID)
	if err != nil {
		t.Fatalf("list sent targets: %v", err)
	}
	if len(sent) != 1 || sent[0].Username != "bob" {
		t.Fatalf("unexpected sent targets %+v", sent)
	}

	if err := repo.RemoveRequest(ctx, bob.ID, alice.ID); err != nil {
		t.Fatalf("remove request: %v", err)
	}
	if err := repo.RemoveRequest(ctx, bob.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing consumed request, got %v", err)
	}
}

func seedContentItem(owner string, url string, created time.Time) models.ContentItem {
	return models.ContentItem{
		ID:           uuid.NewString(),
		OwnerID:      owner,
		Title:        "Title for " + url,
		Summary:      "Summary",
		URL:          url,
		ContentType:  models.ContentTypeArticle,
		Domain:       "example.com",
		Tags:         []string{"testing"},
		QualityScore: 5,
		IsPublic:     true,
		CreatedAt:    created,
	}
}

func TestPostgresContentRepositoryAddAndDedup(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	repo := NewPostgresContentRepository(testPool, 0)

	item := seedContentItem(alice.ID, "https://example.com/a", time.Now().UTC())
	if _, err := repo.Add(ctx, item); err != nil {
		t.Fatalf("add content: %v", err)
	}

	dup := seedContentItem(alice.ID, "https://example.com/a", time.Now().UTC())
	existing, err := repo.Add(ctx, dup)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict on duplicate url, got %v", err)
	}
	if existing.ID != item.ID {
		t.Fatalf("conflict must return the existing item, got %s want %s", existing.ID, item.ID)
	}
}

func TestPostgresContentRepositoryRetentionCap(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	repo := NewPostgresContentRepository(testPool, 3)

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		item := seedContentItem(alice.ID, fmt.Sprintf("https://example.com/%d", i), base.Add(time.Duration(i)*time.Minute))
		if _, err := repo.Add(ctx, item); err != nil {
			t.Fatalf("add content %d: %v", i, err)
		}
	}

	items, total, err := repo.ListForOwner(ctx, alice.ID, models.ContentFilter{}, ListPage{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("expected retention cap of 3, got total=%d len=%d", total, len(items))
	}

	// The newest items survive.
	urls := make(map[string]bool)
	for _, item := range items {
		urls[item.URL] = true
	}
	for _, want := range []string{"https://example.com/2", "https://example.com/3", "https://example.com/4"} {
		if !urls[want] {
			t.Fatalf("expected %s to survive eviction, kept %v", want, urls)
		}
	}
}

// A duplicate save is a conflict, not a write: with the retention cap at its
// limit it must neither evict an unrelated item nor slip in as a fresh row
// when the duplicate happens to be the oldest one.
func TestPostgresContentRepositoryRetentionCapDuplicateAdd(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	repo := NewPostgresContentRepository(testPool, 3)

	base := time.Now().UTC().Add(-time.Hour)
	originals := make([]models.ContentItem, 3)
	for i := range originals {
		originals[i] = seedContentItem(alice.ID, fmt.Sprintf("https://example.com/%d", i), base.Add(time.Duration(i)*time.Minute))
		if _, err := repo.Add(ctx, originals[i]); err != nil {
			t.Fatalf("add content %d: %v", i, err)
		}
	}

	// Re-save a URL in the middle of the list.
	resave := seedContentItem(alice.ID, "https://example.com/1", time.Now().UTC())
	existing, err := repo.Add(ctx, resave)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict re-saving a duplicate url, got %v", err)
	}
	if existing.ID != originals[1].ID {
		t.Fatalf("conflict must return the existing item, got %s want %s", existing.ID, originals[1].ID)
	}

	// Re-save the oldest URL: the duplicate must not be evicted to make the
	// insert succeed.
	resaveOldest := seedContentItem(alice.ID, "https://example.com/0", time.Now().UTC())
	existing, err = repo.Add(ctx, resaveOldest)
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict re-saving the oldest url, got %v", err)
	}
	if existing.ID != originals[0].ID {
		t.Fatalf("conflict must return the original oldest item, got %s want %s", existing.ID, originals[0].ID)
	}

	items, total, err := repo.ListForOwner(ctx, alice.ID, models.ContentFilter{}, ListPage{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(items) != 3 {
		t.Fatalf("duplicate saves must not change the list, got total=%d len=%d", total, len(items))
	}
	kept := make(map[string]bool)
	for _, item := range items {
		kept[item.ID] = true
	}
	for i, original := range originals {
		if !kept[original.ID] {
			t.Fatalf("item %d was evicted by a duplicate save", i)
		}
	}
}

func TestPostgresContentRepositoryListFilterAndSort(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	repo := NewPostgresContentRepository(testPool, 0)

	item1 := seedContentItem(alice.ID, "https://example.com/a", time.Now().UTC())
	item1.QualityScore = 3
	item2 := seedContentItem(alice.ID, "https://example.com/b", time.Now().UTC())
	item2.ContentType = models.ContentTypeVideo
	item2.Domain = "videos.example.org"
	item2.QualityScore = 9
	item2.IsPublic = false
	for _, item := range []models.ContentItem{item1, item2} {
		if _, err := repo.Add(ctx, item); err != nil {
			t.Fatalf("add content: %v", err)
		}
	}

	items, total, err := repo.ListForOwner(ctx, alice.ID, models.ContentFilter{ContentType: models.ContentTypeVideo}, ListPage{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("filtered list: %v", err)
	}
	if total != 1 || items[0].URL != "https://example.com/b" {
		t.Fatalf("unexpected filtered result total=%d items=%+v", total, items)
	}

	items, _, err = repo.ListForOwner(ctx, alice.ID, models.ContentFilter{}, ListPage{Page: 1, PageSize: 10, SortBy: "qualityScore", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("sorted list: %v", err)
	}
	if len(items) != 2 || items[0].QualityScore != 3 {
		t.Fatalf("expected ascending quality order, got %+v", items)
	}

	items, total, err = repo.ListPublicForOwner(ctx, alice.ID, models.ContentFilter{}, ListPage{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("public list: %v", err)
	}
	if total != 1 || items[0].URL != "https://example.com/a" {
		t.Fatalf("public list must exclude private items, got %+v", items)
	}
}

func TestPostgresContentRepositoryRemoveAndVisibility(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")
	bob := createTestUser(t, users, "bob")

	repo := NewPostgresContentRepository(testPool, 0)

	item := seedContentItem(alice.ID, "https://example.com/a", time.Now().UTC())
	if _, err := repo.Add(ctx, item); err != nil {
		t.Fatalf("add content: %v", err)
	}

	// Another user cannot touch the item.
	if err := repo.Remove(ctx, item.ID, bob.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing as non-owner, got %v", err)
	}
	if err := repo.SetVisibility(ctx, item.ID, bob.ID, false); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound updating as non-owner, got %v", err)
	}

	if err := repo.SetVisibility(ctx, item.ID, alice.ID, false); err != nil {
		t.Fatalf("set visibility: %v", err)
	}
	items, _, err := repo.ListPublicForOwner(ctx, alice.ID, models.ContentFilter{}, ListPage{Page: 1, PageSize: 10})
	if err != nil {
		t.Fatalf("public list: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("item should be private, got %+v", items)
	}

	if err := repo.Remove(ctx, item.ID, alice.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := repo.Remove(ctx, item.ID, alice.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound removing twice, got %v", err)
	}
}

func TestPostgresContentRepositoryStats(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	repo := NewPostgresContentRepository(testPool, 0)

	article := seedContentItem(alice.ID, "https://example.com/a", time.Now().UTC())
	article.QualityScore = 8
	article.ReadingMinutes = 10
	video := seedContentItem(alice.ID, "https://videos.example.org/v", time.Now().UTC())
	video.ContentType = models.ContentTypeVideo
	video.Domain = "videos.example.org"
	video.QualityScore = 6
	old := seedContentItem(alice.ID, "https://example.com/old", time.Now().UTC().Add(-30*24*time.Hour))
	old.QualityScore = 4
	for _, item := range []models.ContentItem{article, video, old} {
		if _, err := repo.Add(ctx, item); err != nil {
			t.Fatalf("add content: %v", err)
		}
	}

	stats, err := repo.Stats(ctx, alice.ID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalContent != 3 || stats.ArticleCount != 2 || stats.VideoCount != 1 {
		t.Fatalf("unexpected counts: %+v", stats)
	}
	if stats.AverageQualityScore < 5.9 || stats.AverageQualityScore > 6.1 {
		t.Fatalf("unexpected average quality %v", stats.AverageQualityScore)
	}
	if stats.TotalReadingTime != 10 {
		t.Fatalf("unexpected total reading time %d", stats.TotalReadingTime)
	}
	if stats.RecentCount != 2 {
		t.Fatalf("expected 2 recent items, got %d", stats.RecentCount)
	}
	if len(stats.TopDomains) == 0 || stats.TopDomains[0].Domain != "example.com" {
		t.Fatalf("unexpected top domains %+v", stats.TopDomains)
	}
}

func TestPostgresSessionStore(t *testing.T) {
	ctx := context.Background()
	resetDatabase(t)

	users := NewPostgresUserRepository(testPool)
	alice := createTestUser(t, users, "alice")

	store := NewPostgresSessionStore(testPool)

	session := auth.Session{
		RefreshToken: "refresh-token-1",
		UserID:       alice.ID,
		ExpiresAt:    time.Now().UTC().Add(time.Hour),
	}
	if err := store.Save(ctx, session); err != nil {
		t.Fatalf("save session: %v", err)
	}

	found, err := store.Find(ctx, session.RefreshToken)
	if err != nil {
		t.Fatalf("find session: %v", err)
	}
	if found.UserID != alice.ID {
		t.Fatalf("unexpected session %+v", found)
	}

	if err := store.Delete(ctx, session.RefreshToken); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if _, err := store.Find(ctx, session.RefreshToken); !errors.Is(err, auth.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}
