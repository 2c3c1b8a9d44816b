package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"

	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
	"edgelink/internal/engine/redirect"
	"edgelink/internal/engine/resolve"
	"edgelink/internal/pkg/geoip"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	// In-memory sqlite is per-connection; one shared connection keeps the
	// recorder workers and the test on the same database.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	schema := `
	CREATE TABLE links (
		id TEXT PRIMARY KEY,
		slug TEXT UNIQUE NOT NULL,
		destination_url TEXT NOT NULL,
		title TEXT DEFAULT '',
		created_by TEXT DEFAULT '',
		redirect_type TEXT DEFAULT 'temporary',
		rules TEXT,
		status TEXT DEFAULT 'active',
		expires_at INTEGER,
		max_clicks INTEGER,
		password_hash TEXT DEFAULT '',
		click_count INTEGER DEFAULT 0,
		last_click_at INTEGER,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);`
	if _, err := db.Exec(schema); err != nil {
		t.Fatalf("failed to create schema: %v", err)
	}
	return db
}

type memorySink struct {
	mu     sync.Mutex
	clicks []*analytics.Click
}

func (m *memorySink) InsertClick(c *analytics.Click) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clicks = append(m.clicks, c)
	return nil
}

func (m *memorySink) last() *analytics.Click {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.clicks) == 0 {
		return nil
	}
	return m.clicks[len(m.clicks)-1]
}

func newTestHandler(t *testing.T, db *sql.DB) (*RedirectHandler, *memorySink, *redirect.Recorder) {
	t.Helper()

	repo := links.NewRepository(db)
	sink := &memorySink{}
	cache := redirect.NewMemoryCache(time.Minute)
	rec, err := redirect.NewRecorder(sink, repo, nil, cache, 16, 1)
	if err != nil {
		t.Fatalf("NewRecorder: %v", err)
	}

	h := NewRedirectHandler(
		repo,
		cache,
		nil,
		resolve.NewExtractor(geoip.NewNoopResolver(), "", "test-secret"),
		rec,
	)
	return h, sink, rec
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func seedLink(t *testing.T, db *sql.DB, link *links.Link) {
	t.Helper()
	now := time.Now().Unix()
	if link.CreatedAt == 0 {
		link.CreatedAt = now
		link.UpdatedAt = now
	}
	if link.Status == "" {
		link.Status = links.StatusActive
	}
	if link.RedirectType == "" {
		link.RedirectType = "temporary"
	}
	if err := links.NewRepository(db).Create(link); err != nil {
		t.Fatalf("seed link: %v", err)
	}
}

func get(h *RedirectHandler, target string, hdr map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = "203.0.113.9:51000"
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.Handle(w, req)
	return w
}

func TestRedirectHandler_BasicRedirect(t *testing.T) {
	db := setupTestDB(t)
	h, sink, rec := newTestHandler(t, db)

	seedLink(t, db, &links.Link{ID: "l1", Slug: "promo", DestinationURL: "https://example.com"})

	w := get(h, "/promo", nil)
	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "https://example.com" {
		t.Errorf("location = %s", loc)
	}

	rec.Stop()
	click := sink.last()
	if click == nil {
		t.Fatal("click not recorded")
	}
	if click.MatchedRule != string(resolve.MatchDefault) {
		t.Errorf("matched rule = %s", click.MatchedRule)
	}

	// Counter ran through the store.
	got, _ := links.NewRepository(db).GetByID("l1")
	if got.ClickCount != 1 {
		t.Errorf("click_count = %d, want 1", got.ClickCount)
	}
}

func TestRedirectHandler_PermanentRedirect(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	seedLink(t, db, &links.Link{ID: "l1", Slug: "perm", DestinationURL: "https://example.com", RedirectType: "permanent"})

	w := get(h, "/perm", nil)
	if w.Code != http.StatusMovedPermanently {
		t.Errorf("status = %d, want 301", w.Code)
	}
}

func TestRedirectHandler_UnknownSlug(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	if w := get(h, "/nothing", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRedirectHandler_MultiSegmentPathIsNotASlug(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	if w := get(h, "/a/b", nil); w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestRedirectHandler_DeviceRouting(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	seedLink(t, db, &links.Link{
		ID: "l1", Slug: "routed", DestinationURL: "https://example.com",
		Rules: &links.RoutingRules{Device: map[string]string{"mobile": "https://m.example.com"}},
	})

	w := get(h, "/routed", map[string]string{
		"User-Agent": "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X)",
	})
	if loc := w.Header().Get("Location"); loc != "https://m.example.com" {
		t.Errorf("location = %s, want mobile destination", loc)
	}

	w = get(h, "/routed", map[string]string{
		"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64)",
	})
	if loc := w.Header().Get("Location"); loc != "https://example.com" {
		t.Errorf("location = %s, want default destination", loc)
	}
}

func TestRedirectHandler_ExpiredLink(t *testing.T) {
	db := setupTestDB(t)
	h, sink, rec := newTestHandler(t, db)

	past := time.Now().Add(-time.Hour).Unix()
	seedLink(t, db, &links.Link{ID: "l1", Slug: "old", DestinationURL: "https://example.com", ExpiresAt: &past})

	w := get(h, "/old", nil)
	if w.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410", w.Code)
	}
	var body struct {
		Code string `json:"code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("body not JSON: %v", err)
	}
	if body.Code != "LINK_EXPIRED" {
		t.Errorf("error code = %s", body.Code)
	}

	rec.Stop()
	if sink.last() != nil {
		t.Error("blocked request must not record a click")
	}
}

func TestRedirectHandler_ClickLimit(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	max := int64(3)
	seedLink(t, db, &links.Link{
		ID: "l1", Slug: "capped", DestinationURL: "https://example.com",
		MaxClicks: &max, ClickCount: 3,
	})

	w := get(h, "/capped", nil)
	if w.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", w.Code)
	}
}

func TestRedirectHandler_PasswordGate(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	hash, err := bcrypt.GenerateFromPassword([]byte("open-sesame"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	seedLink(t, db, &links.Link{
		ID: "l1", Slug: "locked", DestinationURL: "https://example.com",
		PasswordHash: string(hash),
	})

	if w := get(h, "/locked", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("no password: status = %d, want 401", w.Code)
	}
	if w := get(h, "/locked?password=wrong", nil); w.Code != http.StatusForbidden {
		t.Errorf("wrong password: status = %d, want 403", w.Code)
	}
	if w := get(h, "/locked?password=open-sesame", nil); w.Code != http.StatusFound {
		t.Errorf("correct password: status = %d, want 302", w.Code)
	}
}

// Serial requests past the ceiling must be blocked once the store refuses an
// increment, even while the snapshot's TTL has not expired. One delivery past
// the ceiling is tolerated: the request that trips the refusal has already
// been redirected when the recorder processes it.
func TestRedirectHandler_SerialTrafficStopsAtClickCeiling(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)
	repo := links.NewRepository(db)

	max := int64(2)
	seedLink(t, db, &links.Link{
		ID: "l1", Slug: "capped", DestinationURL: "https://example.com",
		MaxClicks: &max,
	})

	count := func() int64 {
		got, err := repo.GetByID("l1")
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		return got.ClickCount
	}

	if w := get(h, "/capped", nil); w.Code != http.StatusFound {
		t.Fatalf("first request: status = %d", w.Code)
	}
	waitFor(t, func() bool { return count() == 1 })

	if w := get(h, "/capped", nil); w.Code != http.StatusFound {
		t.Fatalf("second request: status = %d", w.Code)
	}
	waitFor(t, func() bool { return count() == 2 })

	// Served from the still-valid snapshot; processing it trips the store's
	// refusal and evicts the snapshot.
	get(h, "/capped", nil)
	waitFor(t, func() bool {
		_, found := h.Cache.Get("capped")
		return !found
	})

	if w := get(h, "/capped", nil); w.Code != http.StatusGone {
		t.Errorf("request past ceiling: status = %d, want 410", w.Code)
	}
	if c := count(); c != 2 {
		t.Errorf("stored click_count = %d, want 2", c)
	}
}

func TestRedirectHandler_ArchivedLinkIsGone(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	seedLink(t, db, &links.Link{
		ID: "l1", Slug: "gone", DestinationURL: "https://example.com",
		Status: links.StatusArchived,
	})

	if w := get(h, "/gone", nil); w.Code != http.StatusGone {
		t.Errorf("status = %d, want 410", w.Code)
	}
}

func TestRedirectHandler_ServesFromCache(t *testing.T) {
	db := setupTestDB(t)
	h, _, _ := newTestHandler(t, db)

	seedLink(t, db, &links.Link{ID: "l1", Slug: "hot", DestinationURL: "https://example.com"})

	// First request fills the cache.
	if w := get(h, "/hot", nil); w.Code != http.StatusFound {
		t.Fatalf("warmup status = %d", w.Code)
	}

	// Change the row behind the cache's back; the stale snapshot still serves.
	if _, err := db.Exec("UPDATE links SET destination_url = 'https://changed.example.com' WHERE id = 'l1'"); err != nil {
		t.Fatalf("update: %v", err)
	}

	w := get(h, "/hot", nil)
	if loc := w.Header().Get("Location"); loc != "https://example.com" {
		t.Errorf("location = %s, want cached destination", loc)
	}

	// Invalidation makes the next read see the new destination.
	h.Cache.Invalidate("hot")
	w = get(h, "/hot", nil)
	if loc := w.Header().Get("Location"); loc != "https://changed.example.com" {
		t.Errorf("location = %s, want refreshed destination", loc)
	}
}
