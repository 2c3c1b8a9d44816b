package redirect

import (
	"sync"
	"time"

	"edgelink/internal/engine/links"
)

// Snapshot is the denormalized cache entry for one slug: enough to run the
// policy gate and the resolution engine without a store round trip. ClickCount
// is the count as of the last refresh; the durable ceiling check lives in the
// store's conditional increment.
type Snapshot struct {
	ID             string              `json:"id"`
	Slug           string              `json:"slug"`
	DestinationURL string              `json:"destination_url"`
	RedirectType   string              `json:"redirect_type"`
	Status         string              `json:"status"`
	Rules          *links.RoutingRules `json:"rules,omitempty"`
	ExpiresAt      *int64              `json:"expires_at,omitempty"`
	MaxClicks      *int64              `json:"max_clicks,omitempty"`
	PasswordHash   string              `json:"password_hash,omitempty"`
	ClickCount     int64               `json:"click_count"`
	CachedAt       time.Time           `json:"cached_at"`
}

func NewSnapshot(link *links.Link) *Snapshot {
	return &Snapshot{
		ID:             link.ID,
		Slug:           link.Slug,
		DestinationURL: link.DestinationURL,
		RedirectType:   link.RedirectType,
		Status:         link.Status,
		Rules:          link.Rules,
		ExpiresAt:      link.ExpiresAt,
		MaxClicks:      link.MaxClicks,
		PasswordHash:   link.PasswordHash,
		ClickCount:     link.ClickCount,
		CachedAt:       time.Now(),
	}
}

// Link reconstructs the record shape the engine operates on.
func (s *Snapshot) Link() *links.Link {
	return &links.Link{
		ID:             s.ID,
		Slug:           s.Slug,
		DestinationURL: s.DestinationURL,
		RedirectType:   s.RedirectType,
		Status:         s.Status,
		Rules:          s.Rules,
		ExpiresAt:      s.ExpiresAt,
		MaxClicks:      s.MaxClicks,
		PasswordHash:   s.PasswordHash,
		ClickCount:     s.ClickCount,
	}
}

// LinkCache is the fast lookup surface on the redirect path. Readers may see
// a stale snapshot for up to the configured TTL after a rule change; that
// bounded staleness is an accepted trade-off of the design.
type LinkCache interface {
	Get(slug string) (*Snapshot, bool)
	Refresh(slug string, link *links.Link)
	Invalidate(slug string)
}

// MemoryCache is the in-process implementation: a sync.Map with lazy TTL
// eviction on read.
type MemoryCache struct {
	store sync.Map // map[slug]*Snapshot
	ttl   time.Duration
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl}
}

func (c *MemoryCache) Get(slug string) (*Snapshot, bool) {
	val, ok := c.store.Load(slug)
	if !ok {
		return nil, false
	}

	snap := val.(*Snapshot)
	if time.Since(snap.CachedAt) > c.ttl {
		c.store.Delete(slug)
		return nil, false
	}

	return snap, true
}

func (c *MemoryCache) Refresh(slug string, link *links.Link) {
	c.store.Store(slug, NewSnapshot(link))
}

func (c *MemoryCache) Invalidate(slug string) {
	c.store.Delete(slug)
}
