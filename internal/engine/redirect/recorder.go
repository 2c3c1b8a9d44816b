package redirect

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/rs/zerolog/log"

	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/resolve"
)

// ClickEvent carries everything the recorder needs as plain values, so it
// stays valid after the redirect response has been committed.
type ClickEvent struct {
	LinkID       string            `json:"link_id"`
	Slug         string            `json:"slug"`
	Destination  string            `json:"destination"`
	MatchedRule  resolve.MatchKind `json:"matched_rule"`
	DeviceType   string            `json:"device_type"`
	OS           string            `json:"os"`
	Browser      string            `json:"browser"`
	CountryCode  string            `json:"country_code"`
	ReferrerHost string            `json:"referrer_host"`
	Fingerprint  string            `json:"fingerprint"`
	Timestamp    int64             `json:"timestamp"`
	Warnings     []string          `json:"-"`
}

// ClickSink persists one click row.
type ClickSink interface {
	InsertClick(c *analytics.Click) error
}

// ClickCounter is the store's atomic increment-and-compare.
type ClickCounter interface {
	TryIncrementClickCount(id string) (bool, error)
}

// CacheInvalidator evicts a slug's cached snapshot. The recorder uses it when
// the store refuses an increment: that refusal is the first sign the click
// ceiling was reached, and evicting the snapshot makes the next request
// re-read the capped count instead of serving from stale cache for a full TTL.
type CacheInvalidator interface {
	Invalidate(slug string)
}

// Recorder is the fire-and-forget outcome recorder. Record never blocks the
// redirect path: events go through a buffered channel to a small worker pool,
// and when the queue is full the event is dropped and counted in the logs.
// Storage failures are logged and dropped, never retried.
type Recorder struct {
	sink      ClickSink
	counter   ClickCounter
	forwarder *Forwarder
	cache     CacheInvalidator
	node      *snowflake.Node

	events chan ClickEvent
	wg     sync.WaitGroup
}

func NewRecorder(sink ClickSink, counter ClickCounter, forwarder *Forwarder, cache CacheInvalidator, queueSize, workers int) (*Recorder, error) {
	node, err := snowflake.NewNode(1)
	if err != nil {
		return nil, err
	}

	if queueSize <= 0 {
		queueSize = 4096
	}
	if workers <= 0 {
		workers = 2
	}

	r := &Recorder{
		sink:      sink,
		counter:   counter,
		forwarder: forwarder,
		cache:     cache,
		node:      node,
		events:    make(chan ClickEvent, queueSize),
	}

	r.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go r.worker()
	}

	return r, nil
}

// Record enqueues the event without blocking. The caller has already sent the
// redirect; losing an event under backpressure is preferable to slowing the
// response path.
func (r *Recorder) Record(ev ClickEvent) {
	select {
	case r.events <- ev:
	default:
		log.Warn().Str("slug", ev.Slug).Msg("recorder queue full, click dropped")
	}
}

// Stop drains the queue and waits for the workers to finish.
func (r *Recorder) Stop() {
	close(r.events)
	r.wg.Wait()
}

func (r *Recorder) worker() {
	defer r.wg.Done()
	for ev := range r.events {
		r.process(ev)
	}
}

func (r *Recorder) process(ev ClickEvent) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error().Interface("panic", rec).Msg("recovered in click recorder")
		}
	}()

	for _, w := range ev.Warnings {
		log.Warn().Str("slug", ev.Slug).Str("rule_warning", w).Msg("unresolvable routing rule")
	}

	click := &analytics.Click{
		ID:           r.node.Generate().String(),
		LinkID:       ev.LinkID,
		Slug:         ev.Slug,
		Timestamp:    ev.Timestamp,
		Fingerprint:  ev.Fingerprint,
		CountryCode:  ev.CountryCode,
		DeviceType:   ev.DeviceType,
		OS:           ev.OS,
		Browser:      ev.Browser,
		ReferrerHost: ev.ReferrerHost,
		Destination:  ev.Destination,
		MatchedRule:  string(ev.MatchedRule),
	}

	if err := r.sink.InsertClick(click); err != nil {
		log.Error().Err(err).Str("slug", ev.Slug).Msg("failed to record click")
	}

	ok, err := r.counter.TryIncrementClickCount(ev.LinkID)
	if err != nil {
		log.Error().Err(err).Str("slug", ev.Slug).Msg("failed to increment click count")
	} else if !ok && r.cache != nil {
		// The store refused the increment: the ceiling is reached. Evict the
		// snapshot so the policy gate sees the capped count on the next read.
		r.cache.Invalidate(ev.Slug)
		log.Info().Str("slug", ev.Slug).Msg("click ceiling reached, snapshot evicted")
	}

	if r.forwarder != nil {
		r.forwarder.Forward(&ev)
	}
}
