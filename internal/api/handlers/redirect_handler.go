package handlers

import (
	"net/http"
	"strings"

	"edgelink/internal/engine/links"
	"edgelink/internal/engine/redirect"
	"edgelink/internal/engine/resolve"
	"edgelink/internal/pkg/errors"
	"edgelink/internal/pkg/filter"
)

// RedirectHandler is the hot path: slug in, 3xx out. Everything it touches
// after the cache hit is in-memory; the only store access is the cache-miss
// refill, and click recording happens after the response is committed.
type RedirectHandler struct {
	Repo      *links.Repository
	Cache     redirect.LinkCache
	Filter    *filter.SlugFilter
	Extractor *resolve.Extractor
	Recorder  *redirect.Recorder
}

func NewRedirectHandler(repo *links.Repository, cache redirect.LinkCache, slugFilter *filter.SlugFilter, extractor *resolve.Extractor, recorder *redirect.Recorder) *RedirectHandler {
	return &RedirectHandler{
		Repo:      repo,
		Cache:     cache,
		Filter:    slugFilter,
		Extractor: extractor,
		Recorder:  recorder,
	}
}

func (h *RedirectHandler) Handle(w http.ResponseWriter, r *http.Request) {
	// Mounted as the router fallback: only single-segment GET paths are slugs.
	slug := strings.Trim(r.URL.Path, "/")
	if r.Method != http.MethodGet || slug == "" || strings.Contains(slug, "/") {
		http.NotFound(w, r)
		return
	}

	// Unknown slugs never reach the store.
	if h.Filter != nil && !h.Filter.MayExist(slug) {
		http.NotFound(w, r)
		return
	}

	var link *links.Link

	if snap, found := h.Cache.Get(slug); found {
		link = snap.Link()
	} else {
		loaded, err := h.Repo.GetBySlug(slug)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		h.Cache.Refresh(slug, loaded)
		link = loaded
	}

	if link.Status != links.StatusActive {
		errors.WriteError(w, http.StatusGone, errors.ErrCodeNotFound, "Link is no longer active", nil)
		return
	}

	reqCtx := h.Extractor.FromRequest(r)

	// Policy gate runs before resolution. A blocked link resolves nothing and
	// counts nothing.
	decision := resolve.CheckPolicy(link, reqCtx, suppliedPassword(r))
	if !decision.Allowed {
		writeBlocked(w, decision.Reason)
		return
	}

	outcome := resolve.Resolve(link, reqCtx)

	statusCode := http.StatusFound
	if link.RedirectType == "permanent" {
		statusCode = http.StatusMovedPermanently
	}

	http.Redirect(w, r, outcome.Destination, statusCode)

	h.Recorder.Record(redirect.ClickEvent{
		LinkID:       link.ID,
		Slug:         link.Slug,
		Destination:  outcome.Destination,
		MatchedRule:  outcome.MatchedRule,
		DeviceType:   reqCtx.DeviceType,
		OS:           reqCtx.OS,
		Browser:      reqCtx.Browser,
		CountryCode:  reqCtx.CountryCode,
		ReferrerHost: reqCtx.ReferrerHost,
		Fingerprint:  reqCtx.Fingerprint,
		Timestamp:    reqCtx.Now.Unix(),
		Warnings:     outcome.Warnings,
	})
}

func suppliedPassword(r *http.Request) string {
	if p := r.URL.Query().Get("password"); p != "" {
		return p
	}
	return r.PostFormValue("password")
}

func writeBlocked(w http.ResponseWriter, reason resolve.BlockReason) {
	switch reason {
	case resolve.ReasonExpired:
		errors.WriteError(w, http.StatusGone, errors.ErrCodeLinkExpired, "This link has expired", nil)
	case resolve.ReasonClickLimit:
		errors.WriteError(w, http.StatusGone, errors.ErrCodeClickLimitReached, "This link has reached its click limit", nil)
	case resolve.ReasonPasswordRequired:
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodePasswordRequired, "A password is required to access this link", nil)
	case resolve.ReasonPasswordInvalid:
		errors.WriteError(w, http.StatusForbidden, errors.ErrCodePasswordInvalid, "Incorrect password", nil)
	default:
		errors.WriteError(w, http.StatusGone, errors.ErrCodeNotFound, "Link unavailable", nil)
	}
}
