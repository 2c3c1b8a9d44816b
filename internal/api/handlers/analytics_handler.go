package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
	"edgelink/internal/pkg/errors"
)

type AnalyticsHandler struct {
	linkService *links.Service
	analytics   *analytics.Service
}

func NewAnalyticsHandler(linkService *links.Service, analyticsService *analytics.Service) *AnalyticsHandler {
	return &AnalyticsHandler{linkService: linkService, analytics: analyticsService}
}

func (h *AnalyticsHandler) GetLinkClicks(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	start, end := timeRange(r)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 500 {
		limit = 100
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	clicks, err := h.analytics.GetClickHistory(link.ID, start, end, limit, offset)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(clicks)
}

func (h *AnalyticsHandler) GetLinkAnalytics(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	start, end := timeRange(r)

	breakdown := make(map[string]map[string]int)
	for _, dim := range []string{"device_type", "country_code", "referrer_host", "matched_rule"} {
		counts, err := h.analytics.GetBreakdown(link.ID, dim, start, end)
		if err != nil {
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
			return
		}
		breakdown[dim] = counts
	}

	resp := struct {
		Slug        string                    `json:"slug"`
		TotalClicks int64                     `json:"total_clicks"`
		Breakdown   map[string]map[string]int `json:"breakdown"`
	}{link.Slug, link.ClickCount, breakdown}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *AnalyticsHandler) GetDailyStats(w http.ResponseWriter, r *http.Request) {
	link, ok := h.loadLink(w, r)
	if !ok {
		return
	}

	endDate := r.URL.Query().Get("end")
	if endDate == "" {
		endDate = time.Now().UTC().Format("2006-01-02")
	}
	startDate := r.URL.Query().Get("start")
	if startDate == "" {
		startDate = time.Now().UTC().AddDate(0, 0, -30).Format("2006-01-02")
	}

	stats, err := h.analytics.GetStatsOverview(link.ID, startDate, endDate)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (h *AnalyticsHandler) loadLink(w http.ResponseWriter, r *http.Request) (*links.Link, bool) {
	link, err := h.linkService.GetLink(pathSlug(r))
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Link not found", nil)
		return nil, false
	}
	return link, true
}

// timeRange parses ?range=7d style windows, defaulting to the last 7 days.
func timeRange(r *http.Request) (int64, int64) {
	now := time.Now()

	var days int
	switch r.URL.Query().Get("range") {
	case "24h":
		days = 1
	case "30d":
		days = 30
	case "90d":
		days = 90
	default:
		days = 7
	}

	return now.AddDate(0, 0, -days).Unix(), now.Unix()
}
