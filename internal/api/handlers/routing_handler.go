package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/julienschmidt/httprouter"

	apiContext "edgelink/internal/api/context"
	"edgelink/internal/engine/analytics"
	"edgelink/internal/engine/links"
	"edgelink/internal/pkg/errors"
)

// RoutingHandler owns the management surface for routing rule sets and A/B
// tests. Every mutation goes through the links service, which persists the
// change and invalidates the cached snapshot.
type RoutingHandler struct {
	service   *links.Service
	analytics *analytics.Service
}

func NewRoutingHandler(service *links.Service, analyticsService *analytics.Service) *RoutingHandler {
	return &RoutingHandler{service: service, analytics: analyticsService}
}

func (h *RoutingHandler) GetRouting(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	link, err := h.service.GetLink(slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rules := link.Rules
	if rules == nil {
		rules = &links.RoutingRules{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(rules)
}

// SetRouting replaces one rule set. The kind comes from the path:
// PUT /api/v1/links/:slug/routing/:kind
func (h *RoutingHandler) SetRouting(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	slug := params.ByName("slug")
	kind := params.ByName("kind")

	var link *links.Link
	var err error

	switch kind {
	case "device":
		var routes map[string]string
		if decodeErr := json.NewDecoder(r.Body).Decode(&routes); decodeErr != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
		link, err = h.service.SetDeviceRouting(slug, routes)
	case "geo":
		var routes map[string]string
		if decodeErr := json.NewDecoder(r.Body).Decode(&routes); decodeErr != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
		link, err = h.service.SetGeoRouting(slug, routes)
	case "referrer":
		var rules []links.ReferrerRule
		if decodeErr := json.NewDecoder(r.Body).Decode(&rules); decodeErr != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
		link, err = h.service.SetReferrerRouting(slug, rules)
	case "time":
		var rules []links.TimeRule
		if decodeErr := json.NewDecoder(r.Body).Decode(&rules); decodeErr != nil {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
			return
		}
		link, err = h.service.SetTimeRouting(slug, rules)
	default:
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Unknown routing kind", nil)
		return
	}

	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link.Rules)
}

func (h *RoutingHandler) DeleteRouting(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	slug := params.ByName("slug")
	kind := params.ByName("kind")

	if _, err := h.service.DeleteRouting(slug, kind); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *RoutingHandler) CreateABTest(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	var req struct {
		VariantA string `json:"variant_a"`
		VariantB string `json:"variant_b"`
		Split    int    `json:"split"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	link, err := h.service.SetABTest(slug, &links.ABTest{
		VariantA: req.VariantA,
		VariantB: req.VariantB,
		Split:    req.Split,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(link.Rules.ABTest)
}

// GetABTest returns the test configuration plus recorded per-variant clicks.
func (h *RoutingHandler) GetABTest(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	link, err := h.service.GetLink(slug)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if link.Rules == nil || link.Rules.ABTest == nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "No A/B test configured", nil)
		return
	}

	test := link.Rules.ABTest
	counts, err := h.analytics.GetABTestResults(link.ID, test.VariantA, test.VariantB)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	resp := struct {
		*links.ABTest
		VariantAClicks int `json:"variant_a_clicks"`
		VariantBClicks int `json:"variant_b_clicks"`
	}{test, counts.VariantAClicks, counts.VariantBClicks}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (h *RoutingHandler) DeleteABTest(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	if _, err := h.service.DeleteABTest(slug); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
