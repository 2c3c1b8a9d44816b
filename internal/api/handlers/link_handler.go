package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/julienschmidt/httprouter"

	apiContext "edgelink/internal/api/context"
	"edgelink/internal/engine/links"
	"edgelink/internal/pkg/errors"
)

type LinkHandler struct {
	service     *links.Service
	shortDomain string
}

func NewLinkHandler(service *links.Service, shortDomain string) *LinkHandler {
	return &LinkHandler{service: service, shortDomain: shortDomain}
}

func (h *LinkHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DestinationURL string `json:"destination_url"`
		CustomSlug     string `json:"custom_slug"`
		Title          string `json:"title"`
		CreatedBy      string `json:"created_by"`
		RedirectType   string `json:"redirect_type"`
		ExpiresAt      *int64 `json:"expires_at"`
		MaxClicks      *int64 `json:"max_clicks"`
		Password       string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	link, err := h.service.CreateLink(&links.CreateRequest{
		DestinationURL: req.DestinationURL,
		CustomSlug:     req.CustomSlug,
		Title:          req.Title,
		CreatedBy:      req.CreatedBy,
		RedirectType:   req.RedirectType,
		ExpiresAt:      req.ExpiresAt,
		MaxClicks:      req.MaxClicks,
		Password:       req.Password,
	})
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) List(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit < 1 || limit > 100 {
		limit = 50
	}
	offset := (page - 1) * limit

	linksList, err := h.service.ListLinks(limit, offset)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(linksList)
}

func (h *LinkHandler) Get(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	link, err := h.service.GetLink(slug)
	if err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Link not found", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) Update(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	var req links.UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	link, err := h.service.UpdateLink(slug, &req)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(link)
}

func (h *LinkHandler) Delete(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	if err := h.service.ArchiveLink(slug); err != nil {
		writeServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *LinkHandler) GetQRCode(w http.ResponseWriter, r *http.Request) {
	slug := pathSlug(r)

	if _, err := h.service.GetLink(slug); err != nil {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Link not found", nil)
		return
	}

	size, _ := strconv.Atoi(r.URL.Query().Get("size"))

	shortURL := fmt.Sprintf("https://%s/%s", h.shortDomain, slug)
	png, err := links.GenerateQRCode(shortURL, size)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func pathSlug(r *http.Request) string {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	return params.ByName("slug")
}

func writeServiceError(w http.ResponseWriter, err error) {
	if err == links.ErrNotFound {
		errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Link not found", nil)
		return
	}
	errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
}
