package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/kozaktomas/traceon/internal/check"
	"github.com/kozaktomas/traceon/internal/constants"
	"github.com/kozaktomas/traceon/internal/extract"
	"github.com/kozaktomas/traceon/internal/gallery"
)

// IdentityResponse is a gallery identity without its descriptor.
type IdentityResponse struct {
	Position int              `json:"position"`
	Name     string           `json:"name"`
	Metadata gallery.Metadata `json:"metadata"`
}

// NeighborResponse is one entry of a nearest-identity lookup.
type NeighborResponse struct {
	IdentityResponse
	Distance        float64 `json:"distance"`
	WithinTolerance bool    `json:"within_tolerance"`
}

// NearestResponse is the body of POST /api/v1/diagnostics/nearest.
type NearestResponse struct {
	Tolerance float64            `json:"tolerance"`
	Dimension int                `json:"dimension"`
	Neighbors []NeighborResponse `json:"neighbors"`
}

// GalleryHandler exposes the loaded gallery read-only.
type GalleryHandler struct {
	service *check.Service
	index   *gallery.NearestIndex
}

// NewGalleryHandler creates a gallery handler for the service's store.
func NewGalleryHandler(svc *check.Service) *GalleryHandler {
	return &GalleryHandler{
		service: svc,
		index:   gallery.NewNearestIndex(svc.Store()),
	}
}

// List handles GET /api/v1/gallery.
func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	store := h.service.Store()
	result := make([]IdentityResponse, 0, store.Len())
	for i, id := range store.Entries() {
		result = append(result, IdentityResponse{Position: i, Name: id.Label, Metadata: id.Metadata})
	}
	respondJSON(w, http.StatusOK, result)
}

// Get handles GET /api/v1/gallery/{label}.
func (h *GalleryHandler) Get(w http.ResponseWriter, r *http.Request) {
	label := chi.URLParam(r, "label")
	store := h.service.Store()

	pos, ok := store.Position(label)
	if !ok {
		log.WithField("label", sanitizeForLog(label)).Debug("Identity not found")
		respondError(w, http.StatusNotFound, "identity not found")
		return
	}
	id, _ := store.At(pos)
	respondJSON(w, http.StatusOK, IdentityResponse{Position: pos, Name: id.Label, Metadata: id.Metadata})
}

func parseLimit(s string) (int, bool) {
	if s == "" {
		return constants.DefaultNearestLimit, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, false
	}
	return min(n, constants.MaxNearestLimit), true
}

// Nearest handles POST /api/v1/diagnostics/nearest. It lists the identities
// closest to the uploaded face regardless of tolerance, so operators can see
// how far apart real matches and non-matches sit for their extractor.
func (h *GalleryHandler) Nearest(w http.ResponseWriter, r *http.Request) {
	file, ok := readImageUpload(w, r)
	if !ok {
		return
	}
	defer file.Close()

	limit, ok := parseLimit(r.FormValue("limit"))
	if !ok {
		respondError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	query, err := h.service.Descriptor(r.Context(), data)
	switch {
	case errors.Is(err, check.ErrNoFace):
		respondError(w, http.StatusUnprocessableEntity, msgNoFace)
		return
	case errors.Is(err, extract.ErrUnsupportedImage):
		respondError(w, http.StatusBadRequest, "image could not be decoded")
		return
	case err != nil:
		log.WithError(err).Error("Descriptor extraction failed")
		respondError(w, http.StatusBadGateway, "descriptor extraction failed")
		return
	}

	neighbors, err := h.index.Nearest(query, limit)
	if err != nil {
		log.WithError(err).Warn("Nearest identity lookup failed")
		respondError(w, http.StatusUnprocessableEntity, "descriptor dimension does not match the gallery")
		return
	}

	tolerance := h.service.Tolerance()
	resp := NearestResponse{
		Tolerance: tolerance,
		Dimension: h.service.Store().Dim(),
		Neighbors: make([]NeighborResponse, 0, len(neighbors)),
	}
	for _, n := range neighbors {
		resp.Neighbors = append(resp.Neighbors, NeighborResponse{
			IdentityResponse: IdentityResponse{Position: n.Position, Name: n.Identity.Label, Metadata: n.Identity.Metadata},
			Distance:         n.Distance,
			WithinTolerance:  n.Distance <= tolerance,
		})
	}

	log.WithFields(log.Fields{
		"neighbors": len(resp.Neighbors),
		"limit":     limit,
	}).Debug("Nearest identities computed")
	respondJSON(w, http.StatusOK, resp)
}
