package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kozaktomas/traceon/internal/gallery"
)

// sanitizeForLog removes newlines and carriage returns to prevent log injection.
func sanitizeForLog(s string) string {
	return strings.NewReplacer("\n", "", "\r", "").Replace(s)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Root answers the service banner.
func Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "TraceOn AI Engine is running.",
	})
}

// HealthResponse is the body of GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"`
	GallerySize int    `json:"gallery_size"`
	Dimension   int    `json:"dimension"`
}

// Health returns a handler reporting liveness and the loaded gallery's shape.
func Health(store *gallery.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, HealthResponse{
			Status:      "ok",
			GallerySize: store.Len(),
			Dimension:   store.Dim(),
		})
	}
}
