package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"hvac-cache/internal/cache"
)

// Handlers exposes the cache engine's operational surface over HTTP.
type Handlers struct {
	engine *cache.Engine
}

func NewHandlers(engine *cache.Engine) *Handlers {
	return &Handlers{engine: engine}
}

// Router builds the admin route table.
func (h *Handlers) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/api/metrics", h.GetMetrics).Methods("GET")
	r.HandleFunc("/api/invalidate", h.Invalidate).Methods("POST")
	r.HandleFunc("/api/cache", h.Clear).Methods("DELETE")
	return r
}

// Health reports whether the backing store is reachable.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if err := h.engine.Health(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		json.NewEncoder(w).Encode(map[string]string{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}

	json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
}

// GetMetrics returns the engine's current metrics snapshot.
func (h *Handlers) GetMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.engine.Metrics())
}

type invalidateRequest struct {
	Tags []string `json:"tags"`
}

// Invalidate removes every cached entry carrying any of the posted tags.
// This is the operational entry point for the manual invalidation strategy.
func (h *Handlers) Invalidate(w http.ResponseWriter, r *http.Request) {
	var req invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Tags) == 0 {
		http.Error(w, "At least one tag is required", http.StatusBadRequest)
		return
	}

	removed := h.engine.InvalidateByTags(r.Context(), req.Tags)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"invalidated": removed})
}

// Clear empties both cache tiers.
func (h *Handlers) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.engine.Clear(r.Context()); err != nil {
		http.Error(w, "Failed to clear cache", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
