package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Handler exposes the gateway over HTTP: the WebSocket endpoint plus a small
// JSON surface for question sets and connection stats.
type Handler struct {
	service *Service
}

// NewHandler creates a new gateway handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Register installs the gateway routes on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/ws", h.handleWebSocket)
	mux.HandleFunc("/api/question-sets", h.handleQuestionSets)
	mux.HandleFunc("/api/stats", h.handleStats)
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if _, err := h.service.Manager().UpgradeConnection(w, r); err != nil {
		// Upgrade already wrote the error response.
		return
	}
}

func (h *Handler) handleQuestionSets(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	names, err := h.service.questionsApp.ListSetNames(r.Context())
	if err != nil {
		log.Error().Err(err).Msg("list question sets")
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]interface{}{"sets": names})
}

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, h.service.Manager().GetConnectionStats())
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("encode response")
	}
}
