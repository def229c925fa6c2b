package api

import (
	"fmt"
	"net/http"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// Backlog is the queue of tickets waiting for free capacity
type Backlog interface {
	Snapshots() []types.BacklogSnapshot
	Depth() int
	Cancel(ticketID string) bool
	WipeAll() int
}

// BacklogHandler exposes the waiting ticket queues
type BacklogHandler struct {
	backlog Backlog
	logger  zerolog.Logger
}

// NewBacklogHandler creates a new BacklogHandler
func NewBacklogHandler(backlog Backlog, logger zerolog.Logger) *BacklogHandler {
	return &BacklogHandler{
		backlog: backlog,
		logger:  logger.With().Str("component", "backlog_handler").Logger(),
	}
}

// Stats returns one snapshot per category queue
// GET /api/backlog
func (h *BacklogHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"waiting": h.backlog.Depth(),
		"queues":  h.backlog.Snapshots(),
	})
}

// Cancel drops a single waiting ticket
// DELETE /api/backlog/{ticketId}
func (h *BacklogHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	ticketID := chi.URLParam(r, "ticketId")
	if !h.backlog.Cancel(ticketID) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("ticket %s is not queued", ticketID))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// WipeAll clears every queue
// DELETE /api/backlog
func (h *BacklogHandler) WipeAll(w http.ResponseWriter, r *http.Request) {
	count := h.backlog.WipeAll()
	h.logger.Info().Int("cleared", count).Msg("backlog wiped via API")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message": "all queued tickets wiped",
		"cleared": count,
	})
}
