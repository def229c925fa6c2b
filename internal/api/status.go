package api

import (
	"net/http"
	"time"

	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// StatusHandler exposes the failover controller and storm detector state,
// plus the persisted decision log
type StatusHandler struct {
	orch   Orchestrator
	store  storage.Store
	logger zerolog.Logger
}

// NewStatusHandler creates a new StatusHandler
func NewStatusHandler(orch Orchestrator, store storage.Store, logger zerolog.Logger) *StatusHandler {
	return &StatusHandler{
		orch:   orch,
		store:  store,
		logger: logger.With().Str("component", "status_handler").Logger(),
	}
}

// Circuit returns the failover controller status
// GET /api/circuit-breaker/status
func (h *StatusHandler) Circuit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.CircuitStatus())
}

// MasterIncidents returns the ticket to incident registry
// GET /api/master-incidents
func (h *StatusHandler) MasterIncidents(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.MasterIncidents())
}

// Decisions returns the persisted decisions of one day
// GET /api/decisions?date=YYYY-MM-DD
func (h *StatusHandler) Decisions(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(storage.DateKeyLayout)
	} else if _, err := time.Parse(storage.DateKeyLayout, date); err != nil {
		writeError(w, http.StatusBadRequest, "date must be YYYY-MM-DD")
		return
	}

	records, err := h.store.GetDecisionRecords(r.Context(), date)
	if err != nil {
		h.logger.Error().Err(err).Str("date", date).Msg("failed to get decision records")
		writeError(w, http.StatusInternalServerError, "failed to retrieve decisions")
		return
	}

	if records == nil {
		records = []types.DecisionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}
