package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dennisdiepolder/monti/orchestrator/internal/alerts"
	"github.com/dennisdiepolder/monti/orchestrator/internal/dispatch"
	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AgentRequest is the body of POST /api/agents
type AgentRequest struct {
	AgentID         string             `json:"agentId"`
	Name            string             `json:"name"`
	Skills          map[string]float64 `json:"skills"`
	MaxCapacity     int                `json:"maxCapacity"`
	CurrentCapacity *int               `json:"currentCapacity,omitempty"`
}

// AgentHandler serves the agent registry and its history
type AgentHandler struct {
	orch   Orchestrator
	store  storage.Store
	logger zerolog.Logger
}

// NewAgentHandler creates a new AgentHandler
func NewAgentHandler(orch Orchestrator, store storage.Store, logger zerolog.Logger) *AgentHandler {
	return &AgentHandler{
		orch:   orch,
		store:  store,
		logger: logger.With().Str("component", "agent_handler").Logger(),
	}
}

// List returns every agent with its load alerts
// GET /api/agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents := h.orch.AgentStatus()
	alerts.CheckAgentAlerts(agents)
	writeJSON(w, http.StatusOK, map[string]interface{}{"agents": agents})
}

// Upsert registers a new agent or replaces an existing one
// POST /api/agents
func (h *AgentHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req AgentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	agent := types.Agent{
		ID:              req.AgentID,
		Name:            req.Name,
		Skills:          make(map[types.Category]float64, len(req.Skills)),
		MaxCapacity:     req.MaxCapacity,
		CurrentCapacity: req.MaxCapacity,
	}
	if req.CurrentCapacity != nil {
		agent.CurrentCapacity = *req.CurrentCapacity
	}
	for name, skill := range req.Skills {
		category, ok := parseCategory(name)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", name))
			return
		}
		agent.Skills[category] = skill
	}

	if err := h.orch.AddAgent(agent); err != nil {
		if errors.Is(err, dispatch.ErrInvalidAgent) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error().Err(err).Str("agent_id", req.AgentID).Msg("failed to add agent")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, agent)
}

// Release returns capacity to an agent
// POST /api/agents/{agentId}/release?count=N
func (h *AgentHandler) Release(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	count := 1
	if raw := r.URL.Query().Get("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "count must be a positive integer")
			return
		}
		count = n
	}

	// Unknown agents are ignored, the same as the dispatcher does
	if !h.orch.ReleaseCapacity(agentID, count) {
		h.logger.Debug().Str("agent_id", agentID).Msg("release for unknown agent ignored")
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message": fmt.Sprintf("Released %d capacity for agent %s", count, agentID),
	})
}

// History returns the load snapshots recorded for an agent
// GET /api/agents/{agentId}/history
func (h *AgentHandler) History(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")

	stats, err := h.store.GetAgentDailyStats(r.Context(), agentID)
	if err != nil {
		h.logger.Error().Err(err).Str("agent_id", agentID).Msg("failed to get agent stats")
		writeError(w, http.StatusInternalServerError, "failed to retrieve history")
		return
	}

	if stats == nil {
		stats = []types.AgentDailyStats{}
	}
	writeJSON(w, http.StatusOK, stats)
}
