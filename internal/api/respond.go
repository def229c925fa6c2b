package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
)

// Orchestrator is the part of the pipeline the HTTP layer needs
type Orchestrator interface {
	Submit(ctx context.Context, ticket types.Ticket) (types.Decision, error)
	RouteTicket(req types.RouteRequest) *types.Assignment
	RouteBatch(reqs []types.RouteRequest) []types.Assignment
	ReleaseCapacity(agentID string, count int) bool
	AddAgent(agent types.Agent) error
	AgentStatus() []types.AgentStatus
	CircuitStatus() types.CircuitStatus
	MasterIncidents() types.IncidentSnapshot
}

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	w.Header().Set("Content-Type", "application/json")
	http.Error(w, string(body), status)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return false
	}
	return true
}
