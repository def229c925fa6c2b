package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dennisdiepolder/monti/orchestrator/internal/auth"
	"github.com/dennisdiepolder/monti/orchestrator/internal/orchestrator"
	"github.com/dennisdiepolder/monti/orchestrator/internal/types"
	"github.com/rs/zerolog"
)

// defaultUrgency is used for batch entries that omit urgencyScore
const defaultUrgency = 0.5

// SubmitRequest is the body of POST /api/tickets
type SubmitRequest struct {
	TicketID string `json:"ticketId,omitempty"`
	Text     string `json:"text"`
	UserID   string `json:"userId"`
}

// RouteTicketRequest is one pre-classified ticket
type RouteTicketRequest struct {
	TicketID     string   `json:"ticketId"`
	Category     string   `json:"category"`
	UrgencyScore *float64 `json:"urgencyScore,omitempty"`
}

// RouteResponse is returned by POST /api/tickets/route
type RouteResponse struct {
	TicketID   string               `json:"ticketId"`
	Status     types.DecisionStatus `json:"status"`
	Assignment *types.Assignment    `json:"assignment,omitempty"`
}

// BatchRequest is the body of POST /api/tickets/batch
type BatchRequest struct {
	Tickets []RouteTicketRequest `json:"tickets"`
}

// BatchResponse lists assignments and the tickets left without an agent
type BatchResponse struct {
	Assignments []types.Assignment `json:"assignments"`
	Unassigned  []string           `json:"unassigned"`
}

// TicketHandler serves ticket intake and routing
type TicketHandler struct {
	orch   Orchestrator
	logger zerolog.Logger
}

// NewTicketHandler creates a new TicketHandler
func NewTicketHandler(orch Orchestrator, logger zerolog.Logger) *TicketHandler {
	return &TicketHandler{
		orch:   orch,
		logger: logger.With().Str("component", "ticket_handler").Logger(),
	}
}

// Submit runs a ticket through the full pipeline
// POST /api/tickets
func (h *TicketHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if !decodeBody(w, r, &req) {
		return
	}

	userID := req.UserID
	if userID == "" {
		if claims, ok := auth.GetUserFromContext(r.Context()); ok {
			userID = claims.Email
		}
	}

	decision, err := h.orch.Submit(r.Context(), types.Ticket{
		ID:     strings.TrimSpace(req.TicketID),
		Text:   req.Text,
		UserID: userID,
	})
	switch {
	case errors.Is(err, orchestrator.ErrEmptyText):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, orchestrator.ErrDuplicateSubmission):
		writeError(w, http.StatusConflict, fmt.Sprintf("ticket %s is already being processed", req.TicketID))
		return
	case err != nil:
		h.logger.Error().Err(err).Msg("ticket submission failed")
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, decision)
}

// Route assigns a single pre-classified ticket
// POST /api/tickets/route
func (h *TicketHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req RouteTicketRequest
	if !decodeBody(w, r, &req) {
		return
	}

	rr, err := toRouteRequest(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := RouteResponse{TicketID: rr.TicketID, Status: types.StatusQueued}
	if a := h.orch.RouteTicket(rr); a != nil {
		resp.Status = types.StatusAssigned
		resp.Assignment = a
	}
	writeJSON(w, http.StatusOK, resp)
}

// RouteBatch assigns pre-classified tickets jointly
// POST /api/tickets/batch
func (h *TicketHandler) RouteBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if len(req.Tickets) == 0 {
		writeError(w, http.StatusBadRequest, "tickets must not be empty")
		return
	}

	reqs := make([]types.RouteRequest, 0, len(req.Tickets))
	seen := make(map[string]bool, len(req.Tickets))
	for i, t := range req.Tickets {
		rr, err := toRouteRequest(t)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("tickets[%d]: %s", i, err))
			return
		}
		if seen[rr.TicketID] {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("tickets[%d]: duplicate ticketId %s", i, rr.TicketID))
			return
		}
		seen[rr.TicketID] = true
		reqs = append(reqs, rr)
	}

	assignments := h.orch.RouteBatch(reqs)

	assigned := make(map[string]bool, len(assignments))
	for _, a := range assignments {
		assigned[a.TicketID] = true
	}
	resp := BatchResponse{Assignments: assignments, Unassigned: []string{}}
	if resp.Assignments == nil {
		resp.Assignments = []types.Assignment{}
	}
	for _, rr := range reqs {
		if !assigned[rr.TicketID] {
			resp.Unassigned = append(resp.Unassigned, rr.TicketID)
		}
	}

	h.logger.Debug().
		Int("tickets", len(reqs)).
		Int("assigned", len(assignments)).
		Msg("batch routed")
	writeJSON(w, http.StatusOK, resp)
}

func toRouteRequest(req RouteTicketRequest) (types.RouteRequest, error) {
	if strings.TrimSpace(req.TicketID) == "" {
		return types.RouteRequest{}, errors.New("ticketId is required")
	}
	category, ok := parseCategory(req.Category)
	if !ok {
		return types.RouteRequest{}, fmt.Errorf("unknown category %q", req.Category)
	}
	urgency := defaultUrgency
	if req.UrgencyScore != nil {
		urgency = *req.UrgencyScore
	}
	if urgency < 0 || urgency > 1 {
		return types.RouteRequest{}, fmt.Errorf("urgencyScore %v outside [0, 1]", urgency)
	}
	return types.RouteRequest{TicketID: req.TicketID, Category: category, UrgencyScore: urgency}, nil
}

func parseCategory(s string) (types.Category, bool) {
	for _, c := range types.AllCategories {
		if strings.EqualFold(string(c), strings.TrimSpace(s)) {
			return c, true
		}
	}
	return "", false
}
