package api

import (
	"fmt"
	"net/http"

	"github.com/dennisdiepolder/monti/orchestrator/internal/storage"
	"github.com/rs/zerolog"
)

// AdminHandler handles maintenance operations
type AdminHandler struct {
	store  storage.Store
	logger zerolog.Logger
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(store storage.Store, logger zerolog.Logger) *AdminHandler {
	return &AdminHandler{
		store:  store,
		logger: logger.With().Str("component", "admin_handler").Logger(),
	}
}

// WipeDynamo truncates all DynamoDB tables
// POST /api/admin/wipe-dynamo
func (h *AdminHandler) WipeDynamo(w http.ResponseWriter, r *http.Request) {
	if err := h.store.TruncateAll(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("failed to truncate DynamoDB tables")
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to truncate: %s", err))
		return
	}

	h.logger.Info().Msg("DynamoDB tables truncated")
	writeJSON(w, http.StatusOK, map[string]string{"message": "DynamoDB tables truncated"})
}
