package api

import (
	"net/http"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
)

// HandleHealth reports liveness plus session-store occupancy.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	persisted, err := h.sessions.PersistedCount()
	if err != nil {
		writeError(w, r, domain.ErrInternal("failed to scan storage root: %s", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":                    "ok",
		"message":                   "API funcionando corretamente",
		"active_sessions_in_memory": h.sessions.ActiveCount(),
		"persisted_session_files":   persisted,
	})
}
