package api

import (
	"encoding/json"
	"net/http"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/server"
)

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// writeError translates any error into its canonical form and status,
// attaching it to the request log.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := domain.AsAPIError(err)
	server.AddError(r.Context(), apiErr)
	writeJSON(w, apiErr.HTTPStatusCode(), map[string]any{"error": apiErr})
}
