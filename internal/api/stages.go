package api

import (
	"encoding/json"
	"net/http"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/pipeline"
	"github.com/mosaiko-ai/factcheck-gateway/internal/server"
)

// checkRequest is the body of every text stage endpoint.
type checkRequest struct {
	Texto             string `json:"texto"`
	TipoMidia         string `json:"tipo_midia"`
	URLFonte          string `json:"url_fonte"`
	ContextoAdicional string `json:"contexto_adicional"`
	ProjetoID         string `json:"projeto_id"`
}

type stageResponse struct {
	Modulo    string          `json:"modulo"`
	Status    string          `json:"status"`
	ProjetoID string          `json:"projeto_id"`
	Resultado json.RawMessage `json:"resultado"`
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.ErrInvalidInput("corpo JSON inválido: %s", err)
	}
	return nil
}

func (h *Handler) decodeCheckRequest(r *http.Request) (*checkRequest, error) {
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		return nil, err
	}
	if req.TipoMidia == "" {
		req.TipoMidia = domain.MediaTypeTexto
	}
	return &req, nil
}

// validateTextRequest enforces the text-only contract of the JSON stage-1
// endpoint; images go through /modulo1-imagem.
func validateTextRequest(req *checkRequest) error {
	if req.TipoMidia != domain.MediaTypeTexto {
		return domain.ErrInvalidInput("tipo de mídia %q não suportado neste endpoint, use tipo_midia=texto", req.TipoMidia)
	}
	if req.Texto == "" {
		return domain.ErrInvalidInput("texto é obrigatório")
	}
	return nil
}

func initialFromRequest(req *checkRequest) *domain.InitialData {
	return &domain.InitialData{
		Texto:             req.Texto,
		TipoMidia:         req.TipoMidia,
		URLFonte:          req.URLFonte,
		ContextoAdicional: req.ContextoAdicional,
	}
}

// HandleModulo1 runs the extraction stage from a text payload. A missing
// projeto_id starts a fresh project.
func (h *Handler) HandleModulo1(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCheckRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTextRequest(req); err != nil {
		writeError(w, r, err)
		return
	}

	h.runStage(w, r, pipeline.RunRequest{
		ProjectID: req.ProjetoID,
		Stage:     domain.StageModulo1,
		Initial:   initialFromRequest(req),
	})
}

// stageHandler builds the handler for a downstream stage, which requires a
// projeto_id and a completed preceding stage.
func (h *Handler) stageHandler(stage domain.Stage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, err := h.decodeCheckRequest(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if req.ProjetoID == "" {
			writeError(w, r, domain.ErrInvalidInput("projeto_id é obrigatório"))
			return
		}
		h.runStage(w, r, pipeline.RunRequest{
			ProjectID: req.ProjetoID,
			Stage:     stage,
		})
	}
}

func (h *Handler) runStage(w http.ResponseWriter, r *http.Request, req pipeline.RunRequest) {
	server.AddLogField(r.Context(), "stage", string(req.Stage))

	res, err := h.sequencer.Run(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "project_id", res.ProjectID)
	writeJSON(w, http.StatusOK, stageResponse{
		Modulo:    req.Stage.DisplayName(),
		Status:    "sucesso",
		ProjetoID: res.ProjectID,
		Resultado: res.Result,
	})
}

// HandleRunAll executes all four stages sequentially for one request. Any
// stage failure aborts the chain and surfaces that stage's error.
func (h *Handler) HandleRunAll(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCheckRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := validateTextRequest(req); err != nil {
		writeError(w, r, err)
		return
	}

	projectID, stageResults, runErr := h.sequencer.RunAll(r.Context(), req.ProjetoID, initialFromRequest(req))
	if runErr != nil {
		writeError(w, r, runErr)
		return
	}

	results := make(map[string]json.RawMessage, len(stageResults))
	for stage, result := range stageResults {
		results[string(stage)] = result
	}

	server.AddLogField(r.Context(), "project_id", projectID)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "sucesso",
		"mensagem":   "Checagem completa finalizada",
		"projeto_id": projectID,
		"resultados": results,
	})
}
