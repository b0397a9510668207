// Package api exposes the project lifecycle and stage execution endpoints.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/mosaiko-ai/factcheck-gateway/internal/audit"
	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/media"
	"github.com/mosaiko-ai/factcheck-gateway/internal/pipeline"
	"github.com/mosaiko-ai/factcheck-gateway/internal/session"
)

type Handler struct {
	sessions  *session.Store
	media     *media.Store
	sequencer *pipeline.Sequencer
	audit     *audit.Store
	logger    *slog.Logger
}

// New wires the handler. audit may be nil when the dispatch log is disabled.
func New(sessions *session.Store, mediaStore *media.Store, sequencer *pipeline.Sequencer, auditStore *audit.Store, logger *slog.Logger) *Handler {
	return &Handler{
		sessions:  sessions,
		media:     mediaStore,
		sequencer: sequencer,
		audit:     auditStore,
		logger:    logger,
	}
}

// RegisterRoutes mounts every endpoint on the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/projetos/novo", h.HandleCreateProject)
	r.Get("/projetos/listar", h.HandleListProjects)
	r.Get("/projetos/{projectID}", h.HandleGetProject)
	r.Get("/projetos/{projectID}/download", h.HandleDownloadProject)
	r.Get("/projetos/{projectID}/auditoria", h.HandleProjectAudit)
	r.Delete("/projetos/{projectID}", h.HandleDeleteProject)

	r.Post("/modulo1", h.HandleModulo1)
	r.Post("/modulo1-imagem", h.HandleModulo1Image)
	r.Post("/modulo2", h.stageHandler(domain.StageModulo2))
	r.Post("/modulo3", h.stageHandler(domain.StageModulo3))
	r.Post("/modulo4", h.stageHandler(domain.StageModulo4))
	r.Post("/executar-completo", h.HandleRunAll)

	r.Get("/health", h.HandleHealth)
}
