package api

import (
	"fmt"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mosaiko-ai/factcheck-gateway/internal/audit"
	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/server"
	"github.com/mosaiko-ai/factcheck-gateway/internal/session"
)

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// HandleCreateProject creates an empty session with user-supplied metadata.
func (h *Handler) HandleCreateProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Name == "" {
		writeError(w, r, domain.ErrInvalidInput("name é obrigatório"))
		return
	}

	projectID := uuid.New().String()
	sess := h.sessions.GetOrCreate(projectID)
	sess.Name = req.Name
	sess.Description = req.Description
	if err := h.sessions.Save(sess); err != nil {
		writeError(w, r, err)
		return
	}

	server.AddLogField(r.Context(), "project_id", projectID)
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"name":       req.Name,
		"message":    "Projeto criado com sucesso",
	})
}

// HandleListProjects returns summaries of every persisted session, newest
// first.
func (h *Handler) HandleListProjects(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.sessions.List()
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"projects": summaries})
}

// HandleGetProject returns the full persisted session.
func (h *Handler) HandleGetProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := session.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	sess, err := h.sessions.Load(projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// HandleDownloadProject serves the raw session file as an attachment.
func (h *Handler) HandleDownloadProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := session.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}

	data, err := os.ReadFile(h.sessions.FilePath(projectID))
	if err != nil {
		if os.IsNotExist(err) {
			writeError(w, r, domain.ErrNotFound("projeto não encontrado: %s", projectID))
			return
		}
		writeError(w, r, domain.ErrInternal("failed to read session file: %s", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="projeto_%s.json"`, projectID))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// HandleDeleteProject removes the session file, the in-memory entry and any
// uploaded media.
func (h *Handler) HandleDeleteProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := session.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.sessions.Delete(projectID); err != nil {
		writeError(w, r, err)
		return
	}
	server.AddLogField(r.Context(), "project_id", projectID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "Projeto deletado com sucesso"})
}

// HandleProjectAudit returns the project's dispatch history, newest first.
func (h *Handler) HandleProjectAudit(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "projectID")
	if err := session.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}

	dispatches := []*audit.Dispatch{}
	if h.audit != nil {
		var err error
		dispatches, err = h.audit.ListByProject(r.Context(), projectID)
		if err != nil {
			writeError(w, r, domain.ErrInternal("failed to read audit log: %s", err))
			return
		}
		if dispatches == nil {
			dispatches = []*audit.Dispatch{}
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"project_id": projectID,
		"dispatches": dispatches,
	})
}
