package api

import (
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/media"
	"github.com/mosaiko-ai/factcheck-gateway/internal/pipeline"
	"github.com/mosaiko-ai/factcheck-gateway/internal/session"
)

// Uploads larger than this are rejected before buffering.
const maxUploadBytes = 32 << 20

// HandleModulo1Image runs the extraction stage from an uploaded image. The
// file is validated and persisted before the session is touched, so a bad
// upload never mutates project state.
func (h *Handler) HandleModulo1Image(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, r, domain.ErrInvalidInput("formulário multipart inválido: %s", err))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, domain.ErrInvalidInput("arquivo de imagem é obrigatório (campo 'file')"))
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		writeError(w, r, domain.ErrInvalidInput("tipo de conteúdo %q não é uma imagem", contentType))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, r, domain.ErrInternal("failed to read upload: %s", err))
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, r, domain.ErrInvalidInput("imagem excede o tamanho máximo permitido"))
		return
	}

	projectID := r.FormValue("projeto_id")
	if projectID == "" {
		projectID = uuid.New().String()
	}
	if err := session.ValidateProjectID(projectID); err != nil {
		writeError(w, r, err)
		return
	}

	filename := media.SanitizeFilename(header.Filename)
	storedPath, err := h.media.SaveImage(projectID, header.Filename, data)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.runStage(w, r, pipeline.RunRequest{
		ProjectID: projectID,
		Stage:     domain.StageModulo1,
		Initial: &domain.InitialData{
			TipoMidia:         domain.MediaTypeImagem,
			URLFonte:          r.FormValue("url_fonte"),
			ContextoAdicional: r.FormValue("contexto_adicional"),
			ArquivoImagem:     storedPath,
			NomeArquivo:       filename,
		},
		Upload: &pipeline.Upload{Data: data, Filename: filename},
	})
}
