// Package pipeline sequences the four fact-checking stages. It is the single
// run primitive behind every stage endpoint, including run-all, so the
// precondition and invalidation rules live in exactly one place.
package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mosaiko-ai/factcheck-gateway/internal/audit"
	"github.com/mosaiko-ai/factcheck-gateway/internal/domain"
	"github.com/mosaiko-ai/factcheck-gateway/internal/session"
)

// Dispatcher forwards a stage payload to its external webhook.
type Dispatcher interface {
	ResolveURL(mediaType string, stage domain.Stage) (string, error)
	SendJSON(ctx context.Context, url string, payload any) (json.RawMessage, error)
	SendMultipart(ctx context.Context, url string, fields map[string]any, file []byte, filename string) (json.RawMessage, error)
}

// Recorder logs outbound dispatches. Recording is best effort and never
// fails a stage run.
type Recorder interface {
	Record(ctx context.Context, d *audit.Dispatch) error
}

// Upload carries the raw bytes of a stage-1 image, dispatched as multipart
// instead of JSON.
type Upload struct {
	Data     []byte
	Filename string
}

// RunRequest describes one stage execution.
type RunRequest struct {
	ProjectID string
	Stage     domain.Stage

	// Initial replaces the session's initial data. Set only for stage 1.
	Initial *domain.InitialData

	// Upload switches the stage-1 dispatch to multipart.
	Upload *Upload
}

// RunResult is a successful stage execution.
type RunResult struct {
	ProjectID string
	Session   *domain.Session
	Result    json.RawMessage
}

// Sequencer drives stage execution against the session store.
type Sequencer struct {
	sessions   *session.Store
	dispatcher Dispatcher
	recorder   Recorder
	logger     *slog.Logger
}

// New creates a sequencer. recorder may be nil to disable the audit log.
func New(sessions *session.Store, dispatcher Dispatcher, recorder Recorder, logger *slog.Logger) *Sequencer {
	return &Sequencer{
		sessions:   sessions,
		dispatcher: dispatcher,
		recorder:   recorder,
		logger:     logger,
	}
}

// Run executes one stage: precondition check, invalidation of the stage and
// everything downstream, dispatch, result recording, persistence.
//
// A dispatch failure leaves the session in the invalidated state — that is
// the documented partial-failure contract, the caller recovers by re-issuing
// the stage.
func (s *Sequencer) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	projectID := req.ProjectID
	if projectID == "" {
		if req.Stage != domain.StageModulo1 {
			return nil, domain.ErrInvalidInput("projeto_id é obrigatório").WithStage(req.Stage)
		}
		projectID = uuid.New().String()
	}
	if err := session.ValidateProjectID(projectID); err != nil {
		return nil, err
	}

	sess := s.sessions.GetOrCreate(projectID)

	if prev, ok := req.Stage.Previous(); ok && !sess.HasStage(prev) {
		return nil, domain.ErrPreconditionFailed("execute o %s primeiro", prev).WithStage(prev)
	}

	sess.Invalidate(req.Stage)

	if req.Stage == domain.StageModulo1 && req.Initial != nil {
		initial := *req.Initial
		initial.ProjetoID = projectID
		sess.InitialData = initial
	}

	url, err := s.dispatcher.ResolveURL(sess.InitialData.TipoMidia, req.Stage)
	if err != nil {
		return nil, err
	}

	envelope := sess.Envelope(req.Stage)

	start := time.Now()
	var result json.RawMessage
	if req.Upload != nil {
		result, err = s.dispatcher.SendMultipart(ctx, url, envelopeFields(envelope), req.Upload.Data, req.Upload.Filename)
	} else {
		result, err = s.dispatcher.SendJSON(ctx, url, envelope)
	}
	s.recordDispatch(ctx, projectID, req.Stage, url, time.Since(start), err)

	if err != nil {
		// Persist the invalidated state so a restart does not revive
		// results the caller already saw disappear.
		if saveErr := s.sessions.Save(sess); saveErr != nil {
			s.logger.Error("failed to persist invalidated session",
				slog.String("project_id", projectID),
				slog.String("error", saveErr.Error()))
		}
		return nil, err
	}

	sess.RecordResult(req.Stage, result, time.Now())
	if err := s.sessions.Save(sess); err != nil {
		return nil, err
	}

	s.logger.Info("stage executed",
		slog.String("project_id", projectID),
		slog.String("stage", string(req.Stage)))

	return &RunResult{ProjectID: projectID, Session: sess, Result: result}, nil
}

// RunAll executes all four stages in order. The first failure aborts the
// chain and surfaces that stage's error together with the results collected
// so far.
func (s *Sequencer) RunAll(ctx context.Context, projectID string, initial *domain.InitialData) (string, map[domain.Stage]json.RawMessage, error) {
	results := make(map[domain.Stage]json.RawMessage, len(domain.Stages))

	for _, stage := range domain.Stages {
		req := RunRequest{ProjectID: projectID, Stage: stage}
		if stage == domain.StageModulo1 {
			req.Initial = initial
		}
		res, err := s.Run(ctx, req)
		if err != nil {
			apiErr := domain.AsAPIError(err)
			if apiErr.Stage == "" {
				apiErr = apiErr.WithStage(stage)
			}
			return projectID, results, apiErr
		}
		projectID = res.ProjectID
		results[stage] = res.Result
	}
	return projectID, results, nil
}

func (s *Sequencer) recordDispatch(ctx context.Context, projectID string, stage domain.Stage, url string, duration time.Duration, dispatchErr error) {
	if s.recorder == nil {
		return
	}
	d := &audit.Dispatch{
		ProjectID: projectID,
		Stage:     string(stage),
		TargetURL: url,
		Status:    audit.StatusOK,
		Duration:  duration,
	}
	if dispatchErr != nil {
		apiErr := domain.AsAPIError(dispatchErr)
		d.Status = audit.StatusError
		d.ErrorType = string(apiErr.Type)
		d.ErrorMessage = apiErr.Message
	}
	if err := s.recorder.Record(ctx, d); err != nil {
		s.logger.Warn("failed to record dispatch",
			slog.String("project_id", projectID),
			slog.String("stage", string(stage)),
			slog.String("error", err.Error()))
	}
}

// envelopeFields flattens the stage envelope into multipart form fields.
// Prior-stage results keep their JSON text form.
func envelopeFields(env domain.StageEnvelope) map[string]any {
	fields := map[string]any{
		"tipo_midia": env.TipoMidia,
	}
	if env.Texto != "" {
		fields["texto"] = env.Texto
	}
	if env.URLFonte != "" {
		fields["url_fonte"] = env.URLFonte
	}
	if env.ContextoAdicional != "" {
		fields["contexto_adicional"] = env.ContextoAdicional
	}
	if env.ProjetoID != "" {
		fields["projeto_id"] = env.ProjetoID
	}
	if env.ArquivoImagem != "" {
		fields["arquivo_imagem"] = env.ArquivoImagem
	}
	if env.NomeArquivo != "" {
		fields["nome_arquivo"] = env.NomeArquivo
	}
	if len(env.DadosModulo1) > 0 {
		fields["dados_modulo1"] = env.DadosModulo1
	}
	if len(env.DadosModulo2) > 0 {
		fields["dados_modulo2"] = env.DadosModulo2
	}
	if len(env.DadosModulo3) > 0 {
		fields["dados_modulo3"] = env.DadosModulo3
	}
	return fields
}
