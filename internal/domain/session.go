package domain

import (
	"encoding/json"
	"time"
)

// InitialData is the snapshot of the original stage-1 input. It is forwarded
// to every downstream webhook, so the JSON keys follow the external webhook
// contract. Exactly one of Texto or ArquivoImagem is populated depending on
// whether the run started from text or an uploaded image.
type InitialData struct {
	Texto             string `json:"texto,omitempty"`
	TipoMidia         string `json:"tipo_midia"`
	URLFonte          string `json:"url_fonte,omitempty"`
	ContextoAdicional string `json:"contexto_adicional,omitempty"`
	ProjetoID         string `json:"projeto_id,omitempty"`

	// Image-upload variant.
	ArquivoImagem string `json:"arquivo_imagem,omitempty"`
	NomeArquivo   string `json:"nome_arquivo,omitempty"`
}

// StageEnvelope is the payload sent to a stage webhook: the initial data plus
// the result of every stage strictly before it. It replaces the untyped map
// merging the pipeline originally relied on.
type StageEnvelope struct {
	InitialData
	DadosModulo1 json.RawMessage `json:"dados_modulo1,omitempty"`
	DadosModulo2 json.RawMessage `json:"dados_modulo2,omitempty"`
	DadosModulo3 json.RawMessage `json:"dados_modulo3,omitempty"`
}

// StageResult is one completed stage execution. Result is the opaque JSON
// value returned by the external webhook.
type StageResult struct {
	Timestamp time.Time       `json:"timestamp"`
	Result    json.RawMessage `json:"result"`
}

// Session is the accumulated state of one fact-checking run, keyed by project
// id. It is the unit of persistence: one JSON file per session.
type Session struct {
	ProjectID      string                `json:"project_id"`
	Name           string                `json:"name,omitempty"`
	Description    string                `json:"description,omitempty"`
	CreatedAt      time.Time             `json:"created_at"`
	FinalizedAt    *time.Time            `json:"finalized_at,omitempty"`
	InitialData    InitialData           `json:"initial_data"`
	ExecutedStages []Stage               `json:"executed_stages"`
	Results        map[Stage]StageResult `json:"results"`
}

// NewSession returns an empty session for the given project id.
func NewSession(projectID string) *Session {
	return &Session{
		ProjectID:      projectID,
		CreatedAt:      time.Now(),
		ExecutedStages: []Stage{},
		Results:        make(map[Stage]StageResult),
	}
}

// HasStage reports whether the stage has completed and not been invalidated.
func (s *Session) HasStage(stage Stage) bool {
	for _, executed := range s.ExecutedStages {
		if executed == stage {
			return true
		}
	}
	return false
}

// Invalidate removes stage and everything after it (by pipeline position)
// from both the executed list and the results, and clears the finalization
// timestamp. It runs before every execution, including re-runs of the same
// stage, so a retried stage starts from a clean slate.
func (s *Session) Invalidate(stage Stage) {
	idx := stage.Index()
	if idx < 0 {
		return
	}

	kept := s.ExecutedStages[:0]
	for _, executed := range s.ExecutedStages {
		if executed.Index() < idx {
			kept = append(kept, executed)
		}
	}
	s.ExecutedStages = kept

	if s.Results == nil {
		s.Results = make(map[Stage]StageResult)
	}
	for _, downstream := range Stages[idx:] {
		delete(s.Results, downstream)
	}

	s.FinalizedAt = nil
}

// RecordResult appends a successful stage execution. Completing the final
// stage marks the session finalized.
func (s *Session) RecordResult(stage Stage, result json.RawMessage, now time.Time) {
	if s.Results == nil {
		s.Results = make(map[Stage]StageResult)
	}
	s.ExecutedStages = append(s.ExecutedStages, stage)
	s.Results[stage] = StageResult{Timestamp: now, Result: result}
	if stage.IsLast() {
		finalized := now
		s.FinalizedAt = &finalized
	}
}

// Envelope builds the payload for the given stage from the initial data and
// every result strictly before it.
func (s *Session) Envelope(stage Stage) StageEnvelope {
	env := StageEnvelope{InitialData: s.InitialData}
	idx := stage.Index()
	if idx > 0 {
		env.DadosModulo1 = s.Results[StageModulo1].Result
	}
	if idx > 1 {
		env.DadosModulo2 = s.Results[StageModulo2].Result
	}
	if idx > 2 {
		env.DadosModulo3 = s.Results[StageModulo3].Result
	}
	return env
}

// DistinctStageCount returns the number of distinct executed stages, used by
// project listings.
func (s *Session) DistinctStageCount() int {
	seen := make(map[Stage]struct{}, len(s.ExecutedStages))
	for _, stage := range s.ExecutedStages {
		seen[stage] = struct{}{}
	}
	return len(seen)
}

// ProjectSummary is the listing view of a persisted session.
type ProjectSummary struct {
	ProjectID          string    `json:"project_id"`
	Name               string    `json:"name"`
	CreatedAt          time.Time `json:"created_at"`
	ExecutedStageCount int       `json:"executed_stage_count"`
}
