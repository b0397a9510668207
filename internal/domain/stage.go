// Package domain provides the session model and canonical error types for
// the fact-check gateway.
package domain

// Stage identifies one of the four ordered pipeline stages. Each stage is
// executed by an external webhook; the gateway only sequences them.
type Stage string

const (
	StageModulo1 Stage = "modulo1"
	StageModulo2 Stage = "modulo2"
	StageModulo3 Stage = "modulo3"
	StageModulo4 Stage = "modulo4"
)

// Stages is the pipeline order. Invalidation and precondition checks work on
// positions in this list, not on stage names.
var Stages = []Stage{StageModulo1, StageModulo2, StageModulo3, StageModulo4}

var stageDisplayNames = map[Stage]string{
	StageModulo1: "Extração Multi-modal",
	StageModulo2: "Detecção de Alegações",
	StageModulo3: "Recuperação de Evidências",
	StageModulo4: "Análise e Veredito",
}

// DisplayName returns the human-readable name of the stage, or the raw stage
// identifier when unknown.
func (s Stage) DisplayName() string {
	if name, ok := stageDisplayNames[s]; ok {
		return name
	}
	return string(s)
}

// Index returns the position of the stage in the pipeline, or -1 when the
// stage is not part of it.
func (s Stage) Index() int {
	for i, stage := range Stages {
		if stage == s {
			return i
		}
	}
	return -1
}

// Previous returns the stage immediately before s, and false for the first
// stage or an unknown stage.
func (s Stage) Previous() (Stage, bool) {
	idx := s.Index()
	if idx <= 0 {
		return "", false
	}
	return Stages[idx-1], true
}

// IsLast reports whether s is the final pipeline stage.
func (s Stage) IsLast() bool {
	return s == Stages[len(Stages)-1]
}

// Media types accepted by the stage-1 webhook table.
const (
	MediaTypeTexto  = "texto"
	MediaTypeImagem = "imagem"
	MediaTypeAudio  = "audio"
	MediaTypeVideo  = "video"
)
