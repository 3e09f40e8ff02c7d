package scoring

import (
	"context"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/retrieval"
)

// Section is one logical part of a checkable document, used by
// hierarchical scoring.
type Section struct {
	Title string
	Text  string
}

// ScoreInput is one scoring request: the document content plus the
// retrieved clauses it is judged against.
type ScoreInput struct {
	DocumentName string
	DocumentText string
	Sections     []Section
	Clauses      []retrieval.ScoredClause
	Hierarchical bool
}

// RawFinding is a scorer-produced deviation before persistence.
type RawFinding struct {
	Severity       model.FindingSeverity `json:"severity"`
	Category       string                `json:"category"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Recommendation string                `json:"recommendation"`
	ClauseID       string                `json:"clause_id"`
}

// ScoreOutput is the scorer verdict for one check.
type ScoreOutput struct {
	Findings       []RawFinding      `json:"findings"`
	Checklist      map[string]string `json:"checklist"`
	Summary        string            `json:"summary"`
	Recommendation string            `json:"recommendation"`
	Confidence     float64           `json:"confidence"`
}

// Scorer is the opaque scoring step of a compliance check. The orchestrator
// treats it as a black box producing findings.
type Scorer interface {
	Score(ctx context.Context, input ScoreInput) (*ScoreOutput, error)
}
