package retrieval

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

var ErrEmptyCorpus = errors.New("clause corpus is empty")

// ScoredClause is one ranked retrieval candidate.
type ScoredClause struct {
	Clause model.NormativeClause `json:"clause"`
	Score  float64               `json:"score"`
}

// Retriever returns the topK clauses most relevant to the query.
// The orchestrator consumes retrieval strictly through this interface.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]ScoredClause, error)
}

// Embedder produces the dense representation of a query.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// ClauseSource supplies the indexed corpus. Reads observe a consistent
// snapshot; reindexing swaps the set atomically on the storage side.
type ClauseSource interface {
	ListAll() ([]model.NormativeClause, error)
}

// Config tunes the hybrid ranking.
type Config struct {
	// Alpha blends semantic (alpha) and lexical (1-alpha) scores.
	Alpha float64
	// RerankSize is the candidate pool considered before diversity selection.
	RerankSize int
	// MMRLambda trades relevance against diversity in the final selection.
	MMRLambda float64
}

// Engine is the default hybrid retriever: lexical term overlap blended with
// cosine similarity over clause embeddings, followed by maximal-marginal-
// relevance selection so near-duplicate clauses don't crowd the result.
type Engine struct {
	source   ClauseSource
	embedder Embedder
	cfg      Config
}

func NewEngine(source ClauseSource, embedder Embedder, cfg Config) *Engine {
	if cfg.Alpha <= 0 || cfg.Alpha > 1 {
		cfg.Alpha = 0.7
	}
	if cfg.RerankSize <= 0 {
		cfg.RerankSize = 30
	}
	if cfg.MMRLambda <= 0 || cfg.MMRLambda > 1 {
		cfg.MMRLambda = 0.75
	}
	return &Engine{source: source, embedder: embedder, cfg: cfg}
}

func (e *Engine) Retrieve(ctx context.Context, query string, topK int) ([]ScoredClause, error) {
	query = strings.TrimSpace(query)
	if query == "" || topK <= 0 {
		return nil, nil
	}

	clauses, err := e.source.ListAll()
	if err != nil {
		return nil, fmt.Errorf("load clause corpus failed: %w", err)
	}
	if len(clauses) == 0 {
		return nil, ErrEmptyCorpus
	}

	queryEmb, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed retrieval query failed: %w", err)
	}
	queryTerms := tokenize(query)

	candidates := make([]ScoredClause, len(clauses))
	for i := range clauses {
		sem := cosineSimilarity(queryEmb, clauses[i].EmbeddingVector())
		lex := lexicalScore(queryTerms, tokenize(clauses[i].Title+" "+clauses[i].Text))
		candidates[i] = ScoredClause{
			Clause: clauses[i],
			Score:  e.cfg.Alpha*sem + (1-e.cfg.Alpha)*lex,
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	pool := candidates
	if len(pool) > e.cfg.RerankSize {
		pool = pool[:e.cfg.RerankSize]
	}
	return e.selectDiverse(pool, topK), nil
}

// selectDiverse applies greedy MMR over the candidate pool.
func (e *Engine) selectDiverse(pool []ScoredClause, topK int) []ScoredClause {
	if topK >= len(pool) {
		return pool
	}
	selected := make([]ScoredClause, 0, topK)
	remaining := append([]ScoredClause(nil), pool...)

	for len(selected) < topK && len(remaining) > 0 {
		bestIdx := 0
		bestScore := math.Inf(-1)
		for i, cand := range remaining {
			redundancy := 0.0
			for _, s := range selected {
				sim := cosineSimilarity(cand.Clause.EmbeddingVector(), s.Clause.EmbeddingVector())
				if sim > redundancy {
					redundancy = sim
				}
			}
			mmr := e.cfg.MMRLambda*cand.Score - (1-e.cfg.MMRLambda)*redundancy
			if mmr > bestScore {
				bestScore = mmr
				bestIdx = i
			}
		}
		selected = append(selected, remaining[bestIdx])
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)
	}
	return selected
}

// lexicalScore is a normalized term-overlap signal.
func lexicalScore(queryTerms, clauseTerms map[string]struct{}) float64 {
	if len(queryTerms) == 0 || len(clauseTerms) == 0 {
		return 0
	}
	overlap := 0
	for t := range queryTerms {
		if _, ok := clauseTerms[t]; ok {
			overlap++
		}
	}
	return float64(overlap) / math.Sqrt(float64(len(queryTerms))*float64(len(clauseTerms)))
}

func tokenize(text string) map[string]struct{} {
	terms := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(text)) {
		field = strings.Trim(field, ".,;:()[]{}\"'«»")
		if len([]rune(field)) < 3 {
			continue
		}
		terms[field] = struct{}{}
	}
	return terms
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA <= 0 || normB <= 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
