package retrieval

import (
	"context"
	"testing"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type stubSource struct {
	clauses []model.NormativeClause
}

func (s *stubSource) ListAll() ([]model.NormativeClause, error) {
	return s.clauses, nil
}

type stubEmbedder struct {
	vec []float32
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vec, nil
}

func clauseWithVec(id, text string, vec []float32) model.NormativeClause {
	c := model.NormativeClause{ClauseID: id, Text: text}
	c.SetEmbedding(vec)
	return c
}

func TestRetrieveEmptyCorpus(t *testing.T) {
	engine := NewEngine(&stubSource{}, &stubEmbedder{vec: []float32{1, 0}}, Config{})
	_, err := engine.Retrieve(context.Background(), "welding requirements", 5)
	if err != ErrEmptyCorpus {
		t.Fatalf("expected ErrEmptyCorpus, got %v", err)
	}
}

func TestRetrieveBlendsSemanticAndLexical(t *testing.T) {
	source := &stubSource{clauses: []model.NormativeClause{
		clauseWithVec("sem", "unrelated wording entirely", []float32{1, 0, 0}),
		clauseWithVec("lex", "welding requirements for steel structures", []float32{0, 1, 0}),
		clauseWithVec("none", "paint colors catalogue", []float32{0, 0, 1}),
	}}
	engine := NewEngine(source, &stubEmbedder{vec: []float32{1, 0, 0}}, Config{Alpha: 0.5})

	got, err := engine.Retrieve(context.Background(), "welding requirements steel", 2)
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 clauses, got %d", len(got))
	}
	ids := map[string]bool{}
	for _, sc := range got {
		ids[sc.Clause.ClauseID] = true
	}
	// Both the semantic match and the lexical match must beat the noise clause.
	if !ids["sem"] || !ids["lex"] {
		t.Fatalf("expected sem and lex in results, got %v", ids)
	}
}

func TestSelectDiversePenalizesDuplicates(t *testing.T) {
	// Two near-identical top candidates and a distinct third one.
	pool := []ScoredClause{
		{Clause: clauseWithVec("a", "", []float32{1, 0}), Score: 1.0},
		{Clause: clauseWithVec("a2", "", []float32{0.99, 0.1}), Score: 0.98},
		{Clause: clauseWithVec("b", "", []float32{0, 1}), Score: 0.5},
	}
	engine := NewEngine(&stubSource{}, &stubEmbedder{}, Config{MMRLambda: 0.3})

	got := engine.selectDiverse(pool, 2)
	if len(got) != 2 {
		t.Fatalf("expected 2 selections, got %d", len(got))
	}
	if got[0].Clause.ClauseID != "a" || got[1].Clause.ClauseID != "b" {
		t.Fatalf("expected diverse pair a,b, got %s,%s", got[0].Clause.ClauseID, got[1].Clause.ClauseID)
	}
}

func TestLexicalScore(t *testing.T) {
	q := tokenize("welding requirements steel")
	full := lexicalScore(q, tokenize("welding requirements steel"))
	partial := lexicalScore(q, tokenize("welding of aluminium framing"))
	none := lexicalScore(q, tokenize("paint colors"))

	if full <= partial || partial <= none {
		t.Fatalf("expected full > partial > none, got %v %v %v", full, partial, none)
	}
	if none != 0 {
		t.Fatalf("expected zero overlap score, got %v", none)
	}
}

func TestTokenizeDropsShortAndPunctuation(t *testing.T) {
	terms := tokenize("По ГОСТ 21.501: (разрез) a, of")
	if _, ok := terms["гост"]; !ok {
		t.Fatal("expected lowercase term гост")
	}
	if _, ok := terms["разрез"]; !ok {
		t.Fatal("expected punctuation-trimmed term разрез")
	}
	if _, ok := terms["of"]; ok {
		t.Fatal("expected short terms to be dropped")
	}
}

func TestCosineSimilarityEdgeCases(t *testing.T) {
	if got := cosineSimilarity(nil, []float32{1}); got != 0 {
		t.Fatalf("nil vector should score 0, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1}); got != 0 {
		t.Fatalf("mismatched dims should score 0, got %v", got)
	}
	if got := cosineSimilarity([]float32{1, 0}, []float32{1, 0}); got < 0.999 {
		t.Fatalf("identical vectors should score 1, got %v", got)
	}
}
