package app

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PavSher76/AI-NK-sub005/internal/ai"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
)

const clauseEmbeddingBatchSize = 10 // embedding APIs often limit batch size

// CorpusService maintains the normative clause corpus: segmentation,
// embedding and the copy-then-swap reindex that keeps retrieval readers on a
// consistent clause set.
type CorpusService struct {
	clauseRepo *repository.ClauseRepository
	docRepo    *repository.DocumentRepository
	llmClient  *ai.OpenAICompatibleClient
	embConfig  ai.EmbeddingConfig
}

func NewCorpusService(
	clauseRepo *repository.ClauseRepository,
	docRepo *repository.DocumentRepository,
	llmClient *ai.OpenAICompatibleClient,
	embConfig ai.EmbeddingConfig,
) *CorpusService {
	return &CorpusService{
		clauseRepo: clauseRepo,
		docRepo:    docRepo,
		llmClient:  llmClient,
		embConfig:  embConfig,
	}
}

// IndexReference segments the reference document text into clauses, embeds
// them and swaps them in as the document's clause set. Returns the number of
// indexed clauses.
func (s *CorpusService) IndexReference(ctx context.Context, documentID uint, text string) (int, error) {
	clauses := segmentClauses(documentID, text)
	if len(clauses) == 0 {
		return 0, fmt.Errorf("no clauses found in reference document")
	}

	texts := make([]string, len(clauses))
	for i := range clauses {
		texts[i] = clauses[i].Title + " " + clauses[i].Text
	}
	embeddings, err := s.embedBatched(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i := range clauses {
		clauses[i].SetEmbedding(embeddings[i])
	}

	if err := s.clauseRepo.Replace(documentID, clauses); err != nil {
		return 0, err
	}
	return len(clauses), nil
}

// Reindex recomputes embeddings for a reference document's current clauses
// and swaps the set atomically. In-flight checks keep reading the old set
// until the swap commits.
func (s *CorpusService) Reindex(ctx context.Context, documentID uint) (int, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return 0, err
	}
	if doc == nil || doc.Kind != model.KindReference {
		return 0, ErrDocumentNotFound
	}

	clauses, err := s.clauseRepo.ListByDocumentID(documentID)
	if err != nil {
		return 0, err
	}
	if len(clauses) == 0 {
		return 0, fmt.Errorf("reference document has no indexed clauses")
	}

	texts := make([]string, len(clauses))
	fresh := make([]model.NormativeClause, len(clauses))
	for i := range clauses {
		texts[i] = clauses[i].Title + " " + clauses[i].Text
		fresh[i] = model.NormativeClause{
			DocumentID: clauses[i].DocumentID,
			ClauseID:   clauses[i].ClauseID,
			Number:     clauses[i].Number,
			Title:      clauses[i].Title,
			Text:       clauses[i].Text,
			Type:       clauses[i].Type,
			Importance: clauses[i].Importance,
		}
	}
	embeddings, err := s.embedBatched(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i := range fresh {
		fresh[i].SetEmbedding(embeddings[i])
	}

	if err := s.clauseRepo.Replace(documentID, fresh); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func (s *CorpusService) ListClauses(documentID uint) ([]model.NormativeClause, error) {
	if documentID == 0 {
		return s.clauseRepo.ListAll()
	}
	return s.clauseRepo.ListByDocumentID(documentID)
}

// AddRelation records a typed, weighted edge between two clauses.
func (s *CorpusService) AddRelation(fromClauseID, toClauseID string, relation model.ClauseRelationType, weight float64) (*model.ClauseRelation, error) {
	switch relation {
	case model.RelationReferences, model.RelationContradicts, model.RelationExtends, model.RelationReplaces:
	default:
		return nil, ErrInvalidInput
	}
	from, err := s.clauseRepo.GetByClauseID(fromClauseID)
	if err != nil {
		return nil, err
	}
	to, err := s.clauseRepo.GetByClauseID(toClauseID)
	if err != nil {
		return nil, err
	}
	if from == nil || to == nil {
		return nil, ErrInvalidInput
	}
	if weight <= 0 || weight > 1 {
		weight = 1
	}
	rel := &model.ClauseRelation{
		FromClauseID: fromClauseID,
		ToClauseID:   toClauseID,
		Relation:     relation,
		Weight:       weight,
	}
	if err := s.clauseRepo.CreateRelation(rel); err != nil {
		return nil, err
	}
	return rel, nil
}

// ListRelations returns the outgoing relations of a clause.
func (s *CorpusService) ListRelations(fromClauseID string) ([]model.ClauseRelation, error) {
	return s.clauseRepo.ListRelations(fromClauseID)
}

func (s *CorpusService) embedBatched(ctx context.Context, texts []string) ([][]float32, error) {
	var embeddings [][]float32
	for i := 0; i < len(texts); i += clauseEmbeddingBatchSize {
		end := i + clauseEmbeddingBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := s.llmClient.EmbedBatch(ctx, s.embConfig, texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed clause batch failed: %w", err)
		}
		embeddings = append(embeddings, batch...)
	}
	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: %d texts, %d vectors", len(texts), len(embeddings))
	}
	for i := range embeddings {
		if len(embeddings[i]) != model.EmbeddingDim {
			return nil, fmt.Errorf("embedding dimension %d, want %d", len(embeddings[i]), model.EmbeddingDim)
		}
	}
	return embeddings, nil
}

var clauseHeadRe = regexp.MustCompile(`^\s*(\d+(?:\.\d+)+)[.)]?\s+(.+)$`)

// segmentClauses splits normative text into numbered clauses. Lines that
// open with a multi-level number ("5.2.1 ...") start a new clause; everything
// until the next such line belongs to it.
func segmentClauses(documentID uint, text string) []model.NormativeClause {
	var clauses []model.NormativeClause
	var current *model.NormativeClause
	var body strings.Builder

	flush := func() {
		if current == nil {
			return
		}
		current.Text = strings.TrimSpace(body.String())
		if current.Text != "" {
			clauses = append(clauses, *current)
		}
		current = nil
		body.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		if m := clauseHeadRe.FindStringSubmatch(line); m != nil {
			flush()
			number := m[1]
			head := strings.TrimSpace(m[2])
			current = &model.NormativeClause{
				DocumentID: documentID,
				ClauseID:   fmt.Sprintf("%d-%s", documentID, number),
				Number:     number,
				Title:      truncateRunes(head, 512),
				Type:       classifyClause(head),
				Importance: clauseImportance(head),
			}
			body.WriteString(head)
			body.WriteString("\n")
			continue
		}
		if current != nil {
			body.WriteString(line)
			body.WriteString("\n")
		}
	}
	flush()
	return clauses
}

func classifyClause(text string) model.ClauseType {
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "note") || strings.HasPrefix(lower, "примечание"):
		return model.ClauseNote
	case strings.HasPrefix(lower, "example") || strings.HasPrefix(lower, "пример"):
		return model.ClauseExample
	case strings.Contains(lower, "recommended") || strings.Contains(lower, "рекомендуется"):
		return model.ClauseRecommendation
	default:
		return model.ClauseRequirement
	}
}

func clauseImportance(text string) int {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "must") || strings.Contains(lower, "shall") ||
		strings.Contains(lower, "запрещается") || strings.Contains(lower, "не допускается"):
		return 5
	case strings.Contains(lower, "should") || strings.Contains(lower, "следует"):
		return 4
	case strings.Contains(lower, "may") || strings.Contains(lower, "допускается"):
		return 2
	default:
		return 3
	}
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
