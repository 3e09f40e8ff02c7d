package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/PavSher76/AI-NK-sub005/internal/ai"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/retrieval"
)

const defaultSystemPrompt = "You are a normative compliance reviewer for engineering documents. " +
	"Compare the document against the provided normative clauses and report every deviation. " +
	"Answer with a single JSON object: {\"findings\":[{\"severity\":\"critical|high|medium|low|info\"," +
	"\"category\":\"...\",\"title\":\"...\",\"description\":\"...\",\"recommendation\":\"...\",\"clause_id\":\"...\"}]," +
	"\"checklist\":{\"category\":\"pass|fail\"},\"summary\":\"...\",\"recommendation\":\"...\",\"confidence\":0.0}. " +
	"Do not add any text outside the JSON object."

// LLMScorer scores checks with an OpenAI-compatible chat completion.
type LLMScorer struct {
	client       *ai.OpenAICompatibleClient
	chatConfig   ai.ChatConfig
	systemPrompt string
	maxDocChars  int
}

func NewLLMScorer(client *ai.OpenAICompatibleClient, chatConfig ai.ChatConfig, systemPrompt string) *LLMScorer {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &LLMScorer{
		client:       client,
		chatConfig:   chatConfig,
		systemPrompt: systemPrompt,
		maxDocChars:  24000,
	}
}

// Score runs one completion per check in flat mode, one per section in
// hierarchical mode, and merges the section outputs.
func (s *LLMScorer) Score(ctx context.Context, input ScoreInput) (*ScoreOutput, error) {
	if !input.Hierarchical || len(input.Sections) == 0 {
		return s.scoreOnce(ctx, input.DocumentName, input.DocumentText, "", input.Clauses)
	}

	merged := &ScoreOutput{Checklist: map[string]string{}}
	var confidenceSum float64
	var summaries []string
	for _, section := range input.Sections {
		out, err := s.scoreOnce(ctx, input.DocumentName, section.Text, section.Title, input.Clauses)
		if err != nil {
			return nil, fmt.Errorf("score section %q failed: %w", section.Title, err)
		}
		for _, f := range out.Findings {
			if f.Category == "" {
				f.Category = section.Title
			}
			merged.Findings = append(merged.Findings, f)
		}
		for k, v := range out.Checklist {
			merged.Checklist[k] = v
		}
		if out.Summary != "" {
			summaries = append(summaries, section.Title+": "+out.Summary)
		}
		if out.Recommendation != "" && merged.Recommendation == "" {
			merged.Recommendation = out.Recommendation
		}
		confidenceSum += out.Confidence
	}
	merged.Summary = strings.Join(summaries, "\n")
	merged.Confidence = confidenceSum / float64(len(input.Sections))
	return merged, nil
}

func (s *LLMScorer) scoreOnce(ctx context.Context, name, text, section string, clauses []retrieval.ScoredClause) (*ScoreOutput, error) {
	if len([]rune(text)) > s.maxDocChars {
		text = string([]rune(text)[:s.maxDocChars])
	}

	var sb strings.Builder
	sb.WriteString("Normative clauses:\n")
	for _, sc := range clauses {
		sb.WriteString("[")
		sb.WriteString(sc.Clause.ClauseID)
		sb.WriteString("] ")
		if sc.Clause.Number != "" {
			sb.WriteString(sc.Clause.Number + " ")
		}
		if sc.Clause.Title != "" {
			sb.WriteString(sc.Clause.Title + ": ")
		}
		sb.WriteString(sc.Clause.Text)
		sb.WriteString("\n")
	}
	sb.WriteString("\nDocument: " + name + "\n")
	if section != "" {
		sb.WriteString("Section: " + section + "\n")
	}
	sb.WriteString("Content:\n" + text)

	messages := []ai.ChatMessage{
		{Role: "system", Content: s.systemPrompt},
		{Role: "user", Content: sb.String()},
	}
	answer, err := s.client.Complete(ctx, s.chatConfig, messages)
	if err != nil {
		return nil, fmt.Errorf("scoring completion failed: %w", err)
	}
	return ParseScoreOutput(answer)
}

// ParseScoreOutput extracts the JSON verdict from a completion answer.
// Models occasionally wrap the object in prose or code fences, so parsing
// starts at the first brace and ends at the last one.
func ParseScoreOutput(answer string) (*ScoreOutput, error) {
	start := strings.Index(answer, "{")
	end := strings.LastIndex(answer, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("no JSON object in scoring answer")
	}
	var out ScoreOutput
	if err := json.Unmarshal([]byte(answer[start:end+1]), &out); err != nil {
		return nil, fmt.Errorf("parse scoring answer failed: %w", err)
	}
	for i := range out.Findings {
		out.Findings[i].Severity = normalizeSeverity(out.Findings[i].Severity)
		if strings.TrimSpace(out.Findings[i].Title) == "" {
			out.Findings[i].Title = "Unspecified deviation"
		}
	}
	if out.Confidence < 0 {
		out.Confidence = 0
	}
	if out.Confidence > 1 {
		out.Confidence = 1
	}
	return &out, nil
}

func normalizeSeverity(s model.FindingSeverity) model.FindingSeverity {
	switch model.FindingSeverity(strings.ToLower(string(s))) {
	case model.SeverityCritical:
		return model.SeverityCritical
	case model.SeverityHigh:
		return model.SeverityHigh
	case model.SeverityMedium:
		return model.SeverityMedium
	case model.SeverityLow:
		return model.SeverityLow
	default:
		return model.SeverityInfo
	}
}
