package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/PavSher76/AI-NK-sub005/internal/config"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/pkg/docxgen"
	"github.com/PavSher76/AI-NK-sub005/internal/pkg/pdfgen"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
)

// ExportCache stores rendered report bytes keyed by result, format and
// template version.
type ExportCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte) error
}

// ReportService compiles validation results into review reports and renders
// durable exports. Compilation is deterministic: identical input produces
// identical scores, verdicts and export bytes.
type ReportService struct {
	resultRepo *repository.ResultRepository
	docRepo    *repository.DocumentRepository
	cache      ExportCache
	cfg        config.ValidationConfig
	exportDir  string
}

func NewReportService(
	resultRepo *repository.ResultRepository,
	docRepo *repository.DocumentRepository,
	cache ExportCache,
	cfg config.ValidationConfig,
	exportDir string,
) *ReportService {
	return &ReportService{
		resultRepo: resultRepo,
		docRepo:    docRepo,
		cache:      cache,
		cfg:        cfg,
		exportDir:  exportDir,
	}
}

// Verdict derives the overall status from finding counts using the
// configured threshold rules: any critical finding fails the check, any
// high-severity finding without criticals leaves it uncertain.
func (s *ReportService) Verdict(critical, high int) model.OverallStatus {
	switch {
	case critical > 0:
		return model.VerdictFail
	case high > 0:
		return model.VerdictUncertain
	default:
		return model.VerdictPass
	}
}

// ComplianceScore maps severity counts to a 0..100 score. Critical findings
// weigh heaviest, informational ones least; the score is clamped.
func (s *ReportService) ComplianceScore(result *model.ValidationResult) float64 {
	penalty := float64(result.Critical)*s.cfg.CriticalWeight +
		float64(result.High)*s.cfg.HighWeight +
		float64(result.Medium)*s.cfg.MediumWeight +
		float64(result.Low)*s.cfg.LowWeight +
		float64(result.Info)*s.cfg.InfoWeight
	score := 100 - penalty
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// Compile builds the human-facing report record for a result.
func (s *ReportService) Compile(result *model.ValidationResult, reviewer string) *model.ReviewReport {
	return &model.ReviewReport{
		ResultID:           result.ID,
		ReportNumber:       "NK-" + uuid.New().String(),
		Reviewer:           reviewer,
		ComplianceScore:    s.ComplianceScore(result),
		TotalViolations:    result.Critical + result.High + result.Medium + result.Low,
		CriticalViolations: result.Critical,
	}
}

// CurrentReport returns the most recent result (with findings and report)
// for the document.
func (s *ReportService) CurrentReport(documentID uint) (*model.ValidationResult, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	result, err := s.resultRepo.LatestByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, ErrReportNotFound
	}
	return result, nil
}

// History returns all results for the document, newest first.
func (s *ReportService) History(documentID uint) ([]model.ValidationResult, error) {
	return s.resultRepo.ListByDocumentID(documentID)
}

// Export renders the current report in the requested format. The rendering
// is cached and idempotent: exporting an unchanged report twice yields
// byte-identical output for the same template version.
func (s *ReportService) Export(ctx context.Context, documentID uint, format string) ([]byte, string, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, "", err
	}
	if doc == nil {
		return nil, "", ErrDocumentNotFound
	}
	if doc.ProcessingStatus != model.StatusCompleted {
		return nil, "", ErrReportNotReady
	}
	result, err := s.resultRepo.LatestByDocumentID(documentID)
	if err != nil {
		return nil, "", err
	}
	if result == nil || result.Report == nil {
		return nil, "", ErrReportNotFound
	}

	format = strings.ToLower(strings.TrimSpace(format))
	switch format {
	case "json", "docx", "pdf":
	default:
		return nil, "", ErrUnsupportedFormat
	}
	filename := result.Report.ReportNumber + "." + format

	cacheKey := fmt.Sprintf("report:%d:%s:%s", result.ID, format, s.cfg.TemplateVersion)
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, cacheKey); err == nil && ok {
			return cached, filename, nil
		}
	}

	data, err := s.render(doc, result, format)
	if err != nil {
		return nil, "", err
	}

	if s.exportDir != "" {
		if err := os.MkdirAll(s.exportDir, 0o755); err == nil {
			path := filepath.Join(s.exportDir, filename)
			if err := os.WriteFile(path, data, 0o644); err == nil {
				_ = s.resultRepo.UpdateExportedPath(result.Report.ID, path)
			}
		}
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, cacheKey, data)
	}
	return data, filename, nil
}

type exportFinding struct {
	Severity       model.FindingSeverity `json:"severity"`
	Category       string                `json:"category"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Recommendation string                `json:"recommendation,omitempty"`
	ClauseID       string                `json:"clause_id,omitempty"`
}

type exportPayload struct {
	ReportNumber    string              `json:"report_number"`
	TemplateVersion string              `json:"template_version"`
	Document        string              `json:"document"`
	AnalyzedAt      string              `json:"analyzed_at"`
	Method          model.CheckMode     `json:"method"`
	OverallStatus   model.OverallStatus `json:"overall_status"`
	ComplianceScore float64             `json:"compliance_score"`
	Confidence      float64             `json:"confidence"`
	Critical        int                 `json:"critical"`
	High            int                 `json:"high"`
	Medium          int                 `json:"medium"`
	Low             int                 `json:"low"`
	Info            int                 `json:"info"`
	TotalFindings   int                 `json:"total_findings"`
	Summary         string              `json:"summary"`
	Recommendation  string              `json:"recommendation"`
	Findings        []exportFinding     `json:"findings"`
}

func (s *ReportService) render(doc *model.Document, result *model.ValidationResult, format string) ([]byte, error) {
	findings := append([]model.Finding(nil), result.Findings...)
	sort.SliceStable(findings, func(i, j int) bool { return findings[i].ID < findings[j].ID })

	payload := exportPayload{
		ReportNumber:    result.Report.ReportNumber,
		TemplateVersion: s.cfg.TemplateVersion,
		Document:        doc.Filename,
		AnalyzedAt:      result.AnalyzedAt.UTC().Format(time.RFC3339),
		Method:          result.Method,
		OverallStatus:   result.OverallStatus,
		ComplianceScore: result.Report.ComplianceScore,
		Confidence:      result.Confidence,
		Critical:        result.Critical,
		High:            result.High,
		Medium:          result.Medium,
		Low:             result.Low,
		Info:            result.Info,
		TotalFindings:   result.TotalFindings,
		Summary:         result.Summary,
		Recommendation:  result.Recommendation,
	}
	for _, f := range findings {
		payload.Findings = append(payload.Findings, exportFinding{
			Severity:       f.Severity,
			Category:       f.Category,
			Title:          f.Title,
			Description:    f.Description,
			Recommendation: f.Recommendation,
			ClauseID:       f.ClauseID,
		})
	}

	switch format {
	case "json":
		data, err := json.MarshalIndent(payload, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal report export failed: %w", err)
		}
		return data, nil
	case "docx":
		return docxgen.Build(reportParagraphs(payload))
	case "pdf":
		return pdfgen.Build(reportLines(payload)), nil
	}
	return nil, ErrUnsupportedFormat
}

func reportParagraphs(p exportPayload) []docxgen.Paragraph {
	paragraphs := []docxgen.Paragraph{
		{Text: "Compliance Review Report " + p.ReportNumber, Heading: true},
		{Text: "Document: " + p.Document},
		{Text: "Analyzed: " + p.AnalyzedAt + " (" + string(p.Method) + " check)"},
		{Text: fmt.Sprintf("Overall status: %s, compliance score %.1f, confidence %.2f",
			p.OverallStatus, p.ComplianceScore, p.Confidence)},
		{Text: fmt.Sprintf("Findings: %d total (critical %d, high %d, medium %d, low %d, info %d)",
			p.TotalFindings, p.Critical, p.High, p.Medium, p.Low, p.Info)},
	}
	if p.Summary != "" {
		paragraphs = append(paragraphs,
			docxgen.Paragraph{Text: "Summary", Heading: true},
			docxgen.Paragraph{Text: p.Summary})
	}
	if len(p.Findings) > 0 {
		paragraphs = append(paragraphs, docxgen.Paragraph{Text: "Findings", Heading: true})
		for i, f := range p.Findings {
			line := fmt.Sprintf("%d. [%s] %s", i+1, f.Severity, f.Title)
			if f.ClauseID != "" {
				line += " (clause " + f.ClauseID + ")"
			}
			paragraphs = append(paragraphs, docxgen.Paragraph{Text: line})
			if f.Description != "" {
				paragraphs = append(paragraphs, docxgen.Paragraph{Text: f.Description})
			}
			if f.Recommendation != "" {
				paragraphs = append(paragraphs, docxgen.Paragraph{Text: "Recommendation: " + f.Recommendation})
			}
		}
	}
	if p.Recommendation != "" {
		paragraphs = append(paragraphs,
			docxgen.Paragraph{Text: "Recommendation", Heading: true},
			docxgen.Paragraph{Text: p.Recommendation})
	}
	return paragraphs
}

func reportLines(p exportPayload) []string {
	var lines []string
	for _, para := range reportParagraphs(p) {
		lines = append(lines, para.Text)
		if para.Heading {
			lines = append(lines, "")
		}
	}
	return lines
}
