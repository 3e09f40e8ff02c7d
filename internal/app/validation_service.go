package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/PavSher76/AI-NK-sub005/internal/config"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
	"github.com/PavSher76/AI-NK-sub005/internal/retrieval"
	"github.com/PavSher76/AI-NK-sub005/internal/scoring"
)

// CheckJob is the unit of work dispatched to the check queue.
type CheckJob struct {
	DocumentID  uint            `json:"document_id"`
	Mode        model.CheckMode `json:"mode"`
	RequestedAt time.Time       `json:"requested_at"`
}

// CheckDispatcher hands a job to the asynchronous check worker.
type CheckDispatcher interface {
	Dispatch(ctx context.Context, job CheckJob) error
}

// StartCheckResult acknowledges a check request. The result itself is never
// returned synchronously.
type StartCheckResult struct {
	DocumentID uint   `json:"document_id"`
	Status     string `json:"status"` // started | already_processing
}

// CheckStatus is the polling view of a document's check lifecycle.
type CheckStatus struct {
	DocumentID       uint                   `json:"document_id"`
	ProcessingStatus model.ProcessingStatus `json:"processing_status"`
	ProcessingError  string                 `json:"processing_error,omitempty"`
	HasResult        bool                   `json:"has_result"`
}

// ValidationService owns the per-document check lifecycle: it accepts check
// requests, enforces single-flight, runs the retrieval+scoring pipeline and
// persists results. Checks on different documents run concurrently; a single
// document never has more than one check in flight.
type ValidationService struct {
	docRepo     *repository.DocumentRepository
	elementRepo *repository.ElementRepository
	resultRepo  *repository.ResultRepository
	retriever   retrieval.Retriever
	scorer      scoring.Scorer
	reportSvc   *ReportService
	dispatcher  CheckDispatcher
	cfg         config.ValidationConfig
	topK        int
}

func NewValidationService(
	docRepo *repository.DocumentRepository,
	elementRepo *repository.ElementRepository,
	resultRepo *repository.ResultRepository,
	retriever retrieval.Retriever,
	scorer scoring.Scorer,
	reportSvc *ReportService,
	dispatcher CheckDispatcher,
	cfg config.ValidationConfig,
	topK int,
) *ValidationService {
	if topK <= 0 {
		topK = 8
	}
	return &ValidationService{
		docRepo:     docRepo,
		elementRepo: elementRepo,
		resultRepo:  resultRepo,
		retriever:   retriever,
		scorer:      scorer,
		reportSvc:   reportSvc,
		dispatcher:  dispatcher,
		cfg:         cfg,
		topK:        topK,
	}
}

// StartCheck dispatches a check and returns immediately. The transition into
// processing is a compare-and-swap: when two requests race, exactly one
// observes "started" and the other "already_processing".
func (s *ValidationService) StartCheck(ctx context.Context, documentID uint, mode model.CheckMode) (*StartCheckResult, error) {
	if mode != model.ModeFlat && mode != model.ModeHierarchical {
		return nil, ErrInvalidInput
	}
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	if doc.Kind != model.KindCheckable {
		return nil, ErrNotCheckable
	}

	acquired, err := s.docRepo.TryMarkProcessing(documentID)
	if err != nil {
		return nil, err
	}
	if !acquired {
		return &StartCheckResult{DocumentID: documentID, Status: "already_processing"}, nil
	}

	job := CheckJob{DocumentID: documentID, Mode: mode, RequestedAt: time.Now()}
	if err := s.dispatcher.Dispatch(ctx, job); err != nil {
		// The slot was taken but no work will arrive; release it as an error
		// so the document is re-checkable.
		_ = s.docRepo.MarkError(documentID, "check dispatch failed: "+err.Error())
		return nil, fmt.Errorf("dispatch check failed: %w", err)
	}
	return &StartCheckResult{DocumentID: documentID, Status: "started"}, nil
}

// Status reports the current lifecycle state for polling consumers.
func (s *ValidationService) Status(documentID uint) (*CheckStatus, error) {
	doc, err := s.docRepo.GetByID(documentID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	latest, err := s.resultRepo.LatestByDocumentID(documentID)
	if err != nil {
		return nil, err
	}
	return &CheckStatus{
		DocumentID:       doc.ID,
		ProcessingStatus: doc.ProcessingStatus,
		ProcessingError:  doc.ProcessingError,
		HasResult:        latest != nil,
	}, nil
}

// RunCheck executes a dispatched job. Whatever happens, the document leaves
// the processing state: failures transition to error with the reason kept,
// and a panic in the pipeline is converted to the same transition.
func (s *ValidationService) RunCheck(ctx context.Context, job CheckJob) (err error) {
	timeout := time.Duration(s.cfg.CheckTimeoutMinute) * time.Minute
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("check panicked: %v", r)
		}
		if err != nil {
			log.Printf("check for document %d failed: %v", job.DocumentID, err)
			_ = s.docRepo.MarkError(job.DocumentID, err.Error())
		}
	}()

	elements, err := s.elementRepo.ListByDocumentID(job.DocumentID)
	if err != nil {
		return err
	}
	if len(elements) == 0 {
		return fmt.Errorf("document has no extracted elements")
	}

	doc, err := s.docRepo.GetByID(job.DocumentID)
	if err != nil {
		return err
	}
	if doc == nil {
		return ErrDocumentNotFound
	}

	query, sections, fullText := buildCheckInput(elements, job.Mode)
	clauses, err := s.retriever.Retrieve(ctx, query, s.topK)
	if err != nil {
		return fmt.Errorf("clause retrieval failed: %w", err)
	}

	output, err := s.scorer.Score(ctx, scoring.ScoreInput{
		DocumentName: doc.Filename,
		DocumentText: fullText,
		Sections:     sections,
		Clauses:      clauses,
		Hierarchical: job.Mode == model.ModeHierarchical,
	})
	if err != nil {
		return fmt.Errorf("scoring failed: %w", err)
	}

	result, findings := s.buildResult(job, output)
	if err := s.resultRepo.CreateWithFindings(result, findings); err != nil {
		return err
	}

	report := s.reportSvc.Compile(result, "normcontrol-ai")
	if err := s.resultRepo.AttachReport(report); err != nil {
		return err
	}

	if err := s.docRepo.MarkCompleted(job.DocumentID, 0); err != nil {
		return err
	}
	if err := s.docRepo.UpdateReviewStatus(job.DocumentID, model.ReviewCompleted); err != nil {
		return err
	}
	log.Printf("check for document %d completed: %s, %d findings",
		job.DocumentID, result.OverallStatus, result.TotalFindings)
	return nil
}

func (s *ValidationService) buildResult(job CheckJob, output *scoring.ScoreOutput) (*model.ValidationResult, []model.Finding) {
	findings := make([]model.Finding, 0, len(output.Findings))
	var critical, high int
	for _, raw := range output.Findings {
		switch raw.Severity {
		case model.SeverityCritical:
			critical++
		case model.SeverityHigh:
			high++
		}
		findings = append(findings, model.Finding{
			Severity:       raw.Severity,
			Category:       raw.Category,
			Title:          raw.Title,
			Description:    raw.Description,
			Recommendation: raw.Recommendation,
			ClauseID:       raw.ClauseID,
		})
	}

	result := &model.ValidationResult{
		DocumentID:     job.DocumentID,
		AnalyzedAt:     time.Now(),
		Method:         job.Mode,
		Hierarchical:   job.Mode == model.ModeHierarchical,
		OverallStatus:  s.reportSvc.Verdict(critical, high),
		Confidence:     output.Confidence,
		Summary:        output.Summary,
		Recommendation: output.Recommendation,
	}
	if len(output.Checklist) > 0 {
		if raw, err := json.Marshal(output.Checklist); err == nil {
			result.Checklist = datatypes.JSON(raw)
		}
	}
	return result, findings
}

const maxQueryRunes = 4000

// buildCheckInput derives the retrieval query and scoring sections.
// Flat mode treats the document as one body of text; hierarchical mode
// keeps per-page sections so scoring walks the document part by part.
func buildCheckInput(elements []model.Element, mode model.CheckMode) (query string, sections []scoring.Section, fullText string) {
	var sb strings.Builder
	byPage := map[int]*strings.Builder{}
	var pageOrder []int
	for _, el := range elements {
		if el.Content == "" {
			continue
		}
		sb.WriteString(el.Content)
		sb.WriteString("\n")
		if _, ok := byPage[el.PageNumber]; !ok {
			byPage[el.PageNumber] = &strings.Builder{}
			pageOrder = append(pageOrder, el.PageNumber)
		}
		byPage[el.PageNumber].WriteString(el.Content)
		byPage[el.PageNumber].WriteString("\n")
	}
	fullText = sb.String()

	query = fullText
	if runes := []rune(query); len(runes) > maxQueryRunes {
		query = string(runes[:maxQueryRunes])
	}

	if mode == model.ModeHierarchical {
		for _, page := range pageOrder {
			sections = append(sections, scoring.Section{
				Title: fmt.Sprintf("Page %d", page),
				Text:  byPage[page].String(),
			})
		}
	}
	return query, sections, fullText
}
