package app

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/pkg/pdfextract"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
)

// CorpusIndexer indexes a reference document's clauses after extraction.
type CorpusIndexer interface {
	IndexReference(ctx context.Context, documentID uint, text string) (int, error)
}

type IngestService struct {
	docRepo     *repository.DocumentRepository
	elementRepo *repository.ElementRepository
	indexer     CorpusIndexer
	uploadDir   string
	maxBytes    int64
	retention   time.Duration
}

// IngestInput carries one upload.
type IngestInput struct {
	Filename string
	Kind     model.DocumentKind
	Category string
	Data     []byte
}

// IngestResult reports the stored document and whether the upload was a
// dedup hit.
type IngestResult struct {
	Document     model.Document `json:"document"`
	Deduplicated bool           `json:"deduplicated"`
}

func NewIngestService(
	docRepo *repository.DocumentRepository,
	elementRepo *repository.ElementRepository,
	indexer CorpusIndexer,
	uploadDir string,
	maxUploadMB int,
	retentionDays int,
) *IngestService {
	if maxUploadMB <= 0 {
		maxUploadMB = 50
	}
	if retentionDays <= 0 {
		retentionDays = 30
	}
	return &IngestService{
		docRepo:     docRepo,
		elementRepo: elementRepo,
		indexer:     indexer,
		uploadDir:   uploadDir,
		maxBytes:    int64(maxUploadMB) << 20,
		retention:   time.Duration(retentionDays) * 24 * time.Hour,
	}
}

// Ingest validates, deduplicates and stores the upload, then runs extraction
// in the background. Re-uploading identical bytes is a lookup, not a
// re-store: the existing record is returned unchanged.
func (s *IngestService) Ingest(ctx context.Context, input IngestInput) (*IngestResult, error) {
	if len(input.Data) == 0 || strings.TrimSpace(input.Filename) == "" {
		return nil, ErrInvalidInput
	}
	if input.Kind != model.KindReference && input.Kind != model.KindCheckable {
		return nil, ErrInvalidInput
	}
	if int64(len(input.Data)) > s.maxBytes {
		return nil, ErrFileTooLarge
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(input.Filename)), ".")
	format, ok := model.ParseDocumentFormat(ext)
	if !ok {
		return nil, ErrUnsupportedFormat
	}

	sum := sha256.Sum256(input.Data)
	fingerprint := hex.EncodeToString(sum[:])

	existing, err := s.docRepo.GetByFingerprint(fingerprint)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return &IngestResult{Document: *existing, Deduplicated: true}, nil
	}

	doc := &model.Document{
		Filename:         filepath.Base(input.Filename),
		Format:           format,
		SizeBytes:        int64(len(input.Data)),
		Fingerprint:      fingerprint,
		Kind:             input.Kind,
		Category:         strings.TrimSpace(input.Category),
		ProcessingStatus: model.StatusPending,
	}
	if input.Kind == model.KindCheckable {
		deadline := time.Now().Add(s.retention)
		doc.ReviewDeadline = &deadline
		doc.ReviewStatus = model.ReviewPending
	}
	if err := s.docRepo.Create(doc); err != nil {
		return s.resolveUploadRace(fingerprint, err)
	}

	path, err := s.storeRaw(fingerprint, ext, input.Data)
	if err != nil {
		_, _ = s.docRepo.FailExtraction(doc.ID, "store raw bytes failed: "+err.Error())
		return nil, err
	}
	doc.StoragePath = path

	// Extraction runs detached from the request: upload returns with the
	// document still pending.
	data := append([]byte(nil), input.Data...)
	go s.extract(doc.ID, format, input.Kind, data)

	return &IngestResult{Document: *doc}, nil
}

// resolveUploadRace handles the loser of two concurrent identical uploads:
// the fingerprint lookup missed but the insert hit the unique index, so the
// winner's record is the dedup result. Any other create failure surfaces
// unchanged.
func (s *IngestService) resolveUploadRace(fingerprint string, createErr error) (*IngestResult, error) {
	winner, err := s.docRepo.GetByFingerprint(fingerprint)
	if err == nil && winner != nil {
		return &IngestResult{Document: *winner, Deduplicated: true}, nil
	}
	return nil, createErr
}

func (s *IngestService) storeRaw(fingerprint, ext string, data []byte) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir failed: %w", err)
	}
	path := filepath.Join(s.uploadDir, fingerprint+"."+ext)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write upload failed: %w", err)
	}
	return path, nil
}

// ReadRaw loads the stored bytes of a document (used by reindexing).
func (s *IngestService) ReadRaw(doc *model.Document) ([]byte, error) {
	path := doc.StoragePath
	if path == "" {
		path = filepath.Join(s.uploadDir, doc.Fingerprint+"."+string(doc.Format))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read stored document failed: %w", err)
	}
	return data, nil
}

// extract runs detached from the request. Its terminal transitions are
// conditional on the document still being pending: a check claims the
// processing slot through the same status column, and extraction finishing
// late must not overwrite an in-flight check back to a terminal state.
func (s *IngestService) extract(documentID uint, format model.DocumentFormat, kind model.DocumentKind, data []byte) {
	pages, err := extractPages(format, data)
	if err != nil {
		log.Printf("extract document %d failed: %v", documentID, err)
		s.failExtraction(documentID, err.Error())
		return
	}

	var elements []model.Element
	var full strings.Builder
	for i, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}
		full.WriteString(page)
		full.WriteString("\n")
		elements = append(elements, splitPageElements(documentID, i+1, page)...)
	}
	text := full.String()
	if strings.TrimSpace(text) == "" {
		s.failExtraction(documentID, "document contains no extractable text")
		return
	}
	if err := s.elementRepo.CreateBatch(elements); err != nil {
		log.Printf("persist elements for document %d failed: %v", documentID, err)
		s.failExtraction(documentID, err.Error())
		return
	}

	if kind == model.KindReference && s.indexer != nil {
		count, err := s.indexer.IndexReference(context.Background(), documentID, text)
		if err != nil {
			log.Printf("index reference document %d failed: %v", documentID, err)
			s.failExtraction(documentID, "clause indexing failed: "+err.Error())
			return
		}
		log.Printf("indexed %d clauses for reference document %d", count, documentID)
	}

	ok, err := s.docRepo.CompleteExtraction(documentID, len(strings.Fields(text)))
	if err != nil {
		log.Printf("mark document %d extracted failed: %v", documentID, err)
	} else if !ok {
		log.Printf("document %d left pending before extraction finished; keeping its current status", documentID)
	}
}

func (s *IngestService) failExtraction(documentID uint, reason string) {
	ok, err := s.docRepo.FailExtraction(documentID, reason)
	if err != nil {
		log.Printf("mark document %d extraction error failed: %v", documentID, err)
	} else if !ok {
		log.Printf("document %d left pending before extraction failed; keeping its current status", documentID)
	}
}

func extractPages(format model.DocumentFormat, data []byte) ([]string, error) {
	switch format {
	case model.FormatPDF:
		return pdfextract.ExtractPages(bytes.NewReader(data))
	case model.FormatText:
		return []string{string(data)}, nil
	case model.FormatDOCX:
		text, err := extractDOCXText(data)
		if err != nil {
			return nil, err
		}
		return []string{text}, nil
	default:
		return nil, fmt.Errorf("text extraction is not supported for %s files", format)
	}
}

var (
	docxTagRe   = regexp.MustCompile(`<[^>]+>`)
	docxParaRe  = regexp.MustCompile(`</w:p>`)
	tableLineRe = regexp.MustCompile(`\S\s{3,}\S.*\S\s{3,}\S|\|.*\|`)
)

// extractDOCXText pulls the plain text out of word/document.xml.
func extractDOCXText(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open docx archive failed: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != "word/document.xml" {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return "", fmt.Errorf("open docx document part failed: %w", err)
		}
		raw, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return "", fmt.Errorf("read docx document part failed: %w", err)
		}
		text := docxParaRe.ReplaceAllString(string(raw), "\n")
		text = docxTagRe.ReplaceAllString(text, "")
		return strings.TrimSpace(text), nil
	}
	return "", fmt.Errorf("docx has no document part")
}

// splitPageElements breaks a page into paragraph elements, tagging
// column-aligned fragments as tables.
func splitPageElements(documentID uint, pageNumber int, page string) []model.Element {
	var elements []model.Element
	for _, block := range strings.Split(page, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		elemType := model.ElementText
		if tableLineRe.MatchString(block) {
			elemType = model.ElementTable
		}
		elements = append(elements, model.Element{
			DocumentID: documentID,
			Type:       elemType,
			Content:    block,
			PageNumber: pageNumber,
			Confidence: 1,
		})
	}
	return elements
}
