package handler

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/response"
)

// DocumentHandler serves upload, listing and deletion of documents.
type DocumentHandler struct {
	ingestService *app.IngestService
	docRepo       *repository.DocumentRepository
	auditRepo     *repository.AuditRepository
}

func NewDocumentHandler(ingestService *app.IngestService, docRepo *repository.DocumentRepository, auditRepo *repository.AuditRepository) *DocumentHandler {
	return &DocumentHandler{
		ingestService: ingestService,
		docRepo:       docRepo,
		auditRepo:     auditRepo,
	}
}

// Upload accepts a multipart form with "file" and an optional "kind" field
// (checkable by default). The response carries the stored document and a
// dedup flag; identical bytes never create a second record.
func (h *DocumentHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing document file (form field 'file')")
		return
	}

	kind := model.DocumentKind(c.PostForm("kind"))
	if kind == "" {
		kind = model.KindCheckable
	}
	if kind != model.KindCheckable && kind != model.KindReference {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "kind must be 'checkable' or 'reference'")
		return
	}

	f, err := file.Open()
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to open uploaded file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read uploaded file")
		return
	}

	result, err := h.ingestService.Ingest(c.Request.Context(), app.IngestInput{
		Filename: file.Filename,
		Kind:     kind,
		Category: c.PostForm("category"),
		Data:     data,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
		case errors.Is(err, app.ErrUnsupportedFormat):
			response.Error(c, http.StatusBadRequest, response.CodeUnsupportedFormat, err.Error())
		case errors.Is(err, app.ErrFileTooLarge):
			response.Error(c, http.StatusBadRequest, response.CodeFileTooLarge, err.Error())
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "upload failed")
		}
		return
	}

	response.OK(c, gin.H{
		"id":                result.Document.ID,
		"filename":          result.Document.Filename,
		"fingerprint":       result.Document.Fingerprint,
		"kind":              result.Document.Kind,
		"format":            result.Document.Format,
		"processing_status": result.Document.ProcessingStatus,
		"review_status":     result.Document.ReviewStatus,
		"deduplicated":      result.Deduplicated,
	})
}

// List returns documents, optionally filtered by the "kind" query parameter.
func (h *DocumentHandler) List(c *gin.Context) {
	kind := model.DocumentKind(c.Query("kind"))
	docs, err := h.docRepo.List(kind)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list documents failed")
		return
	}
	response.OK(c, gin.H{"items": docs, "count": len(docs)})
}

// Get returns one document with its extracted elements.
func (h *DocumentHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	doc, err := h.docRepo.GetByID(id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch document failed")
		return
	}
	if doc == nil {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		return
	}
	response.OK(c, doc)
}

// Delete removes a document and cascades to its elements, results, findings
// and reports. The deletion is written to the audit log.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	doc, err := h.docRepo.GetByID(id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch document failed")
		return
	}
	if doc == nil {
		response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		return
	}

	if err := h.docRepo.Delete(id); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "delete document failed")
		return
	}
	if err := h.auditRepo.Append(&model.AuditLog{
		Action:     "manual_delete",
		TargetType: "document",
		TargetID:   id,
		Detail:     fmt.Sprintf("deleted %q (%s)", doc.Filename, doc.Kind),
	}); err != nil {
		log.Printf("audit append for document %d failed: %v", id, err)
	}

	response.OK(c, nil)
}

func parseIDParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil || id == 0 {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid document id")
		return 0, false
	}
	return uint(id), true
}
