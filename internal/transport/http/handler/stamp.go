package handler

import (
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/repository"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/response"
	"github.com/PavSher76/AI-NK-sub005/internal/vision"
)

const maxImageSize = 5 << 20 // 5 MB

// StampHandler classifies image crops from document pages and records the
// verdict as an element of the document.
type StampHandler struct {
	classifier  *vision.StampClassifier
	docRepo     *repository.DocumentRepository
	elementRepo *repository.ElementRepository
}

func NewStampHandler(classifier *vision.StampClassifier, docRepo *repository.DocumentRepository, elementRepo *repository.ElementRepository) *StampHandler {
	return &StampHandler{
		classifier:  classifier,
		docRepo:     docRepo,
		elementRepo: elementRepo,
	}
}

// Classify accepts a multipart form with "image" (a crop from a document
// page) plus an optional "page" field, runs the stamp classifier and stores
// the result as a stamp or image element of the document.
func (h *StampHandler) Classify(c *gin.Context) {
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

	file, err := c.FormFile("image")
	if err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing image file (form field 'image')")
		return
	}
	if file.Size > maxImageSize {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "image too large (max 5MB)")
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
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "failed to read image")
		return
	}

	page, _ := strconv.Atoi(c.DefaultPostForm("page", "1"))
	if page < 1 {
		page = 1
	}

	result, err := h.classifier.Classify(data)
	if err != nil {
		msg := err.Error()
		if strings.Contains(msg, "cannot open shared object file") || strings.Contains(msg, "Error loading ONNX shared library") {
			msg = "ONNX Runtime library not found. Install it and set VISION_ONNX_LIB to the path to libonnxruntime.so (see README)."
		} else {
			msg = "classification failed: " + msg
		}
		response.Error(c, http.StatusServiceUnavailable, response.CodeInternalServer, msg)
		return
	}

	element := model.Element{
		DocumentID: id,
		Type:       result.ElementType,
		PageNumber: page,
		Content:    result.Label,
		Confidence: result.Confidence,
	}
	if err := h.elementRepo.CreateBatch([]model.Element{element}); err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "store element failed")
		return
	}

	response.OK(c, gin.H{
		"document_id":  id,
		"page":         page,
		"element_type": result.ElementType,
		"label":        result.Label,
		"confidence":   result.Confidence,
	})
}
