package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/response"
)

// CheckHandler starts asynchronous checks and serves their polling status.
type CheckHandler struct {
	validationService *app.ValidationService
}

type StartCheckRequest struct {
	Mode string `json:"mode"`
}

func NewCheckHandler(validationService *app.ValidationService) *CheckHandler {
	return &CheckHandler{validationService: validationService}
}

// Start dispatches a check for the document. The call returns immediately
// with "started" or, when a check is already in flight, "already_processing".
func (h *CheckHandler) Start(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	var req StartCheckRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}
	mode := model.CheckMode(req.Mode)
	if mode == "" {
		mode = model.ModeFlat
	}

	result, err := h.validationService.StartCheck(c.Request.Context(), id, mode)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrInvalidInput):
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "mode must be 'flat' or 'hierarchical'")
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		case errors.Is(err, app.ErrNotCheckable):
			response.Error(c, http.StatusBadRequest, response.CodeNotCheckable, "reference documents cannot be checked")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start check failed")
		}
		return
	}

	response.OK(c, result)
}

// StartHierarchical is a shorthand for Start with hierarchical mode.
func (h *CheckHandler) StartHierarchical(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.validationService.StartCheck(c.Request.Context(), id, model.ModeHierarchical)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		case errors.Is(err, app.ErrNotCheckable):
			response.Error(c, http.StatusBadRequest, response.CodeNotCheckable, "reference documents cannot be checked")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "start check failed")
		}
		return
	}

	response.OK(c, result)
}

// Status is the polling endpoint: it reports the document's processing
// status and whether a result exists yet.
func (h *CheckHandler) Status(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	status, err := h.validationService.Status(id)
	if err != nil {
		if errors.Is(err, app.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch status failed")
		return
	}

	response.OK(c, status)
}
