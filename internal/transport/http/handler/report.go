package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/response"
)

// ReportHandler serves compiled compliance reports and their exports.
type ReportHandler struct {
	reportService *app.ReportService
}

func NewReportHandler(reportService *app.ReportService) *ReportHandler {
	return &ReportHandler{reportService: reportService}
}

var exportContentTypes = map[string]string{
	"json": "application/json",
	"docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	"pdf":  "application/pdf",
}

// Current returns the latest compiled report for the document.
func (h *ReportHandler) Current(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	result, err := h.reportService.CurrentReport(id)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		case errors.Is(err, app.ErrReportNotFound):
			response.Error(c, http.StatusNotFound, response.CodeReportNotFound, "no report compiled for this document yet")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch report failed")
		}
		return
	}

	response.OK(c, reportView(id, result))
}

// History lists every validation result for the document, newest first.
func (h *ReportHandler) History(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	results, err := h.reportService.History(id)
	if err != nil {
		if errors.Is(err, app.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "fetch history failed")
		return
	}

	response.OK(c, gin.H{"items": results, "count": len(results)})
}

// Download streams the exported report in the requested format
// (json, docx or pdf). Re-downloading the same report in the same format
// returns identical bytes.
func (h *ReportHandler) Download(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	contentType, supported := exportContentTypes[format]
	if !supported {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "format must be json, docx or pdf")
		return
	}

	data, filename, err := h.reportService.Export(c.Request.Context(), id, format)
	if err != nil {
		switch {
		case errors.Is(err, app.ErrDocumentNotFound):
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
		case errors.Is(err, app.ErrReportNotFound):
			response.Error(c, http.StatusNotFound, response.CodeReportNotFound, "no report compiled for this document yet")
		case errors.Is(err, app.ErrReportNotReady):
			// No export exists until the check completes.
			response.Error(c, http.StatusNotFound, response.CodeReportNotReady, "check has not completed yet")
		default:
			response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "export report failed")
		}
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, contentType, data)
}

func reportView(documentID uint, result *model.ValidationResult) gin.H {
	view := gin.H{
		"document_id":    documentID,
		"overall_status": result.OverallStatus,
		"total_findings": result.TotalFindings,
		"critical_count": result.Critical,
		"high_count":     result.High,
		"medium_count":   result.Medium,
		"low_count":      result.Low,
		"info_count":     result.Info,
		"summary":        result.Summary,
		"recommendation": result.Recommendation,
		"confidence":     result.Confidence,
		"analyzed_at":    result.AnalyzedAt.UTC().Format(time.RFC3339),
		"findings":       result.Findings,
	}
	if result.Report != nil {
		view["report_number"] = result.Report.ReportNumber
		view["compliance_score"] = result.Report.ComplianceScore
		view["reviewer"] = result.Report.Reviewer
	}
	return view
}
