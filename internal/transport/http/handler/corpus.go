package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/PavSher76/AI-NK-sub005/internal/app"
	"github.com/PavSher76/AI-NK-sub005/internal/model"
	"github.com/PavSher76/AI-NK-sub005/internal/transport/http/response"
)

// CorpusHandler manages the normative clause corpus built from reference
// documents.
type CorpusHandler struct {
	corpusService *app.CorpusService
}

type AddRelationRequest struct {
	FromClauseID string  `json:"from_clause_id" binding:"required"`
	ToClauseID   string  `json:"to_clause_id" binding:"required"`
	Relation     string  `json:"relation" binding:"required"`
	Weight       float64 `json:"weight"`
}

func NewCorpusHandler(corpusService *app.CorpusService) *CorpusHandler {
	return &CorpusHandler{corpusService: corpusService}
}

// Clauses lists the indexed clauses of a reference document.
func (h *CorpusHandler) Clauses(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	clauses, err := h.corpusService.ListClauses(id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list clauses failed")
		return
	}
	response.OK(c, gin.H{"items": clauses, "count": len(clauses)})
}

// Reindex re-embeds the clauses of a reference document and swaps the set
// in a single transaction.
func (h *CorpusHandler) Reindex(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	count, err := h.corpusService.Reindex(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, app.ErrDocumentNotFound) {
			response.Error(c, http.StatusNotFound, response.CodeDocumentNotFound, "document not found")
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "reindex failed")
		return
	}
	response.OK(c, gin.H{"document_id": id, "clauses": count})
}

// AddRelation links two clauses with a typed, weighted edge.
func (h *CorpusHandler) AddRelation(c *gin.Context) {
	var req AddRelationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "invalid request payload")
		return
	}

	rel, err := h.corpusService.AddRelation(req.FromClauseID, req.ToClauseID, model.ClauseRelationType(req.Relation), req.Weight)
	if err != nil {
		if errors.Is(err, app.ErrInvalidInput) {
			response.Error(c, http.StatusBadRequest, response.CodeBadRequest, err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "add relation failed")
		return
	}
	response.OK(c, rel)
}

// Relations lists the outgoing relations of a clause.
func (h *CorpusHandler) Relations(c *gin.Context) {
	clauseID := c.Param("clause_id")
	if clauseID == "" {
		response.Error(c, http.StatusBadRequest, response.CodeBadRequest, "missing clause id")
		return
	}
	rels, err := h.corpusService.ListRelations(clauseID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, "list relations failed")
		return
	}
	response.OK(c, gin.H{"items": rels, "count": len(rels)})
}
