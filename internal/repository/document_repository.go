package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) GetByID(id uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.First(&doc, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// GetByFingerprint is the dedup lookup: identical bytes resolve to one record.
func (r *DocumentRepository) GetByFingerprint(fingerprint string) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("fingerprint = ?", fingerprint).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document by fingerprint failed: %w", err)
	}
	return &doc, nil
}

// List returns documents of the given kind, newest first; empty kind lists all.
func (r *DocumentRepository) List(kind model.DocumentKind) ([]model.Document, error) {
	q := r.db.Model(&model.Document{})
	if kind != "" {
		q = q.Where("kind = ?", kind)
	}
	var list []model.Document
	if err := q.Order("uploaded_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

// TryMarkProcessing is the single-flight primitive: an atomic
// compare-and-swap from any non-processing status into processing.
// Returns false when a check is already in flight for the document.
func (r *DocumentRepository) TryMarkProcessing(id uint) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND processing_status <> ?", id, model.StatusProcessing).
		Updates(map[string]interface{}{
			"processing_status": model.StatusProcessing,
			"processing_error":  "",
			"review_status":     model.ReviewInReview,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark document processing failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// CompleteExtraction transitions pending -> completed once text extraction
// finishes. The transition is conditional: a check may have claimed the
// document in the meantime (pending -> processing via TryMarkProcessing),
// and extraction must not stomp on that slot. Returns false when the
// document was no longer pending.
func (r *DocumentRepository) CompleteExtraction(id uint, tokenCount int) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND processing_status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"processing_status": model.StatusCompleted,
			"processing_error":  "",
			"token_count":       tokenCount,
		})
	if res.Error != nil {
		return false, fmt.Errorf("complete extraction failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// FailExtraction transitions pending -> error, guarded like
// CompleteExtraction.
func (r *DocumentRepository) FailExtraction(id uint, reason string) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND processing_status = ?", id, model.StatusPending).
		Updates(map[string]interface{}{
			"processing_status": model.StatusError,
			"processing_error":  reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("fail extraction failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkCompleted transitions the document out of processing after a
// successful check.
func (r *DocumentRepository) MarkCompleted(id uint, tokenCount int) error {
	updates := map[string]interface{}{
		"processing_status": model.StatusCompleted,
		"processing_error":  "",
	}
	if tokenCount > 0 {
		updates["token_count"] = tokenCount
	}
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return fmt.Errorf("mark document completed failed: %w", err)
	}
	return nil
}

// MarkError records the failure reason; the document is re-checkable.
func (r *DocumentRepository) MarkError(id uint, reason string) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).Updates(map[string]interface{}{
		"processing_status": model.StatusError,
		"processing_error":  reason,
	}).Error; err != nil {
		return fmt.Errorf("mark document error failed: %w", err)
	}
	return nil
}

func (r *DocumentRepository) UpdateReviewStatus(id uint, status model.ReviewStatus) error {
	if err := r.db.Model(&model.Document{}).Where("id = ?", id).
		Update("review_status", status).Error; err != nil {
		return fmt.Errorf("update review status failed: %w", err)
	}
	return nil
}

// ListExpired returns checkable documents whose review deadline has passed.
func (r *DocumentRepository) ListExpired(now time.Time) ([]model.Document, error) {
	var list []model.Document
	if err := r.db.Where("kind = ? AND review_deadline IS NOT NULL AND review_deadline < ?",
		model.KindCheckable, now).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list expired documents failed: %w", err)
	}
	return list, nil
}

// Delete removes the document and everything derived from it in one
// transaction: elements, clauses with their relations, results with
// findings and reports.
func (r *DocumentRepository) Delete(id uint) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var resultIDs []uint
		if err := tx.Model(&model.ValidationResult{}).Where("document_id = ?", id).
			Pluck("id", &resultIDs).Error; err != nil {
			return err
		}
		if len(resultIDs) > 0 {
			if err := tx.Where("result_id IN ?", resultIDs).Delete(&model.Finding{}).Error; err != nil {
				return err
			}
			if err := tx.Where("result_id IN ?", resultIDs).Delete(&model.ReviewReport{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.ValidationResult{}).Error; err != nil {
			return err
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.Element{}).Error; err != nil {
			return err
		}
		var clauseIDs []string
		if err := tx.Model(&model.NormativeClause{}).Where("document_id = ?", id).
			Pluck("clause_id", &clauseIDs).Error; err != nil {
			return err
		}
		if len(clauseIDs) > 0 {
			if err := tx.Where("from_clause_id IN ? OR to_clause_id IN ?", clauseIDs, clauseIDs).
				Delete(&model.ClauseRelation{}).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("document_id = ?", id).Delete(&model.NormativeClause{}).Error; err != nil {
			return err
		}
		return tx.Delete(&model.Document{}, id).Error
	})
	if err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
