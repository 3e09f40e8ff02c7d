package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type ResultRepository struct {
	db *gorm.DB
}

func NewResultRepository(db *gorm.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// CreateWithFindings persists a result and its findings atomically.
// Severity counters are recomputed from the findings before insert so the
// stored counts always equal the owned rows.
func (r *ResultRepository) CreateWithFindings(result *model.ValidationResult, findings []model.Finding) error {
	result.Critical, result.High, result.Medium, result.Low, result.Info = 0, 0, 0, 0, 0
	for i := range findings {
		switch findings[i].Severity {
		case model.SeverityCritical:
			result.Critical++
		case model.SeverityHigh:
			result.High++
		case model.SeverityMedium:
			result.Medium++
		case model.SeverityLow:
			result.Low++
		default:
			findings[i].Severity = model.SeverityInfo
			result.Info++
		}
	}
	result.TotalFindings = len(findings)

	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(result).Error; err != nil {
			return err
		}
		if len(findings) == 0 {
			return nil
		}
		for i := range findings {
			findings[i].ResultID = result.ID
		}
		return tx.Create(&findings).Error
	})
	if err != nil {
		return fmt.Errorf("create validation result failed: %w", err)
	}
	result.Findings = findings
	return nil
}

// AttachReport links the 1:1 review report to a result.
func (r *ResultRepository) AttachReport(report *model.ReviewReport) error {
	if err := r.db.Create(report).Error; err != nil {
		return fmt.Errorf("create review report failed: %w", err)
	}
	return nil
}

// LatestByDocumentID returns the current result (most recent AnalyzedAt)
// with findings and report preloaded; nil when no check has run.
func (r *ResultRepository) LatestByDocumentID(documentID uint) (*model.ValidationResult, error) {
	var result model.ValidationResult
	err := r.db.Where("document_id = ?", documentID).
		Order("analyzed_at DESC, id DESC").
		Preload("Findings").
		Preload("Report").
		First(&result).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get latest validation result failed: %w", err)
	}
	return &result, nil
}

// ListByDocumentID returns the full append-only history, newest first.
func (r *ResultRepository) ListByDocumentID(documentID uint) ([]model.ValidationResult, error) {
	var results []model.ValidationResult
	if err := r.db.Where("document_id = ?", documentID).
		Order("analyzed_at DESC, id DESC").
		Preload("Report").
		Find(&results).Error; err != nil {
		return nil, fmt.Errorf("list validation results failed: %w", err)
	}
	return results, nil
}

func (r *ResultRepository) CountFindings(resultID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Finding{}).Where("result_id = ?", resultID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count findings failed: %w", err)
	}
	return count, nil
}

func (r *ResultRepository) UpdateExportedPath(reportID uint, path string) error {
	if err := r.db.Model(&model.ReviewReport{}).Where("id = ?", reportID).
		Update("exported_path", path).Error; err != nil {
		return fmt.Errorf("update exported path failed: %w", err)
	}
	return nil
}
