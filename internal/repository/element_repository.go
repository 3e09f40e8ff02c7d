package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type ElementRepository struct {
	db *gorm.DB
}

func NewElementRepository(db *gorm.DB) *ElementRepository {
	return &ElementRepository{db: db}
}

func (r *ElementRepository) CreateBatch(elements []model.Element) error {
	if len(elements) == 0 {
		return nil
	}
	if err := r.db.Create(&elements).Error; err != nil {
		return fmt.Errorf("create elements batch failed: %w", err)
	}
	return nil
}

func (r *ElementRepository) ListByDocumentID(documentID uint) ([]model.Element, error) {
	var elements []model.Element
	if err := r.db.Where("document_id = ?", documentID).
		Order("page_number ASC, id ASC").Find(&elements).Error; err != nil {
		return nil, fmt.Errorf("list elements failed: %w", err)
	}
	return elements, nil
}

func (r *ElementRepository) CountByDocumentID(documentID uint) (int64, error) {
	var count int64
	if err := r.db.Model(&model.Element{}).Where("document_id = ?", documentID).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count elements failed: %w", err)
	}
	return count, nil
}
