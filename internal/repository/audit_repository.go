package repository

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Append(entry *model.AuditLog) error {
	if err := r.db.Create(entry).Error; err != nil {
		return fmt.Errorf("append audit log failed: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListRecent(limit int) ([]model.AuditLog, error) {
	if limit <= 0 {
		limit = 50
	}
	var entries []model.AuditLog
	if err := r.db.Order("created_at DESC, id DESC").Limit(limit).
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("list audit log failed: %w", err)
	}
	return entries, nil
}
