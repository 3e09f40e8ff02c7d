package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

type ClauseRepository struct {
	db *gorm.DB
}

func NewClauseRepository(db *gorm.DB) *ClauseRepository {
	return &ClauseRepository{db: db}
}

func (r *ClauseRepository) CreateBatch(clauses []model.NormativeClause) error {
	if len(clauses) == 0 {
		return nil
	}
	if err := r.db.Create(&clauses).Error; err != nil {
		return fmt.Errorf("create clauses batch failed: %w", err)
	}
	return nil
}

// ListAll returns the whole indexed corpus.
func (r *ClauseRepository) ListAll() ([]model.NormativeClause, error) {
	var clauses []model.NormativeClause
	if err := r.db.Order("document_id ASC, id ASC").Find(&clauses).Error; err != nil {
		return nil, fmt.Errorf("list clauses failed: %w", err)
	}
	return clauses, nil
}

func (r *ClauseRepository) ListByDocumentID(documentID uint) ([]model.NormativeClause, error) {
	var clauses []model.NormativeClause
	if err := r.db.Where("document_id = ?", documentID).
		Order("id ASC").Find(&clauses).Error; err != nil {
		return nil, fmt.Errorf("list clauses by document failed: %w", err)
	}
	return clauses, nil
}

func (r *ClauseRepository) GetByClauseID(clauseID string) (*model.NormativeClause, error) {
	var clause model.NormativeClause
	err := r.db.Where("clause_id = ?", clauseID).First(&clause).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get clause failed: %w", err)
	}
	return &clause, nil
}

// Replace swaps the clause set of a reference document in one transaction.
// In-flight readers see either the old set or the new one, never a mix:
// the delete and insert commit together.
func (r *ClauseRepository) Replace(documentID uint, clauses []model.NormativeClause) error {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).
			Delete(&model.NormativeClause{}).Error; err != nil {
			return err
		}
		if len(clauses) == 0 {
			return nil
		}
		return tx.Create(&clauses).Error
	})
	if err != nil {
		return fmt.Errorf("replace clauses failed: %w", err)
	}
	return nil
}

func (r *ClauseRepository) CreateRelation(rel *model.ClauseRelation) error {
	if err := r.db.Create(rel).Error; err != nil {
		return fmt.Errorf("create clause relation failed: %w", err)
	}
	return nil
}

// ListRelations returns outgoing edges of a clause.
func (r *ClauseRepository) ListRelations(fromClauseID string) ([]model.ClauseRelation, error) {
	var rels []model.ClauseRelation
	if err := r.db.Where("from_clause_id = ?", fromClauseID).Find(&rels).Error; err != nil {
		return nil, fmt.Errorf("list clause relations failed: %w", err)
	}
	return rels, nil
}
