package model

import (
	"encoding/json"
	"time"
)

// EmbeddingDim is the fixed dimension of clause embeddings. Vectors of any
// other length are rejected at indexing time.
const EmbeddingDim = 1024

// ClauseType tags the normative weight of a clause.
type ClauseType string

const (
	ClauseRequirement    ClauseType = "requirement"
	ClauseRecommendation ClauseType = "recommendation"
	ClauseNote           ClauseType = "note"
	ClauseExample        ClauseType = "example"
)

// NormativeClause is an atomic retrievable unit of a reference document.
// Embedding is stored as a JSON array of float32 for portability.
type NormativeClause struct {
	ID         uint       `gorm:"primaryKey" json:"id"`
	DocumentID uint       `gorm:"not null;index;constraint:OnDelete:CASCADE" json:"document_id"`
	ClauseID   string     `gorm:"size:64;not null;uniqueIndex" json:"clause_id"`
	Number     string     `gorm:"size:32" json:"number"`
	Title      string     `gorm:"size:512" json:"title"`
	Text       string     `gorm:"type:text;not null" json:"text"`
	Type       ClauseType `gorm:"size:16;not null;default:requirement" json:"type"`
	Importance int        `gorm:"not null;default:3" json:"importance"` // 1..5
	Embedding  string     `gorm:"type:text" json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
}

// EmbeddingVector returns the parsed embedding slice; nil on parse error.
func (c *NormativeClause) EmbeddingVector() []float32 {
	if c.Embedding == "" {
		return nil
	}
	var v []float32
	_ = json.Unmarshal([]byte(c.Embedding), &v)
	return v
}

// SetEmbedding stores the embedding as JSON.
func (c *NormativeClause) SetEmbedding(vec []float32) {
	if len(vec) == 0 {
		c.Embedding = "[]"
		return
	}
	b, _ := json.Marshal(vec)
	c.Embedding = string(b)
}

// ClauseRelationType is the kind of a directed clause-to-clause edge.
type ClauseRelationType string

const (
	RelationReferences  ClauseRelationType = "references"
	RelationContradicts ClauseRelationType = "contradicts"
	RelationExtends     ClauseRelationType = "extends"
	RelationReplaces    ClauseRelationType = "replaces"
)

// ClauseRelation is a weighted directed edge between two clauses.
type ClauseRelation struct {
	ID           uint               `gorm:"primaryKey" json:"id"`
	FromClauseID string             `gorm:"size:64;not null;index" json:"from_clause_id"`
	ToClauseID   string             `gorm:"size:64;not null;index" json:"to_clause_id"`
	Relation     ClauseRelationType `gorm:"size:16;not null" json:"relation"`
	Weight       float64            `gorm:"not null;default:1" json:"weight"`
	CreatedAt    time.Time          `json:"created_at"`
}
