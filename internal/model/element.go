package model

import "time"

// ElementType classifies an extracted document fragment.
type ElementType string

const (
	ElementText      ElementType = "text"
	ElementTable     ElementType = "table"
	ElementImage     ElementType = "image"
	ElementStamp     ElementType = "stamp"
	ElementAttribute ElementType = "attribute"
)

// Element is one fragment extracted from a document during ingestion.
// Elements are immutable after creation and are removed with their document.
type Element struct {
	ID         uint        `gorm:"primaryKey" json:"id"`
	DocumentID uint        `gorm:"not null;index;constraint:OnDelete:CASCADE" json:"document_id"`
	Type       ElementType `gorm:"size:16;not null;index" json:"type"`
	Content    string      `gorm:"type:text" json:"content"`
	PageNumber int         `gorm:"not null" json:"page_number"`
	X0         float64     `json:"x0"`
	Y0         float64     `json:"y0"`
	X1         float64     `json:"x1"`
	Y1         float64     `json:"y1"`
	Confidence float64     `json:"confidence"`
	CreatedAt  time.Time   `json:"created_at"`
}
