package model

import "time"

// DocumentKind separates the normative corpus from the documents being checked.
type DocumentKind string

const (
	KindReference DocumentKind = "reference"
	KindCheckable DocumentKind = "checkable"
)

// DocumentFormat is the declared file format of an uploaded document.
type DocumentFormat string

const (
	FormatPDF         DocumentFormat = "pdf"
	FormatDOCX        DocumentFormat = "docx"
	FormatSpreadsheet DocumentFormat = "xlsx"
	FormatCAD         DocumentFormat = "dwg"
	FormatText        DocumentFormat = "txt"
)

// ParseDocumentFormat maps a lowercase file extension (without dot) to a format.
func ParseDocumentFormat(ext string) (DocumentFormat, bool) {
	switch DocumentFormat(ext) {
	case FormatPDF, FormatDOCX, FormatSpreadsheet, FormatCAD, FormatText:
		return DocumentFormat(ext), true
	}
	return "", false
}

// ProcessingStatus is the closed lifecycle state of a document.
type ProcessingStatus string

const (
	StatusPending    ProcessingStatus = "pending"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusError      ProcessingStatus = "error"
)

// Terminal reports whether the status will not change without a new request.
func (s ProcessingStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// CanTransition validates a state-machine edge. All transitions into
// processing additionally go through the repository compare-and-swap.
func (s ProcessingStatus) CanTransition(to ProcessingStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusProcessing || to == StatusCompleted || to == StatusError
	case StatusProcessing:
		return to == StatusCompleted || to == StatusError
	case StatusCompleted, StatusError:
		return to == StatusProcessing
	}
	return false
}

// ReviewStatus tracks the human review lifecycle of a checkable document.
type ReviewStatus string

const (
	ReviewPending   ReviewStatus = "pending"
	ReviewInReview  ReviewStatus = "in_review"
	ReviewCompleted ReviewStatus = "completed"
	ReviewRejected  ReviewStatus = "rejected"
)

// Document is an uploaded file, either part of the normative corpus
// (reference) or a subject of compliance checking (checkable).
// The fingerprint is unique: re-uploading identical bytes resolves to the
// existing record.
type Document struct {
	ID               uint             `gorm:"primaryKey" json:"id"`
	Filename         string           `gorm:"size:256;not null" json:"filename"`
	Format           DocumentFormat   `gorm:"size:16;not null" json:"format"`
	SizeBytes        int64            `gorm:"not null" json:"size_bytes"`
	Fingerprint      string           `gorm:"size:64;not null;uniqueIndex" json:"fingerprint"`
	Kind             DocumentKind     `gorm:"size:16;not null;index" json:"kind"`
	Category         string           `gorm:"size:64" json:"category"`
	ProcessingStatus ProcessingStatus `gorm:"size:16;not null;default:pending;index" json:"processing_status"`
	ProcessingError  string           `gorm:"type:text" json:"processing_error,omitempty"`
	TokenCount       int              `json:"token_count"`
	StoragePath      string           `gorm:"size:512" json:"-"`
	UploadedAt       time.Time        `gorm:"autoCreateTime" json:"uploaded_at"`

	// Checkable documents only.
	ReviewDeadline *time.Time   `json:"review_deadline,omitempty"`
	ReviewStatus   ReviewStatus `gorm:"size:16;default:pending" json:"review_status,omitempty"`
}
