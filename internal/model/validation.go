package model

import (
	"time"

	"gorm.io/datatypes"
)

// CheckMode selects how the retrieval query and scoring are structured.
type CheckMode string

const (
	ModeFlat         CheckMode = "flat"
	ModeHierarchical CheckMode = "hierarchical"
)

// OverallStatus is the verdict of one compliance check.
type OverallStatus string

const (
	VerdictPass      OverallStatus = "pass"
	VerdictFail      OverallStatus = "fail"
	VerdictUncertain OverallStatus = "uncertain"
)

// FindingSeverity orders findings from critical to informational.
type FindingSeverity string

const (
	SeverityCritical FindingSeverity = "critical"
	SeverityHigh     FindingSeverity = "high"
	SeverityMedium   FindingSeverity = "medium"
	SeverityLow      FindingSeverity = "low"
	SeverityInfo     FindingSeverity = "info"
)

// ValidationResult is the outcome of one check invocation. Every invocation
// creates a new row; history is append-only and totally ordered by AnalyzedAt.
type ValidationResult struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	DocumentID     uint           `gorm:"not null;index;constraint:OnDelete:CASCADE" json:"document_id"`
	AnalyzedAt     time.Time      `gorm:"not null;index" json:"analyzed_at"`
	Method         CheckMode      `gorm:"size:16;not null" json:"method"`
	Hierarchical   bool           `json:"hierarchical"`
	Critical       int            `json:"critical_count"`
	High           int            `json:"high_count"`
	Medium         int            `json:"medium_count"`
	Low            int            `json:"low_count"`
	Info           int            `json:"info_count"`
	TotalFindings  int            `json:"total_findings"`
	OverallStatus  OverallStatus  `gorm:"size:16;not null" json:"overall_status"`
	Confidence     float64        `json:"confidence"`
	Checklist      datatypes.JSON `json:"checklist,omitempty"`
	Summary        string         `gorm:"type:text" json:"summary"`
	Recommendation string         `gorm:"type:text" json:"recommendation"`

	Findings []Finding     `gorm:"foreignKey:ResultID" json:"findings,omitempty"`
	Report   *ReviewReport `gorm:"foreignKey:ResultID" json:"report,omitempty"`
}

// SeverityCount returns the stored counter for the given severity.
func (r *ValidationResult) SeverityCount(s FindingSeverity) int {
	switch s {
	case SeverityCritical:
		return r.Critical
	case SeverityHigh:
		return r.High
	case SeverityMedium:
		return r.Medium
	case SeverityLow:
		return r.Low
	case SeverityInfo:
		return r.Info
	}
	return 0
}

// Finding is one detected deviation between the document and a clause.
type Finding struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	ResultID       uint            `gorm:"not null;index;constraint:OnDelete:CASCADE" json:"result_id"`
	Severity       FindingSeverity `gorm:"size:16;not null;index" json:"severity"`
	Category       string          `gorm:"size:64" json:"category"`
	Title          string          `gorm:"size:512;not null" json:"title"`
	Description    string          `gorm:"type:text" json:"description"`
	Recommendation string          `gorm:"type:text" json:"recommendation,omitempty"`
	ClauseID       string          `gorm:"size:64;index" json:"clause_id,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ReviewReport is the human-facing companion of a ValidationResult.
type ReviewReport struct {
	ID                 uint      `gorm:"primaryKey" json:"id"`
	ResultID           uint      `gorm:"not null;uniqueIndex;constraint:OnDelete:CASCADE" json:"result_id"`
	ReportNumber       string    `gorm:"size:64;not null;uniqueIndex" json:"report_number"`
	Reviewer           string    `gorm:"size:128" json:"reviewer"`
	ComplianceScore    float64   `gorm:"not null" json:"compliance_score"` // 0..100
	TotalViolations    int       `json:"total_violations"`
	CriticalViolations int       `json:"critical_violations"`
	ExportedPath       string    `gorm:"size:512" json:"exported_path,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// AuditLog records an administrative action (e.g. janitor deletions).
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Action     string    `gorm:"size:64;not null;index" json:"action"`
	TargetType string    `gorm:"size:32;not null" json:"target_type"`
	TargetID   uint      `gorm:"not null" json:"target_id"`
	Detail     string    `gorm:"type:text" json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
