package app

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrDocumentNotFound  = errors.New("document not found")
	ErrReportNotFound    = errors.New("no validation report for document")
	ErrReportNotReady    = errors.New("document check is not completed")
	ErrNotCheckable      = errors.New("document is not checkable")
)
