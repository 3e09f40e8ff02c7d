package model

import "testing"

func TestParseDocumentFormat(t *testing.T) {
	tests := []struct {
		ext  string
		want DocumentFormat
		ok   bool
	}{
		{"pdf", FormatPDF, true},
		{"docx", FormatDOCX, true},
		{"xlsx", FormatSpreadsheet, true},
		{"dwg", FormatCAD, true},
		{"txt", FormatText, true},
		{"exe", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseDocumentFormat(tt.ext)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseDocumentFormat(%q) = (%q, %v), want (%q, %v)", tt.ext, got, ok, tt.want, tt.ok)
		}
	}
}

func TestProcessingStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusProcessing.Terminal() {
		t.Error("pending and processing must not be terminal")
	}
	if !StatusCompleted.Terminal() || !StatusError.Terminal() {
		t.Error("completed and error must be terminal")
	}
}

func TestProcessingStatusTransitions(t *testing.T) {
	allowed := []struct{ from, to ProcessingStatus }{
		{StatusPending, StatusProcessing},
		{StatusPending, StatusCompleted},
		{StatusPending, StatusError},
		{StatusProcessing, StatusCompleted},
		{StatusProcessing, StatusError},
		{StatusCompleted, StatusProcessing},
		{StatusError, StatusProcessing},
	}
	for _, tt := range allowed {
		if !tt.from.CanTransition(tt.to) {
			t.Errorf("%s -> %s should be allowed", tt.from, tt.to)
		}
	}

	denied := []struct{ from, to ProcessingStatus }{
		{StatusProcessing, StatusPending},
		{StatusCompleted, StatusPending},
		{StatusCompleted, StatusError},
		{StatusError, StatusCompleted},
		{ProcessingStatus("bogus"), StatusProcessing},
	}
	for _, tt := range denied {
		if tt.from.CanTransition(tt.to) {
			t.Errorf("%s -> %s should be rejected", tt.from, tt.to)
		}
	}
}
