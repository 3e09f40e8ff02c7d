package scoring

import (
	"testing"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

func TestParseScoreOutputPlainJSON(t *testing.T) {
	answer := `{"findings":[{"severity":"critical","category":"stamps","title":"Missing approval stamp","clause_id":"gost:4.1"}],` +
		`"checklist":{"stamps":"fail"},"summary":"one violation","recommendation":"add stamp","confidence":0.9}`

	out, err := ParseScoreOutput(answer)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(out.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(out.Findings))
	}
	f := out.Findings[0]
	if f.Severity != model.SeverityCritical || f.ClauseID != "gost:4.1" {
		t.Fatalf("unexpected finding: %+v", f)
	}
	if out.Checklist["stamps"] != "fail" {
		t.Fatalf("unexpected checklist: %v", out.Checklist)
	}
	if out.Confidence != 0.9 {
		t.Fatalf("unexpected confidence: %v", out.Confidence)
	}
}

func TestParseScoreOutputWrappedInProse(t *testing.T) {
	answer := "Here is the result:\n```json\n{\"findings\":[],\"summary\":\"clean\",\"confidence\":0.8}\n```\nDone."

	out, err := ParseScoreOutput(answer)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Summary != "clean" || len(out.Findings) != 0 {
		t.Fatalf("unexpected output: %+v", out)
	}
}

func TestParseScoreOutputNoJSON(t *testing.T) {
	if _, err := ParseScoreOutput("the document looks fine"); err == nil {
		t.Fatal("expected error for answer without JSON")
	}
}

func TestParseScoreOutputNormalizes(t *testing.T) {
	answer := `{"findings":[{"severity":"CRITICAL","title":"a"},{"severity":"weird","title":""}],"confidence":3.5}`

	out, err := ParseScoreOutput(answer)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if out.Findings[0].Severity != model.SeverityCritical {
		t.Fatalf("expected uppercase severity normalized, got %s", out.Findings[0].Severity)
	}
	if out.Findings[1].Severity != model.SeverityInfo {
		t.Fatalf("expected unknown severity mapped to info, got %s", out.Findings[1].Severity)
	}
	if out.Findings[1].Title == "" {
		t.Fatal("expected empty title to be filled")
	}
	if out.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", out.Confidence)
	}
}

func TestNormalizeSeverity(t *testing.T) {
	cases := []struct {
		in   model.FindingSeverity
		want model.FindingSeverity
	}{
		{"critical", model.SeverityCritical},
		{"High", model.SeverityHigh},
		{"MEDIUM", model.SeverityMedium},
		{"low", model.SeverityLow},
		{"info", model.SeverityInfo},
		{"", model.SeverityInfo},
		{"blocker", model.SeverityInfo},
	}
	for _, tc := range cases {
		if got := normalizeSeverity(tc.in); got != tc.want {
			t.Errorf("normalizeSeverity(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
