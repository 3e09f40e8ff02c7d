package app

import (
	"testing"

	"github.com/PavSher76/AI-NK-sub005/internal/model"
)

func TestSegmentClauses(t *testing.T) {
	text := "GENERAL\n" +
		"4.1 Stamps must be present on every sheet.\n" +
		"The stamp is placed in the lower right corner.\n" +
		"4.2 Scales are recommended to follow the approved list.\n" +
		"4.2.1 Note: deviations are agreed with the customer.\n"

	clauses := segmentClauses(7, text)
	if len(clauses) != 3 {
		t.Fatalf("expected 3 clauses, got %d", len(clauses))
	}

	first := clauses[0]
	if first.Number != "4.1" || first.ClauseID != "7-4.1" {
		t.Fatalf("unexpected first clause: %+v", first)
	}
	if first.Importance != 5 {
		t.Fatalf("'must' clause should have importance 5, got %d", first.Importance)
	}
	if first.Text == "" || first.Title == "" {
		t.Fatal("clause text and title must be filled")
	}

	if clauses[1].Type != model.ClauseRecommendation {
		t.Fatalf("expected recommendation, got %s", clauses[1].Type)
	}
	if clauses[2].Number != "4.2.1" {
		t.Fatalf("expected nested number 4.2.1, got %s", clauses[2].Number)
	}
}

func TestSegmentClausesIgnoresPreamble(t *testing.T) {
	if got := segmentClauses(1, "Introduction text without numbering.\nMore prose."); len(got) != 0 {
		t.Fatalf("expected no clauses from unnumbered text, got %d", len(got))
	}
}

func TestClassifyClause(t *testing.T) {
	cases := []struct {
		text string
		want model.ClauseType
	}{
		{"Note: margins may vary", model.ClauseNote},
		{"Примечание: допускается", model.ClauseNote},
		{"Example of a title block", model.ClauseExample},
		{"It is recommended to use A1 sheets", model.ClauseRecommendation},
		{"Stamps shall be present", model.ClauseRequirement},
	}
	for _, tc := range cases {
		if got := classifyClause(tc.text); got != tc.want {
			t.Errorf("classifyClause(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}

func TestSplitPageElements(t *testing.T) {
	page := "General notes for the sheet.\n\n" +
		"Position    Designation    Quantity\n" +
		"1           Beam B-1       4\n\n" +
		"Final remarks."

	elements := splitPageElements(3, 2, page)
	if len(elements) != 3 {
		t.Fatalf("expected 3 elements, got %d", len(elements))
	}
	if elements[0].Type != model.ElementText {
		t.Fatalf("expected text element, got %s", elements[0].Type)
	}
	if elements[1].Type != model.ElementTable {
		t.Fatalf("column-aligned block should be a table, got %s", elements[1].Type)
	}
	for _, el := range elements {
		if el.DocumentID != 3 || el.PageNumber != 2 {
			t.Fatalf("element carries wrong document/page: %+v", el)
		}
	}
}

func TestBuildCheckInputModes(t *testing.T) {
	elements := []model.Element{
		{PageNumber: 1, Content: "title block"},
		{PageNumber: 2, Content: "section view"},
		{PageNumber: 1, Content: "notes"},
		{PageNumber: 3, Content: ""},
	}

	query, sections, fullText := buildCheckInput(elements, model.ModeFlat)
	if len(sections) != 0 {
		t.Fatalf("flat mode must not build sections, got %d", len(sections))
	}
	if query == "" || fullText == "" {
		t.Fatal("expected non-empty query and text")
	}

	_, sections, _ = buildCheckInput(elements, model.ModeHierarchical)
	if len(sections) != 2 {
		t.Fatalf("expected 2 page sections, got %d", len(sections))
	}
	if sections[0].Title != "Page 1" || sections[1].Title != "Page 2" {
		t.Fatalf("unexpected section titles: %+v", sections)
	}
}
