package pdfgen

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestBuildIsDeterministic(t *testing.T) {
	lines := []string{"Compliance Review Report NK-1", "", "Overall status: pass"}
	if !bytes.Equal(Build(lines), Build(lines)) {
		t.Fatal("identical input must produce identical bytes")
	}
}

func TestBuildStructure(t *testing.T) {
	data := Build([]string{"hello (world) \\ test"})
	out := string(data)

	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatal("missing PDF header")
	}
	if !strings.Contains(out, "%%EOF") {
		t.Fatal("missing PDF trailer")
	}
	if !strings.Contains(out, `hello \(world\) \\ test`) {
		t.Fatal("parentheses and backslashes must be escaped in content streams")
	}
}

func TestBuildPaginates(t *testing.T) {
	var lines []string
	for i := 0; i < linesPerPage+10; i++ {
		lines = append(lines, fmt.Sprintf("line %d", i))
	}
	out := string(Build(lines))

	if got := strings.Count(out, "/Type /Page "); got != 2 {
		t.Fatalf("expected 2 page objects, got %d", got)
	}
}

func TestBuildEmptyInput(t *testing.T) {
	out := string(Build(nil))
	if !strings.HasPrefix(out, "%PDF-") {
		t.Fatal("empty input must still produce a valid document")
	}
}
