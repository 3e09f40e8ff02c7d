// Package pdfgen writes minimal text-only PDF files for report export.
// Layout is a fixed monospace flow, deterministic for identical input.
package pdfgen

import (
	"bytes"
	"fmt"
	"strings"
)

const (
	linesPerPage = 54
	fontSize     = 10
	leftMargin   = 50
	topStart     = 780
	lineHeight   = 14
)

// Build renders the lines across as many A4-ish pages as needed.
func Build(lines []string) []byte {
	if len(lines) == 0 {
		lines = []string{""}
	}
	var pages [][]string
	for start := 0; start < len(lines); start += linesPerPage {
		end := start + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, lines[start:end])
	}

	// Object layout: 1 catalog, 2 pages, 3 font, then for each page one
	// page object followed by its content stream.
	var objects []string
	pageCount := len(pages)
	kids := make([]string, pageCount)
	for i := 0; i < pageCount; i++ {
		kids[i] = fmt.Sprintf("%d 0 R", 4+i*2)
	}

	objects = append(objects, "<< /Type /Catalog /Pages 2 0 R >>")
	objects = append(objects, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>",
		strings.Join(kids, " "), pageCount))
	objects = append(objects, "<< /Type /Font /Subtype /Type1 /BaseFont /Courier >>")

	for i, page := range pages {
		contentRef := 5 + i*2
		objects = append(objects, fmt.Sprintf(
			"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 595 842] /Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>",
			contentRef))

		var content bytes.Buffer
		content.WriteString("BT\n")
		fmt.Fprintf(&content, "/F1 %d Tf\n", fontSize)
		fmt.Fprintf(&content, "%d %d Td\n", leftMargin, topStart)
		fmt.Fprintf(&content, "%d TL\n", lineHeight)
		for j, line := range page {
			if j > 0 {
				content.WriteString("T*\n")
			}
			fmt.Fprintf(&content, "(%s) Tj\n", escapeText(line))
		}
		content.WriteString("ET")
		objects = append(objects, fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream",
			content.Len(), content.String()))
	}

	var out bytes.Buffer
	out.WriteString("%PDF-1.4\n")
	offsets := make([]int, len(objects)+1)
	for i, obj := range objects {
		offsets[i+1] = out.Len()
		fmt.Fprintf(&out, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xrefOffset := out.Len()
	fmt.Fprintf(&out, "xref\n0 %d\n", len(objects)+1)
	out.WriteString("0000000000 65535 f \n")
	for i := 1; i <= len(objects); i++ {
		fmt.Fprintf(&out, "%010d 00000 n \n", offsets[i])
	}
	fmt.Fprintf(&out, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n",
		len(objects)+1, xrefOffset)
	return out.Bytes()
}

func escapeText(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "(", `\(`)
	s = strings.ReplaceAll(s, ")", `\)`)
	return s
}
