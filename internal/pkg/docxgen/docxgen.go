// Package docxgen builds minimal WordprocessingML documents for report
// export. It covers plain headed paragraphs only, which is all the review
// report needs; output is byte-deterministic for identical input.
package docxgen

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// zipEpoch pins every archive entry timestamp so that exporting the same
// report twice yields identical bytes.
var zipEpoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

const contentTypesXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">
<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>
<Default Extension="xml" ContentType="application/xml"/>
<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>
</Types>`

const relsXML = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">
<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>
</Relationships>`

// Paragraph is one line of the generated document.
type Paragraph struct {
	Text    string
	Heading bool
}

// Build renders the paragraphs into a .docx archive.
func Build(paragraphs []Paragraph) ([]byte, error) {
	var doc strings.Builder
	doc.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>`)
	doc.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)
	for _, p := range paragraphs {
		doc.WriteString(`<w:p>`)
		if p.Heading {
			doc.WriteString(`<w:pPr><w:pStyle w:val="Heading1"/></w:pPr>`)
		}
		doc.WriteString(`<w:r>`)
		if p.Heading {
			doc.WriteString(`<w:rPr><w:b/></w:rPr>`)
		}
		doc.WriteString(`<w:t xml:space="preserve">`)
		if err := xml.EscapeText(&doc, []byte(p.Text)); err != nil {
			return nil, fmt.Errorf("escape paragraph failed: %w", err)
		}
		doc.WriteString(`</w:t></w:r></w:p>`)
	}
	doc.WriteString(`</w:body></w:document>`)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entries := []struct {
		name string
		body string
	}{
		{"[Content_Types].xml", contentTypesXML},
		{"_rels/.rels", relsXML},
		{"word/document.xml", doc.String()},
	}
	for _, e := range entries {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     e.name,
			Method:   zip.Deflate,
			Modified: zipEpoch,
		})
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s failed: %w", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			return nil, fmt.Errorf("write zip entry %s failed: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx archive failed: %w", err)
	}
	return buf.Bytes(), nil
}
