// internal/exporters/docx.go
package exporters

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
)

const (
	docxContentTypes = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
		`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
		`<Default Extension="xml" ContentType="application/xml"/>` +
		`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
		`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
		`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
		`</Types>`

	docxRootRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
		`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
		`</Relationships>`

	docxDocumentRels = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
		`</Relationships>`

	docxStyles = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>
<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
		`<w:docDefaults><w:rPrDefault><w:rPr><w:rFonts w:ascii="Calibri" w:hAnsi="Calibri" w:cs="Calibri"/><w:sz w:val="22"/></w:rPr></w:rPrDefault>` +
		`<w:pPrDefault><w:pPr><w:spacing w:after="160" w:line="259" w:lineRule="auto"/></w:pPr></w:pPrDefault></w:docDefaults>` +
		`<w:style w:type="paragraph" w:default="1" w:styleId="Normal"><w:name w:val="Normal"/><w:qFormat/></w:style>` +
		`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:next w:val="Normal"/><w:qFormat/>` +
		`<w:pPr><w:keepNext/><w:spacing w:before="480" w:after="120"/><w:outlineLvl w:val="0"/></w:pPr>` +
		`<w:rPr><w:b/><w:color w:val="365F91"/><w:sz w:val="32"/></w:rPr></w:style>` +
		`</w:styles>`

	// Letter, one inch margins, in twentieths of a point
	docxSection = `<w:sectPr><w:pgSz w:w="12240" w:h="15840"/>` +
		`<w:pgMar w:top="1440" w:right="1440" w:bottom="1440" w:left="1440" w:header="720" w:footer="720" w:gutter="0"/></w:sectPr>`

	docxHeadingStyle = "Heading1"
)

// DOCXExporter writes a minimal WordprocessingML package: a Heading1 title
// and one w:p per paragraph.
type DOCXExporter struct {
	clock Clock
}

// NewDOCXExporter returns a DOCX exporter; a nil clock means time.Now.
func NewDOCXExporter(clock Clock) *DOCXExporter {
	if clock == nil {
		clock = time.Now
	}
	return &DOCXExporter{clock: clock}
}

// Format reports models.FormatDOCX.
func (e *DOCXExporter) Format() models.ExportFormat {
	return models.FormatDOCX
}

// Export packages text under title as a .docx.
func (e *DOCXExporter) Export(text, title string) ([]byte, error) {
	return e.Render(NewDocument(text, title))
}

// Render packages doc as a .docx byte stream.
func (e *DOCXExporter) Render(doc *Document) ([]byte, error) {
	now := e.clock().UTC().Truncate(time.Second)

	body, err := documentXML(doc)
	if err != nil {
		return nil, err
	}
	core, err := coreXML(doc.Title, now)
	if err != nil {
		return nil, err
	}

	parts := []struct {
		name string
		data string
	}{
		{"[Content_Types].xml", docxContentTypes},
		{"_rels/.rels", docxRootRels},
		{"docProps/core.xml", core},
		{"word/_rels/document.xml.rels", docxDocumentRels},
		{"word/styles.xml", docxStyles},
		{"word/document.xml", body},
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, part := range parts {
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     part.name,
			Method:   zip.Deflate,
			Modified: now,
		})
		if err != nil {
			return nil, fmt.Errorf("create docx part %s: %w", part.name, err)
		}
		if _, err := w.Write([]byte(part.data)); err != nil {
			return nil, fmt.Errorf("write docx part %s: %w", part.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close docx: %w", err)
	}
	return buf.Bytes(), nil
}

func documentXML(doc *Document) (string, error) {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n")
	b.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	b.WriteString(`<w:p><w:pPr><w:pStyle w:val="` + docxHeadingStyle + `"/></w:pPr><w:r>`)
	if err := writeRunText(&b, doc.Title); err != nil {
		return "", err
	}
	b.WriteString(`</w:r></w:p>`)

	for _, p := range doc.Paragraphs {
		b.WriteString(`<w:p><w:r>`)
		for i, line := range p.Lines {
			if i > 0 {
				b.WriteString(`<w:br/>`)
			}
			if err := writeRunText(&b, line); err != nil {
				return "", err
			}
		}
		b.WriteString(`</w:r></w:p>`)
	}

	b.WriteString(docxSection)
	b.WriteString(`</w:body></w:document>`)
	return b.String(), nil
}

// writeRunText emits w:t elements for one line, turning tabs into w:tab.
func writeRunText(b *strings.Builder, line string) error {
	for i, chunk := range strings.Split(line, "\t") {
		if i > 0 {
			b.WriteString(`<w:tab/>`)
		}
		if chunk == "" {
			continue
		}
		b.WriteString(`<w:t xml:space="preserve">`)
		if err := xml.EscapeText(b, []byte(chunk)); err != nil {
			return fmt.Errorf("escape docx text: %w", err)
		}
		b.WriteString(`</w:t>`)
	}
	return nil
}

func coreXML(title string, created time.Time) (string, error) {
	var esc strings.Builder
	if err := xml.EscapeText(&esc, []byte(title)); err != nil {
		return "", fmt.Errorf("escape docx title: %w", err)
	}
	stamp := created.Format(time.RFC3339)
	return `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n" +
		`<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" ` +
		`xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" ` +
		`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + esc.String() + `</dc:title>` +
		`<dc:creator>Coffee with Cinema</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:created>` +
		`<dcterms:modified xsi:type="dcterms:W3CDTF">` + stamp + `</dcterms:modified>` +
		`</cp:coreProperties>`, nil
}
