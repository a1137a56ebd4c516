// internal/exporters/pdf.go
package exporters

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/go-pdf/fpdf"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
)

// Page geometry in points on US Letter.
const (
	pdfMargin       = 72.0
	pdfTitleSize    = 18.0
	pdfTitleLeading = 22.0
	pdfTitleGap     = 12.0
	pdfBodySize     = 11.0
	pdfBodyLeading  = 14.0
	pdfParagraphGap = 6.0
	pdfFontFamily   = "Go"
	pdfTabWidth     = "    "
)

// PDFExporter renders a centred title followed by justified paragraphs.
type PDFExporter struct {
	clock Clock
}

// NewPDFExporter returns a PDF exporter; a nil clock means time.Now.
func NewPDFExporter(clock Clock) *PDFExporter {
	if clock == nil {
		clock = time.Now
	}
	return &PDFExporter{clock: clock}
}

// Format reports models.FormatPDF.
func (e *PDFExporter) Format() models.ExportFormat {
	return models.FormatPDF
}

// Export lays text out under title as a PDF.
func (e *PDFExporter) Export(text, title string) ([]byte, error) {
	return e.Render(NewDocument(text, title))
}

// Render lays doc out onto Letter pages.
func (e *PDFExporter) Render(doc *Document) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "Letter", "")
	pdf.SetMargins(pdfMargin, pdfMargin, pdfMargin)
	pdf.SetAutoPageBreak(true, pdfMargin)
	pdf.SetTitle(doc.Title, true)
	pdf.SetCreator("Coffee with Cinema", true)
	pdf.SetCreationDate(e.clock())

	// UTF-8 TrueType fonts, so Greek and Cyrillic text survives
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "", goregular.TTF)
	pdf.AddUTF8FontFromBytes(pdfFontFamily, "B", gobold.TTF)

	pdf.AddPage()
	pdf.SetFont(pdfFontFamily, "B", pdfTitleSize)
	pdf.MultiCell(0, pdfTitleLeading, doc.Title, "", "C", false)
	pdf.Ln(pdfTitleGap)

	pdf.SetFont(pdfFontFamily, "", pdfBodySize)
	for _, p := range doc.Paragraphs {
		body := strings.ReplaceAll(p.Text(), "\t", pdfTabWidth)
		pdf.MultiCell(0, pdfBodyLeading, body, "", "J", false)
		pdf.Ln(pdfParagraphGap)
	}

	if pdf.Err() {
		return nil, fmt.Errorf("render pdf: %w", pdf.Error())
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("write pdf: %w", err)
	}
	return buf.Bytes(), nil
}
