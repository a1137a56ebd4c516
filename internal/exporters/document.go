// internal/exporters/document.go
package exporters

import (
	"regexp"
	"strings"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
)

// DefaultTitle is used when the caller passes an empty title.
const DefaultTitle = "Screenplay"

// Exporter turns a text blob into a downloadable byte stream.
type Exporter interface {
	Format() models.ExportFormat
	Export(text, title string) ([]byte, error)
}

// Clock returns the timestamp embedded in document metadata.
type Clock func() time.Time

// Default returns one exporter per supported format.
func Default(clock Clock) []Exporter {
	return []Exporter{
		NewTextExporter(),
		NewPDFExporter(clock),
		NewDOCXExporter(clock),
	}
}

// Paragraph is one blank-line separated block; Lines keeps its internal line breaks.
type Paragraph struct {
	Lines []string
}

// Text joins the lines back with newlines.
func (p Paragraph) Text() string {
	return strings.Join(p.Lines, "\n")
}

// Document is the layout shared by the paginated and structured exporters.
type Document struct {
	Title      string
	Paragraphs []Paragraph
}

// blankLine matches a newline followed by one or more whitespace-only lines.
var blankLine = regexp.MustCompile(`\n(?:[ \t]*\n)+`)

// SplitParagraphs splits text on blank lines. CRLF is normalised first and
// whitespace-only segments are dropped.
func SplitParagraphs(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var out []string
	for _, seg := range blankLine.Split(text, -1) {
		seg = strings.Trim(seg, "\n")
		if strings.TrimSpace(seg) == "" {
			continue
		}
		out = append(out, seg)
	}
	return out
}

// NewDocument builds the layout for text under title.
func NewDocument(text, title string) *Document {
	title = strings.TrimSpace(title)
	if title == "" {
		title = DefaultTitle
	}

	doc := &Document{Title: title}
	for _, seg := range SplitParagraphs(text) {
		lines := strings.Split(seg, "\n")
		for i, line := range lines {
			lines[i] = strings.TrimRight(line, " \t")
		}
		doc.Paragraphs = append(doc.Paragraphs, Paragraph{Lines: lines})
	}
	return doc
}
