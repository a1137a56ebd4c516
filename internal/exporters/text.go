// internal/exporters/text.go
package exporters

import "github.com/Corphon/CoffeeWithCinema/internal/models"

// TextExporter returns the text unchanged. The title is not written.
type TextExporter struct{}

// NewTextExporter returns the plain text exporter.
func NewTextExporter() *TextExporter {
	return &TextExporter{}
}

// Format reports models.FormatText.
func (e *TextExporter) Format() models.ExportFormat {
	return models.FormatText
}

// Export returns the bytes of text unchanged.
func (e *TextExporter) Export(text, _ string) ([]byte, error) {
	return []byte(text), nil
}
