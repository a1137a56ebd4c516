package exporters

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"io"
	"math"
	"sort"
	"strings"
	"testing"
	"time"
	"unicode/utf16"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CoffeeWithCinema/internal/models"
)

const sampleScreenplay = "FADE IN:\n\nINT. ALPHA OFFICE - NIGHT\nRain hammers the window.\n\nBRAVO\nWho sent you?\n\n  \n\nCHARLIE turns away.\tBeat.\n\nFADE OUT."

func fixedClock() time.Time {
	return time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
}

func TestSplitParagraphs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "one line", []string{"one line"}},
		{"two", "a\n\nb", []string{"a", "b"}},
		{"internal newline kept", "a\nb\n\nc", []string{"a\nb", "c"}},
		{"many blank lines", "a\n\n\n\nb", []string{"a", "b"}},
		{"whitespace-only line is blank", "a\n \t\nb", []string{"a", "b"}},
		{"crlf", "a\r\n\r\nb", []string{"a", "b"}},
		{"indent preserved", "a\n\n    b", []string{"a", "    b"}},
		{"empty", "", nil},
		{"blank only", "\n\n  \n", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitParagraphs(tt.in))
		})
	}
}

func TestNewDocumentDefaultsTitle(t *testing.T) {
	doc := NewDocument("x", "  ")
	assert.Equal(t, DefaultTitle, doc.Title)
	require.Len(t, doc.Paragraphs, 1)
}

func TestTextExporterRoundTrip(t *testing.T) {
	inputs := []string{
		sampleScreenplay,
		"",
		"unicode: café — “quotes” 映画\r\nwith CRLF\n\n\n",
	}
	e := NewTextExporter()
	for _, in := range inputs {
		out, err := e.Export(in, "Screenplay")
		require.NoError(t, err)
		assert.Equal(t, in, string(out))
	}
}

func TestDefaultCoversAllFormats(t *testing.T) {
	var got []models.ExportFormat
	for _, e := range Default(fixedClock) {
		got = append(got, e.Format())
	}
	assert.Equal(t, models.AllFormats, got)
}

// docxContent is the logical content of a .docx: heading plus body paragraphs.
type docxContent struct {
	Heading    string
	HeadingSty string
	Paragraphs []string
}

func readDOCX(t *testing.T, data []byte) docxContent {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	names := map[string]bool{}
	var raw []byte
	for _, f := range zr.File {
		names[f.Name] = true
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			require.NoError(t, err)
			raw, err = io.ReadAll(rc)
			require.NoError(t, err)
			rc.Close()
		}
	}
	for _, part := range []string{"[Content_Types].xml", "_rels/.rels", "word/styles.xml"} {
		assert.True(t, names[part], "missing part %s", part)
	}
	require.NotEmpty(t, raw)

	var (
		out     docxContent
		paras   []string
		styles  []string
		current strings.Builder
		style   string
		inText  bool
	)
	dec := xml.NewDecoder(bytes.NewReader(raw))
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		switch el := tok.(type) {
		case xml.StartElement:
			switch el.Name.Local {
			case "p":
				current.Reset()
				style = ""
			case "pStyle":
				for _, a := range el.Attr {
					if a.Name.Local == "val" {
						style = a.Value
					}
				}
			case "t":
				inText = true
			case "br":
				current.WriteString("\n")
			case "tab":
				current.WriteString("\t")
			}
		case xml.EndElement:
			switch el.Name.Local {
			case "p":
				paras = append(paras, current.String())
				styles = append(styles, style)
			case "t":
				inText = false
			}
		case xml.CharData:
			if inText {
				current.Write(el)
			}
		}
	}

	require.NotEmpty(t, paras)
	out.Heading = paras[0]
	out.HeadingSty = styles[0]
	out.Paragraphs = paras[1:]
	return out
}

func TestDOCXStructure(t *testing.T) {
	data, err := NewDOCXExporter(fixedClock).Export(sampleScreenplay, "Night & Rain <Draft>")
	require.NoError(t, err)

	got := readDOCX(t, data)
	segments := SplitParagraphs(sampleScreenplay)

	assert.Equal(t, "Night & Rain <Draft>", got.Heading)
	assert.Equal(t, "Heading1", got.HeadingSty)
	assert.GreaterOrEqual(t, len(got.Paragraphs), len(segments))
	assert.Equal(t, "INT. ALPHA OFFICE - NIGHT\nRain hammers the window.", got.Paragraphs[1])
	assert.Equal(t, "CHARLIE turns away.\tBeat.", got.Paragraphs[3])
}

func TestDOCXIdempotentContent(t *testing.T) {
	calls := 0
	clock := func() time.Time {
		calls++
		return fixedClock().Add(time.Duration(calls) * time.Hour)
	}
	e := NewDOCXExporter(clock)

	first, err := e.Export(sampleScreenplay, "Screenplay")
	require.NoError(t, err)
	second, err := e.Export(sampleScreenplay, "Screenplay")
	require.NoError(t, err)

	assert.Equal(t, readDOCX(t, first), readDOCX(t, second))
}

func pdfText(t *testing.T, data []byte) (string, int) {
	t.Helper()
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var sb strings.Builder
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		require.NoError(t, err)
		sb.WriteString(text)
	}
	return sb.String(), r.NumPage()
}

// pdfBlocks reads the PDF back and groups its lines into blocks. A vertical
// gap wider than one body line starts a new block.
func pdfBlocks(t *testing.T, data []byte) []string {
	t.Helper()
	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	var blocks []string
	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}

		lines := map[int]*strings.Builder{}
		var ys []int
		for _, txt := range p.Content().Text {
			y := int(math.Round(txt.Y))
			b, ok := lines[y]
			if !ok {
				b = &strings.Builder{}
				lines[y] = b
				ys = append(ys, y)
			}
			b.WriteString(txt.S)
		}
		sort.Sort(sort.Reverse(sort.IntSlice(ys)))

		prev := 0
		for j, y := range ys {
			line := lines[y].String()
			if j == 0 || prev-y > pdfBodyLeading+pdfParagraphGap/2 {
				blocks = append(blocks, line)
			} else {
				blocks[len(blocks)-1] += "\n" + line
			}
			prev = y
		}
	}
	return blocks
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func TestPDFRendersEachParagraphAsBlock(t *testing.T) {
	data, err := NewPDFExporter(fixedClock).Export(sampleScreenplay, "Screenplay")
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(data, []byte("%PDF-")))

	blocks := pdfBlocks(t, data)
	segments := SplitParagraphs(sampleScreenplay)

	// title first, then one block per paragraph
	require.GreaterOrEqual(t, len(blocks)-1, len(segments))
	assert.Equal(t, "Screenplay", normalizeSpace(blocks[0]))
	for i, seg := range segments {
		assert.Equal(t, normalizeSpace(seg), normalizeSpace(blocks[i+1]), "paragraph %d", i)
	}
	assert.Contains(t, blocks[2], "\n", "line breaks inside a paragraph stay separate lines")
}

func utf16BE(s string) []byte {
	var out []byte
	for _, u := range utf16.Encode([]rune(s)) {
		out = append(out, byte(u>>8), byte(u))
	}
	return out
}

func TestPDFKeepsNonLatinText(t *testing.T) {
	text := "INT. Αθήνα - NIGHT\n\nКАТЯ говорит тихо."
	data, err := NewPDFExporter(fixedClock).Export(text, "Сцена")
	require.NoError(t, err)

	r, err := lpdf.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	p := r.Page(1)

	fonts := p.Fonts()
	require.NotEmpty(t, fonts)
	for _, name := range fonts {
		assert.Equal(t, "Type0", p.Font(name).V.Key("Subtype").Name(), "font %s", name)
	}

	rc := p.V.Key("Contents").Reader()
	stream, err := io.ReadAll(rc)
	require.NoError(t, err)
	rc.Close()

	for _, word := range append(strings.Fields(text), "Сцена") {
		assert.True(t, bytes.Contains(stream, utf16BE(word)), "missing %q", word)
	}
	assert.Equal(t, 2, len(pdfBlocks(t, data))-1)
}

func TestPDFPaginatesLongText(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("EXT. HIGHWAY - DAY\nThe car drifts across the empty lanes while the radio hums.\n\n")
	}

	data, err := NewPDFExporter(fixedClock).Export(sb.String(), "Long Road")
	require.NoError(t, err)

	_, pages := pdfText(t, data)
	assert.Greater(t, pages, 1)
}

func TestPDFIdempotentContent(t *testing.T) {
	e := NewPDFExporter(time.Now)

	first, err := e.Export(sampleScreenplay, "Screenplay")
	require.NoError(t, err)
	second, err := e.Export(sampleScreenplay, "Screenplay")
	require.NoError(t, err)

	a, _ := pdfText(t, first)
	b, _ := pdfText(t, second)
	assert.Equal(t, a, b)
}
