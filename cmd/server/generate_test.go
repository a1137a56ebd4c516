package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Corphon/CoffeeWithCinema/internal/errors"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
)

func fakeOllama(t *testing.T, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if status != http.StatusOK {
			http.Error(w, "unavailable", status)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"response": "FADE IN:\n\nINT. OFFICE - NIGHT"})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunGenerateWritesAllExports(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := fakeOllama(t, http.StatusOK)
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	err := runGenerate(t.Context(), &out, fs, nil, genFlags{
		demo:     true,
		out:      "scripts",
		formats:  []string{"txt", "pdf", "docx"},
		sections: []string{"all"},
		endpoint: srv.URL,
		model:    "llama3.2",
		plain:    true,
	})
	require.NoError(t, err, out.String())

	files, err := afero.ReadDir(fs, "scripts")
	require.NoError(t, err)
	assert.Len(t, files, 9)

	txt, err := afero.Glob(fs, filepath.Join("scripts", "screenplay_*.txt"))
	require.NoError(t, err)
	require.Len(t, txt, 1)
	data, err := afero.ReadFile(fs, txt[0])
	require.NoError(t, err)
	assert.Equal(t, "FADE IN:\n\nINT. OFFICE - NIGHT", string(data))

	assert.Contains(t, out.String(), "Welcome, Director!")
	assert.Contains(t, out.String(), "llama3.2")
	assert.Contains(t, out.String(), "Generating Screenplay...")
}

func TestRunGenerateEmptyIdea(t *testing.T) {
	t.Chdir(t.TempDir())
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	err := runGenerate(t.Context(), &out, fs, nil, genFlags{
		idea:     "  ",
		out:      "scripts",
		formats:  []string{"txt"},
		sections: []string{"screenplay"},
		plain:    true,
	})
	assert.True(t, apperrors.IsValidationError(err))
	assert.Contains(t, out.String(), "Please enter a storyline.")

	exists, _ := afero.DirExists(fs, "scripts")
	assert.False(t, exists)
}

func TestRunGenerateUpstreamFailure(t *testing.T) {
	t.Chdir(t.TempDir())
	srv := fakeOllama(t, http.StatusInternalServerError)
	var out bytes.Buffer

	err := runGenerate(t.Context(), &out, afero.NewMemMapFs(), nil, genFlags{
		idea:     "idea",
		out:      "scripts",
		formats:  []string{"txt"},
		sections: []string{"screenplay"},
		endpoint: srv.URL,
		plain:    true,
	})
	assert.True(t, apperrors.IsInferenceError(err))
}

func TestRunGenerateRejectsInvalidEndpoint(t *testing.T) {
	t.Chdir(t.TempDir())
	err := runGenerate(t.Context(), &bytes.Buffer{}, afero.NewMemMapFs(), nil, genFlags{
		idea:     "idea",
		formats:  []string{"txt"},
		sections: []string{"screenplay"},
		endpoint: "not a url",
		plain:    true,
	})
	assert.True(t, apperrors.IsValidationError(err))
}

func TestWriteExportsContinuesAfterFailure(t *testing.T) {
	result := &models.GenerationResult{Screenplay: "S", GeneratedAt: time.Now()}
	fs := afero.NewMemMapFs()
	var out bytes.Buffer

	// characters is empty, so its export fails while the screenplay still gets written
	err := writeExports(&out, fs, services.NewExportService(), result, "out",
		[]models.ExportFormat{models.FormatText},
		[]models.Section{models.SectionCharacters, models.SectionScreenplay})
	assert.ErrorIs(t, err, errSomeFails)

	files, _ := afero.ReadDir(fs, "out")
	require.Len(t, files, 1)
	assert.True(t, strings.HasPrefix(files[0].Name(), "screenplay_"))
	assert.Contains(t, out.String(), "characters txt")
}

func TestParseFlags(t *testing.T) {
	formats, err := parseFormats([]string{"TXT", ".pdf", "txt"})
	require.NoError(t, err)
	assert.Equal(t, []models.ExportFormat{models.FormatText, models.FormatPDF}, formats)

	_, err = parseFormats([]string{"odt"})
	assert.Error(t, err)

	_, err = parseFormats(nil)
	assert.Error(t, err)

	sections, err := parseSections([]string{"sound", "characters"})
	require.NoError(t, err)
	assert.Equal(t, []models.Section{models.SectionSoundDesign, models.SectionCharacters}, sections)

	sections, err = parseSections([]string{"all"})
	require.NoError(t, err)
	assert.Equal(t, models.AllSections, sections)

	sections, err = parseSections(nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Section{models.SectionScreenplay}, sections)
}

func TestRootCommandWiring(t *testing.T) {
	root := newRootCmd()
	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "generate")

	gen, _, err := root.Find([]string{"generate"})
	require.NoError(t, err)
	assert.NotNil(t, gen.Flags().Lookup("idea"))
	assert.NotNil(t, gen.Flags().Lookup("demo"))
	assert.Equal(t, "[txt,pdf,docx]", gen.Flags().Lookup("format").DefValue)
}
