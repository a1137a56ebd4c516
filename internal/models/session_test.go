package models

import (
	"testing"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionStartsWithoutResult(t *testing.T) {
	s := NewSession("s1", config.Settings{}, time.Now())

	assert.Nil(t, s.Result())
	assert.Equal(t, config.DefaultSettings(), s.Settings())
	assert.False(t, s.Running())
}

func TestCommitResultReplacesWholesale(t *testing.T) {
	s := NewSession("s1", config.DefaultSettings(), time.Now())
	s.CommitResult(GenerationResult{Screenplay: "a", Characters: "b", SoundDesign: "c", StoryIdea: "idea"})
	s.CommitResult(GenerationResult{Screenplay: "x", StoryIdea: "idea 2"})

	r := s.Result()
	require.NotNil(t, r)
	assert.Equal(t, "x", r.Screenplay)
	assert.Empty(t, r.Characters)
	assert.Empty(t, r.SoundDesign)
	assert.Equal(t, "idea 2", s.StoryIdea())
}

func TestResultIsACopy(t *testing.T) {
	s := NewSession("s1", config.DefaultSettings(), time.Now())
	s.CommitResult(GenerationResult{Screenplay: "a"})

	r := s.Result()
	r.Screenplay = "mutated"

	assert.Equal(t, "a", s.Result().Screenplay)
}

func TestTryBeginIsExclusive(t *testing.T) {
	s := NewSession("s1", config.DefaultSettings(), time.Now())

	assert.True(t, s.TryBegin())
	assert.False(t, s.TryBegin())
	s.End()
	assert.True(t, s.TryBegin())
}

func TestUpdateSettingsUsesFallback(t *testing.T) {
	s := NewSession("s1", config.DefaultSettings(), time.Now())
	fallback := config.Settings{UserName: "Ava", APIEndpoint: "http://gpu:11434/api/generate", ModelName: "llama3"}

	got := s.UpdateSettings(config.Settings{UserName: "Noir Fan"}, fallback)

	assert.Equal(t, "Noir Fan", got.UserName)
	assert.Equal(t, fallback.APIEndpoint, got.APIEndpoint)
	assert.Equal(t, fallback.ModelName, got.ModelName)
}

func TestParseSectionAndFormat(t *testing.T) {
	sec, err := ParseSection("")
	require.NoError(t, err)
	assert.Equal(t, SectionScreenplay, sec)

	sec, err = ParseSection("sound-design")
	require.NoError(t, err)
	assert.Equal(t, SectionSoundDesign, sec)

	_, err = ParseSection("poster")
	assert.Error(t, err)

	f, err := ParseExportFormat(".PDF")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)

	_, err = ParseExportFormat("odt")
	assert.Error(t, err)
}

func TestExportFilenameAndMIME(t *testing.T) {
	at := time.Date(2024, 3, 9, 7, 5, 2, 0, time.UTC)

	assert.Equal(t, "screenplay_20240309_070502.txt", ExportFilename(SectionScreenplay, FormatText, at))
	assert.Equal(t, "screenplay_20240309_070502.docx", ExportFilename(SectionScreenplay, FormatDOCX, at))
	assert.Equal(t, "text/plain", FormatText.MIMEType())
	assert.Equal(t, "application/pdf", FormatPDF.MIMEType())
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.wordprocessingml.document", FormatDOCX.MIMEType())
}
