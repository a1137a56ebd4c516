package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsNormalizeFallsBackToDefaults(t *testing.T) {
	s := Settings{UserName: "  ", APIEndpoint: "", ModelName: " llama3 "}.Normalize()

	assert.Equal(t, DefaultUserName, s.UserName)
	assert.Equal(t, DefaultAPIEndpoint, s.APIEndpoint)
	assert.Equal(t, "llama3", s.ModelName)
}

func TestSettingsValidate(t *testing.T) {
	assert.NoError(t, DefaultSettings().Validate())

	err := Settings{APIEndpoint: "", ModelName: "m"}.Validate()
	assert.ErrorIs(t, err, ErrEmptyEndpoint)

	err = Settings{APIEndpoint: "localhost:11434/api/generate", ModelName: "m"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	err = Settings{APIEndpoint: "ftp://host/api", ModelName: "m"}.Validate()
	assert.ErrorIs(t, err, ErrInvalidEndpoint)

	err = Settings{APIEndpoint: DefaultAPIEndpoint, ModelName: "   "}.Validate()
	assert.ErrorIs(t, err, ErrEmptyModel)
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, DefaultSettings(), cfg.Defaults)
	assert.Equal(t, 300*time.Second, cfg.Inference.Timeout)
	assert.Equal(t, "ollama", cfg.Inference.Provider)
	assert.False(t, cfg.Generation.Concurrent)
	assert.False(t, cfg.Generation.RejectEmpty)
	assert.Equal(t, "cwc_session", cfg.Session.CookieName)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("PORT", "9090")
	t.Setenv("MODEL_NAME", "llama3.2")
	t.Setenv("INFERENCE_TIMEOUT", "45s")
	t.Setenv("GENERATION_CONCURRENT", "true")

	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "llama3.2", cfg.Defaults.ModelName)
	assert.Equal(t, DefaultAPIEndpoint, cfg.Defaults.APIEndpoint)
	assert.Equal(t, 45*time.Second, cfg.Inference.Timeout)
	assert.True(t, cfg.Generation.Concurrent)
}

func TestLoadConfigFile(t *testing.T) {
	t.Chdir(t.TempDir())
	dir := t.TempDir()
	yaml := "port: \"7000\"\ndefaults:\n  user_name: Ava\ngeneration:\n  reject_empty: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "Ava", cfg.Defaults.UserName)
	assert.True(t, cfg.Generation.RejectEmpty)
}

func TestLoadRejectsInvalidDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("OLLAMA_API_URL", "not a url")

	_, err := Load(t.TempDir())
	assert.ErrorIs(t, err, ErrInvalidEndpoint)
}
