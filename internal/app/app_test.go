package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/di"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
)

func testConfig() *config.Config {
	return &config.Config{
		Port:       "0",
		Defaults:   config.DefaultSettings(),
		Inference:  config.InferenceConfig{Provider: "ollama", Timeout: time.Second},
		Generation: config.GenerationConfig{Concurrent: true, RateLimit: 5},
		Session:    config.SessionConfig{CookieName: "cwc_session", TTL: time.Hour},
	}
}

func TestInitServicesRegistersEverything(t *testing.T) {
	container := di.NewContainer()

	a, err := initServices(container, testConfig())
	require.NoError(t, err)
	defer a.Shutdown()

	assert.Equal(t, []string{"config", "export", "generation", "llm", "progress", "session"}, container.GetNames())

	gen, err := di.Resolve[*services.GenerationService](container, "generation")
	require.NoError(t, err)
	assert.Equal(t, services.ModeConcurrent, gen.Mode())
	assert.Equal(t, "ollama", a.LLM.ProviderName())
}

func TestInitServicesRejectsUnknownProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Inference.Provider = "carrier-pigeon"

	_, err := initServices(di.NewContainer(), cfg)
	assert.ErrorContains(t, err, "carrier-pigeon")
}

func TestInitServicesRequiresConfig(t *testing.T) {
	_, err := initServices(di.NewContainer(), nil)
	assert.Error(t, err)
}

func TestExpiredSessionsDropProgress(t *testing.T) {
	cfg := testConfig()
	cfg.Session.TTL = time.Nanosecond
	a, err := initServices(di.NewContainer(), cfg)
	require.NoError(t, err)

	sess := a.Sessions.Create()
	a.Progress.Start(sess.ID, "task").Complete("")

	time.Sleep(time.Millisecond)
	assert.Equal(t, 1, a.Sessions.CleanupExpired())

	_, ok := a.Progress.Get(sess.ID)
	assert.False(t, ok, "progress of an expired session is forgotten")
}

func TestShutdownIsIdempotent(t *testing.T) {
	a, err := initServices(di.NewContainer(), testConfig())
	require.NoError(t, err)

	a.StartBackground()
	a.Shutdown()
	a.Shutdown()
}
