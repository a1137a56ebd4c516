// internal/app/app.go
package app

import (
	"fmt"
	"sync"
	"time"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/di"
	"github.com/Corphon/CoffeeWithCinema/internal/llm"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"

	// 注册推理提供者
	_ "github.com/Corphon/CoffeeWithCinema/internal/llm/providers/ollama"
)

const (
	sessionCleanupInterval  = 10 * time.Minute
	progressCleanupInterval = 5 * time.Minute
	progressRetention       = time.Hour
)

// App 持有进程级服务和后台清理协程
type App struct {
	Config    *config.Config
	Container *di.Container

	Sessions   *services.SessionService
	Progress   *services.ProgressService
	LLM        *services.LLMService
	Generation *services.GenerationService
	Export     *services.ExportService

	stopChan chan struct{}
	stopOnce sync.Once
}

// InitServices 按依赖顺序创建服务并注册到全局容器
func InitServices(cfg *config.Config) (*App, error) {
	return initServices(di.GetContainer(), cfg)
}

func initServices(container *di.Container, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置未加载")
	}

	logger := utils.GetLogger()

	// 提前确认提供者已注册，避免第一次生成时才失败
	if _, err := llm.GetProvider(cfg.Inference.Provider, nil); err != nil {
		return nil, fmt.Errorf("推理提供者 %q 不可用 (可用: %v): %w", cfg.Inference.Provider, llm.ListProviders(), err)
	}

	a := &App{
		Config:    cfg,
		Container: container,
		stopChan:  make(chan struct{}),
	}

	a.LLM = services.NewLLMService(cfg.Inference.Provider, cfg.Inference.Timeout)
	a.Progress = services.NewProgressService()
	a.Sessions = services.NewSessionService(cfg.Defaults, cfg.Session.TTL)
	a.Sessions.OnExpire(a.Progress.Forget)
	a.Generation = services.NewGenerationService(a.LLM, a.Progress, services.GenerationOptions{
		Concurrent:  cfg.Generation.Concurrent,
		RejectEmpty: cfg.Generation.RejectEmpty,
	})
	a.Export = services.NewExportService()

	container.Register("config", cfg)
	container.Register("llm", a.LLM)
	container.Register("progress", a.Progress)
	container.Register("session", a.Sessions)
	container.Register("generation", a.Generation)
	container.Register("export", a.Export)

	logger.Info("✅ 服务初始化完成", map[string]interface{}{
		"provider":        a.LLM.ProviderName(),
		"generation_mode": a.Generation.Mode(),
		"default_model":   cfg.Defaults.ModelName,
		"services":        container.GetNames(),
	})
	return a, nil
}

// StartBackground 启动会话和进度的定期清理
func (a *App) StartBackground() {
	a.Sessions.StartCleanup(sessionCleanupInterval)

	go func() {
		ticker := time.NewTicker(progressCleanupInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				a.Progress.CleanupCompletedTasks(progressRetention)
			case <-a.stopChan:
				return
			}
		}
	}()
}

// Shutdown 停止后台协程，可以重复调用
func (a *App) Shutdown() {
	a.stopOnce.Do(func() {
		close(a.stopChan)
		a.Sessions.Stop()
		utils.GetLogger().Info("🛑 后台任务已停止", nil)
	})
}
