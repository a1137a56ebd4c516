// cmd/server/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Corphon/CoffeeWithCinema/internal/api"
	"github.com/Corphon/CoffeeWithCinema/internal/app"
	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(configDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web interface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPaths(*configDir))
		},
	}
}

func runServe(parent context.Context, paths []string) error {
	if parent == nil {
		parent = context.Background()
	}

	// 1. 加载配置
	cfg, err := config.Load(paths...)
	if err != nil {
		return fmt.Errorf("加载配置失败: %w", err)
	}

	// 2. 日志
	if err := utils.InitLogger(utils.LoggerConfig{Level: cfg.LogLevel, Format: cfg.LogFormat, Dir: cfg.LogDir}); err != nil {
		return fmt.Errorf("初始化日志失败: %w", err)
	}
	logger := utils.GetLogger()
	defer logger.Close()
	logger.Info("🚀 启动 Coffee with Cinema 服务器...", map[string]interface{}{"port": cfg.Port})

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. 链路追踪
	shutdownTracer, err := utils.InitTracer(ctx, utils.TracerConfig{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: cfg.Tracing.ServiceName,
	})
	if err != nil {
		return fmt.Errorf("初始化链路追踪失败: %w", err)
	}

	// 4. 服务
	application, err := app.InitServices(cfg)
	if err != nil {
		return fmt.Errorf("初始化服务失败: %w", err)
	}
	application.StartBackground()
	defer application.Shutdown()

	// 5. 路由
	server, err := api.SetupRouter()
	if err != nil {
		return fmt.Errorf("设置路由失败: %w", err)
	}
	defer server.Close()

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.Engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	logger.Infof("🌐 服务器启动在 http://localhost:%s", cfg.Port)
	logger.Infof("🎬 默认模型 %s @ %s", cfg.Defaults.ModelName, cfg.Defaults.APIEndpoint)

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("启动服务器失败: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("🛑 正在关闭服务器...", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	server.Hub.CloseAll()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("服务器强制关闭", map[string]interface{}{"error": err.Error()})
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Warn("⚠️ 关闭链路追踪失败", map[string]interface{}{"error": err.Error()})
	}

	logger.Info("✅ 服务器优雅关闭完成", nil)
	return nil
}
