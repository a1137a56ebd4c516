// internal/api/router.go
package api

import (
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/di"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
	"github.com/Corphon/CoffeeWithCinema/web"
)

// 生成接口限流窗口
const generateRateWindow = time.Minute

// Dependencies 路由需要的服务
type Dependencies struct {
	Config     *config.Config
	Sessions   *services.SessionService
	Generation *services.GenerationService
	Export     *services.ExportService
	LLM        *services.LLMService
	Progress   *services.ProgressService
}

// Server 组装好的路由和需要在停机时释放的资源
type Server struct {
	Engine  *gin.Engine
	Hub     *ProgressHub
	Limiter *RateLimiter
}

// Close 关闭 WebSocket 连接并停止限流清理
func (s *Server) Close() {
	s.Hub.CloseAll()
	s.Limiter.Stop()
}

// SetupRouter 从全局容器取出服务并配置HTTP路由
func SetupRouter() (*Server, error) {
	container := di.GetContainer()

	var (
		deps Dependencies
		err  error
	)
	if deps.Config, err = di.Resolve[*config.Config](container, "config"); err != nil {
		return nil, fmt.Errorf("配置未正确初始化: %w", err)
	}
	if deps.Sessions, err = di.Resolve[*services.SessionService](container, "session"); err != nil {
		return nil, fmt.Errorf("会话服务未正确初始化: %w", err)
	}
	if deps.Generation, err = di.Resolve[*services.GenerationService](container, "generation"); err != nil {
		return nil, fmt.Errorf("生成服务未正确初始化: %w", err)
	}
	if deps.Export, err = di.Resolve[*services.ExportService](container, "export"); err != nil {
		return nil, fmt.Errorf("导出服务未正确初始化: %w", err)
	}
	if deps.LLM, err = di.Resolve[*services.LLMService](container, "llm"); err != nil {
		return nil, fmt.Errorf("LLM服务未正确初始化: %w", err)
	}
	if deps.Progress, err = di.Resolve[*services.ProgressService](container, "progress"); err != nil {
		return nil, fmt.Errorf("进度服务未正确初始化: %w", err)
	}

	return NewRouter(deps)
}

// NewRouter 用显式依赖构建路由，测试直接调用
func NewRouter(deps Dependencies) (*Server, error) {
	cfg := deps.Config
	if !cfg.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	tmpl, err := template.ParseFS(web.Templates, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("加载页面模板失败: %w", err)
	}
	static, err := fs.Sub(web.Static, "static")
	if err != nil {
		return nil, fmt.Errorf("加载静态文件失败: %w", err)
	}

	handler := NewHandler(deps.Sessions, deps.Generation, deps.Export, deps.LLM, deps.Progress)
	hub := NewProgressHub(deps.Progress)
	limiter := NewRateLimiter()
	logger := utils.GetLogger()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(RequestLoggerMiddleware(logger))
	r.Use(MetricsMiddleware(utils.NewAPIMetrics()))
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept", requestIDHeader},
		ExposeHeaders:   []string{"Content-Disposition", requestIDHeader},
		MaxAge:          12 * time.Hour,
	}))
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.SetHTMLTemplate(tmpl)
	r.StaticFS("/static", http.FS(static))

	// 运维端点，不需要会话
	r.GET("/healthz", handler.Healthz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	withSession := SessionMiddleware(deps.Sessions, cfg.Session.CookieName, cfg.Session.TTL)

	// ===============================
	// 页面路由
	// ===============================
	r.GET("/", withSession, handler.IndexPage)
	r.GET("/ws/progress", withSession, hub.ServeProgress)

	// ===============================
	// API路由组
	// ===============================
	api := r.Group("/api", withSession)
	{
		api.GET("/session", handler.GetSession)

		settingsGroup := api.Group("/settings")
		{
			settingsGroup.PUT("", handler.UpdateSettings)
			settingsGroup.POST("/reset", handler.ResetSettings)
		}

		api.GET("/demo-story", handler.GetDemoStory)
		api.POST("/generate",
			handler.ValidateGenerate,
			limiter.Middleware(cfg.Generation.RateLimit, generateRateWindow, func(c *gin.Context) string {
				return currentSession(c).ID
			}),
			handler.Generate,
		)
		api.GET("/progress", handler.GetProgress)
		api.GET("/export/:format", handler.Export)
		api.POST("/test-connection", handler.TestConnection)
	}

	return &Server{Engine: r, Hub: hub, Limiter: limiter}, nil
}
