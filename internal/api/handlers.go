// internal/api/handlers.go
package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/prompts"
	"github.com/Corphon/CoffeeWithCinema/internal/services"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

// 连接测试的超时时间
const connectionTestTimeout = 30 * time.Second

// Handler 处理API请求
type Handler struct {
	SessionService    *services.SessionService    // 会话服务
	GenerationService *services.GenerationService // 三阶段生成
	ExportService     *services.ExportService     // 导出服务
	LLMService        *services.LLMService        // 推理服务
	ProgressService   *services.ProgressService   // 进度跟踪服务
	Response          *ResponseHelper             // 响应助手
	logger            *utils.Logger
}

// GenerateRequest 生成请求
type GenerateRequest struct {
	StoryIdea string `json:"story_idea"`
}

// NewHandler 创建API处理器
func NewHandler(
	sessionService *services.SessionService,
	generationService *services.GenerationService,
	exportService *services.ExportService,
	llmService *services.LLMService,
	progressService *services.ProgressService,
) *Handler {
	return &Handler{
		SessionService:    sessionService,
		GenerationService: generationService,
		ExportService:     exportService,
		LLMService:        llmService,
		ProgressService:   progressService,
		Response:          NewResponseHelper(),
		logger:            utils.GetLogger(),
	}
}

// IndexPage 渲染主页面
func (h *Handler) IndexPage(c *gin.Context) {
	snap := currentSession(c).Snapshot()
	c.HTML(http.StatusOK, "index.html", gin.H{
		"Greeting":  "Welcome, " + snap.Settings.UserName + "!",
		"Session":   snap,
		"Defaults":  h.SessionService.Defaults(),
		"DemoStory": prompts.DemoStory,
		"Formats":   h.ExportService.SupportedFormats(),
		"Sections":  models.AllSections,
	})
}

// Healthz 存活检查
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"sessions": h.SessionService.Count(),
		"mode":     h.GenerationService.Mode(),
	})
}

// GetSession 返回当前会话的设置和结果
func (h *Handler) GetSession(c *gin.Context) {
	h.Response.Success(c, currentSession(c).Snapshot())
}

// UpdateSettings 保存会话设置；校验失败时设置保持不变
func (h *Handler) UpdateSettings(c *gin.Context) {
	var req config.Settings
	if err := c.ShouldBindJSON(&req); err != nil {
		h.Response.BadRequest(c, "invalid settings payload", err.Error())
		return
	}

	settings, err := h.SessionService.UpdateSettings(currentSession(c), req)
	if err != nil {
		h.Response.AppError(c, err, "settings")
		return
	}

	h.Response.Success(c, settings, "Settings saved.")
}

// ResetSettings 恢复默认设置
func (h *Handler) ResetSettings(c *gin.Context) {
	h.Response.Success(c, h.SessionService.ResetSettings(currentSession(c)), "Settings reset to defaults.")
}

// GetDemoStory 返回示例故事创意
func (h *Handler) GetDemoStory(c *gin.Context) {
	h.Response.Success(c, gin.H{"story_idea": prompts.DemoStory})
}

// Generate 同步执行三阶段生成，成功后返回完整结果
func (h *Handler) Generate(c *gin.Context) {
	req, ok := h.bindGenerateRequest(c)
	if !ok {
		return
	}

	sess := currentSession(c)
	result, err := h.GenerationService.Generate(c.Request.Context(), sess, req.StoryIdea)
	if err != nil {
		h.Response.AppError(c, err, "generation")
		return
	}

	h.Response.Success(c, result, "All content generated successfully!")
}

// ValidateGenerate 在限流之前检查请求体，被拒绝的请求不占用生成配额
func (h *Handler) ValidateGenerate(c *gin.Context) {
	req, ok := h.bindGenerateRequest(c)
	if !ok {
		c.Abort()
		return
	}
	if err := services.ValidateStoryIdea(req.StoryIdea); err != nil {
		h.Response.AppError(c, err, "generation")
		c.Abort()
		return
	}
	c.Next()
}

// bindGenerateRequest 解析请求体；body 缓存在上下文里，可以被多次绑定
func (h *Handler) bindGenerateRequest(c *gin.Context) (GenerateRequest, bool) {
	var req GenerateRequest
	if err := c.ShouldBindBodyWith(&req, binding.JSON); err != nil {
		h.Response.BadRequest(c, "invalid generation payload", err.Error())
		return req, false
	}
	return req, true
}

// GetProgress 返回当前会话最近一次生成的进度
func (h *Handler) GetProgress(c *gin.Context) {
	update, ok := h.ProgressService.Get(currentSession(c).ID)
	if !ok {
		h.Response.NotFound(c, "no generation has been started in this session")
		return
	}
	h.Response.Success(c, update)
}

// Export 按需生成下载文件
func (h *Handler) Export(c *gin.Context) {
	format, err := models.ParseExportFormat(c.Param("format"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorExportFormatInvalid, "unsupported export format", err.Error())
		return
	}

	section, err := models.ParseSection(c.Query("section"))
	if err != nil {
		h.Response.Error(c, http.StatusBadRequest, ErrorExportSectionInvalid, "unknown section", err.Error())
		return
	}

	artifact, err := h.ExportService.Export(currentSession(c).Result(), format, section)
	if err != nil {
		h.Response.AppError(c, err, "export")
		return
	}

	h.Response.DownloadResponse(c, artifact.Content, artifact.Filename, artifact.MIMEType)
}

// TestConnection 用当前会话设置发送一次很短的请求
func (h *Handler) TestConnection(c *gin.Context) {
	settings := currentSession(c).Settings()

	ctx, cancel := context.WithTimeout(c.Request.Context(), connectionTestTimeout)
	defer cancel()

	reply, latency, err := h.LLMService.TestConnection(ctx, settings)
	if err != nil {
		h.logger.Warn("connection test failed", map[string]interface{}{
			"endpoint": settings.APIEndpoint,
			"model":    settings.ModelName,
			"error":    err.Error(),
		})
		h.Response.Error(c, http.StatusBadGateway, ErrorConnectionFailed, "Could not reach the model server.", err.Error())
		return
	}

	h.Response.Success(c, gin.H{
		"provider":   h.LLMService.ProviderName(),
		"endpoint":   settings.APIEndpoint,
		"model":      settings.ModelName,
		"latency_ms": latency.Milliseconds(),
		"reply":      strings.TrimSpace(reply),
	}, "Connection OK")
}
