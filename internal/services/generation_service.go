// internal/services/generation_service.go
package services

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/Corphon/CoffeeWithCinema/internal/config"
	apperrors "github.com/Corphon/CoffeeWithCinema/internal/errors"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/prompts"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

const (
	ModeSequential = "sequential"
	ModeConcurrent = "concurrent"
)

// GenerationOptions 生成流程开关
type GenerationOptions struct {
	// Concurrent 为 true 时三个阶段并行执行，仍然整体提交
	Concurrent bool
	// RejectEmpty 为 true 时任一阶段返回空文本即视为失败
	RejectEmpty bool
}

// GenerationService 执行三阶段生成并原子提交到会话
type GenerationService struct {
	llm      TextGenerator
	progress *ProgressService
	opts     GenerationOptions
	metrics  *utils.APIMetrics
	logger   *utils.Logger
	now      func() time.Time
}

// NewGenerationService 创建生成服务；progress 可以为 nil
func NewGenerationService(gen TextGenerator, progress *ProgressService, opts GenerationOptions) *GenerationService {
	if progress == nil {
		progress = NewProgressService()
	}
	return &GenerationService{
		llm:      gen,
		progress: progress,
		opts:     opts,
		metrics:  utils.NewAPIMetrics(),
		logger:   utils.GetLogger(),
		now:      time.Now,
	}
}

// Mode 返回当前执行模式名称
func (s *GenerationService) Mode() string {
	if s.opts.Concurrent {
		return ModeConcurrent
	}
	return ModeSequential
}

// ValidateStoryIdea 故事创意为空或只有空白时返回输入错误
func ValidateStoryIdea(idea string) error {
	if strings.TrimSpace(idea) == "" {
		return apperrors.NewValidationError("Please enter a storyline.", nil)
	}
	return nil
}

// Generate 对 idea 运行三个阶段；全部成功才替换会话结果，失败时只保留新的创意
func (s *GenerationService) Generate(ctx context.Context, sess *models.Session, idea string) (*models.GenerationResult, error) {
	// 输入错误：不发起任何网络请求，不修改会话
	if err := ValidateStoryIdea(idea); err != nil {
		return nil, err
	}

	settings := sess.Settings()
	if err := settings.Validate(); err != nil {
		return nil, apperrors.NewValidationError("invalid settings", err)
	}

	if !sess.TryBegin() {
		return nil, apperrors.NewConflictError("a generation is already running for this session", nil)
	}
	defer sess.End()

	// 创意在调用模型之前记录，失败时也保留在会话里
	sess.SetStoryIdea(idea)

	ctx, span := utils.StartSpan(ctx, "generation.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("session.id", sess.ID),
		attribute.String("generation.mode", s.Mode()),
		attribute.String("llm.model", settings.ModelName),
	)

	taskID := uuid.New().String()
	tracker := s.progress.Start(sess.ID, taskID)
	start := s.now()

	s.logger.Info("🎬 generation started", map[string]interface{}{
		"session_id": sess.ID,
		"task_id":    taskID,
		"mode":       s.Mode(),
		"model":      settings.ModelName,
		"idea_chars": len(idea),
	})

	stages := prompts.BuildPrompts(idea).Stages()
	var (
		outputs []string
		err     error
	)
	if s.opts.Concurrent {
		outputs, err = s.runConcurrent(ctx, sess.ID, settings, stages, tracker)
	} else {
		outputs, err = s.runSequential(ctx, sess.ID, settings, stages, tracker)
	}

	elapsed := s.now().Sub(start)
	s.metrics.RecordGeneration(s.Mode(), elapsed, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		tracker.Fail(err.Error())
		s.logger.Error("⚠️ generation failed", map[string]interface{}{
			"session_id": sess.ID,
			"task_id":    taskID,
			"elapsed":    elapsed.String(),
			"error":      err.Error(),
		})
		return nil, apperrors.WrapError(err, "generation failed", apperrors.ErrorTypeInference)
	}

	result := models.GenerationResult{
		StoryIdea:   idea,
		ModelName:   settings.ModelName,
		GeneratedAt: s.now(),
		Duration:    elapsed,
	}
	for i, st := range stages {
		result.Set(st.Section, outputs[i])
	}
	sess.CommitResult(result)
	tracker.Complete("Generation complete.")

	s.logger.Info("✅ generation committed", map[string]interface{}{
		"session_id": sess.ID,
		"task_id":    taskID,
		"elapsed":    elapsed.String(),
	})
	return &result, nil
}

func (s *GenerationService) runSequential(ctx context.Context, sessionID string, settings config.Settings, stages []prompts.Stage, tracker *ProgressTracker) ([]string, error) {
	outputs := make([]string, len(stages))
	for i, st := range stages {
		tracker.UpdateProgress(i*100/len(stages), string(st.Section), fmt.Sprintf("Generating %s...", st.Section.Title()))

		text, err := s.runStage(ctx, sessionID, settings, st)
		if err != nil {
			return nil, err
		}
		outputs[i] = text
	}
	return outputs, nil
}

func (s *GenerationService) runConcurrent(ctx context.Context, sessionID string, settings config.Settings, stages []prompts.Stage, tracker *ProgressTracker) ([]string, error) {
	outputs := make([]string, len(stages))
	var done int32

	tracker.UpdateProgress(0, "", "Generating screenplay, characters, and sound design...")

	g, gctx := errgroup.WithContext(ctx)
	for i, st := range stages {
		g.Go(func() error {
			text, err := s.runStage(gctx, sessionID, settings, st)
			if err != nil {
				return err
			}
			outputs[i] = text
			n := atomic.AddInt32(&done, 1)
			tracker.UpdateProgress(int(n)*100/len(stages), string(st.Section), fmt.Sprintf("%s ready", st.Section.Title()))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return outputs, nil
}

func (s *GenerationService) runStage(ctx context.Context, sessionID string, settings config.Settings, st prompts.Stage) (string, error) {
	ctx, span := utils.StartSpan(ctx, "generation.stage")
	defer span.End()
	span.SetAttributes(attribute.String("generation.section", string(st.Section)))

	text, err := s.llm.Generate(ctx, settings, string(st.Section), st.Prompt, st.MaxTokens)
	if err != nil {
		return "", err
	}

	if text == "" {
		if s.opts.RejectEmpty {
			return "", apperrors.NewInferenceError(string(st.Section), fmt.Errorf("model returned an empty response"))
		}
		s.logger.Warn("model returned an empty response", map[string]interface{}{
			"session_id": sessionID,
			"section":    st.Section,
		})
	}
	return text, nil
}
