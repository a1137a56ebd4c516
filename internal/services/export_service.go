// internal/services/export_service.go
package services

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/afero"

	apperrors "github.com/Corphon/CoffeeWithCinema/internal/errors"
	"github.com/Corphon/CoffeeWithCinema/internal/exporters"
	"github.com/Corphon/CoffeeWithCinema/internal/models"
	"github.com/Corphon/CoffeeWithCinema/internal/utils"
)

// ExportService 按需把生成结果转换为可下载文件，不做缓存
type ExportService struct {
	exporters map[models.ExportFormat]exporters.Exporter
	now       func() time.Time
	metrics   *utils.APIMetrics
	logger    *utils.Logger
}

// NewExportService 使用默认导出器创建导出服务
func NewExportService() *ExportService {
	s := &ExportService{
		exporters: make(map[models.ExportFormat]exporters.Exporter),
		now:       time.Now,
		metrics:   utils.NewAPIMetrics(),
		logger:    utils.GetLogger(),
	}
	for _, e := range exporters.Default(func() time.Time { return s.now() }) {
		s.Register(e)
	}
	return s
}

// Register 注册或替换某种格式的导出器
func (s *ExportService) Register(e exporters.Exporter) {
	s.exporters[e.Format()] = e
}

// SupportedFormats 返回支持的格式（固定顺序）
func (s *ExportService) SupportedFormats() []models.ExportFormat {
	out := make([]models.ExportFormat, 0, len(s.exporters))
	for _, f := range models.AllFormats {
		if _, ok := s.exporters[f]; ok {
			out = append(out, f)
		}
	}
	return out
}

// Export 生成单个格式的导出产物
func (s *ExportService) Export(result *models.GenerationResult, format models.ExportFormat, section models.Section) (*models.ExportArtifact, error) {
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported export format %q", format), nil)
	}

	text := result.Text(section)
	if strings.TrimSpace(text) == "" {
		return nil, apperrors.NewNotFoundError(fmt.Sprintf("no %s has been generated yet", strings.ReplaceAll(string(section), "_", " ")), nil)
	}

	at := s.now()
	title := section.Title()

	content, err := exporter.Export(text, title)
	s.metrics.RecordExport(string(format), len(content), err)
	if err != nil {
		s.logger.Error("export failed", map[string]interface{}{
			"format":  format,
			"section": section,
			"error":   err.Error(),
		})
		return nil, apperrors.NewExportError(fmt.Sprintf("%s export failed", format), err)
	}

	return &models.ExportArtifact{
		Format:      format,
		Section:     section,
		Title:       title,
		Filename:    models.ExportFilename(section, format, at),
		MIMEType:    format.MIMEType(),
		Content:     content,
		Size:        len(content),
		GeneratedAt: at,
	}, nil
}

// ExportAll 按顺序生成 formats（为空时为全部支持的格式）；某种格式失败不影响其他格式
func (s *ExportService) ExportAll(result *models.GenerationResult, section models.Section, formats ...models.ExportFormat) ([]*models.ExportArtifact, map[models.ExportFormat]error) {
	if len(formats) == 0 {
		formats = s.SupportedFormats()
	}

	var (
		artifacts []*models.ExportArtifact
		failures  = make(map[models.ExportFormat]error)
	)
	for _, f := range formats {
		a, err := s.Export(result, f, section)
		if err != nil {
			failures[f] = err
			continue
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, failures
}

// SaveArtifact 把导出产物写入 dir，返回文件路径
func (s *ExportService) SaveArtifact(fs afero.Fs, dir string, artifact *models.ExportArtifact) (string, error) {
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return "", apperrors.NewExportError("create export directory", err)
	}

	path := filepath.Join(dir, artifact.Filename)
	if err := afero.WriteFile(fs, path, artifact.Content, 0644); err != nil {
		return "", apperrors.NewExportError("write export file", err)
	}

	artifact.FilePath = path
	return path, nil
}
