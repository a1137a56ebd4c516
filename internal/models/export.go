// internal/models/export.go
package models

import (
	"fmt"
	"strings"
	"time"
)

// ExportFormat 导出格式
type ExportFormat string

const (
	FormatText ExportFormat = "txt"
	FormatPDF  ExportFormat = "pdf"
	FormatDOCX ExportFormat = "docx"
)

// AllFormats 按展示顺序列出所有导出格式
var AllFormats = []ExportFormat{FormatText, FormatPDF, FormatDOCX}

// ParseExportFormat 解析格式字符串（不区分大小写，允许前导点）
func ParseExportFormat(s string) (ExportFormat, error) {
	f := ExportFormat(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatText, FormatPDF, FormatDOCX:
		return f, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// MIMEType 返回格式对应的 MIME 类型
func (f ExportFormat) MIMEType() string {
	switch f {
	case FormatText:
		return "text/plain"
	case FormatPDF:
		return "application/pdf"
	case FormatDOCX:
		return "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	default:
		return "application/octet-stream"
	}
}

// Extension 返回文件扩展名（不含点）
func (f ExportFormat) Extension() string {
	return string(f)
}

// FilenameTimeLayout 文件名中的时间戳格式 YYYYMMDD_HHMMSS
const FilenameTimeLayout = "20060102_150405"

// ExportFilename 生成 <section>_YYYYMMDD_HHMMSS.<ext>
func ExportFilename(section Section, format ExportFormat, at time.Time) string {
	return fmt.Sprintf("%s_%s.%s", section, at.Format(FilenameTimeLayout), format.Extension())
}

// ExportArtifact 导出产物，每次下载时临时生成，不缓存
type ExportArtifact struct {
	Format      ExportFormat `json:"format"`
	Section     Section      `json:"section"`
	Title       string       `json:"title"`
	Filename    string       `json:"filename"`
	MIMEType    string       `json:"mime_type"`
	Content     []byte       `json:"-"`
	Size        int          `json:"size"`
	GeneratedAt time.Time    `json:"generated_at"`
	FilePath    string       `json:"file_path,omitempty"` // 仅在写入磁盘后设置
}
