// internal/api/error_codes.go
package api

// API错误代码常量；业务错误的代码来自 internal/errors 的 AppError.Code
const (
	// 通用错误
	ErrorBadRequest    = "BAD_REQUEST"
	ErrorNotFound      = "NOT_FOUND"
	ErrorInternalError = "INTERNAL_ERROR"

	// 限流
	ErrorRateLimited = "RATE_LIMIT_EXCEEDED"

	// 导出相关错误
	ErrorExportFormatInvalid  = "EXPORT_FORMAT_INVALID"
	ErrorExportSectionInvalid = "EXPORT_SECTION_INVALID"

	// 推理服务连接测试
	ErrorConnectionFailed = "CONNECTION_FAILED"
)
