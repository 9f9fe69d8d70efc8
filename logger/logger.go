package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// InitLogger 初始化全局日志记录器
// 默认创建 JSON 格式的日志处理器,输出到 stdout；LOG_LEVEL 控制级别，LOG_FORMAT=text 时输出文本格式
func InitLogger() {
	slog.SetDefault(New(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT")))
}

// New 按级别和格式创建日志记录器
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// ParseLevel 解析日志级别，无法识别时为 debug
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}
