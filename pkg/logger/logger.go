// Package logger 在 wyfcoding/pkg/logging 之上维护进程级日志实例，并注入 trace_id/request_id/user_id 等上下文字段
package logger

import (
	"context"
	"log/slog"
	"os"

	"github.com/wyfcoding/pkg/logging"
)

var globalLogger *logging.Logger

// ctxKey 日志字段在 context 中的键类型
type ctxKey string

const (
	TraceIDKey   ctxKey = "trace_id"
	SpanIDKey    ctxKey = "span_id"
	RequestIDKey ctxKey = "request_id"
	UserIDKey    ctxKey = "user_id"
)

// Config 日志配置
type Config struct {
	Service string
	Module  string
	// 日志级别：debug, info, warn, error
	Level string
	// 输出目标：stdout 或 file
	Output string
	// 日志文件路径（output 为 file 时）
	FilePath   string
	MaxSize    int
	MaxBackups int
	MaxAge     int
	Compress   bool
}

// Init 初始化全局日志实例，同时设为 slog 默认
func Init(cfg Config) *logging.Logger {
	lc := logging.Config{
		Service: cfg.Service,
		Module:  cfg.Module,
		Level:   cfg.Level,
	}
	if cfg.Output == "file" {
		lc.File = cfg.FilePath
		lc.MaxSize = cfg.MaxSize
		lc.MaxBackups = cfg.MaxBackups
		lc.MaxAge = cfg.MaxAge
		lc.Compress = cfg.Compress
	}
	globalLogger = logging.NewFromConfig(lc)
	slog.SetDefault(globalLogger.Logger)
	return globalLogger
}

// Get 获取全局日志实例，未初始化时返回 slog 默认实例
func Get() *slog.Logger {
	if globalLogger == nil {
		return slog.Default()
	}
	return globalLogger.Logger
}

// Default 未初始化时退回 logging 包的默认实例
func Default() *logging.Logger {
	if globalLogger == nil {
		return logging.Default()
	}
	return globalLogger
}

// WithContext 返回附带 context 中 trace/request/user 字段的 logger
func WithContext(ctx context.Context) *slog.Logger {
	l := Get()
	if ctx == nil {
		return l
	}

	attrs := make([]any, 0, 4)
	for _, key := range []ctxKey{TraceIDKey, SpanIDKey, RequestIDKey, UserIDKey} {
		if v, ok := ctx.Value(key).(string); ok && v != "" {
			attrs = append(attrs, slog.String(string(key), v))
		}
	}
	if len(attrs) > 0 {
		return l.With(attrs...)
	}
	return l
}

// Debug 输出 debug 级别日志
func Debug(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).DebugContext(ctx, msg, args...)
}

// Info 输出 info 级别日志
func Info(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).InfoContext(ctx, msg, args...)
}

// Warn 输出 warn 级别日志
func Warn(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).WarnContext(ctx, msg, args...)
}

// Error 输出 error 级别日志
func Error(ctx context.Context, msg string, args ...any) {
	WithContext(ctx).ErrorContext(ctx, msg, args...)
}

// Fatal 输出 error 级别日志并退出
func Fatal(ctx context.Context, msg string, args ...any) {
	Error(ctx, msg, args...)
	os.Exit(1)
}
