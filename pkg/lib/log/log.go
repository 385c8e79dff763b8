// Package log 提供 netkit 统一日志接口
//
// 基于 Go 标准库 log/slog 封装，按组件（子系统）输出日志：
//
//	var logger = log.Logger("core/endpoint")
//	logger.Info("端点已启动", "endpoint", id)
//
// 日志级别可以按子系统配置，见 ConfigFromEnv。
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
)

// 日志级别常量（从 slog 导出，方便使用）
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ============================================================================
//                              全局输出
// ============================================================================

var (
	// base 当前使用的根 logger（不含 component 属性）
	base atomic.Pointer[slog.Logger]

	// outputMu 保护 output
	outputMu sync.RWMutex
	output   io.Writer = os.Stderr
)

// dynamicWriter 每次写入时查找当前的 output
//
// 这样 SetOutput 之后已创建的 LazyLogger 也能立即生效。
type dynamicWriter struct{}

func (dynamicWriter) Write(p []byte) (int, error) {
	outputMu.RLock()
	w := output
	outputMu.RUnlock()
	return w.Write(p)
}

// rebuild 依据当前配置重建根 logger
func rebuild() {
	cfg := ConfigFromEnv()
	opts := &slog.HandlerOptions{
		// 级别过滤由 LazyLogger 按子系统完成，这里放行全部
		Level:     slog.LevelDebug,
		AddSource: cfg.AddSource,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				a.Key = "ts"
			}
			return a
		},
	}

	var h slog.Handler
	if cfg.Format == FormatJSON {
		h = slog.NewJSONHandler(dynamicWriter{}, opts)
	} else {
		h = slog.NewTextHandler(dynamicWriter{}, opts)
	}
	base.Store(slog.New(h))
}

// SetOutput 设置日志输出目标
func SetOutput(w io.Writer) {
	if w == nil {
		w = io.Discard
	}
	outputMu.Lock()
	output = w
	outputMu.Unlock()
}

// SetLevel 设置默认日志级别（不影响显式配置的子系统）
func SetLevel(level slog.Level) {
	cfg := ConfigFromEnv()
	cfg.mu.Lock()
	cfg.DefaultLevel = level
	cfg.mu.Unlock()
}

// SetSubsystemLevel 设置指定子系统的日志级别
func SetSubsystemLevel(subsystem string, level slog.Level) {
	cfg := ConfigFromEnv()
	cfg.mu.Lock()
	cfg.SubsystemLevels[subsystem] = level
	cfg.mu.Unlock()
}

// Discard 丢弃所有日志输出（用于测试）
func Discard() {
	SetOutput(io.Discard)
}

// ============================================================================
//                              LazyLogger
// ============================================================================

// LazyLogger 懒加载 logger
//
// 每次日志调用时才读取当前的根 logger 和级别配置，
// 支持在运行时动态切换日志输出目标。
type LazyLogger struct {
	component string
}

// Logger 返回带组件名的 LazyLogger
func Logger(component string) *LazyLogger {
	return &LazyLogger{component: component}
}

// Component 返回组件名
func (l *LazyLogger) Component() string {
	return l.component
}

// Enabled 检查该组件是否输出指定级别
func (l *LazyLogger) Enabled(level slog.Level) bool {
	return level >= ConfigFromEnv().LevelForSubsystem(l.component)
}

func (l *LazyLogger) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if !l.Enabled(level) {
		return
	}
	base.Load().With("component", l.component).Log(ctx, level, msg, args...)
}

// Debug 输出 Debug 级别日志
func (l *LazyLogger) Debug(msg string, args ...any) {
	l.log(context.Background(), slog.LevelDebug, msg, args...)
}

// Info 输出 Info 级别日志
func (l *LazyLogger) Info(msg string, args ...any) {
	l.log(context.Background(), slog.LevelInfo, msg, args...)
}

// Warn 输出 Warn 级别日志
func (l *LazyLogger) Warn(msg string, args ...any) {
	l.log(context.Background(), slog.LevelWarn, msg, args...)
}

// Error 输出 Error 级别日志
func (l *LazyLogger) Error(msg string, args ...any) {
	l.log(context.Background(), slog.LevelError, msg, args...)
}

// DebugContext 带 context 的 Debug 日志
func (l *LazyLogger) DebugContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelDebug, msg, args...)
}

// WarnContext 带 context 的 Warn 日志
func (l *LazyLogger) WarnContext(ctx context.Context, msg string, args ...any) {
	l.log(ctx, slog.LevelWarn, msg, args...)
}

// With 返回附加了额外属性的 slog.Logger
func (l *LazyLogger) With(args ...any) *slog.Logger {
	return base.Load().With("component", l.component).With(args...)
}

// ============================================================================
//                              工具函数
// ============================================================================

// TruncateID 安全截取 ID 用于日志显示
func TruncateID(id string, maxLen int) string {
	if len(id) <= maxLen {
		return id
	}
	return id[:maxLen]
}

func init() {
	rebuild()
}
