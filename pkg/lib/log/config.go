package log

import (
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LogFormat 日志输出格式
type LogFormat int

const (
	// FormatText 文本格式（默认）
	FormatText LogFormat = iota
	// FormatJSON JSON 格式
	FormatJSON
)

// Config 日志配置
type Config struct {
	mu sync.RWMutex

	// DefaultLevel 默认日志级别
	DefaultLevel slog.Level

	// SubsystemLevels 各子系统的日志级别
	SubsystemLevels map[string]slog.Level

	// Format 输出格式
	Format LogFormat

	// AddSource 是否添加源码位置
	AddSource bool
}

// LevelForSubsystem 获取指定子系统的日志级别
//
// 子系统名支持前缀匹配："core" 的配置对 "core/endpoint" 生效，
// 更长的前缀优先。
func (c *Config) LevelForSubsystem(subsystem string) slog.Level {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if level, ok := c.SubsystemLevels[subsystem]; ok {
		return level
	}
	best := -1
	level := c.DefaultLevel
	for name, lvl := range c.SubsystemLevels {
		if strings.HasPrefix(subsystem, name+"/") && len(name) > best {
			best = len(name)
			level = lvl
		}
	}
	return level
}

var (
	configCache *Config
	configOnce  sync.Once
)

// ConfigFromEnv 从环境变量解析配置（只解析一次）
//
// 环境变量:
//   - NETKIT_LOG_LEVEL: 子系统=级别,子系统=级别,默认级别
//     示例: core/arq=debug,transport=warn,info
//   - NETKIT_LOG_FORMAT: text 或 json
//   - NETKIT_LOG_ADD_SOURCE: true 或 false
func ConfigFromEnv() *Config {
	configOnce.Do(func() {
		configCache = parseConfig()
	})
	return configCache
}

func parseConfig() *Config {
	cfg := &Config{
		DefaultLevel:    slog.LevelInfo,
		SubsystemLevels: make(map[string]slog.Level),
		Format:          FormatText,
	}

	if levelStr := os.Getenv("NETKIT_LOG_LEVEL"); levelStr != "" {
		parseLevelConfig(cfg, levelStr)
	}
	if strings.EqualFold(os.Getenv("NETKIT_LOG_FORMAT"), "json") {
		cfg.Format = FormatJSON
	}
	if s := os.Getenv("NETKIT_LOG_ADD_SOURCE"); s != "" {
		cfg.AddSource = s != "false" && s != "0"
	}
	return cfg
}

// parseLevelConfig 解析日志级别配置字符串
func parseLevelConfig(cfg *Config, levelStr string) {
	for _, part := range strings.Split(levelStr, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if subsystem, levelName, found := strings.Cut(part, "="); found {
			if level, ok := ParseLevel(levelName); ok {
				cfg.SubsystemLevels[strings.TrimSpace(subsystem)] = level
			}
			continue
		}
		if level, ok := ParseLevel(part); ok {
			cfg.DefaultLevel = level
		}
	}
}

// ParseLevel 解析日志级别名称
func ParseLevel(name string) (slog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, true
	case "info":
		return slog.LevelInfo, true
	case "warn", "warning":
		return slog.LevelWarn, true
	case "error":
		return slog.LevelError, true
	default:
		return slog.LevelInfo, false
	}
}

// resetConfig 重置配置缓存（仅用于测试）
func resetConfig() {
	configOnce = sync.Once{}
	configCache = nil
	rebuild()
}
