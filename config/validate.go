package config

import "fmt"

// ValidateAndFix 验证配置并尝试自动修复常见问题
//
// 可修复的问题：
//   - 负的池大小 -> 使用默认值
//   - 读缓冲区为 0 -> 使用默认值
//   - ARQ 窗口为 0 -> 使用默认值
func ValidateAndFix(c *Config) (*Config, error) {
	if c == nil {
		return NewConfig(), nil
	}

	if c.Pool.Size < 0 {
		c.Pool = DefaultPoolConfig()
	}
	if c.Endpoint.ReadBufferSize <= 0 {
		c.Endpoint.ReadBufferSize = DefaultEndpointConfig().ReadBufferSize
	}
	if c.ARQ.SendWindow <= 0 || c.ARQ.RecvWindow <= 0 {
		def := DefaultARQConfig()
		c.ARQ.SendWindow, c.ARQ.RecvWindow = def.SendWindow, def.RecvWindow
	}
	if c.ARQ.HandshakeInterval <= 0 {
		c.ARQ.HandshakeInterval = DefaultARQConfig().HandshakeInterval
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed after fixes: %w", err)
	}
	return c, nil
}

// MustValidate 验证配置，如果失败则 panic
//
// 仅用于初始化阶段或测试代码。
func MustValidate(c *Config) {
	if err := c.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}
}
