// Package config 提供 netkit 的统一配置管理
//
// 主 Config 结构体嵌入所有子配置，每个子配置在独立文件中定义：
//
//	cfg := config.NewConfig()
//	cfg.Reconnect.Enable = true
//	cfg.Reconnect.Delay = config.Duration(100 * time.Millisecond)
//
//	// 从 JSON 加载
//	cfg, err := config.FromJSON(data)
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// Config 是 netkit 的完整配置结构
//
// 配置按照功能模块组织：
//   - Pool: 串行执行上下文池
//   - Endpoint: 端点生命周期（超时、缓冲区）
//   - Reconnect: 客户端自动重连策略
//   - TCP / UDP / ARQ / TLS / WebSocket: 各协议参数
//   - Metrics: 指标采集
type Config struct {
	// Pool 执行池配置
	Pool PoolConfig `json:"pool"`

	// Endpoint 端点通用配置
	Endpoint EndpointConfig `json:"endpoint"`

	// Reconnect 客户端重连配置
	Reconnect ReconnectConfig `json:"reconnect"`

	// TCP 配置
	TCP TCPConfig `json:"tcp"`

	// UDP 配置
	UDP UDPConfig `json:"udp"`

	// ARQ 可靠数据报配置
	ARQ ARQConfig `json:"arq"`

	// TLS 配置
	TLS TLSConfig `json:"tls"`

	// WebSocket 配置
	WebSocket WebSocketConfig `json:"websocket"`

	// Metrics 指标配置
	Metrics MetricsConfig `json:"metrics"`

	// Debug 输出依赖注入框架的详细日志
	Debug bool `json:"debug,omitempty"`
}

// NewConfig 创建默认配置
func NewConfig() *Config {
	return &Config{
		Pool:      DefaultPoolConfig(),
		Endpoint:  DefaultEndpointConfig(),
		Reconnect: DefaultReconnectConfig(),
		TCP:       DefaultTCPConfig(),
		UDP:       DefaultUDPConfig(),
		ARQ:       DefaultARQConfig(),
		TLS:       DefaultTLSConfig(),
		WebSocket: DefaultWebSocketConfig(),
		Metrics:   DefaultMetricsConfig(),
	}
}

// Validate 递归验证所有子配置
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	checks := []struct {
		name string
		fn   func() error
	}{
		{"pool", c.Pool.Validate},
		{"endpoint", c.Endpoint.Validate},
		{"reconnect", c.Reconnect.Validate},
		{"tcp", c.TCP.Validate},
		{"udp", c.UDP.Validate},
		{"arq", c.ARQ.Validate},
		{"tls", c.TLS.Validate},
		{"websocket", c.WebSocket.Validate},
	}
	for _, check := range checks {
		if err := check.fn(); err != nil {
			return fmt.Errorf("%s config: %w", check.name, err)
		}
	}
	return nil
}

// Clone 返回配置的深拷贝
func (c *Config) Clone() *Config {
	if c == nil {
		return NewConfig()
	}
	cp := *c
	return &cp
}

// FromJSON 从 JSON 数据加载配置
//
// 未出现的字段保留默认值。
func FromJSON(data []byte) (*Config, error) {
	cfg := NewConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile 从文件加载 JSON 配置
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return FromJSON(data)
}

// ToJSON 将配置序列化为带缩进的 JSON
func (c *Config) ToJSON() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
