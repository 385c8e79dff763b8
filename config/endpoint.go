package config

import (
	"errors"
	"runtime"
	"time"
)

// PoolConfig 串行执行上下文池配置
type PoolConfig struct {
	// Size strand 数量，0 表示 runtime.NumCPU()
	Size int `json:"size"`
}

// DefaultPoolConfig 返回默认池配置
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{Size: runtime.NumCPU()}
}

// Validate 验证池配置
func (c PoolConfig) Validate() error {
	if c.Size < 0 {
		return errors.New("size must be non-negative")
	}
	return nil
}

// EndpointConfig 端点生命周期配置
type EndpointConfig struct {
	// ConnectTimeout 连接（含握手）超时
	ConnectTimeout Duration `json:"connect_timeout"`

	// SilenceTimeout 静默超时，超过该时间未收到数据则断开（0 表示关闭）
	SilenceTimeout Duration `json:"silence_timeout"`

	// ReadBufferSize 单次读取缓冲区大小
	ReadBufferSize int `json:"read_buffer_size"`
}

// DefaultEndpointConfig 返回默认端点配置
func DefaultEndpointConfig() EndpointConfig {
	return EndpointConfig{
		ConnectTimeout: Duration(5 * time.Second),
		SilenceTimeout: 0,
		ReadBufferSize: 64 * 1024,
	}
}

// Validate 验证端点配置
func (c EndpointConfig) Validate() error {
	if c.ConnectTimeout < 0 {
		return errors.New("connect_timeout must be non-negative")
	}
	if c.SilenceTimeout < 0 {
		return errors.New("silence_timeout must be non-negative")
	}
	if c.ReadBufferSize <= 0 {
		return errors.New("read_buffer_size must be positive")
	}
	return nil
}

// ReconnectConfig 客户端自动重连配置
//
// 这是唯一跨越断连周期保留的策略，保存在客户端对象中。
type ReconnectConfig struct {
	// Enable 是否在断连后自动重连
	Enable bool `json:"enable"`

	// Delay 断连到下一次启动尝试之间的延迟
	Delay Duration `json:"delay"`
}

// DefaultReconnectConfig 返回默认重连配置（关闭）
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		Enable: false,
		Delay:  Duration(time.Second),
	}
}

// Validate 验证重连配置
func (c ReconnectConfig) Validate() error {
	if c.Delay < 0 {
		return errors.New("delay must be non-negative")
	}
	return nil
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// Enable 是否采集指标
	Enable bool `json:"enable"`

	// Namespace prometheus 命名空间
	Namespace string `json:"namespace,omitempty"`
}

// DefaultMetricsConfig 返回默认指标配置
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{Enable: true, Namespace: "netkit"}
}
