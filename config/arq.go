package config

import (
	"errors"
	"time"
)

// ARQConfig 基于数据报的可靠传输（KCP）配置
type ARQConfig struct {
	// MTU 单个输出数据报的最大长度
	MTU int `json:"mtu"`

	// SendWindow 发送窗口（分片数）
	SendWindow int `json:"send_window"`

	// RecvWindow 接收窗口（分片数）
	RecvWindow int `json:"recv_window"`

	// NoDelay 启用无延迟模式（更激进的 RTO）
	NoDelay bool `json:"no_delay"`

	// Interval 内部刷新间隔
	Interval Duration `json:"interval"`

	// FastResend 快速重传阈值（0 = 关闭）
	FastResend int `json:"fast_resend"`

	// NoCongestion 关闭拥塞控制
	NoCongestion bool `json:"no_congestion"`

	// HandshakeInterval SYN 重发间隔
	HandshakeInterval Duration `json:"handshake_interval"`

	// HandshakeTimeout 握手总超时（0 = 使用端点的 ConnectTimeout）
	HandshakeTimeout Duration `json:"handshake_timeout,omitempty"`
}

// DefaultARQConfig 返回默认 ARQ 配置（fast 模式）
func DefaultARQConfig() ARQConfig {
	return ARQConfig{
		MTU:               1400,
		SendWindow:        128,
		RecvWindow:        128,
		NoDelay:           true,
		Interval:          Duration(10 * time.Millisecond),
		FastResend:        2,
		NoCongestion:      true,
		HandshakeInterval: Duration(500 * time.Millisecond),
	}
}

// Validate 验证 ARQ 配置
func (c ARQConfig) Validate() error {
	if c.MTU < 50 || c.MTU > 65535 {
		return errors.New("mtu must be in [50, 65535]")
	}
	if c.SendWindow <= 0 || c.RecvWindow <= 0 {
		return errors.New("windows must be positive")
	}
	if c.Interval < Duration(time.Millisecond) {
		return errors.New("interval must be at least 1ms")
	}
	if c.HandshakeInterval <= 0 {
		return errors.New("handshake_interval must be positive")
	}
	if c.HandshakeTimeout < 0 {
		return errors.New("handshake_timeout must be non-negative")
	}
	return nil
}
