package config

import (
	"errors"
	"time"
)

// TCPConfig TCP 传输配置
type TCPConfig struct {
	// NoDelay 是否禁用 Nagle 算法
	NoDelay bool `json:"no_delay"`

	// KeepAlive 是否启用 TCP KeepAlive
	KeepAlive bool `json:"keep_alive"`

	// KeepAlivePeriod KeepAlive 周期
	KeepAlivePeriod Duration `json:"keep_alive_period"`

	// ReuseAddress 监听时设置 SO_REUSEADDR
	ReuseAddress bool `json:"reuse_address"`

	// MaxAcceptRate 每秒最多接受的连接数（0 = 不限制）
	MaxAcceptRate float64 `json:"max_accept_rate,omitempty"`

	// AcceptBurst 接受连接的突发量
	AcceptBurst int `json:"accept_burst,omitempty"`
}

// DefaultTCPConfig 返回默认 TCP 配置
func DefaultTCPConfig() TCPConfig {
	return TCPConfig{
		NoDelay:         true,
		KeepAlive:       true,
		KeepAlivePeriod: Duration(15 * time.Second),
		ReuseAddress:    true,
		MaxAcceptRate:   0,
		AcceptBurst:     64,
	}
}

// Validate 验证 TCP 配置
func (c TCPConfig) Validate() error {
	if c.KeepAlive && c.KeepAlivePeriod <= 0 {
		return errors.New("keep_alive_period must be positive when keep_alive is enabled")
	}
	if c.MaxAcceptRate < 0 {
		return errors.New("max_accept_rate must be non-negative")
	}
	if c.MaxAcceptRate > 0 && c.AcceptBurst <= 0 {
		return errors.New("accept_burst must be positive when max_accept_rate is set")
	}
	return nil
}

// UDPConfig UDP 传输配置
type UDPConfig struct {
	// MaxDatagramSize 单个数据报的最大长度
	MaxDatagramSize int `json:"max_datagram_size"`

	// ReuseAddress 监听时设置 SO_REUSEADDR
	ReuseAddress bool `json:"reuse_address"`
}

// DefaultUDPConfig 返回默认 UDP 配置
func DefaultUDPConfig() UDPConfig {
	return UDPConfig{
		MaxDatagramSize: 64 * 1024,
		ReuseAddress:    true,
	}
}

// Validate 验证 UDP 配置
func (c UDPConfig) Validate() error {
	if c.MaxDatagramSize < 512 || c.MaxDatagramSize > 65536 {
		return errors.New("max_datagram_size must be in [512, 65536]")
	}
	return nil
}

// TLSConfig TLS 配置
//
// 握手本身由 crypto/tls 完成，这里只描述证书来源与校验策略。
type TLSConfig struct {
	// CertFile 证书文件（服务端必需）
	CertFile string `json:"cert_file,omitempty"`

	// KeyFile 私钥文件
	KeyFile string `json:"key_file,omitempty"`

	// CAFile 用于校验对端的 CA 证书
	CAFile string `json:"ca_file,omitempty"`

	// ServerName 客户端校验使用的服务器名称
	ServerName string `json:"server_name,omitempty"`

	// InsecureSkipVerify 跳过证书校验（仅测试）
	InsecureSkipVerify bool `json:"insecure_skip_verify,omitempty"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`
}

// DefaultTLSConfig 返回默认 TLS 配置
func DefaultTLSConfig() TLSConfig {
	return TLSConfig{HandshakeTimeout: Duration(5 * time.Second)}
}

// Validate 验证 TLS 配置
func (c TLSConfig) Validate() error {
	if (c.CertFile == "") != (c.KeyFile == "") {
		return errors.New("cert_file and key_file must be set together")
	}
	if c.HandshakeTimeout < 0 {
		return errors.New("handshake_timeout must be non-negative")
	}
	return nil
}

// WebSocketConfig WebSocket 传输配置
type WebSocketConfig struct {
	// Path 服务端升级路径
	Path string `json:"path"`

	// ReadBufferSize 读缓冲区大小
	ReadBufferSize int `json:"read_buffer_size,omitempty"`

	// WriteBufferSize 写缓冲区大小
	WriteBufferSize int `json:"write_buffer_size,omitempty"`

	// HandshakeTimeout 握手超时
	HandshakeTimeout Duration `json:"handshake_timeout"`

	// EnableCompression 是否启用 permessage-deflate
	EnableCompression bool `json:"enable_compression"`

	// CloseGracePeriod 发送关闭帧后等待对端的时间
	CloseGracePeriod Duration `json:"close_grace_period"`
}

// DefaultWebSocketConfig 返回默认 WebSocket 配置
func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Path:             "/",
		ReadBufferSize:   4096,
		WriteBufferSize:  4096,
		HandshakeTimeout: Duration(10 * time.Second),
		CloseGracePeriod: Duration(time.Second),
	}
}

// Validate 验证 WebSocket 配置
func (c WebSocketConfig) Validate() error {
	if c.Path == "" || c.Path[0] != '/' {
		return errors.New("path must start with '/'")
	}
	if c.ReadBufferSize < 0 || c.WriteBufferSize < 0 {
		return errors.New("buffer sizes must be non-negative")
	}
	return nil
}
