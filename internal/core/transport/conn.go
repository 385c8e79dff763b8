package transport

import (
	"context"
	"net"
	"time"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/iopool"
)

// ============================================================================
// 连接抽象
// ============================================================================

// Conn 面向消息的双向连接
//
// ReadMessage 与 WriteMessage 会阻塞，由端点在独立 goroutine 中调用；
// 同一时刻最多一个读者和一个写者。
type Conn interface {
	// ReadMessage 读取一条消息，字节流传输返回一个数据块
	ReadMessage() ([]byte, error)

	// WriteMessage 写出一条完整消息
	WriteMessage(data []byte) (int, error)

	// Close 关闭连接，使阻塞的读写返回
	Close() error

	LocalAddr() net.Addr
	RemoteAddr() net.Addr
}

// Handshaker 需要协议握手的连接（TLS、WebSocket）
type Handshaker interface {
	Handshake(ctx context.Context) error
}

// GracefulCloser 关闭前需要通知对端的连接
type GracefulCloser interface {
	// Shutdown 尽力发送关闭通知，不等待对端回应
	Shutdown(reason error)
}

// Interrupter 可从任意 goroutine 中断阻塞写出的连接
type Interrupter interface {
	// Interrupt 使进行中与后续的 WriteMessage 尽快以错误返回
	Interrupt()
}

// DialFunc 建立一条到服务端的连接
type DialFunc func(ctx context.Context) (Conn, error)

// ============================================================================
// 构造参数
// ============================================================================

// Options 传输端点的公共构造参数
type Options struct {
	// Pool 端点所在的执行器池
	Pool *iopool.Pool

	// Config 统一配置
	Config *config.Config

	// Observers 附加到每个端点（含会话）的观察者
	Observers []endpoint.Observer

	// HandshakeTimeout 非 0 时作为会话的连接超时
	HandshakeTimeout time.Duration
}

// endpointOptions 按角色生成端点参数
func (o Options) endpointOptions(role endpoint.Role, protocol string) endpoint.Options {
	cfg := o.Config
	if cfg == nil {
		cfg = config.NewConfig()
	}
	eo := endpoint.Options{
		Role:           role,
		Protocol:       protocol,
		ConnectTimeout: cfg.Endpoint.ConnectTimeout.Duration(),
		SilenceTimeout: cfg.Endpoint.SilenceTimeout.Duration(),
		Observers:      o.Observers,
	}
	switch role {
	case endpoint.RoleServer:
		eo.SilenceTimeout = 0
	case endpoint.RoleSession:
		if o.HandshakeTimeout > 0 {
			eo.ConnectTimeout = o.HandshakeTimeout
		}
	}
	return eo
}

// WithDefaults 未设置配置时使用默认配置
func (o Options) WithDefaults() Options {
	if o.Config == nil {
		o.Config = config.NewConfig()
	}
	return o
}

func (o Options) config() *config.Config {
	if o.Config == nil {
		return config.NewConfig()
	}
	return o.Config
}

// ============================================================================
// socket 辅助
// ============================================================================

// ListenConfig 返回监听配置，reuse 为 true 时设置 SO_REUSEADDR
func ListenConfig(reuse bool) net.ListenConfig {
	var lc net.ListenConfig
	if reuse {
		lc.Control = reuseControl
	}
	return lc
}

// TuneTCP 按配置设置 TCP 选项，非 TCP 连接直接返回
func TuneTCP(c net.Conn, cfg config.TCPConfig) {
	tc, ok := c.(*net.TCPConn)
	if !ok {
		return
	}
	if err := tc.SetNoDelay(cfg.NoDelay); err != nil {
		logger.Debug("设置 TCP_NODELAY 失败", "error", err)
	}
	if cfg.KeepAlive {
		_ = tc.SetKeepAlive(true)
		_ = tc.SetKeepAlivePeriod(cfg.KeepAlivePeriod.Or(15 * time.Second))
	}
}

// DialTCP 建立 TCP 连接并应用配置
func DialTCP(ctx context.Context, address string, cfg config.TCPConfig) (net.Conn, error) {
	var d net.Dialer
	c, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	TuneTCP(c, cfg)
	return c, nil
}
