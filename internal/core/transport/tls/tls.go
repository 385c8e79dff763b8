package tls

import (
	"context"
	cryptotls "crypto/tls"
	"net"

	"github.com/dep2p/go-netkit/internal/core/transport"
)

// Protocol 协议标签
const Protocol = "tls"

// 确保实现了接口
var (
	_ transport.Conn       = (*Conn)(nil)
	_ transport.Handshaker = (*Conn)(nil)
)

// Conn TLS 连接
type Conn struct {
	*transport.NetConn
	tc *cryptotls.Conn
}

func newConn(tc *cryptotls.Conn, bufSize int) *Conn {
	return &Conn{NetConn: transport.NewNetConn(tc, bufSize), tc: tc}
}

// Handshake 执行 TLS 握手
func (c *Conn) Handshake(ctx context.Context) error {
	return c.tc.HandshakeContext(ctx)
}

// ConnectionState 返回握手后的连接状态
func (c *Conn) ConnectionState() cryptotls.ConnectionState {
	return c.tc.ConnectionState()
}

// NewClient 创建 TLS 客户端
//
// tlsConfig 为 nil 时由统一配置生成。
func NewClient(opts transport.Options, address string, tlsConfig *cryptotls.Config) (*transport.Client, error) {
	opts = opts.WithDefaults()
	cfg := opts.Config
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = ClientConfig(cfg.TLS); err != nil {
			return nil, err
		}
	}
	if tlsConfig.ServerName == "" {
		tlsConfig = tlsConfig.Clone()
		if host, _, err := net.SplitHostPort(address); err == nil {
			tlsConfig.ServerName = host
		}
	}

	return transport.NewClient(opts, Protocol, func(ctx context.Context) (transport.Conn, error) {
		raw, err := transport.DialTCP(ctx, address, cfg.TCP)
		if err != nil {
			return nil, err
		}
		return newConn(cryptotls.Client(raw, tlsConfig), cfg.Endpoint.ReadBufferSize), nil
	}), nil
}

// NewServer 创建 TLS 服务端
//
// tlsConfig 为 nil 时由统一配置中的证书文件生成。
func NewServer(opts transport.Options, address string, tlsConfig *cryptotls.Config) (*transport.Server, error) {
	opts = opts.WithDefaults()
	cfg := opts.Config
	if tlsConfig == nil {
		var err error
		if tlsConfig, err = ServerConfig(cfg.TLS); err != nil {
			return nil, err
		}
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = cfg.TLS.HandshakeTimeout.Duration()
	}

	backend := transport.NewListenerBackend(address, cfg.TCP, func(c net.Conn) transport.Conn {
		return newConn(cryptotls.Server(c, tlsConfig), cfg.Endpoint.ReadBufferSize)
	})
	return transport.NewServer(opts, Protocol, backend), nil
}
