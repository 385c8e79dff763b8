package tcp

import (
	"context"
	"net"

	"github.com/dep2p/go-netkit/internal/core/transport"
)

// Protocol 协议标签
const Protocol = "tcp"

// NewClient 创建连接到 address 的 TCP 客户端
func NewClient(opts transport.Options, address string) *transport.Client {
	opts = opts.WithDefaults()
	cfg := opts.Config
	return transport.NewClient(opts, Protocol, func(ctx context.Context) (transport.Conn, error) {
		c, err := transport.DialTCP(ctx, address, cfg.TCP)
		if err != nil {
			return nil, err
		}
		return transport.NewNetConn(c, cfg.Endpoint.ReadBufferSize), nil
	})
}

// NewServer 创建监听 address 的 TCP 服务端
func NewServer(opts transport.Options, address string) *transport.Server {
	opts = opts.WithDefaults()
	cfg := opts.Config
	backend := transport.NewListenerBackend(address, cfg.TCP, func(c net.Conn) transport.Conn {
		return transport.NewNetConn(c, cfg.Endpoint.ReadBufferSize)
	})
	return transport.NewServer(opts, Protocol, backend)
}
