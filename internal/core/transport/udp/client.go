package udp

import (
	"context"
	"fmt"
	"net"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/internal/core/transport"
)

// ============================================================================
// 客户端
// ============================================================================

// NewClient 创建 UDP 客户端
func NewClient(opts transport.Options, address string, options ...Option) *transport.Client {
	opts = opts.WithDefaults()
	st := apply(options)
	cfg := opts.Config

	h := &clientHooks{
		datagram: datagram{arqCfg: cfg.ARQ, useARQ: st.arq},
		address:  address,
		udpCfg:   cfg.UDP,
	}
	cli := transport.NewClient(opts, st.protocol(), nil)
	cli.SetHooks(h)
	h.ep = cli.Endpoint
	return cli
}

// clientHooks 使用已连接 UDP socket 的客户端钩子
type clientHooks struct {
	datagram

	address string
	udpCfg  config.UDPConfig
	conn    net.Conn
}

var _ endpoint.Hooks = (*clientHooks)(nil)

func (h *clientHooks) DoInit() error { return nil }

func (h *clientHooks) DoConnect(ctx context.Context, done func(error)) {
	go func() {
		var d net.Dialer
		c, err := d.DialContext(ctx, "udp", h.address)
		if err != nil {
			done(fmt.Errorf("连接失败: %w", err))
			return
		}
		if !h.ep.Post(func() { h.attach(ctx, c, done) }) {
			_ = c.Close()
			done(iopool.ErrStrandClosed)
		}
	}()
}

// attach 在 strand 上登记连接并开始读取，启用 ARQ 时发起握手
func (h *clientHooks) attach(ctx context.Context, c net.Conn, done func(error)) {
	h.conn = c
	h.ep.SetAddrs(c.LocalAddr(), c.RemoteAddr())
	go h.readLoop(c)

	sess := h.newARQ(func(b []byte) error {
		_, err := c.Write(b)
		return err
	})
	if sess == nil {
		done(nil)
		return
	}

	sess.Connect(done)
	if d := h.arqCfg.HandshakeTimeout.Duration(); d > 0 {
		h.ep.Strand().AfterFunc(d, func() { done(endpoint.ErrTimeout) })
	}
	go func() {
		<-ctx.Done()
		done(ctx.Err())
	}()
}

func (h *clientHooks) readLoop(c net.Conn) {
	buf := make([]byte, h.udpCfg.MaxDatagramSize)
	for {
		n, err := c.Read(buf)
		if err != nil {
			h.ep.Exec(func() {
				if h.conn == c {
					h.ep.Disconnect(endpoint.ClassifyError(err))
				}
			})
			return
		}
		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		if !h.ep.Exec(func() {
			if h.conn == c {
				h.onDatagram(pkt)
			}
		}) {
			return
		}
	}
}

func (h *clientHooks) PostRecv() {
	h.flushPending()
}

func (h *clientHooks) DoSend(data []byte, done func(n int, err error)) {
	var write func([]byte) (int, error)
	if c := h.conn; c != nil {
		write = c.Write
	}
	h.send(data, h.udpCfg.MaxDatagramSize, write, done)
}

func (h *clientHooks) HandleDisconnect(_ error, _ *evqueue.Token) {
	h.closeARQ()
}

func (h *clientHooks) CloseTransport() error {
	h.reset()
	c := h.conn
	if c == nil {
		return nil
	}
	h.conn = nil
	return c.Close()
}
