package udp

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"

	tec "github.com/jbenet/go-temp-err-catcher"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/arq"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/transport"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/transport/udp")

// ============================================================================
// 服务端
// ============================================================================

// NewServer 创建监听 address 的 UDP 服务端
func NewServer(opts transport.Options, address string, options ...Option) *transport.Server {
	opts = opts.WithDefaults()
	st := apply(options)
	if st.arq && opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = opts.Config.ARQ.HandshakeTimeout.Duration()
	}
	b := &backend{
		address: address,
		cfg:     opts.Config,
		useARQ:  st.arq,
	}
	return transport.NewServer(opts, st.protocol(), b)
}

// backend 单 socket 按远端地址分派
type backend struct {
	address string
	cfg     *config.Config
	useARQ  bool

	mu        sync.Mutex
	pc        net.PacketConn
	wg        sync.WaitGroup
	accepting atomic.Bool
}

var _ transport.Backend = (*backend)(nil)

func (b *backend) Listen(ctx context.Context) (net.Addr, error) {
	lc := transport.ListenConfig(b.cfg.UDP.ReuseAddress)
	pc, err := lc.ListenPacket(ctx, "udp", b.address)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.pc = pc
	b.mu.Unlock()
	b.accepting.Store(true)
	return pc.LocalAddr(), nil
}

func (b *backend) Serve(s *transport.Server) {
	b.mu.Lock()
	pc := b.pc
	b.mu.Unlock()
	if pc == nil {
		return
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		b.readLoop(s, pc)
	}()
}

// Shutdown 不再创建会话；socket 保持打开，已有会话仍可发送 FIN
func (b *backend) Shutdown() {
	b.accepting.Store(false)
}

func (b *backend) Close() error {
	b.accepting.Store(false)
	b.mu.Lock()
	pc := b.pc
	b.pc = nil
	b.mu.Unlock()

	var err error
	if pc != nil {
		err = pc.Close()
	}
	b.wg.Wait()
	return err
}

func (b *backend) readLoop(s *transport.Server, pc net.PacketConn) {
	var catcher tec.TempErrCatcher
	buf := make([]byte, b.cfg.UDP.MaxDatagramSize)

	for {
		n, addr, err := pc.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if catcher.IsTemporary(err) {
				continue
			}
			logger.Warn("读取数据报失败", "addr", pc.LocalAddr(), "error", err)
			s.Endpoint().Disconnect(endpoint.ClassifyError(err))
			return
		}
		catcher.Reset()

		pkt := make([]byte, n)
		copy(pkt, buf[:n])
		b.dispatch(s, pc, addr, pkt)
	}
}

// dispatch 把数据报交给已有会话，或为新地址创建会话
func (b *backend) dispatch(s *transport.Server, pc net.PacketConn, addr net.Addr, pkt []byte) {
	key := addr.String()
	if sess, ok := s.FindSession(key); ok {
		h, ok := sess.Hooks().(*sessionHooks)
		if !ok {
			return
		}
		sess.Exec(func() { h.onDatagram(pkt) })
		return
	}

	if !b.accepting.Load() {
		return
	}
	if b.useARQ {
		hdr, err := arq.ParseHeader(pkt)
		if err != nil || !hdr.IsSYN() {
			return
		}
	}

	_, err := s.Accept(key, func(ep *endpoint.Endpoint) endpoint.Hooks {
		return &sessionHooks{
			datagram: datagram{ep: ep, arqCfg: b.cfg.ARQ, useARQ: b.useARQ},
			pc:       pc,
			remote:   addr,
			first:    pkt,
			maxSize:  b.cfg.UDP.MaxDatagramSize,
		}
	})
	if err != nil {
		logger.Debug("拒绝数据报会话", "remote", key, "error", err)
	}
}

// ============================================================================
// 会话钩子
// ============================================================================

// sessionHooks 共享服务端 socket 的会话
type sessionHooks struct {
	datagram

	pc      net.PacketConn
	remote  net.Addr
	first   []byte
	maxSize int
}

var _ endpoint.Hooks = (*sessionHooks)(nil)

func (h *sessionHooks) DoInit() error { return nil }

// DoConnect 以首个数据报完成握手，不产生网络等待
func (h *sessionHooks) DoConnect(_ context.Context, done func(error)) {
	h.ep.SetAddrs(h.pc.LocalAddr(), h.remote)

	first := h.first
	h.first = nil
	if sess := h.newARQ(h.write); sess != nil {
		syn, err := arq.ParseHeader(first)
		if err != nil {
			done(err)
			return
		}
		sess.Accept(syn, h.remote.String())
	} else if first != nil {
		h.pending = append([][]byte{first}, h.pending...)
	}
	done(nil)
}

func (h *sessionHooks) write(b []byte) error {
	_, err := h.pc.WriteTo(b, h.remote)
	return err
}

func (h *sessionHooks) PostRecv() {
	h.flushPending()
}

func (h *sessionHooks) DoSend(data []byte, done func(n int, err error)) {
	h.send(data, h.maxSize, func(b []byte) (int, error) {
		return h.pc.WriteTo(b, h.remote)
	}, done)
}

func (h *sessionHooks) HandleDisconnect(_ error, _ *evqueue.Token) {
	h.closeARQ()
}

// CloseTransport 会话不拥有 socket
func (h *sessionHooks) CloseTransport() error {
	h.reset()
	return nil
}
