package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	tec "github.com/jbenet/go-temp-err-catcher"
	"golang.org/x/time/rate"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// 确保实现了接口
var _ Backend = (*ListenerBackend)(nil)

// ============================================================================
// ListenerBackend 实现
// ============================================================================

// WrapFunc 把接受的原始连接包装为 Conn
type WrapFunc func(c net.Conn) Conn

// ListenerBackend 基于 TCP 监听的 Backend，TCP 与 TLS 服务端共用
type ListenerBackend struct {
	address string
	cfg     config.TCPConfig
	wrap    WrapFunc

	mu     sync.Mutex
	ln     net.Listener
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewListenerBackend 创建监听实现
func NewListenerBackend(address string, cfg config.TCPConfig, wrap WrapFunc) *ListenerBackend {
	return &ListenerBackend{
		address: address,
		cfg:     cfg,
		wrap:    wrap,
	}
}

// Listen 在 address 上监听
func (b *ListenerBackend) Listen(ctx context.Context) (net.Addr, error) {
	lc := ListenConfig(b.cfg.ReuseAddress)
	ln, err := lc.Listen(ctx, "tcp", b.address)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.ln = ln
	b.mu.Unlock()
	return ln.Addr(), nil
}

// Serve 启动接收循环
func (b *ListenerBackend) Serve(s *Server) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ln == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.wg.Add(1)
	go func(ln net.Listener) {
		defer b.wg.Done()
		b.acceptLoop(ctx, s, ln)
	}(b.ln)
}

// Shutdown 关闭监听，阻塞的 Accept 随之返回
func (b *ListenerBackend) Shutdown() {
	b.mu.Lock()
	ln, cancel := b.ln, b.cancel
	b.ln, b.cancel = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if ln != nil {
		if err := ln.Close(); err != nil {
			logger.Debug("关闭监听失败", "error", err)
		}
	}
}

// Close 等待接收循环退出
func (b *ListenerBackend) Close() error {
	b.Shutdown()
	b.wg.Wait()
	return nil
}

func (b *ListenerBackend) acceptLoop(ctx context.Context, s *Server, ln net.Listener) {
	var (
		catcher tec.TempErrCatcher
		limiter *rate.Limiter
	)
	if b.cfg.MaxAcceptRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(b.cfg.MaxAcceptRate), max(b.cfg.AcceptBurst, 1))
	}

	for {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return
			}
		}

		c, err := ln.Accept()
		if err != nil {
			if catcher.IsTemporary(err) {
				continue
			}
			if !errors.Is(err, net.ErrClosed) {
				logger.Warn("接受连接失败", "addr", ln.Addr(), "error", err)
				s.Endpoint().Disconnect(endpoint.ClassifyError(err))
			}
			return
		}
		catcher.Reset()

		TuneTCP(c, b.cfg)
		_, _ = s.AcceptConn(b.wrap(c))
	}
}

// ============================================================================
// NetConn 字节流连接
// ============================================================================

// NetConn 把 net.Conn 适配为 Conn，每次读取返回一个数据块
type NetConn struct {
	net.Conn
	buf []byte
}

var (
	_ Conn        = (*NetConn)(nil)
	_ Interrupter = (*NetConn)(nil)
)

// NewNetConn 创建适配器，bufSize 为单次读取上限
func NewNetConn(c net.Conn, bufSize int) *NetConn {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	return &NetConn{Conn: c, buf: make([]byte, bufSize)}
}

// ReadMessage 读取一个数据块
func (c *NetConn) ReadMessage() ([]byte, error) {
	n, err := c.Read(c.buf)
	if n > 0 {
		out := make([]byte, n)
		copy(out, c.buf[:n])
		return out, nil
	}
	if err == nil {
		return c.ReadMessage()
	}
	return nil, err
}

// WriteMessage 写出全部数据
func (c *NetConn) WriteMessage(data []byte) (int, error) {
	return c.Write(data)
}

// Interrupt 把写超时设为当前时刻，阻塞的 Write 立即返回超时错误
func (c *NetConn) Interrupt() {
	if err := c.SetWriteDeadline(time.Now()); err != nil {
		logger.Debug("中断写出失败", "remote", c.RemoteAddr(), "error", err)
	}
}
