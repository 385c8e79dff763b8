package ws

import (
	"context"
	cryptotls "crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/transport"
	tlsx "github.com/dep2p/go-netkit/internal/core/transport/tls"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/transport/ws")

// Protocol 协议标签
const Protocol = "ws"

type settings struct {
	tls *cryptotls.Config
}

// Option WebSocket 端点选项
type Option func(*settings)

// WithTLSConfig 使用 TLS（wss）
func WithTLSConfig(tc *cryptotls.Config) Option {
	return func(s *settings) { s.tls = tc }
}

func apply(opts []Option) settings {
	var s settings
	for _, o := range opts {
		o(&s)
	}
	return s
}

// ============================================================================
// 客户端
// ============================================================================

// NewClient 创建连接到 url（ws:// 或 wss://）的客户端
//
// wss 未指定 TLS 配置时由统一配置生成。
func NewClient(opts transport.Options, url string, options ...Option) (*transport.Client, error) {
	opts = opts.WithDefaults()
	st := apply(options)
	cfg := opts.Config

	if st.tls == nil && strings.HasPrefix(url, "wss://") {
		tc, err := tlsx.ClientConfig(cfg.TLS)
		if err != nil {
			return nil, err
		}
		st.tls = tc
	}

	dialer := &websocket.Dialer{
		HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout.Duration(),
		ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
		WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
		EnableCompression: cfg.WebSocket.EnableCompression,
		TLSClientConfig:   st.tls,
		NetDialContext: func(ctx context.Context, _, addr string) (net.Conn, error) {
			return transport.DialTCP(ctx, addr, cfg.TCP)
		},
	}
	grace := cfg.WebSocket.CloseGracePeriod.Duration()

	return transport.NewClient(opts, Protocol, func(ctx context.Context) (transport.Conn, error) {
		c, resp, err := dialer.DialContext(ctx, url, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			if errors.Is(err, websocket.ErrBadHandshake) && resp != nil {
				return nil, fmt.Errorf("%w: status %d", err, resp.StatusCode)
			}
			return nil, err
		}
		return newConn(c, grace), nil
	}), nil
}

// ============================================================================
// 服务端
// ============================================================================

// NewServer 创建监听 address 的服务端，升级路径取配置中的 Path
func NewServer(opts transport.Options, address string, options ...Option) *transport.Server {
	opts = opts.WithDefaults()
	st := apply(options)
	cfg := opts.Config
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = cfg.WebSocket.HandshakeTimeout.Duration()
	}

	b := &backend{
		address: address,
		cfg:     cfg,
		tls:     st.tls,
		upgrader: websocket.Upgrader{
			HandshakeTimeout:  cfg.WebSocket.HandshakeTimeout.Duration(),
			ReadBufferSize:    cfg.WebSocket.ReadBufferSize,
			WriteBufferSize:   cfg.WebSocket.WriteBufferSize,
			EnableCompression: cfg.WebSocket.EnableCompression,
			CheckOrigin:       func(*http.Request) bool { return true },
		},
	}
	return transport.NewServer(opts, Protocol, b)
}

// backend 基于 net/http 的升级监听
type backend struct {
	address  string
	cfg      *config.Config
	tls      *cryptotls.Config
	upgrader websocket.Upgrader

	mu   sync.Mutex
	ln   net.Listener
	http *http.Server
	wg   sync.WaitGroup
}

var _ transport.Backend = (*backend)(nil)

func (b *backend) Listen(ctx context.Context) (net.Addr, error) {
	lc := transport.ListenConfig(b.cfg.TCP.ReuseAddress)
	ln, err := lc.Listen(ctx, "tcp", b.address)
	if err != nil {
		return nil, err
	}
	addr := ln.Addr()
	if b.tls != nil {
		ln = cryptotls.NewListener(ln, b.tls)
	}

	b.mu.Lock()
	b.ln = ln
	b.mu.Unlock()
	return addr, nil
}

func (b *backend) Serve(s *transport.Server) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.ln == nil {
		return
	}

	path := b.cfg.WebSocket.Path
	if path == "" {
		path = "/"
	}
	grace := b.cfg.WebSocket.CloseGracePeriod.Duration()

	mux := http.NewServeMux()
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if !s.IsStarted() {
			http.Error(w, "server stopping", http.StatusServiceUnavailable)
			return
		}
		c, err := b.upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Debug("升级失败", "remote", r.RemoteAddr, "error", err)
			return
		}
		transport.TuneTCP(c.UnderlyingConn(), b.cfg.TCP)
		_, _ = s.AcceptConn(newConn(c, grace))
	})

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: b.cfg.WebSocket.HandshakeTimeout.Duration(),
	}
	b.http = srv
	ln := b.ln

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("HTTP 服务退出", "addr", ln.Addr(), "error", err)
			s.Endpoint().Disconnect(err)
		}
	}()
}

// Shutdown 关闭 HTTP 监听；已升级的连接不受影响
func (b *backend) Shutdown() {
	if err := b.shutdown(); err != nil {
		logger.Debug("关闭 HTTP 监听失败", "error", err)
	}
}

func (b *backend) shutdown() error {
	b.mu.Lock()
	srv, ln := b.http, b.ln
	b.http, b.ln = nil, nil
	b.mu.Unlock()

	var err error
	if srv != nil {
		err = srv.Close()
	} else if ln != nil {
		err = ln.Close()
	}
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

func (b *backend) Close() error {
	err := b.shutdown()
	b.wg.Wait()
	return err
}
