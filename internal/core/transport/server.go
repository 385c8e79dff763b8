package transport

import (
	"context"
	"fmt"
	"net"
	"sync/atomic"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/registry"
)

// ============================================================================
// Backend 监听实现
// ============================================================================

// Backend 服务端的协议相关部分
type Backend interface {
	// Listen 打开监听并返回本地地址
	Listen(ctx context.Context) (net.Addr, error)

	// Serve 启动接收循环，在服务端 strand 上调用，不得阻塞
	Serve(s *Server)

	// Shutdown 停止接受新连接，已有会话不受影响
	Shutdown()

	// Close 释放监听资源并等待接收循环退出
	//
	// 在所有会话停止后于 strand 外调用，可以阻塞。
	Close() error
}

// HooksFactory 为新会话构造端点钩子
type HooksFactory func(ep *endpoint.Endpoint) endpoint.Hooks

// ServerCallbacks 服务端回调
//
// Accept 在服务端 strand 上调用；会话回调在各自会话的 strand 上调用。
type ServerCallbacks struct {
	Accept     func(s *Session)
	Connect    func(s *Session)
	Disconnect func(s *Session, err error)
	Recv       func(s *Session, data []byte)
	Send       func(s *Session, data []byte)
	Handshake  func(s *Session, err error)
}

// ============================================================================
// Server
// ============================================================================

// Server 服务端端点
//
// 服务端自身是一个 RoleServer 端点：连接阶段打开监听，拆除阶段停止所有会话，
// 直到最后一个会话完全停止后才关闭监听资源并进入 stopped。
type Server struct {
	ep       *endpoint.Endpoint
	opts     Options
	protocol string
	backend  Backend
	sessions *registry.Registry[*Session]
	cbs      atomic.Pointer[ServerCallbacks]

	// 仅在服务端 strand 上访问
	keep    *evqueue.Defer
	keepTok *evqueue.Token
}

// NewServer 创建服务端
func NewServer(opts Options, protocol string, backend Backend) *Server {
	s := &Server{
		opts:     opts,
		protocol: protocol,
		backend:  backend,
		sessions: registry.New[*Session](registry.DefaultShards),
	}
	s.cbs.Store(&ServerCallbacks{})
	s.ep = endpoint.New(opts.Pool.Next(), &serverHooks{s: s}, opts.endpointOptions(endpoint.RoleServer, protocol))

	logger.Debug("创建服务端", "id", s.ep.ID(), "protocol", protocol)
	return s
}

// Endpoint 返回服务端自身的端点
func (s *Server) Endpoint() *endpoint.Endpoint { return s.ep }

// ID 返回服务端句柄
func (s *Server) ID() string { return s.ep.ID() }

// Protocol 返回协议标签
func (s *Server) Protocol() string { return s.protocol }

// Options 返回构造参数
func (s *Server) Options() Options { return s.opts }

// State 返回服务端状态
func (s *Server) State() endpoint.State { return s.ep.State() }

// IsStarted 报告是否正在监听
func (s *Server) IsStarted() bool { return s.ep.IsStarted() }

// IsStopped 报告是否已完全停止
func (s *Server) IsStopped() bool { return s.ep.IsStopped() }

// Addr 返回监听地址，未启动时为 nil
func (s *Server) Addr() net.Addr { return s.ep.LocalAddr() }

// Exec 在服务端 strand 上执行 fn 并等待完成
func (s *Server) Exec(fn func()) bool { return s.ep.Exec(fn) }

// ============================================================================
// 生命周期
// ============================================================================

// AsyncStart 异步启动监听，done 报告结果
func (s *Server) AsyncStart(done func(error)) error { return s.ep.AsyncStart(done) }

// Start 启动监听并等待结果
func (s *Server) Start(ctx context.Context) error {
	result := make(chan error, 1)
	if err := s.AsyncStart(func(err error) { result <- err }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		s.Stop()
		return ctx.Err()
	}
}

// Stop 异步停止：关闭监听、停止所有会话
func (s *Server) Stop() { s.ep.Stop() }

// WaitStopped 等待服务端与所有会话完全停止
func (s *Server) WaitStopped(ctx context.Context) error { return s.ep.WaitStopped(ctx) }

// ============================================================================
// 会话
// ============================================================================

// SessionCount 返回会话数量
func (s *Server) SessionCount() int { return s.sessions.Size() }

// ForEachSession 遍历会话
func (s *Server) ForEachSession(fn func(sess *Session)) {
	s.sessions.ForEach(func(_ string, sess *Session) { fn(sess) })
}

// FindSession 按远端 key 查找会话
func (s *Server) FindSession(key string) (*Session, bool) {
	return s.sessions.Find(key)
}

// Broadcast 向所有已连接会话异步发送，返回投递的会话数
func (s *Server) Broadcast(data []byte) int {
	n := 0
	s.sessions.ForEach(func(_ string, sess *Session) {
		if sess.IsStarted() {
			sess.AsyncSend(data, nil)
			n++
		}
	})
	return n
}

// Accept 从接收 goroutine 创建并启动会话
//
// 服务端不处于 started 或 key 重复时返回错误。
func (s *Server) Accept(key string, mk HooksFactory) (*Session, error) {
	var (
		sess *Session
		err  = endpoint.ErrStopped
	)
	s.ep.Exec(func() {
		sess, err = s.newSession(key, mk)
	})
	return sess, err
}

// AcceptConn 为一条已接受的流式连接创建会话，失败时关闭连接
func (s *Server) AcceptConn(c Conn) (*Session, error) {
	sess, err := s.Accept(c.RemoteAddr().String(), func(ep *endpoint.Endpoint) endpoint.Hooks {
		return newSessionHooks(ep, c)
	})
	if err != nil {
		logger.Debug("拒绝连接", "remote", c.RemoteAddr(), "error", err)
		_ = c.Close()
	}
	return sess, err
}

// newSession 在服务端 strand 上调用
func (s *Server) newSession(key string, mk HooksFactory) (*Session, error) {
	if !s.ep.IsStarted() || s.keep == nil {
		return nil, endpoint.ErrStopped
	}
	tok, err := s.keep.Hold()
	if err != nil {
		return nil, endpoint.ErrStopped
	}

	sess := &Session{server: s}
	eo := s.opts.endpointOptions(endpoint.RoleSession, s.protocol)
	eo.Owner = s.sessions
	eo.Key = key
	eo.AfterStop = func(error) { tok.Release() }
	sess.Endpoint = endpoint.New(s.opts.Pool.Next(), nil, eo)
	sess.SetHooks(mk(sess.Endpoint))
	s.bindSession(sess)

	inserted := false
	s.sessions.Insert(key, sess, func(ok bool) { inserted = ok })
	if !inserted {
		tok.Release()
		return nil, fmt.Errorf("%w: %s", endpoint.ErrDuplicateSession, key)
	}

	if fn := s.callbacks().Accept; fn != nil {
		fn(sess)
	}
	if err := sess.AsyncStart(nil); err != nil {
		s.sessions.Erase(key, nil)
		tok.Release()
		return nil, err
	}

	logger.Debug("接受会话", "server", s.ep.ID(), "session", sess.ID(), "key", key)
	return sess, nil
}

func (s *Server) bindSession(sess *Session) {
	sess.BindConnect(func() {
		if fn := s.callbacks().Connect; fn != nil {
			fn(sess)
		}
	})
	sess.BindDisconnect(func(err error) {
		if fn := s.callbacks().Disconnect; fn != nil {
			fn(sess, err)
		}
	})
	sess.BindRecv(func(data []byte) {
		if fn := s.callbacks().Recv; fn != nil {
			fn(sess, data)
		}
	})
	sess.BindSend(func(data []byte) {
		if fn := s.callbacks().Send; fn != nil {
			fn(sess, data)
		}
	})
	sess.BindHandshake(func(err error) {
		if fn := s.callbacks().Handshake; fn != nil {
			fn(sess, err)
		}
	})
}

// ============================================================================
// 回调绑定
// ============================================================================

func (s *Server) bind(set func(cb *ServerCallbacks)) {
	for {
		old := s.cbs.Load()
		next := *old
		set(&next)
		if s.cbs.CompareAndSwap(old, &next) {
			return
		}
	}
}

func (s *Server) callbacks() *ServerCallbacks { return s.cbs.Load() }

// BindAccept 绑定接受回调，在会话启动前调用
func (s *Server) BindAccept(fn func(sess *Session)) {
	s.bind(func(cb *ServerCallbacks) { cb.Accept = fn })
}

// BindConnect 绑定会话连接回调
func (s *Server) BindConnect(fn func(sess *Session)) {
	s.bind(func(cb *ServerCallbacks) { cb.Connect = fn })
}

// BindDisconnect 绑定会话断开回调
func (s *Server) BindDisconnect(fn func(sess *Session, err error)) {
	s.bind(func(cb *ServerCallbacks) { cb.Disconnect = fn })
}

// BindRecv 绑定会话接收回调
func (s *Server) BindRecv(fn func(sess *Session, data []byte)) {
	s.bind(func(cb *ServerCallbacks) { cb.Recv = fn })
}

// BindSend 绑定会话发送完成回调
func (s *Server) BindSend(fn func(sess *Session, data []byte)) {
	s.bind(func(cb *ServerCallbacks) { cb.Send = fn })
}

// BindHandshake 绑定会话握手回调
func (s *Server) BindHandshake(fn func(sess *Session, err error)) {
	s.bind(func(cb *ServerCallbacks) { cb.Handshake = fn })
}

// BindStart 绑定监听启动结果回调
func (s *Server) BindStart(fn func(err error)) { s.ep.BindStart(fn) }

// BindStop 绑定完全停止回调
func (s *Server) BindStop(fn func(err error)) { s.ep.BindStop(fn) }

// ============================================================================
// serverHooks
// ============================================================================

type serverHooks struct {
	s *Server

	// 由关闭 goroutine 写入，拆除链放行后在 strand 上读取
	closeErr error
}

var _ endpoint.Hooks = (*serverHooks)(nil)

func (h *serverHooks) DoInit() error {
	h.s.keep = evqueue.NewDefer(h.s.ep.Strand())
	h.s.keepTok = h.s.keep.MustHold()
	return nil
}

func (h *serverHooks) DoConnect(ctx context.Context, done func(error)) {
	go func() {
		addr, err := h.s.backend.Listen(ctx)
		if err != nil {
			done(fmt.Errorf("监听失败: %w", err))
			return
		}
		h.s.ep.SetAddrs(addr, nil)
		logger.Info("服务端开始监听", "protocol", h.s.protocol, "addr", addr)
		done(nil)
	}()
}

func (h *serverHooks) PostRecv() {
	h.s.backend.Serve(h.s)
}

func (h *serverHooks) DoSend(_ []byte, done func(n int, err error)) {
	done(0, ErrNotSupported)
}

// HandleDisconnect 停止接受并停止所有会话
//
// 最后一个会话停止后在 strand 外关闭监听资源：接收 goroutine 可能正阻塞在
// 向本 strand 投递的 Exec 上，等待它退出不能占用 strand。关闭完成后放行拆除链。
func (h *serverHooks) HandleDisconnect(_ error, chain *evqueue.Token) {
	h.s.backend.Shutdown()

	tok := chain.Clone()
	closeBackend := func() {
		go func() {
			h.closeErr = h.s.backend.Close()
			tok.Release()
		}()
	}

	keep := h.s.keep
	if keep == nil {
		closeBackend()
		return
	}
	keep.Then(closeBackend)

	h.s.sessions.ForEach(func(_ string, sess *Session) {
		sess.Stop()
	})
	h.s.keepTok.Release()
	h.s.keep, h.s.keepTok = nil, nil
}

// CloseTransport 报告监听资源的关闭结果
func (h *serverHooks) CloseTransport() error {
	err := h.closeErr
	h.closeErr = nil
	logger.Info("服务端已关闭", "protocol", h.s.protocol, "id", h.s.ep.ID())
	return err
}
