package transport

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/iopool"
)

// ============================================================================
// streamHooks 基于 Conn 的端点钩子
// ============================================================================

// streamHooks 为客户端与服务端会话实现 endpoint.Hooks
//
// conn 只在 strand 上读写；读写 goroutine 持有各自的连接副本，
// 回到 strand 后与 conn 比较以丢弃旧连接的事件。live 供 Interrupt 在 strand 外读取。
type streamHooks struct {
	ep   *endpoint.Endpoint
	dial DialFunc
	conn Conn
	live atomic.Pointer[connRef]
}

type connRef struct{ c Conn }

var (
	_ endpoint.Hooks       = (*streamHooks)(nil)
	_ endpoint.Interrupter = (*streamHooks)(nil)
)

func newSessionHooks(ep *endpoint.Endpoint, c Conn) *streamHooks {
	h := &streamHooks{ep: ep}
	h.setConn(c)
	return h
}

func (h *streamHooks) setConn(c Conn) {
	h.conn = c
	if c == nil {
		h.live.Store(nil)
		return
	}
	h.live.Store(&connRef{c: c})
}

// DoInit 无需准备
func (h *streamHooks) DoInit() error { return nil }

// DoConnect 客户端拨号后握手；会话直接在已接受的连接上握手
func (h *streamHooks) DoConnect(ctx context.Context, done func(error)) {
	if h.dial == nil {
		c := h.conn
		if c == nil {
			done(ErrNoConnection)
			return
		}
		h.ep.SetAddrs(c.LocalAddr(), c.RemoteAddr())
		if _, ok := c.(Handshaker); !ok {
			done(nil)
			return
		}
		go func() {
			done(h.handshake(ctx, c))
		}()
		return
	}

	go func() {
		c, err := h.dial(ctx)
		if err != nil {
			done(fmt.Errorf("连接失败: %w", err))
			return
		}
		if err := h.handshake(ctx, c); err != nil {
			_ = c.Close()
			done(err)
			return
		}
		if !h.ep.Post(func() { h.attach(c) }) {
			_ = c.Close()
			done(iopool.ErrStrandClosed)
			return
		}
		done(nil)
	}()
}

// handshake 执行协议握手并在 strand 上触发握手回调
func (h *streamHooks) handshake(ctx context.Context, c Conn) error {
	hs, ok := c.(Handshaker)
	if !ok {
		return nil
	}
	err := hs.Handshake(ctx)
	if err != nil {
		err = fmt.Errorf("握手失败: %w", err)
	}
	h.ep.Post(func() { h.ep.FireHandshake(err) })
	return err
}

func (h *streamHooks) attach(c Conn) {
	h.setConn(c)
	h.ep.SetAddrs(c.LocalAddr(), c.RemoteAddr())
}

// PostRecv 启动读循环
func (h *streamHooks) PostRecv() {
	if h.conn == nil {
		return
	}
	go h.readLoop(h.conn)
}

func (h *streamHooks) readLoop(c Conn) {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			h.ep.Exec(func() {
				if h.conn == c {
					h.ep.Disconnect(endpoint.ClassifyError(err))
				}
			})
			return
		}
		if !h.ep.Exec(func() {
			if h.conn == c {
				h.ep.HandleRecv(data)
			}
		}) {
			return
		}
	}
}

// DoSend 在独立 goroutine 中写出
func (h *streamHooks) DoSend(data []byte, done func(n int, err error)) {
	c := h.conn
	if c == nil {
		done(0, ErrNoConnection)
		return
	}
	go func() {
		done(c.WriteMessage(data))
	}()
}

// Interrupt 中断当前连接上阻塞的写出
func (h *streamHooks) Interrupt() {
	ref := h.live.Load()
	if ref == nil {
		return
	}
	if in, ok := ref.c.(Interrupter); ok {
		in.Interrupt()
	}
}

// HandleDisconnect 需要时通知对端后再关闭
func (h *streamHooks) HandleDisconnect(err error, chain *evqueue.Token) {
	gc, ok := h.conn.(GracefulCloser)
	if !ok {
		return
	}
	tok := chain.Clone()
	go func() {
		defer tok.Release()
		gc.Shutdown(err)
	}()
}

// CloseTransport 关闭连接
func (h *streamHooks) CloseTransport() error {
	c := h.conn
	if c == nil {
		return nil
	}
	h.setConn(nil)
	return c.Close()
}
