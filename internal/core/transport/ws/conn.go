package ws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
)

// 确保实现了接口
var (
	_ transport.Conn           = (*Conn)(nil)
	_ transport.Handshaker     = (*Conn)(nil)
	_ transport.GracefulCloser = (*Conn)(nil)
	_ transport.Interrupter    = (*Conn)(nil)
)

// maxCloseReason 关闭帧原因的字节上限（控制帧负载 125 字节减去 2 字节状态码）
const maxCloseReason = 123

// Conn WebSocket 连接
type Conn struct {
	ws    *websocket.Conn
	grace time.Duration

	writing     atomic.Int32
	interrupted atomic.Bool
}

func newConn(ws *websocket.Conn, grace time.Duration) *Conn {
	return &Conn{ws: ws, grace: grace}
}

// ReadMessage 读取一帧，对端正常关闭映射为 io.EOF
func (c *Conn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return nil, fmt.Errorf("%w: %w", io.EOF, err)
		}
		return nil, err
	}
	return data, nil
}

// WriteMessage 以二进制帧写出
func (c *Conn) WriteMessage(data []byte) (int, error) {
	c.writing.Add(1)
	defer c.writing.Add(-1)
	if c.interrupted.Load() {
		return 0, endpoint.ErrCanceled
	}
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return 0, err
	}
	return len(data), nil
}

// Interrupt 有写出阻塞时关闭底层连接
//
// gorilla 在每一帧前重设写超时，只能靠关闭连接打断；
// 此时关闭帧本就无法发出。没有写出时保留连接，关闭帧照常发送。
func (c *Conn) Interrupt() {
	c.interrupted.Store(true)
	if c.writing.Load() > 0 {
		_ = c.ws.UnderlyingConn().Close()
	}
}

// Handshake HTTP 升级已在建立连接时完成
func (c *Conn) Handshake(context.Context) error { return nil }

// Shutdown 发送关闭帧
func (c *Conn) Shutdown(reason error) {
	code, text := websocket.CloseNormalClosure, ""
	if reason != nil && !errors.Is(reason, endpoint.ErrPeerClosed) {
		code, text = websocket.CloseGoingAway, truncateReason(reason.Error(), maxCloseReason)
	}
	msg := websocket.FormatCloseMessage(code, text)
	if err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(c.grace)); err != nil {
		logger.Debug("发送关闭帧失败", "remote", c.ws.RemoteAddr(), "error", err)
	}
}

// Close 关闭底层连接
func (c *Conn) Close() error { return c.ws.Close() }

// LocalAddr 本地地址
func (c *Conn) LocalAddr() net.Addr { return c.ws.LocalAddr() }

// RemoteAddr 远端地址
func (c *Conn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

// Subprotocol 协商出的子协议
func (c *Conn) Subprotocol() string { return c.ws.Subprotocol() }

// truncateReason 按字节上限截断，不切开多字节字符
func truncateReason(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	s = s[:limit]
	for len(s) > 0 && !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
