package endpoint

import (
	"time"

	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

// reconnectPolicy 客户端重连策略，跨连接周期保留
type reconnectPolicy struct {
	enable bool
	delay  time.Duration
	timer  *iopool.Timer
}

// SetReconnect 设置自动重连
//
// 仅对客户端生效。关闭时取消等待中的重连。
func (e *Endpoint) SetReconnect(enable bool, delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reconnect.enable = enable
	e.reconnect.delay = delay
	if !enable && e.reconnect.timer != nil {
		e.reconnect.timer.Stop()
		e.reconnect.timer = nil
	}
}

// Reconnect 返回当前重连策略
func (e *Endpoint) Reconnect() (bool, time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.reconnect.enable, e.reconnect.delay
}

// scheduleReconnect 停止后安排下一次启动尝试（strand 上）
func (e *Endpoint) scheduleReconnect() {
	if e.role != RoleClient {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.reconnect.enable || e.userStopped {
		return
	}
	if e.reconnect.timer != nil {
		e.reconnect.timer.Stop()
	}

	var t *iopool.Timer
	t = e.strand.AfterFunc(e.reconnect.delay, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.userStopped || e.reconnect.timer != t {
			return
		}
		e.reconnect.timer = nil
		if err := e.startLocked(nil); err != nil {
			logger.Debug("重连跳过", "endpoint", log.TruncateID(e.id, 8), "error", err)
		}
	})
	e.reconnect.timer = t
	logger.Debug("安排重连", "endpoint", log.TruncateID(e.id, 8), "delay", e.reconnect.delay)
}
