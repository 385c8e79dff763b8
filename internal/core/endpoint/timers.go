package endpoint

import (
	"time"

	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

// ============================================================================
// 用户定时器
// ============================================================================

type userTimer struct {
	t *iopool.Timer
}

// StartTimer 启动周期定时器，同 id 的旧定时器被替换
//
// id 必须可比较。仅在 starting/started 期间有效，拆除时全部取消。
func (e *Endpoint) StartTimer(id any, interval time.Duration, fn func()) {
	e.strand.Post(func() {
		st := e.state.Load()
		if st != StateStarting && st != StateStarted {
			return
		}
		e.stopTimer(id)
		ut := &userTimer{}
		e.timers[id] = ut
		e.armUserTimer(id, ut, interval, fn)
	})
}

func (e *Endpoint) armUserTimer(id any, ut *userTimer, interval time.Duration, fn func()) {
	ut.t = e.strand.AfterFunc(interval, func() {
		if e.timers[id] != ut {
			return
		}
		fn()
		if e.timers[id] == ut {
			e.armUserTimer(id, ut, interval, fn)
		}
	})
}

// StopTimer 停止指定定时器
func (e *Endpoint) StopTimer(id any) {
	e.strand.Post(func() { e.stopTimer(id) })
}

// StopAllTimers 停止全部用户定时器
func (e *Endpoint) StopAllTimers() {
	e.strand.Post(e.stopAllTimers)
}

func (e *Endpoint) stopTimer(id any) {
	if ut, ok := e.timers[id]; ok {
		ut.t.Stop()
		delete(e.timers, id)
	}
}

func (e *Endpoint) stopAllTimers() {
	for id, ut := range e.timers {
		ut.t.Stop()
		delete(e.timers, id)
	}
}

// PostDelayed 在 d 之后于 strand 上执行 fn
//
// 端点拆除时未执行的延迟任务被取消。
func (e *Endpoint) PostDelayed(d time.Duration, fn func()) {
	e.strand.Post(func() {
		st := e.state.Load()
		if st != StateStarting && st != StateStarted {
			return
		}
		e.delayID++
		id := e.delayID
		e.delayed[id] = e.strand.AfterFunc(d, func() {
			delete(e.delayed, id)
			fn()
		})
	})
}

func (e *Endpoint) cancelDelayed() {
	for id, t := range e.delayed {
		t.Stop()
		delete(e.delayed, id)
	}
}

// ============================================================================
// 静默超时
// ============================================================================

type silenceTimer struct {
	timeout time.Duration
	last    time.Time
	t       *iopool.Timer
}

func (s *silenceTimer) stop() {
	s.t.Stop()
	s.t = nil
}

// SetSilenceTimeout 设置静默超时（0 = 关闭），从下一个连接周期生效
func (e *Endpoint) SetSilenceTimeout(d time.Duration) {
	e.strand.Post(func() { e.silence.timeout = d })
}

// armSilence 连接建立时启动静默计时（strand 上）
func (e *Endpoint) armSilence() {
	if e.silence.timeout <= 0 {
		return
	}
	e.silence.last = e.strand.Now()
	e.scheduleSilence(e.silence.timeout)
}

func (e *Endpoint) scheduleSilence(d time.Duration) {
	e.silence.t = e.strand.AfterFunc(d, func() {
		if e.state.Load() != StateStarted {
			return
		}
		idle := e.strand.Now().Sub(e.silence.last)
		if idle >= e.silence.timeout {
			logger.Debug("静默超时", "endpoint", log.TruncateID(e.id, 8), "idle", idle)
			e.disconnect(ErrTimeout)
			return
		}
		e.scheduleSilence(e.silence.timeout - idle)
	})
}
