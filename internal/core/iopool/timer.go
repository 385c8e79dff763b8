package iopool

import (
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer 绑定到 strand 的可取消定时器
//
// 到期后回调投递回 strand 执行；Stop 之后即使到期事件已入队，回调也不会运行。
type Timer struct {
	t        *clock.Timer
	canceled atomic.Bool
	fired    atomic.Bool
}

// AfterFunc 在 d 之后于 strand 上执行 fn
func (s *Strand) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{}
	tm.t = s.clk.AfterFunc(d, func() {
		s.Post(func() {
			if tm.canceled.Load() {
				return
			}
			tm.fired.Store(true)
			fn()
		})
	})
	return tm
}

// Stop 取消定时器
//
// 返回 true 表示本次调用阻止了回调执行。
func (t *Timer) Stop() bool {
	if t == nil {
		return false
	}
	if t.canceled.Swap(true) {
		return false
	}
	t.t.Stop()
	return !t.fired.Load()
}

// Fired 报告回调是否已经执行
func (t *Timer) Fired() bool {
	return t != nil && t.fired.Load()
}
