package endpoint

import (
	"sync/atomic"

	"github.com/dep2p/go-netkit/internal/core/evqueue"
)

// onceFlag 保证异步完成回调只生效一次
type onceFlag struct {
	v atomic.Bool
}

func (o *onceFlag) set() bool {
	return o.v.CompareAndSwap(false, true)
}

// ============================================================================
// 发送
// ============================================================================

// Send 异步发送一条消息
//
// 端点未启动时返回 ErrNotStarted。数据在返回前已被复制。
func (e *Endpoint) Send(data []byte) error {
	if e.state.Load() != StateStarted {
		return ErrNotStarted
	}
	e.AsyncSend(data, nil)
	return nil
}

// AsyncSend 异步发送并在完成时回调
//
// cb 总会被调用（strand 上）：写出成功时 err 为 nil；端点在该发送执行前已开始拆除，
// 或写出被拆除中断时 err 为 ErrCanceled；其余写出失败为传输错误，且端点随之断开。
func (e *Endpoint) AsyncSend(data []byte, cb func(n int, err error)) {
	buf := append([]byte(nil), data...)

	e.queue.Dispatch(func(g *evqueue.Guard) {
		if e.state.Load() != StateStarted {
			if cb != nil {
				cb(0, ErrCanceled)
			}
			g.Done()
			return
		}

		var once onceFlag
		e.hooks.DoSend(buf, func(n int, err error) {
			if !once.set() {
				return
			}
			e.postOrRun(func() {
				switch {
				case err != nil && e.state.Load() != StateStarted:
					err = ErrCanceled
				case err != nil:
					err = ClassifyError(err)
					e.disconnect(err)
				default:
					e.traffic(0, n)
					if fn := e.callbacks().Send; fn != nil {
						fn(buf)
					}
				}
				if cb != nil {
					cb(n, err)
				}
				g.Done()
			})
		})
	}, nil)
}
