package endpoint

import (
	"context"
	"errors"

	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

// ============================================================================
// 启动
// ============================================================================

// AsyncStart 异步启动
//
// 端点不处于 stopped 时同步返回 ErrAlreadyStarted，不触发任何回调。
// done 在连接建立后以 nil 调用；连接失败时在拆除完成（回到 stopped）后以错误调用。
func (e *Endpoint) AsyncStart(done func(error)) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.startLocked(done); err != nil {
		return err
	}
	e.userStopped = false
	return nil
}

// Start 启动并等待连接结果
//
// 不能在端点回调中调用。ctx 取消时端点被停止并返回 ctx 的错误。
func (e *Endpoint) Start(ctx context.Context) error {
	result := make(chan error, 1)
	if err := e.AsyncStart(func(err error) { result <- err }); err != nil {
		return err
	}

	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		e.Stop()
		return ctx.Err()
	}
}

// startLocked 执行 stopped → starting 并派发连接任务，调用方持有 e.mu
func (e *Endpoint) startLocked(done func(error)) error {
	if e.hooks == nil {
		panic("endpoint: hooks not set")
	}
	if _, err := e.state.Transition(StateStopped, StateStarting); err != nil {
		return ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(context.Background())
	if e.connectTimeout > 0 {
		ctx, cancel = e.strand.Clock().WithTimeout(context.Background(), e.connectTimeout)
	}
	e.connectCancel = cancel
	e.pendingStart = done
	e.startPending = true
	e.startErr = nil
	e.stopped = make(chan struct{})

	e.queue.Dispatch(func(g *evqueue.Guard) {
		if fn := e.callbacks().Init; fn != nil {
			fn()
		}
		if e.state.Load() != StateStarting {
			// 启动任务执行前已被停止
			g.Done()
			return
		}
		if err := e.hooks.DoInit(); err != nil {
			e.doneConnect(err)
			g.Done()
			return
		}

		var once onceFlag
		e.hooks.DoConnect(ctx, func(err error) {
			if !once.set() {
				return
			}
			if errors.Is(err, context.DeadlineExceeded) {
				err = ErrTimeout
			}
			e.postOrRun(func() {
				e.doneConnect(ClassifyError(err))
				g.Done()
			})
		})
	}, nil)
	return nil
}

// doneConnect 连接结果处理（strand 上）
func (e *Endpoint) doneConnect(err error) {
	e.mu.Lock()
	cancel := e.connectCancel
	e.connectCancel = nil
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if err != nil {
		logger.Debug("连接失败", "endpoint", log.TruncateID(e.id, 8), "error", err)
		e.setStartError(err)
		e.disconnect(err)
		return
	}

	if _, terr := e.state.Transition(StateStarting, StateStarted); terr != nil {
		// 连接完成前已开始拆除
		e.setStartError(ErrStopped)
		return
	}

	if fn := e.callbacks().Connect; fn != nil {
		fn()
	}
	e.hooks.PostRecv()
	e.armSilence()

	e.mu.Lock()
	done := e.pendingStart
	e.pendingStart, e.startPending = nil, false
	e.mu.Unlock()
	if fn := e.callbacks().Start; fn != nil {
		fn(nil)
	}
	if done != nil {
		done(nil)
	}
}

// setStartError 记录启动失败原因，拆除完成后报告给启动方
//
// 只保留第一次记录的原因。
func (e *Endpoint) setStartError(err error) {
	e.mu.Lock()
	if e.startErr == nil {
		e.startErr = err
	}
	e.mu.Unlock()
}

// ============================================================================
// 停止
// ============================================================================

// Stop 停止端点
//
// 非阻塞且幂等：只发起拆除，完成通过 Disconnect/Stop 回调观察。
// 用户停止会取消等待中的重连，并阻止本次拆除后的自动重连。
func (e *Endpoint) Stop() {
	e.mu.Lock()
	e.userStopped = true
	if e.reconnect.timer != nil {
		e.reconnect.timer.Stop()
		e.reconnect.timer = nil
	}
	e.mu.Unlock()

	e.disconnect(nil)
}

// Disconnect 以 err 为原因断开
//
// 端点不处于 starting/started 时静默忽略。可在任意 goroutine 调用。
func (e *Endpoint) Disconnect(err error) {
	e.disconnect(err)
}

func (e *Endpoint) disconnect(err error) {
	var prev State
	for {
		prev = e.state.Load()
		if prev != StateStarted && prev != StateStarting {
			return
		}
		if _, terr := e.state.Transition(prev, StateStopping); terr == nil {
			break
		}
	}

	if prev == StateStarting {
		e.mu.Lock()
		cancel := e.connectCancel
		e.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		if err == nil {
			e.setStartError(ErrStopped)
		} else {
			e.setStartError(err)
		}
	}

	// 拆除排在进行中的发送之后，先让阻塞的写出返回
	if in, ok := e.hooks.(Interrupter); ok {
		in.Interrupt()
	}

	e.queue.Dispatch(func(g *evqueue.Guard) {
		e.teardown(prev, err, g)
	}, nil)
}

// teardown 拆除（strand 上），g 在最后一个环节释放
func (e *Endpoint) teardown(prev State, err error, g *evqueue.Guard) {
	e.stopAllTimers()
	e.cancelDelayed()
	e.silence.stop()

	chain := evqueue.NewDefer(e.strand)
	chain.Then(func() {
		if cerr := e.hooks.CloseTransport(); cerr != nil {
			logger.Debug("关闭传输失败", "endpoint", log.TruncateID(e.id, 8), "error", cerr)
		}
		e.state.mustTransition(StateStopping, StateStopped)
		e.finish(err)
		g.Done()
	})
	tok := chain.MustHold()

	if prev == StateStarted {
		if fn := e.callbacks().Disconnect; fn != nil {
			fn(err)
		}
	}

	// tok 只借给钩子，需要推迟关闭的钩子自行 Clone
	e.hooks.HandleDisconnect(err, tok)

	if e.owner != nil {
		etok := tok.Clone()
		e.owner.Erase(e.key, func(bool) { etok.Release() })
	}

	tok.Release()
}

// finish 完全停止后的后续环节（strand 上）
func (e *Endpoint) finish(err error) {
	e.mu.Lock()
	done := e.pendingStart
	pending := e.startPending
	startErr := e.startErr
	e.pendingStart, e.startPending, e.startErr = nil, false, nil
	stopped := e.stopped
	e.mu.Unlock()

	if fn := e.callbacks().Stop; fn != nil {
		fn(err)
	}

	if pending {
		if startErr == nil {
			startErr = err
		}
		if startErr == nil {
			startErr = ErrStopped
		}
		if fn := e.callbacks().Start; fn != nil {
			fn(startErr)
		}
		if done != nil {
			done(startErr)
		}
	}

	// 回调执行完毕后才唤醒 WaitStopped
	if stopped != nil {
		e.mu.Lock()
		if e.stopped == stopped {
			e.stopped = nil
		}
		e.mu.Unlock()
		close(stopped)
	}

	if e.afterStop != nil {
		e.afterStop(err)
	}
	e.scheduleReconnect()
}

// WaitStopped 等待当前连接周期完全停止
//
// 端点未启动过或已停止时立即返回。
func (e *Endpoint) WaitStopped(ctx context.Context) error {
	e.mu.Lock()
	ch := e.stopped
	e.mu.Unlock()
	if ch == nil {
		return nil
	}

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// postOrRun 投递到 strand，strand 已关闭时直接执行
func (e *Endpoint) postOrRun(fn func()) {
	if !e.strand.Post(fn) {
		fn()
	}
}
