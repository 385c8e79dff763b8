package iopool

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/eapache/queue"

	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/iopool")

// ============================================================================
// Strand
// ============================================================================

// Strand 串行执行上下文
//
// 任务队列是无界 FIFO，投递永不阻塞调用方。
type Strand struct {
	id  int
	clk clock.Clock

	mu     sync.Mutex
	tasks  *queue.Queue
	closed bool

	wake chan struct{}
	done chan struct{}

	started atomic.Bool
}

func newStrand(id int, clk clock.Clock) *Strand {
	return &Strand{
		id:    id,
		clk:   clk,
		tasks: queue.New(),
		wake:  make(chan struct{}, 1),
		done:  make(chan struct{}),
	}
}

// ID 返回 strand 在池中的序号
func (s *Strand) ID() int {
	return s.id
}

// Clock 返回 strand 使用的时钟
func (s *Strand) Clock() clock.Clock {
	return s.clk
}

// Now 返回 strand 时钟的当前时间
func (s *Strand) Now() time.Time {
	return s.clk.Now()
}

// Post 投递任务到 strand
//
// strand 已关闭时返回 false，任务被丢弃。
func (s *Strand) Post(fn func()) bool {
	if fn == nil {
		return false
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.tasks.Add(fn)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

// Invoke 在 strand 上执行 fn 并等待其返回
//
// 不能在 strand 自身的回调中调用，否则会死锁。
func (s *Strand) Invoke(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !s.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStrandClosed
	}

	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// start 启动 strand 的执行 goroutine
func (s *Strand) start() {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	go s.loop()
}

// close 关闭 strand：拒绝新任务，已排队的任务执行完后 goroutine 退出
func (s *Strand) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}

	// 从未启动的 strand 直接标记完成
	if s.started.CompareAndSwap(false, true) {
		close(s.done)
	}
}

// Done 返回 strand goroutine 退出时关闭的通道
func (s *Strand) Done() <-chan struct{} {
	return s.done
}

func (s *Strand) loop() {
	defer close(s.done)

	for {
		fn, closed := s.pop()
		if fn == nil {
			if closed {
				return
			}
			<-s.wake
			continue
		}

		fn()
	}
}

// pop 取出队首任务
func (s *Strand) pop() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks.Length() == 0 {
		return nil, s.closed
	}
	return s.tasks.Remove().(func()), s.closed
}

// Pending 返回排队中的任务数
func (s *Strand) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Length()
}
