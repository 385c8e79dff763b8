package eventbus

import (
	"reflect"
	"sync"
	"sync/atomic"
)

// ============================================================================
// Subscription
// ============================================================================

// Subscription 一个订阅
type Subscription struct {
	bus *Bus
	typ reflect.Type

	mu     sync.Mutex
	out    chan any
	closed bool
}

// Out 返回事件通道，Close 后关闭
func (s *Subscription) Out() <-chan any {
	return s.out
}

// deliver 非阻塞投递，缓冲区满或已关闭时返回 false
func (s *Subscription) deliver(event any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return true
	}
	select {
	case s.out <- event:
		return true
	default:
		return false
	}
}

// Close 取消订阅，可重复调用
func (s *Subscription) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.out)
	s.mu.Unlock()

	s.bus.removeSub(s)
	return nil
}

// ============================================================================
// Emitter
// ============================================================================

// Emitter 事件发射器
type Emitter struct {
	bus    *Bus
	node   *node
	typ    reflect.Type
	closed atomic.Bool
}

// Emit 发射事件，不阻塞
func (e *Emitter) Emit(event any) error {
	if e.closed.Load() {
		return ErrEmitterClosed
	}
	e.node.emit(event)
	return nil
}

// Close 关闭发射器
func (e *Emitter) Close() error {
	if !e.closed.CompareAndSwap(false, true) {
		return nil
	}
	if e.node.emitters.Add(-1) == 0 {
		e.bus.tryDropNode(e.typ)
	}
	return nil
}
