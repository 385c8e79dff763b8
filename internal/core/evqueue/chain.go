package evqueue

import (
	"sync"
	"sync/atomic"

	"github.com/dep2p/go-netkit/internal/core/iopool"
)

// ============================================================================
// Defer 延迟完成链
// ============================================================================

// Defer 延迟完成链
type Defer struct {
	strand *iopool.Strand

	mu    sync.Mutex
	refs  int
	fns   []func()
	fired bool
}

// NewDefer 创建延迟链
//
// strand 为 nil 时后续回调在释放最后一个 Token 的 goroutine 上同步执行。
func NewDefer(s *iopool.Strand) *Defer {
	return &Defer{strand: s}
}

// Then 追加一个后续回调
//
// 链触发后追加的回调不会执行。
func (d *Defer) Then(fn func()) *Defer {
	if fn == nil {
		return d
	}
	d.mu.Lock()
	if !d.fired {
		d.fns = append(d.fns, fn)
	}
	d.mu.Unlock()
	return d
}

// Hold 获取一个引用 Token
func (d *Defer) Hold() (*Token, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.fired {
		return nil, ErrChainFired
	}
	d.refs++
	return &Token{d: d}, nil
}

// MustHold 获取 Token，链已触发时 panic
func (d *Defer) MustHold() *Token {
	tok, err := d.Hold()
	if err != nil {
		panic(err)
	}
	return tok
}

// Fired 报告链是否已触发
func (d *Defer) Fired() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fired
}

// Refs 返回未释放的 Token 数量
func (d *Defer) Refs() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.refs
}

func (d *Defer) release() {
	d.mu.Lock()
	d.refs--
	if d.refs < 0 {
		d.mu.Unlock()
		panic("evqueue: deferred chain released more times than held")
	}
	if d.refs > 0 {
		d.mu.Unlock()
		return
	}
	d.fired = true
	fns := d.fns
	d.fns = nil
	d.mu.Unlock()

	if len(fns) == 0 {
		return
	}
	run := func() {
		for _, fn := range fns {
			fn()
		}
	}
	if d.strand == nil || !d.strand.Post(run) {
		run()
	}
}

// ============================================================================
// Token
// ============================================================================

// Token 延迟链的引用
//
// 每个 Token 只能释放一次，重复释放被忽略。nil Token 代表空链。
type Token struct {
	d        *Defer
	released atomic.Bool
}

// Clone 为同一条链再获取一个引用
//
// 必须在自身释放之前调用。
func (t *Token) Clone() *Token {
	if t == nil {
		return nil
	}
	if t.released.Load() {
		panic("evqueue: clone of released token")
	}
	t.d.mu.Lock()
	t.d.refs++
	t.d.mu.Unlock()
	return &Token{d: t.d}
}

// Release 释放引用
func (t *Token) Release() {
	if t == nil || !t.released.CompareAndSwap(false, true) {
		return
	}
	t.d.release()
}

// Then 在 Token 所属的链上追加后续回调
func (t *Token) Then(fn func()) {
	if t == nil {
		return
	}
	t.d.Then(fn)
}

// Chain 返回 Token 所属的链
func (t *Token) Chain() *Defer {
	if t == nil {
		return nil
	}
	return t.d
}
