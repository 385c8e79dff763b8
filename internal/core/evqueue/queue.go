package evqueue

import (
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"

	"github.com/dep2p/go-netkit/internal/core/iopool"
)

// ============================================================================
// Queue 事件队列
// ============================================================================

type entry struct {
	fn    func(*Guard)
	chain *Token
}

// Queue 端点事件队列
type Queue struct {
	strand *iopool.Strand

	mu      sync.Mutex
	pending *queue.Queue
	busy    bool
}

// New 创建绑定到 strand 的事件队列
func New(s *iopool.Strand) *Queue {
	return &Queue{
		strand:  s,
		pending: queue.New(),
	}
}

// Strand 返回队列所在的 strand
func (q *Queue) Strand() *iopool.Strand {
	return q.strand
}

// Dispatch 追加任务
//
// chain 的所有权转移给队列：任务的 Guard 完成时释放。可在任意 goroutine 调用。
func (q *Queue) Dispatch(fn func(*Guard), chain *Token) {
	q.mu.Lock()
	q.pending.Add(&entry{fn: fn, chain: chain})
	if q.busy {
		q.mu.Unlock()
		return
	}
	q.busy = true
	q.mu.Unlock()

	q.schedule()
}

// Len 返回排队中（不含正在执行）的任务数
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Length()
}

// Idle 报告队列是否没有正在执行或排队的任务
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.busy
}

func (q *Queue) schedule() {
	if q.strand.Post(q.runNext) {
		return
	}
	// strand 已关闭：丢弃剩余任务，但仍释放它们的链引用
	q.mu.Lock()
	var dropped []*entry
	for q.pending.Length() > 0 {
		dropped = append(dropped, q.pending.Remove().(*entry))
	}
	q.busy = false
	q.mu.Unlock()
	for _, e := range dropped {
		e.chain.Release()
	}
}

func (q *Queue) runNext() {
	q.mu.Lock()
	if q.pending.Length() == 0 {
		q.busy = false
		q.mu.Unlock()
		return
	}
	e := q.pending.Remove().(*entry)
	q.mu.Unlock()

	e.fn(&Guard{q: q, chain: e.chain})
}

// complete 当前任务完成，调度下一个
func (q *Queue) complete() {
	q.mu.Lock()
	if q.pending.Length() == 0 {
		q.busy = false
		q.mu.Unlock()
		return
	}
	q.mu.Unlock()
	q.schedule()
}

// ============================================================================
// Guard
// ============================================================================

// Guard 队列执行权
//
// 持有 Guard 期间同一队列的后续任务不会开始。Done 可在任意 goroutine 调用，只生效一次。
type Guard struct {
	q     *Queue
	chain *Token
	done  atomic.Bool
}

// Chain 返回任务携带的链引用（可能为 nil）
func (g *Guard) Chain() *Token {
	return g.chain
}

// Done 释放执行权与链引用
func (g *Guard) Done() {
	if !g.done.CompareAndSwap(false, true) {
		return
	}
	g.chain.Release()
	g.q.complete()
}

// Released 报告 Guard 是否已释放
func (g *Guard) Released() bool {
	return g.done.Load()
}
