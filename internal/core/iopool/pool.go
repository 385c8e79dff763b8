package iopool

import (
	"context"
	"runtime"
	"sync/atomic"

	"github.com/benbjohnson/clock"
	"golang.org/x/sync/errgroup"
)

// ============================================================================
// Pool
// ============================================================================

// Pool 串行执行上下文池
type Pool struct {
	clk     clock.Clock
	strands []*Strand
	next    atomic.Uint64

	started atomic.Bool
	stopped atomic.Bool
}

// New 创建执行池
//
// size <= 0 时使用 runtime.NumCPU()；clk 为 nil 时使用真实时钟。
func New(size int, clk clock.Clock) *Pool {
	if size <= 0 {
		size = runtime.NumCPU()
	}
	if clk == nil {
		clk = clock.New()
	}

	p := &Pool{
		clk:     clk,
		strands: make([]*Strand, size),
	}
	for i := range p.strands {
		p.strands[i] = newStrand(i, clk)
	}
	return p
}

// Start 启动所有 strand
func (p *Pool) Start() error {
	if p.stopped.Load() {
		return ErrPoolStopped
	}
	if !p.started.CompareAndSwap(false, true) {
		return nil
	}
	for _, s := range p.strands {
		s.start()
	}
	logger.Debug("执行池已启动", "size", len(p.strands))
	return nil
}

// Stop 关闭所有 strand 并等待已排队的任务执行完毕
//
// 端点应在此之前停止，否则其后续投递会被丢弃。
func (p *Pool) Stop(ctx context.Context) error {
	if !p.stopped.CompareAndSwap(false, true) {
		return nil
	}

	g, ctx := errgroup.WithContext(ctx)
	for _, s := range p.strands {
		s := s
		s.close()
		g.Go(func() error {
			select {
			case <-s.Done():
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	}
	err := g.Wait()
	logger.Debug("执行池已停止", "error", err)
	return err
}

// Next 按轮询返回下一个 strand
func (p *Pool) Next() *Strand {
	n := p.next.Add(1) - 1
	return p.strands[n%uint64(len(p.strands))]
}

// Strand 返回指定序号的 strand
func (p *Pool) Strand(i int) *Strand {
	return p.strands[i%len(p.strands)]
}

// Size 返回 strand 数量
func (p *Pool) Size() int {
	return len(p.strands)
}

// Clock 返回池使用的时钟
func (p *Pool) Clock() clock.Clock {
	return p.clk
}

// IsRunning 报告池是否处于运行状态
func (p *Pool) IsRunning() bool {
	return p.started.Load() && !p.stopped.Load()
}
