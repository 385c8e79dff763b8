package iopool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPool(t *testing.T, size int, clk clock.Clock) *Pool {
	t.Helper()
	p := New(size, clk)
	require.NoError(t, p.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = p.Stop(ctx)
	})
	return p
}

func TestStrand_FIFOAndNonOverlapping(t *testing.T) {
	p := newTestPool(t, 1, nil)
	s := p.Next()

	var (
		mu      sync.Mutex
		order   []int
		inside  atomic.Int32
		overlap atomic.Bool
	)
	var wg sync.WaitGroup
	const n = 200
	wg.Add(n)
	for i := 0; i < n; i++ {
		i := i
		require.True(t, s.Post(func() {
			defer wg.Done()
			if inside.Add(1) > 1 {
				overlap.Store(true)
			}
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			inside.Add(-1)
		}))
	}
	wg.Wait()

	assert.False(t, overlap.Load())
	require.Len(t, order, n)
	for i := range order {
		assert.Equal(t, i, order[i])
	}
}

func TestStrand_PostFromCallback(t *testing.T) {
	p := newTestPool(t, 1, nil)
	s := p.Next()

	done := make(chan []string, 1)
	var seq []string
	s.Post(func() {
		seq = append(seq, "outer")
		s.Post(func() {
			seq = append(seq, "nested")
			done <- seq
		})
		seq = append(seq, "outer-end")
	})

	select {
	case got := <-done:
		assert.Equal(t, []string{"outer", "outer-end", "nested"}, got)
	case <-time.After(2 * time.Second):
		t.Fatal("nested post not executed")
	}
}

func TestStrand_Invoke(t *testing.T) {
	p := newTestPool(t, 2, nil)
	var v int
	require.NoError(t, p.Strand(1).Invoke(context.Background(), func() { v = 42 }))
	assert.Equal(t, 42, v)
}

func TestStrand_PostAfterStop(t *testing.T) {
	p := New(1, nil)
	require.NoError(t, p.Start())

	ran := make(chan struct{})
	p.Next().Post(func() { close(ran) })
	require.NoError(t, p.Stop(context.Background()))

	// 停止前排队的任务已执行
	select {
	case <-ran:
	default:
		t.Fatal("queued task dropped on stop")
	}

	assert.False(t, p.Next().Post(func() {}))
	assert.ErrorIs(t, p.Next().Invoke(context.Background(), func() {}), ErrStrandClosed)
	assert.ErrorIs(t, p.Start(), ErrPoolStopped)
}

func TestTimer_FiresOnStrand(t *testing.T) {
	mock := clock.NewMock()
	p := newTestPool(t, 1, mock)
	s := p.Next()

	var fired atomic.Bool
	tm := s.AfterFunc(100*time.Millisecond, func() { fired.Store(true) })

	mock.Add(99 * time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.False(t, fired.Load())

	mock.Add(time.Millisecond)
	require.Eventually(t, fired.Load, time.Second, 5*time.Millisecond)
	assert.True(t, tm.Fired())
	assert.False(t, tm.Stop())
}

func TestTimer_StopPreventsCallback(t *testing.T) {
	mock := clock.NewMock()
	p := newTestPool(t, 1, mock)
	s := p.Next()

	var fired atomic.Bool
	tm := s.AfterFunc(50*time.Millisecond, func() { fired.Store(true) })
	assert.True(t, tm.Stop())
	assert.False(t, tm.Stop(), "second stop reports nothing prevented")

	mock.Add(time.Second)
	// 确保 strand 已处理完可能的到期事件
	require.NoError(t, s.Invoke(context.Background(), func() {}))
	assert.False(t, fired.Load())

	var nilTimer *Timer
	assert.False(t, nilTimer.Stop())
}

func TestPool_RoundRobin(t *testing.T) {
	p := New(3, nil)
	ids := []int{p.Next().ID(), p.Next().ID(), p.Next().ID(), p.Next().ID()}
	assert.Equal(t, []int{0, 1, 2, 0}, ids)
	assert.Equal(t, 3, p.Size())
	assert.False(t, p.IsRunning())
	require.NoError(t, p.Stop(context.Background()))
}
