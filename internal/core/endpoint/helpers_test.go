package endpoint

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/internal/core/evqueue"
	"github.com/dep2p/go-netkit/internal/core/iopool"
)

// tracer 记录事件顺序
type tracer struct {
	mu     sync.Mutex
	events []string
}

func (t *tracer) add(ev string) {
	t.mu.Lock()
	t.events = append(t.events, ev)
	t.mu.Unlock()
}

func (t *tracer) list() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.events...)
}

func (t *tracer) count(ev string) int {
	n := 0
	for _, e := range t.list() {
		if e == ev {
			n++
		}
	}
	return n
}

func (t *tracer) index(ev string) int {
	for i, e := range t.list() {
		if e == ev {
			return i
		}
	}
	return -1
}

// fakeHooks 内存传输
type fakeHooks struct {
	tr *tracer

	mu         sync.Mutex
	connectErr error
	// connectGate 非 nil 时连接在 gate 关闭或 ctx 取消后完成
	connectGate chan struct{}
	sendGate    chan struct{}
	sendErr     error
	sent        [][]byte
	// writing 非 nil 时写出 goroutine 在等待 sendGate 前报告数据
	writing chan string
	// interrupted 关闭时阻塞的写出以错误返回
	interrupted chan struct{}
	// holdChain 为 true 时 HandleDisconnect 保留拆除链，直到 releaseChain
	holdChain bool
	held      *evqueue.Token
}

func (h *fakeHooks) DoInit() error {
	h.tr.add("init")
	return nil
}

func (h *fakeHooks) DoConnect(ctx context.Context, done func(error)) {
	h.mu.Lock()
	gate, err := h.connectGate, h.connectErr
	h.mu.Unlock()

	if gate == nil {
		done(err)
		return
	}
	go func() {
		select {
		case <-gate:
			done(err)
		case <-ctx.Done():
			done(ctx.Err())
		}
	}()
}

func (h *fakeHooks) PostRecv() {
	h.tr.add("post-recv")
}

func (h *fakeHooks) DoSend(data []byte, done func(int, error)) {
	h.mu.Lock()
	gate, err, writing, interrupted := h.sendGate, h.sendErr, h.writing, h.interrupted
	h.mu.Unlock()

	go func() {
		if writing != nil {
			writing <- string(data)
		}
		if gate != nil {
			select {
			case <-gate:
			case <-interrupted:
				h.tr.add("interrupted:" + string(data))
				done(0, errors.New("write deadline exceeded"))
				return
			}
		}
		h.mu.Lock()
		h.sent = append(h.sent, data)
		h.mu.Unlock()
		h.tr.add("write:" + string(data))
		done(len(data), err)
	}()
}

func (h *fakeHooks) HandleDisconnect(err error, chain *evqueue.Token) {
	h.tr.add("handle-disconnect")
	h.mu.Lock()
	if h.holdChain {
		h.held = chain.Clone()
	}
	h.mu.Unlock()
}

func (h *fakeHooks) releaseChain() {
	h.mu.Lock()
	tok := h.held
	h.held = nil
	h.mu.Unlock()
	tok.Release()
}

// interruptibleHooks 支持 Interrupt 的 fakeHooks
type interruptibleHooks struct {
	*fakeHooks
	once sync.Once
}

func (h *interruptibleHooks) Interrupt() {
	h.once.Do(func() {
		h.tr.add("interrupt")
		close(h.interrupted)
	})
}

func (h *fakeHooks) CloseTransport() error {
	h.tr.add("close")
	return nil
}

// stateRecorder 记录状态迁移
type stateRecorder struct {
	mu    sync.Mutex
	trans []string
	bytes int
}

func (r *stateRecorder) OnStateChange(_ *Endpoint, from, to State) {
	r.mu.Lock()
	r.trans = append(r.trans, from.String()+"->"+to.String())
	r.mu.Unlock()
}

func (r *stateRecorder) OnTraffic(_ *Endpoint, in, out int) {
	r.mu.Lock()
	r.bytes += in + out
	r.mu.Unlock()
}

func (r *stateRecorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.trans...)
}

type fixture struct {
	ep    *Endpoint
	hooks *fakeHooks
	tr    *tracer
	rec   *stateRecorder
	clock clock.Clock
}

func newFixture(t *testing.T, clk clock.Clock, mutate func(*Options)) *fixture {
	t.Helper()

	pool := iopool.New(1, clk)
	require.NoError(t, pool.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})

	tr := &tracer{}
	rec := &stateRecorder{}
	hooks := &fakeHooks{tr: tr}
	opts := Options{Role: RoleClient, Protocol: "fake", Observers: []Observer{rec}}
	if mutate != nil {
		mutate(&opts)
	}
	ep := New(pool.Next(), hooks, opts)

	ep.BindInit(func() { tr.add("cb:init") })
	ep.BindConnect(func() { tr.add("cb:connect") })
	ep.BindDisconnect(func(error) { tr.add("cb:disconnect") })
	ep.BindStop(func(error) { tr.add("cb:stop") })
	ep.BindSend(func(data []byte) { tr.add("cb:send:" + string(data)) })

	return &fixture{ep: ep, hooks: hooks, tr: tr, rec: rec, clock: pool.Clock()}
}

// sync 等待 strand 处理完当前已投递的任务
func (f *fixture) sync(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, f.ep.Strand().Invoke(ctx, func() {}))
}

func (f *fixture) waitStopped(t *testing.T) {
	t.Helper()
	require.Eventually(t, f.ep.IsStopped, 2*time.Second, 2*time.Millisecond)
	f.sync(t)
}

func startCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	return ctx
}
