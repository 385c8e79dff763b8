package netkit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/multierr"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/transport"
	"github.com/dep2p/go-netkit/pkg/interfaces"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("netkit")

// ════════════════════════════════════════════════════════════════════════════
//                              运行时状态
// ════════════════════════════════════════════════════════════════════════════

// RuntimeState 运行时状态
type RuntimeState int

const (
	// RuntimeIdle 已创建，未启动
	RuntimeIdle RuntimeState = iota

	// RuntimeRunning 运行中
	RuntimeRunning

	// RuntimeClosed 已关闭，不可重新启动
	RuntimeClosed
)

// String 返回状态的字符串表示
func (s RuntimeState) String() string {
	switch s {
	case RuntimeIdle:
		return "idle"
	case RuntimeRunning:
		return "running"
	case RuntimeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// startTimeout Fx 启动超时
const startTimeout = 30 * time.Second

// ════════════════════════════════════════════════════════════════════════════
//                              Runtime
// ════════════════════════════════════════════════════════════════════════════

// lifecycle 运行时跟踪的端点
type lifecycle interface {
	ID() string
	Stop()
	WaitStopped(ctx context.Context) error
}

// Runtime netkit 运行时
//
// 持有执行池、事件总线与指标收集器，并创建各协议端点。
// 运行时停止时会停止所有由它创建的端点。
type Runtime struct {
	cfg      *config.Config
	app      *fx.App
	registry *prometheus.Registry

	// 由 Fx 注入
	opts      transport.Options
	bus       *eventbus.Bus
	collector *metrics.Collector

	mu        sync.Mutex
	state     RuntimeState
	endpoints map[string]lifecycle
}

var (
	_ interfaces.EventSource       = (*Runtime)(nil)
	_ interfaces.BandwidthReporter = (*Runtime)(nil)
)

// New 创建运行时
//
// cfg 为 nil 时使用默认配置。extra 附加到 Fx 应用，可用于注入 clock.Clock
// 或额外的 endpoint.Observer（组 netkit.observers）。
func New(cfg *config.Config, extra ...fx.Option) (*Runtime, error) {
	if cfg == nil {
		cfg = config.NewConfig()
	}
	rt := &Runtime{
		cfg:       cfg,
		registry:  prometheus.NewRegistry(),
		endpoints: make(map[string]lifecycle),
	}

	app, err := buildFxApp(cfg, rt, extra)
	if err != nil {
		return nil, err
	}
	rt.app = app
	return rt, nil
}

// Start 启动运行时
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case RuntimeRunning:
		return ErrAlreadyStarted
	case RuntimeClosed:
		return ErrRuntimeClosed
	}

	startCtx, cancel := context.WithTimeout(ctx, startTimeout)
	defer cancel()
	if err := r.app.Start(startCtx); err != nil {
		logger.Error("运行时启动失败", "error", err)
		return fmt.Errorf("start fx app: %w", err)
	}

	r.state = RuntimeRunning
	logger.Info("运行时已启动", "version", Version, "pool", r.opts.Pool.Size())
	return nil
}

// Stop 停止所有端点并关闭运行时
//
// 先请求所有端点停止，再等待它们完全停止，最后停止执行池与事件总线。
// 各阶段的错误合并返回。
func (r *Runtime) Stop(ctx context.Context) error {
	r.mu.Lock()
	if r.state != RuntimeRunning {
		state := r.state
		r.state = RuntimeClosed
		r.mu.Unlock()
		if state == RuntimeClosed {
			return nil
		}
		return ErrNotStarted
	}
	r.state = RuntimeClosed
	eps := make([]lifecycle, 0, len(r.endpoints))
	for _, ep := range r.endpoints {
		eps = append(eps, ep)
	}
	r.endpoints = make(map[string]lifecycle)
	r.mu.Unlock()

	logger.Info("正在停止运行时", "endpoints", len(eps))

	for _, ep := range eps {
		ep.Stop()
	}
	var errs error
	for _, ep := range eps {
		if err := ep.WaitStopped(ctx); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("wait endpoint %s: %w", ep.ID(), err))
		}
	}
	if err := r.app.Stop(ctx); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("stop fx app: %w", err))
	}

	if errs != nil {
		logger.Warn("运行时停止时出错", "error", errs)
	} else {
		logger.Info("运行时已停止")
	}
	return errs
}

// State 返回运行时状态
func (r *Runtime) State() RuntimeState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Config 返回配置
func (r *Runtime) Config() *config.Config { return r.cfg }

// Registry 返回 Prometheus 注册表，可交给 promhttp.HandlerFor 暴露
func (r *Runtime) Registry() *prometheus.Registry { return r.registry }

// Subscribe 订阅端点事件，如 new(EvtStateChanged)
func (r *Runtime) Subscribe(eventType any, bufSize int) (interfaces.Subscription, error) {
	sub, err := r.bus.Subscribe(eventType, eventbus.BufSize(bufSize))
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// Bandwidth 返回协议的带宽统计，指标关闭时返回零值
func (r *Runtime) Bandwidth(protocol string) interfaces.BandwidthStats {
	if r.collector == nil {
		return interfaces.BandwidthStats{}
	}
	s := r.collector.Stats(protocol)
	return interfaces.BandwidthStats{
		TotalIn:  s.TotalIn,
		TotalOut: s.TotalOut,
		RateIn:   s.RateIn,
		RateOut:  s.RateOut,
	}
}

// Endpoints 返回由运行时创建且尚未释放的端点数
func (r *Runtime) Endpoints() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.endpoints)
}

// Release 停止跟踪端点，运行时停止时不再停止它
func (r *Runtime) Release(id string) {
	r.mu.Lock()
	delete(r.endpoints, id)
	r.mu.Unlock()
}

// track 登记端点，运行时未运行时返回错误
func (r *Runtime) track(ep lifecycle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case RuntimeIdle:
		return ErrNotStarted
	case RuntimeClosed:
		return ErrRuntimeClosed
	}
	r.endpoints[ep.ID()] = ep
	return nil
}

// options 返回端点构造参数，运行时未运行时返回错误
func (r *Runtime) options() (transport.Options, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch r.state {
	case RuntimeIdle:
		return transport.Options{}, ErrNotStarted
	case RuntimeClosed:
		return transport.Options{}, ErrRuntimeClosed
	}
	return r.opts, nil
}
