package metrics

import (
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// Stats 某个协议的带宽统计
type Stats struct {
	TotalIn  int64
	TotalOut int64
	RateIn   float64
	RateOut  float64
}

// protocolMeters 一个协议的速率计算器
type protocolMeters struct {
	in  *RateMeter
	out *RateMeter
}

// ============================================================================
// Collector
// ============================================================================

// Collector 端点指标收集器
type Collector struct {
	clk clock.Clock

	transitions *prometheus.CounterVec
	active      *prometheus.GaugeVec
	bytes       *prometheus.CounterVec
	failures    *prometheus.CounterVec

	mu     sync.RWMutex
	meters map[string]*protocolMeters
}

var (
	_ endpoint.Observer    = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

// NewCollector 创建收集器，clk 为 nil 时使用真实时钟
func NewCollector(namespace string, clk clock.Clock) *Collector {
	if clk == nil {
		clk = clock.New()
	}
	return &Collector{
		clk: clk,
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_transitions_total",
			Help:      "Endpoint state transitions by role, protocol and target state.",
		}, []string{"role", "protocol", "state"}),
		active: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "endpoints_active",
			Help:      "Endpoints currently in the started state.",
		}, []string{"role", "protocol"}),
		bytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Payload bytes by protocol and direction.",
		}, []string{"protocol", "direction"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_failures_total",
			Help:      "Start attempts that stopped before reaching started.",
		}, []string{"role", "protocol"}),
		meters: make(map[string]*protocolMeters),
	}
}

// MustRegister 注册到 Prometheus 注册表
func (c *Collector) MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(c)
}

// Describe 实现 prometheus.Collector
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.transitions.Describe(ch)
	c.active.Describe(ch)
	c.bytes.Describe(ch)
	c.failures.Describe(ch)
}

// Collect 实现 prometheus.Collector
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.transitions.Collect(ch)
	c.active.Collect(ch)
	c.bytes.Collect(ch)
	c.failures.Collect(ch)
}

// OnStateChange 实现 endpoint.Observer
func (c *Collector) OnStateChange(e *endpoint.Endpoint, from, to endpoint.State) {
	role, proto := e.Role().String(), e.Protocol()
	c.transitions.WithLabelValues(role, proto, to.String()).Inc()

	switch {
	case to == endpoint.StateStarted:
		c.active.WithLabelValues(role, proto).Inc()
	case from == endpoint.StateStarted:
		c.active.WithLabelValues(role, proto).Dec()
	case from == endpoint.StateStarting && to == endpoint.StateStopping:
		c.failures.WithLabelValues(role, proto).Inc()
	}
}

// OnTraffic 实现 endpoint.Observer
func (c *Collector) OnTraffic(e *endpoint.Endpoint, in, out int) {
	proto := e.Protocol()
	m := c.meter(proto)
	if in > 0 {
		c.bytes.WithLabelValues(proto, "in").Add(float64(in))
		m.in.Add(int64(in))
	}
	if out > 0 {
		c.bytes.WithLabelValues(proto, "out").Add(float64(out))
		m.out.Add(int64(out))
	}
}

func (c *Collector) meter(proto string) *protocolMeters {
	c.mu.RLock()
	m, ok := c.meters[proto]
	c.mu.RUnlock()
	if ok {
		return m
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if m, ok = c.meters[proto]; !ok {
		m = &protocolMeters{in: NewRateMeter(c.clk), out: NewRateMeter(c.clk)}
		c.meters[proto] = m
	}
	return m
}

// Stats 返回协议的带宽统计
func (c *Collector) Stats(protocol string) Stats {
	c.mu.RLock()
	m, ok := c.meters[protocol]
	c.mu.RUnlock()
	if !ok {
		return Stats{}
	}
	return Stats{
		TotalIn:  m.in.Total(),
		TotalOut: m.out.Total(),
		RateIn:   m.in.Rate(),
		RateOut:  m.out.Rate(),
	}
}

// Protocols 返回有流量记录的协议
func (c *Collector) Protocols() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.meters))
	for p := range c.meters {
		out = append(out, p)
	}
	return out
}
