package eventbus

import (
	"time"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// ============================================================================
// 事件类型
// ============================================================================

// EvtStateChanged 端点状态迁移
type EvtStateChanged struct {
	EndpointID string
	Role       endpoint.Role
	Protocol   string
	Key        string
	From       endpoint.State
	To         endpoint.State
	At         time.Time
}

// EvtSessionClosed 服务端会话完全停止
//
// 会话停止后不会复用，订阅者可据此释放关联资源。
type EvtSessionClosed struct {
	EndpointID string
	Protocol   string
	Key        string
	BytesIn    uint64
	BytesOut   uint64
	At         time.Time
}

// ============================================================================
// Publisher
// ============================================================================

// Publisher 把端点状态迁移发布到总线
type Publisher struct {
	state  *Emitter
	closed *Emitter
}

var _ endpoint.Observer = (*Publisher)(nil)

// NewPublisher 创建发布者
func NewPublisher(bus *Bus) (*Publisher, error) {
	state, err := bus.Emitter(new(EvtStateChanged))
	if err != nil {
		return nil, err
	}
	closed, err := bus.Emitter(new(EvtSessionClosed))
	if err != nil {
		_ = state.Close()
		return nil, err
	}
	return &Publisher{state: state, closed: closed}, nil
}

// OnStateChange 实现 endpoint.Observer
func (p *Publisher) OnStateChange(e *endpoint.Endpoint, from, to endpoint.State) {
	now := e.Strand().Now()
	_ = p.state.Emit(EvtStateChanged{
		EndpointID: e.ID(),
		Role:       e.Role(),
		Protocol:   e.Protocol(),
		Key:        e.Key(),
		From:       from,
		To:         to,
		At:         now,
	})

	if e.Role() == endpoint.RoleSession && to == endpoint.StateStopped {
		_ = p.closed.Emit(EvtSessionClosed{
			EndpointID: e.ID(),
			Protocol:   e.Protocol(),
			Key:        e.Key(),
			BytesIn:    e.BytesIn(),
			BytesOut:   e.BytesOut(),
			At:         now,
		})
	}
}

// OnTraffic 流量不发布为事件
func (p *Publisher) OnTraffic(*endpoint.Endpoint, int, int) {}

// Close 关闭发射器
func (p *Publisher) Close() error {
	_ = p.state.Close()
	return p.closed.Close()
}
