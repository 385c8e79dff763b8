package eventbus

import (
	"context"

	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// ============================================================================
// Fx 模块
// ============================================================================

// Result Fx 模块输出
type Result struct {
	fx.Out

	Bus       *Bus
	Publisher *Publisher
	Observer  endpoint.Observer `group:"netkit.observers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("eventbus",
		fx.Provide(ProvideEventBus),
		fx.Invoke(registerLifecycle),
	)
}

// ProvideEventBus 提供总线与发布者，发布者注册为端点观察者
func ProvideEventBus() (Result, error) {
	bus := NewBus()
	pub, err := NewPublisher(bus)
	if err != nil {
		return Result{}, err
	}
	return Result{Bus: bus, Publisher: pub, Observer: pub}, nil
}

func registerLifecycle(lc fx.Lifecycle, bus *Bus, pub *Publisher) {
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			_ = pub.Close()
			return bus.Close()
		},
	})
}
