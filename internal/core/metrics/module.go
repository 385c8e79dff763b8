package metrics

import (
	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/metrics")

// Params 指标依赖参数
type Params struct {
	fx.In

	Config   *config.Config
	Clock    clock.Clock           `optional:"true"`
	Registry prometheus.Registerer `optional:"true"`
}

// Result Fx 模块输出
type Result struct {
	fx.Out

	Collector *Collector
	Observer  endpoint.Observer `group:"netkit.observers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("metrics",
		fx.Provide(ProvideCollector),
	)
}

// ProvideCollector 按配置创建收集器
//
// 关闭指标时 Collector 为 nil，不注册观察者。
func ProvideCollector(p Params) (Result, error) {
	if !p.Config.Metrics.Enable {
		logger.Debug("指标收集已关闭")
		return Result{}, nil
	}

	c := NewCollector(p.Config.Metrics.Namespace, p.Clock)
	if p.Registry != nil {
		if err := p.Registry.Register(c); err != nil {
			return Result{}, err
		}
	}
	return Result{Collector: c, Observer: c}, nil
}
