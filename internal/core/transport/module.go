package transport

import (
	"go.uber.org/fx"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var logger = log.Logger("core/transport")

// ObserverGroup 端点观察者的 Fx 组名
const ObserverGroup = `group:"netkit.observers"`

// Params 传输层依赖参数
type Params struct {
	fx.In

	Pool      *iopool.Pool
	Config    *config.Config
	Observers []endpoint.Observer `group:"netkit.observers"`
}

// Module 返回 Fx 模块
func Module() fx.Option {
	return fx.Module("transport",
		fx.Provide(ProvideOptions),
	)
}

// ProvideOptions 汇总执行池、配置与观察者
func ProvideOptions(p Params) Options {
	observers := make([]endpoint.Observer, 0, len(p.Observers))
	for _, o := range p.Observers {
		if o != nil {
			observers = append(observers, o)
		}
	}
	return Options{
		Pool:      p.Pool,
		Config:    p.Config,
		Observers: observers,
	}
}
