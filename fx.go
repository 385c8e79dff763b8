package netkit

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/internal/core/metrics"
	"github.com/dep2p/go-netkit/internal/core/transport"
	"github.com/dep2p/go-netkit/pkg/lib/log"
)

var fxLogger = log.Logger("netkit/fx")

// buildFxApp 构建 Fx 应用
//
// 加载顺序（按依赖）：
//  1. 配置与 Prometheus 注册表
//  2. iopool（执行池，OnStart 启动 strand goroutine）
//  3. eventbus、metrics（端点观察者，进入 netkit.observers 组）
//  4. transport（汇总执行池、配置与观察者为 transport.Options）
//  5. 用户附加的 Fx 选项
func buildFxApp(cfg *config.Config, rt *Runtime, extra []fx.Option) (*fx.App, error) {
	// ════════════════════════════════════════════════════════════════════════
	// 1. 配置验证（前置）
	// ════════════════════════════════════════════════════════════════════════
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	modules := []fx.Option{
		fx.Supply(cfg),
		fx.Provide(func() prometheus.Registerer { return rt.registry }),

		// ════════════════════════════════════════════════════════════════════
		// 2. 核心模块
		// ════════════════════════════════════════════════════════════════════
		iopool.Module(),
		eventbus.Module(),
		metrics.Module(),
		transport.Module(),
	}

	// ════════════════════════════════════════════════════════════════════════
	// 3. 用户扩展
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, extra...)

	// ════════════════════════════════════════════════════════════════════════
	// 4. 组件注入
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.Populate(&rt.opts, &rt.bus, &rt.collector))

	// ════════════════════════════════════════════════════════════════════════
	// 5. Fx 日志
	// ════════════════════════════════════════════════════════════════════════
	modules = append(modules, fx.WithLogger(func() fxevent.Logger {
		return newFxEventLogger(cfg.Debug)
	}))

	app := fx.New(modules...)
	if err := app.Err(); err != nil {
		return nil, fmt.Errorf("build fx app: %w", err)
	}
	return app, nil
}

// newFxEventLogger 调试模式输出 Fx 事件，否则静默
func newFxEventLogger(debug bool) fxevent.Logger {
	if !debug {
		return fxevent.NopLogger
	}
	zl, err := zap.NewDevelopment()
	if err != nil {
		fxLogger.Warn("创建 zap 日志失败，Fx 事件不输出", "error", err)
		return fxevent.NopLogger
	}
	return &fxevent.ZapLogger{Logger: zl.Named("fx")}
}
