// Package interfaces 定义 netkit 的公共接口
//
// 内部实现位于 internal/core，对外只通过本包的接口与根包 netkit 的工厂方法暴露。
//
// # 文件组织
//
//   - endpoint.go  - 端点生命周期、客户端、服务端
//   - eventbus.go  - 事件订阅
//   - metrics.go   - 带宽统计
//
// # 使用示例
//
//	cli, err := rt.NewTCPClient("127.0.0.1:9000")
//	if err != nil { ... }
//	var ep interfaces.Client = cli
//	ep.BindRecv(func(data []byte) { ... })
//	if err := ep.Start(ctx); err != nil { ... }
package interfaces
