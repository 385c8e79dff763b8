// Package lib 包含基础设施工具库
//
// 本目录包含与端点生命周期无关的通用工具库：
//
//   - log: 基于 log/slog 的分子系统日志
//
// # 使用示例
//
//	import "github.com/dep2p/go-netkit/pkg/lib/log"
//
//	var logger = log.Logger("core/transport")
package lib
