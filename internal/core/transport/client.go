package transport

import (
	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// ============================================================================
// Client 流式客户端
// ============================================================================

// Client 基于 Conn 的客户端端点
//
// 生命周期、发送、计时器与重连由内嵌的 endpoint.Endpoint 提供。
type Client struct {
	*endpoint.Endpoint
}

// NewClient 创建客户端，每个连接周期调用 dial 获取新连接
func NewClient(opts Options, protocol string, dial DialFunc) *Client {
	cfg := opts.config()
	hooks := &streamHooks{dial: dial}
	ep := endpoint.New(opts.Pool.Next(), hooks, opts.endpointOptions(endpoint.RoleClient, protocol))
	hooks.ep = ep
	ep.SetReconnect(cfg.Reconnect.Enable, cfg.Reconnect.Delay.Duration())

	logger.Debug("创建客户端", "id", ep.ID(), "protocol", protocol)
	return &Client{Endpoint: ep}
}
