package netkit

import (
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/eventbus"
	"github.com/dep2p/go-netkit/internal/core/transport"
	"github.com/dep2p/go-netkit/internal/core/transport/udp"
	"github.com/dep2p/go-netkit/internal/core/transport/ws"
	"github.com/dep2p/go-netkit/pkg/interfaces"
)

// ════════════════════════════════════════════════════════════════════════════
//                              端点类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// Client 客户端端点
	Client = transport.Client

	// Server 服务端
	Server = transport.Server

	// Session 服务端会话
	Session = transport.Session

	// State 端点状态
	State = endpoint.State

	// Role 端点角色
	Role = endpoint.Role
)

// 端点状态
const (
	StateStopped  = endpoint.StateStopped
	StateStarting = endpoint.StateStarting
	StateStarted  = endpoint.StateStarted
	StateStopping = endpoint.StateStopping
)

// 端点角色
const (
	RoleClient  = endpoint.RoleClient
	RoleSession = endpoint.RoleSession
	RoleServer  = endpoint.RoleServer
)

var (
	_ interfaces.Client   = (*Client)(nil)
	_ interfaces.Endpoint = (*Session)(nil)
	_ interfaces.Server   = (*Server)(nil)
)

// ════════════════════════════════════════════════════════════════════════════
//                              事件类型
// ════════════════════════════════════════════════════════════════════════════

type (
	// EvtStateChanged 端点状态迁移事件
	EvtStateChanged = eventbus.EvtStateChanged

	// EvtSessionClosed 会话停止事件
	EvtSessionClosed = eventbus.EvtSessionClosed
)

// ════════════════════════════════════════════════════════════════════════════
//                              协议选项
// ════════════════════════════════════════════════════════════════════════════

type (
	// UDPOption UDP 端点选项
	UDPOption = udp.Option

	// WSOption WebSocket 端点选项
	WSOption = ws.Option
)

var (
	// WithARQ 在 UDP 之上启用可靠传输
	WithARQ = udp.WithARQ

	// WithTLSConfig 为 WebSocket 指定 TLS 配置（wss）
	WithTLSConfig = ws.WithTLSConfig
)
