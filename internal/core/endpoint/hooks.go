package endpoint

import (
	"context"

	"github.com/dep2p/go-netkit/internal/core/evqueue"
)

// Role 端点角色
type Role int

const (
	// RoleClient 客户端
	RoleClient Role = iota
	// RoleSession 服务端会话
	RoleSession
	// RoleServer 服务端（监听者）
	RoleServer
)

// String 返回角色名称
func (r Role) String() string {
	switch r {
	case RoleClient:
		return "client"
	case RoleSession:
		return "session"
	case RoleServer:
		return "server"
	default:
		return "unknown"
	}
}

// Hooks 协议层实现的生命周期钩子
//
// 除 DoConnect/DoSend 的 done 回调外，所有方法都在端点的 strand 上调用。
type Hooks interface {
	// DoInit 启动尝试前的准备工作
	DoInit() error

	// DoConnect 异步建立连接（含握手），done 可在任意 goroutine 调用且只调用一次
	//
	// ctx 在连接超时或端点停止时取消。
	DoConnect(ctx context.Context, done func(error))

	// PostRecv 连接建立后启动接收循环
	PostRecv()

	// DoSend 异步写出一条消息，done 可在任意 goroutine 调用且只调用一次
	DoSend(data []byte, done func(n int, err error))

	// HandleDisconnect 拆除时的协议动作
	//
	// chain 归端点所有，钩子不得 Release；需要推迟关闭传输时 Clone chain，
	// 完成后 Release 副本。
	HandleDisconnect(err error, chain *evqueue.Token)

	// CloseTransport 关闭底层传输
	CloseTransport() error
}

// Interrupter 可选钩子，拆除开始时中断阻塞中的写出
//
// 在发起拆除的 goroutine 上调用，可能与 DoSend 的写出并发；
// 被中断的写出以错误完成，发送方收到 ErrCanceled。
type Interrupter interface {
	Interrupt()
}

// Owner 持有会话的注册表
type Owner interface {
	Erase(key string, onDone func(erased bool))
}

// Observer 观察端点状态与流量
type Observer interface {
	OnStateChange(e *Endpoint, from, to State)
	OnTraffic(e *Endpoint, in, out int)
}

// Callbacks 用户回调
//
// 所有回调都在端点的 strand 上调用。
type Callbacks struct {
	// Init 每次启动尝试开始时
	Init func()
	// Start 启动尝试结束，成功时 err 为 nil
	Start func(err error)
	// Connect 连接建立（每个连接周期恰好一次）
	Connect func()
	// Disconnect 已建立的连接断开（每个连接周期至多一次）
	Disconnect func(err error)
	// Recv 收到一条消息
	Recv func(data []byte)
	// Send 一条消息写出成功
	Send func(data []byte)
	// Handshake 协议握手完成（TLS、WebSocket、ARQ）
	Handshake func(err error)
	// Stop 端点完全停止（包括启动失败）
	Stop func(err error)
}
