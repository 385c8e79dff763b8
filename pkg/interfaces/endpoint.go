package interfaces

import (
	"context"
	"net"
	"time"
)

// ============================================================================
//                              Lifecycle 接口
// ============================================================================

// Lifecycle 端点生命周期
//
// 状态只按 stopped → starting → started → stopping → stopped 迁移。
// Stop 不阻塞且幂等，完成由 WaitStopped 或停止回调观察。
type Lifecycle interface {
	// Start 启动并等待连接结果
	Start(ctx context.Context) error

	// AsyncStart 异步启动，done 在连接成功或失败后调用
	AsyncStart(done func(error)) error

	// Stop 请求停止
	Stop()

	// WaitStopped 等待当前连接周期完全停止
	WaitStopped(ctx context.Context) error

	// IsStarted 是否处于 started 状态
	IsStarted() bool

	// IsStopped 是否处于 stopped 状态
	IsStopped() bool

	// BindStart 启动尝试结束回调，成功时 err 为 nil
	BindStart(fn func(err error))

	// BindStop 完全停止回调
	BindStop(fn func(err error))
}

// ============================================================================
//                              Endpoint 接口
// ============================================================================

// Endpoint 客户端与会话共有的能力
type Endpoint interface {
	Lifecycle

	// ID 端点句柄
	ID() string

	// Protocol 协议名称，如 "tcp"、"udp+arq"
	Protocol() string

	// LocalAddr 本地地址，未连接时为 nil
	LocalAddr() net.Addr

	// RemoteAddr 远端地址，未连接时为 nil
	RemoteAddr() net.Addr

	// Send 排队发送，未启动时返回错误
	Send(data []byte) error

	// AsyncSend 排队发送并在写完或取消时回调
	AsyncSend(data []byte, cb func(n int, err error))

	BindConnect(fn func())
	BindDisconnect(fn func(err error))
	BindRecv(fn func(data []byte))
	BindSend(fn func(data []byte))
	BindHandshake(fn func(err error))

	// StartTimer 启动周期计时器，同 id 的旧计时器被替换
	StartTimer(id any, interval time.Duration, fn func())

	// StopTimer 停止计时器
	StopTimer(id any)
}

// Client 客户端端点
type Client interface {
	Endpoint

	// SetReconnect 设置断线重连策略
	SetReconnect(enable bool, delay time.Duration)
}

// Server 服务端
//
// 停止服务端会停止所有会话，全部会话停止后服务端才进入 stopped。
type Server interface {
	Lifecycle

	// ID 服务端句柄
	ID() string

	// Protocol 协议名称
	Protocol() string

	// Addr 实际监听地址，未启动时为 nil
	Addr() net.Addr

	// SessionCount 当前会话数
	SessionCount() int

	// Broadcast 向所有已连接会话发送，返回投递的会话数
	Broadcast(data []byte) int
}
