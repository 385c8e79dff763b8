package netkit

import (
	"errors"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
)

// 公共错误定义
var (
	// ────────────────────────────────────────────────────────────────────────
	// 运行时错误
	// ────────────────────────────────────────────────────────────────────────

	// ErrNotStarted 运行时未启动
	ErrNotStarted = errors.New("runtime not started")

	// ErrAlreadyStarted 运行时已启动
	ErrAlreadyStarted = errors.New("runtime already started")

	// ErrRuntimeClosed 运行时已关闭
	ErrRuntimeClosed = errors.New("runtime closed")

	// ────────────────────────────────────────────────────────────────────────
	// 端点错误（供 errors.Is 使用）
	// ────────────────────────────────────────────────────────────────────────

	// ErrEndpointStarted 端点已在运行
	ErrEndpointStarted = endpoint.ErrAlreadyStarted

	// ErrEndpointNotStarted 端点未启动
	ErrEndpointNotStarted = endpoint.ErrNotStarted

	// ErrCanceled 操作被取消
	ErrCanceled = endpoint.ErrCanceled

	// ErrStopped 端点已停止
	ErrStopped = endpoint.ErrStopped

	// ErrTimeout 连接或握手超时
	ErrTimeout = endpoint.ErrTimeout

	// ErrMessageSize 报文超长或无法解码
	ErrMessageSize = endpoint.ErrMessageSize

	// ErrPeerClosed 对端关闭连接
	ErrPeerClosed = endpoint.ErrPeerClosed

	// ErrRefused 连接被拒绝
	ErrRefused = endpoint.ErrRefused

	// ErrDuplicateSession 会话键重复
	ErrDuplicateSession = endpoint.ErrDuplicateSession
)
