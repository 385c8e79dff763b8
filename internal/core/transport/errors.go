package transport

import "errors"

var (
	// ErrNotSupported 操作不被该端点支持
	ErrNotSupported = errors.New("operation not supported")

	// ErrListenerClosed 监听已关闭
	ErrListenerClosed = errors.New("listener closed")

	// ErrNoConnection 端点当前没有可用连接
	ErrNoConnection = errors.New("no active connection")
)
