package endpoint

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

// ============================================================================
// 错误定义
// ============================================================================

var (
	// ErrAlreadyStarted 端点不处于 stopped 状态，无法启动
	ErrAlreadyStarted = errors.New("endpoint: already started")

	// ErrNotStarted 端点未处于 started 状态
	ErrNotStarted = errors.New("endpoint: not started")

	// ErrCanceled 操作因端点拆除被取消
	ErrCanceled = errors.New("endpoint: operation canceled")

	// ErrStopped 端点在操作完成前被停止
	ErrStopped = errors.New("endpoint: stopped")

	// ErrTimeout 连接或静默超时
	ErrTimeout = errors.New("endpoint: timeout")

	// ErrMessageSize 入站数据无法解码或超出缓冲区
	ErrMessageSize = errors.New("endpoint: message size error")

	// ErrPeerClosed 对端关闭了连接
	ErrPeerClosed = errors.New("endpoint: peer closed")

	// ErrTransitionRejected 状态迁移被拒绝
	ErrTransitionRejected = errors.New("endpoint: state transition rejected")

	// ErrRefused 对端拒绝连接
	ErrRefused = errors.New("endpoint: connection refused")

	// ErrDuplicateSession 会话 key 已存在
	ErrDuplicateSession = errors.New("endpoint: duplicate session")
)

// TransitionError 状态迁移失败
type TransitionError struct {
	From   State
	To     State
	Actual State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("endpoint: transition %s -> %s rejected (state is %s)", e.From, e.To, e.Actual)
}

// Unwrap 使 errors.Is(err, ErrTransitionRejected) 成立
func (e *TransitionError) Unwrap() error {
	return ErrTransitionRejected
}

// ClassifyError 把底层传输错误归类为端点错误
//
// ECONNREFUSED 归为 ErrRefused，EOF 归为 ErrPeerClosed，超时归为 ErrTimeout。
// 原始错误保留在错误链中。
func ClassifyError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrRefused), errors.Is(err, ErrPeerClosed), errors.Is(err, ErrTimeout):
		return err
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", ErrRefused, err)
	case errors.Is(err, io.EOF):
		return fmt.Errorf("%w: %w", ErrPeerClosed, err)
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
