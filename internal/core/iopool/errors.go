package iopool

import "errors"

var (
	// ErrPoolStopped 执行池已停止
	ErrPoolStopped = errors.New("iopool: pool stopped")

	// ErrStrandClosed strand 已关闭，不再接受任务
	ErrStrandClosed = errors.New("iopool: strand closed")
)
