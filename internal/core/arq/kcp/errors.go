package kcp

import "errors"

var (
	// ErrTruncated 数据报长度不足或分片数据被截断
	ErrTruncated = errors.New("kcp: truncated segment")

	// ErrConvMismatch 分片的 conv 与会话不一致
	ErrConvMismatch = errors.New("kcp: conv mismatch")

	// ErrInvalidCommand 未知的分片命令
	ErrInvalidCommand = errors.New("kcp: invalid command")

	// ErrNoData 接收队列中没有完整消息
	ErrNoData = errors.New("kcp: no complete message")

	// ErrBufferTooSmall 接收缓冲区小于下一条消息
	ErrBufferTooSmall = errors.New("kcp: buffer too small")

	// ErrMessageTooLarge 消息分片数超过接收窗口
	ErrMessageTooLarge = errors.New("kcp: message too large")

	// ErrInvalidMTU MTU 过小
	ErrInvalidMTU = errors.New("kcp: invalid mtu")
)
