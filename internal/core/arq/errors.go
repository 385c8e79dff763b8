package arq

import "errors"

var (
	// ErrHeaderSize 握手头长度不是 12 字节
	ErrHeaderSize = errors.New("arq: invalid header size")

	// ErrBadChecksum 握手头校验和错误
	ErrBadChecksum = errors.New("arq: bad checksum")

	// ErrNotEstablished 握手尚未完成
	ErrNotEstablished = errors.New("arq: not established")

	// ErrDeadLink 分片重传次数达到上限
	ErrDeadLink = errors.New("arq: dead link")
)
