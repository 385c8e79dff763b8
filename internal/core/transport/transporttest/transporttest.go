// Package transporttest 提供传输层测试辅助函数
package transporttest

import (
	"bytes"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/iopool"
	"github.com/dep2p/go-netkit/internal/core/transport"
)

// WaitTimeout 测试中等待异步事件的上限
const WaitTimeout = 5 * time.Second

// Options 创建使用真实时钟的执行池与测试配置，测试结束时停止执行池
func Options(t testing.TB, mutate func(cfg *config.Config)) transport.Options {
	t.Helper()

	cfg := config.NewConfig()
	cfg.Pool.Size = 2
	cfg.TCP.ReuseAddress = true
	cfg.UDP.ReuseAddress = true
	cfg.Endpoint.ConnectTimeout = config.Duration(2 * time.Second)
	if mutate != nil {
		mutate(cfg)
	}

	pool := iopool.New(cfg.Pool.Size, nil)
	require.NoError(t, pool.Start())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return transport.Options{Pool: pool, Config: cfg}
}

// Context 返回带超时的 context
func Context(t testing.TB) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), WaitTimeout)
	t.Cleanup(cancel)
	return ctx
}

// FreeTCPAddr 返回一个当前无人监听的本地 TCP 地址
func FreeTCPAddr(t testing.TB) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// FreeUDPAddr 返回一个当前空闲的本地 UDP 地址
func FreeUDPAddr(t testing.TB) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := pc.LocalAddr().String()
	require.NoError(t, pc.Close())
	return addr
}

// Buffer 并发安全的接收缓冲
type Buffer struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	msgs int
}

// Write 追加一条消息
func (b *Buffer) Write(p []byte) {
	b.mu.Lock()
	b.buf.Write(p)
	b.msgs++
	b.mu.Unlock()
}

// String 返回已接收的全部字节
func (b *Buffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// Messages 返回接收次数
func (b *Buffer) Messages() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.msgs
}
