package ws

import (
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
	tt "github.com/dep2p/go-netkit/internal/core/transport/transporttest"
)

func wsOptions(t *testing.T) transport.Options {
	return tt.Options(t, func(cfg *config.Config) {
		cfg.WebSocket.Path = "/ws"
		cfg.WebSocket.CloseGracePeriod = config.Duration(200 * time.Millisecond)
	})
}

func TestWS_EchoFrames(t *testing.T) {
	opts := wsOptions(t)
	srv := NewServer(opts, "127.0.0.1:0")
	srv.BindRecv(func(s *transport.Session, data []byte) { s.AsyncSend(data, nil) })
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	}()

	cli, err := NewClient(opts, "ws://"+srv.Addr().String()+"/ws")
	require.NoError(t, err)
	var got tt.Buffer
	var handshakes atomic.Int32
	cli.BindRecv(got.Write)
	cli.BindHandshake(func(err error) {
		if err == nil {
			handshakes.Add(1)
		}
	})
	require.NoError(t, cli.Start(tt.Context(t)))
	defer func() {
		cli.Stop()
		_ = cli.WaitStopped(tt.Context(t))
	}()
	assert.Equal(t, int32(1), handshakes.Load())

	require.NoError(t, cli.Send([]byte("frame-1")))
	require.NoError(t, cli.Send([]byte("frame-2")))

	// 帧边界保留
	require.Eventually(t, func() bool { return got.Messages() == 2 }, tt.WaitTimeout, 10*time.Millisecond)
	assert.Equal(t, "frame-1frame-2", got.String())
}

func TestWS_ClientStopSendsCloseFrame(t *testing.T) {
	opts := wsOptions(t)
	srv := NewServer(opts, "127.0.0.1:0")
	disconnects := make(chan error, 1)
	srv.BindDisconnect(func(_ *transport.Session, err error) { disconnects <- err })
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	}()

	cli, err := NewClient(opts, "ws://"+srv.Addr().String()+"/ws")
	require.NoError(t, err)
	require.NoError(t, cli.Start(tt.Context(t)))
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, tt.WaitTimeout, 10*time.Millisecond)

	cli.Stop()
	require.NoError(t, cli.WaitStopped(tt.Context(t)))

	select {
	case err := <-disconnects:
		assert.ErrorIs(t, err, endpoint.ErrPeerClosed)
	case <-time.After(tt.WaitTimeout):
		t.Fatal("server session not disconnected")
	}
	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, tt.WaitTimeout, 10*time.Millisecond)
}

func TestWS_ServerStopClosesClients(t *testing.T) {
	opts := wsOptions(t)
	srv := NewServer(opts, "127.0.0.1:0")
	require.NoError(t, srv.Start(tt.Context(t)))

	cli, err := NewClient(opts, "ws://"+srv.Addr().String()+"/ws")
	require.NoError(t, err)
	disconnects := make(chan error, 1)
	cli.BindDisconnect(func(err error) { disconnects <- err })
	require.NoError(t, cli.Start(tt.Context(t)))
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, tt.WaitTimeout, 10*time.Millisecond)

	srv.Stop()
	require.NoError(t, srv.WaitStopped(tt.Context(t)))

	select {
	case err := <-disconnects:
		assert.ErrorIs(t, err, endpoint.ErrPeerClosed)
	case <-time.After(tt.WaitTimeout):
		t.Fatal("client not disconnected")
	}
	require.NoError(t, cli.WaitStopped(tt.Context(t)))
}

func TestWS_WrongPathFailsHandshake(t *testing.T) {
	opts := wsOptions(t)
	srv := NewServer(opts, "127.0.0.1:0")
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	}()

	cli, err := NewClient(opts, "ws://"+srv.Addr().String()+"/other")
	require.NoError(t, err)
	var connects atomic.Int32
	cli.BindConnect(func() { connects.Add(1) })

	require.Error(t, cli.Start(tt.Context(t)))
	assert.True(t, cli.IsStopped())
	assert.Equal(t, int32(0), connects.Load())
	assert.Equal(t, 0, srv.SessionCount())
}

func TestTruncateReason_RuneBoundary(t *testing.T) {
	reason := strings.Repeat("连接被重置", 20)
	got := truncateReason(reason, maxCloseReason)

	assert.LessOrEqual(t, len(got), maxCloseReason)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasPrefix(reason, got))
	// 3 字节字符：123 字节正好 41 个字符
	assert.Equal(t, 41, utf8.RuneCountInString(got))

	got = truncateReason("ab"+strings.Repeat("错", 50), 10)
	assert.Equal(t, "ab错错", got)
	assert.Equal(t, "short", truncateReason("short", maxCloseReason))
}
