package tcp

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
	tt "github.com/dep2p/go-netkit/internal/core/transport/transporttest"
)

func startServer(t *testing.T, opts transport.Options) *transport.Server {
	t.Helper()
	srv := NewServer(opts, "127.0.0.1:0")
	require.NoError(t, srv.Start(tt.Context(t)))
	t.Cleanup(func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	})
	return srv
}

func TestClient_ConnectRefused(t *testing.T) {
	opts := tt.Options(t, nil)
	cli := NewClient(opts, tt.FreeTCPAddr(t))

	var connects, stops atomic.Int32
	cli.BindConnect(func() { connects.Add(1) })
	cli.BindStop(func(error) { stops.Add(1) })

	err := cli.Start(tt.Context(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, endpoint.ErrRefused)
	assert.True(t, cli.IsStopped())
	require.Eventually(t, func() bool { return stops.Load() == 1 }, tt.WaitTimeout, 10*time.Millisecond)
	assert.Equal(t, int32(0), connects.Load())
}

func TestServer_AcceptAndClientStop(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := NewServer(opts, "127.0.0.1:0")

	var accepts, srvConnects, srvDisconnects atomic.Int32
	srv.BindAccept(func(*transport.Session) { accepts.Add(1) })
	srv.BindConnect(func(*transport.Session) { srvConnects.Add(1) })
	srv.BindDisconnect(func(*transport.Session, error) { srvDisconnects.Add(1) })
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		require.NoError(t, srv.WaitStopped(tt.Context(t)))
	}()

	cli := NewClient(opts, srv.Addr().String())
	var cliConnects atomic.Int32
	cli.BindConnect(func() { cliConnects.Add(1) })
	require.NoError(t, cli.Start(tt.Context(t)))

	require.Eventually(t, func() bool {
		return srv.SessionCount() == 1 && srvConnects.Load() == 1
	}, tt.WaitTimeout, 10*time.Millisecond)

	cli.Stop()
	require.NoError(t, cli.WaitStopped(tt.Context(t)))

	require.Eventually(t, func() bool {
		return srv.SessionCount() == 0
	}, tt.WaitTimeout, 10*time.Millisecond)

	visited := 0
	srv.ForEachSession(func(*transport.Session) { visited++ })
	assert.Equal(t, 0, visited)
	assert.Equal(t, int32(1), accepts.Load())
	assert.Equal(t, int32(1), cliConnects.Load())
	assert.Equal(t, int32(1), srvConnects.Load())
	assert.Equal(t, int32(1), srvDisconnects.Load())
}

func TestEcho(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := startServer(t, opts)
	srv.BindRecv(func(s *transport.Session, data []byte) {
		s.AsyncSend(data, nil)
	})

	cli := NewClient(opts, srv.Addr().String())
	var got tt.Buffer
	cli.BindRecv(got.Write)
	require.NoError(t, cli.Start(tt.Context(t)))
	defer func() {
		cli.Stop()
		_ = cli.WaitStopped(tt.Context(t))
	}()

	require.NoError(t, cli.Send([]byte("hello ")))
	require.NoError(t, cli.Send([]byte("netkit")))

	require.Eventually(t, func() bool {
		return got.String() == "hello netkit"
	}, tt.WaitTimeout, 10*time.Millisecond)
	assert.Equal(t, uint64(len("hello netkit")), cli.BytesOut())
}

func TestClient_ReconnectAfterDelay(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.Reconnect.Enable = true
		cfg.Reconnect.Delay = config.Duration(100 * time.Millisecond)
	})
	cli := NewClient(opts, tt.FreeTCPAddr(t))

	var attempts, connects atomic.Int32
	cli.BindInit(func() { attempts.Add(1) })
	cli.BindConnect(func() { connects.Add(1) })

	began := time.Now()
	require.Error(t, cli.Start(tt.Context(t)))

	require.Eventually(t, func() bool {
		return attempts.Load() >= 3
	}, tt.WaitTimeout, 10*time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(began), 200*time.Millisecond)

	cli.Stop()
	require.NoError(t, cli.WaitStopped(tt.Context(t)))
	n := attempts.Load()
	time.Sleep(300 * time.Millisecond)
	assert.Equal(t, n, attempts.Load())
	assert.Equal(t, int32(0), connects.Load())
}

func TestClient_ReconnectToRestartedServer(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.Reconnect.Enable = true
		cfg.Reconnect.Delay = config.Duration(100 * time.Millisecond)
	})
	srv := NewServer(opts, "127.0.0.1:0")
	require.NoError(t, srv.Start(tt.Context(t)))
	addr := srv.Addr().String()

	cli := NewClient(opts, addr)
	var connects, disconnects atomic.Int32
	cli.BindConnect(func() { connects.Add(1) })
	cli.BindDisconnect(func(error) { disconnects.Add(1) })
	require.NoError(t, cli.Start(tt.Context(t)))
	defer func() {
		cli.Stop()
		_ = cli.WaitStopped(tt.Context(t))
	}()

	srv.Stop()
	require.NoError(t, srv.WaitStopped(tt.Context(t)))
	require.Eventually(t, func() bool { return disconnects.Load() == 1 }, tt.WaitTimeout, 10*time.Millisecond)

	srv2 := NewServer(opts, addr)
	require.NoError(t, srv2.Start(tt.Context(t)))
	defer func() {
		srv2.Stop()
		_ = srv2.WaitStopped(tt.Context(t))
	}()

	require.Eventually(t, func() bool {
		return connects.Load() == 2 && srv2.SessionCount() == 1
	}, tt.WaitTimeout, 10*time.Millisecond)
}

func TestServer_StopDisconnectsSessions(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := NewServer(opts, "127.0.0.1:0")
	var stopped atomic.Int32
	srv.BindStop(func(error) { stopped.Add(1) })
	require.NoError(t, srv.Start(tt.Context(t)))

	clients := make([]*transport.Client, 3)
	disconnectErrs := make(chan error, len(clients))
	for i := range clients {
		clients[i] = NewClient(opts, srv.Addr().String())
		clients[i].BindDisconnect(func(err error) { disconnectErrs <- err })
		require.NoError(t, clients[i].Start(tt.Context(t)))
	}
	require.Eventually(t, func() bool { return srv.SessionCount() == 3 }, tt.WaitTimeout, 10*time.Millisecond)

	srv.Stop()
	require.NoError(t, srv.WaitStopped(tt.Context(t)))
	assert.Equal(t, 0, srv.SessionCount())
	require.Eventually(t, func() bool { return stopped.Load() == 1 }, tt.WaitTimeout, 10*time.Millisecond)

	for range clients {
		select {
		case err := <-disconnectErrs:
			assert.ErrorIs(t, err, endpoint.ErrPeerClosed)
		case <-time.After(tt.WaitTimeout):
			t.Fatal("client not disconnected")
		}
	}
	for _, c := range clients {
		require.NoError(t, c.WaitStopped(tt.Context(t)))
	}
}

func TestServer_StartTwiceOnSameAddress(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) { cfg.TCP.ReuseAddress = false })
	srv := startServer(t, opts)

	other := NewServer(opts, srv.Addr().String())
	err := other.Start(tt.Context(t))
	require.Error(t, err)
	assert.True(t, other.IsStopped())
}

func TestClient_StopWithStalledPeer(t *testing.T) {
	// 对端接受连接后从不读取
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	accepted := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err == nil {
			accepted <- c
		}
	}()
	defer func() {
		select {
		case c := <-accepted:
			_ = c.Close()
		default:
		}
	}()

	cli := NewClient(tt.Options(t, nil), ln.Addr().String())
	require.NoError(t, cli.Start(tt.Context(t)))

	const sends = 64
	payload := make([]byte, 1<<20)
	var completed, succeeded, canceled atomic.Int32
	for i := 0; i < sends; i++ {
		cli.AsyncSend(payload, func(_ int, err error) {
			switch {
			case err == nil:
				succeeded.Add(1)
			case errors.Is(err, endpoint.ErrCanceled):
				canceled.Add(1)
			}
			completed.Add(1)
		})
	}

	// 等待发送缓冲被填满、写出阻塞
	time.Sleep(200 * time.Millisecond)
	assert.Less(t, succeeded.Load(), int32(sends))

	cli.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	require.NoError(t, cli.WaitStopped(ctx))
	assert.True(t, cli.IsStopped())

	require.Eventually(t, func() bool { return completed.Load() == sends }, tt.WaitTimeout, 10*time.Millisecond)
	assert.Equal(t, int32(sends), succeeded.Load()+canceled.Load())
	assert.Positive(t, canceled.Load())
}
