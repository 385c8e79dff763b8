package udp

import (
	"bytes"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/arq"
	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
	tt "github.com/dep2p/go-netkit/internal/core/transport/transporttest"
)

func startEchoServer(t *testing.T, opts transport.Options, options ...Option) *transport.Server {
	t.Helper()
	srv := NewServer(opts, "127.0.0.1:0", options...)
	srv.BindRecv(func(s *transport.Session, data []byte) { s.AsyncSend(data, nil) })
	require.NoError(t, srv.Start(tt.Context(t)))
	t.Cleanup(func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	})
	return srv
}

func stopClient(t *testing.T, cli *transport.Client) {
	t.Helper()
	cli.Stop()
	require.NoError(t, cli.WaitStopped(tt.Context(t)))
}

// messages 按到达顺序记录消息
type messages struct {
	mu   sync.Mutex
	list [][]byte
}

func (m *messages) add(p []byte) {
	m.mu.Lock()
	m.list = append(m.list, append([]byte(nil), p...))
	m.mu.Unlock()
}

func (m *messages) snapshot() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.list...)
}

func TestUDP_EchoAndSilenceTimeout(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.Endpoint.SilenceTimeout = config.Duration(300 * time.Millisecond)
	})
	srv := startEchoServer(t, opts)
	var srvDisconnect atomic.Value
	srv.BindDisconnect(func(_ *transport.Session, err error) { srvDisconnect.Store(err) })

	cliOpts := opts
	cliOpts.Config = opts.Config.Clone()
	cliOpts.Config.Endpoint.SilenceTimeout = 0
	cli := NewClient(cliOpts, srv.Addr().String())
	var got messages
	cli.BindRecv(got.add)
	require.NoError(t, cli.Start(tt.Context(t)))
	assert.Equal(t, Protocol, cli.Protocol())

	require.NoError(t, cli.Send([]byte("ping")))
	require.Eventually(t, func() bool { return len(got.snapshot()) == 1 }, tt.WaitTimeout, 10*time.Millisecond)
	assert.Equal(t, "ping", string(got.snapshot()[0]))
	assert.Equal(t, 1, srv.SessionCount())

	stopClient(t, cli)

	// 无 ARQ 时没有关闭通知，会话由静默超时回收
	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, tt.WaitTimeout, 10*time.Millisecond)
	err, _ := srvDisconnect.Load().(error)
	assert.ErrorIs(t, err, endpoint.ErrTimeout)
}

func TestUDP_OversizedDatagram(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.UDP.MaxDatagramSize = 1024
	})
	srv := startEchoServer(t, opts)

	cli := NewClient(opts, srv.Addr().String())
	require.NoError(t, cli.Start(tt.Context(t)))

	result := make(chan error, 1)
	cli.AsyncSend(make([]byte, 2048), func(_ int, err error) { result <- err })
	select {
	case err := <-result:
		assert.ErrorIs(t, err, endpoint.ErrMessageSize)
	case <-time.After(tt.WaitTimeout):
		t.Fatal("send not completed")
	}
	// 发送失败断开连接
	require.Eventually(t, cli.IsStopped, tt.WaitTimeout, 10*time.Millisecond)
	stopClient(t, cli)
}

func TestARQ_OrderedDelivery(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := startEchoServer(t, opts, WithARQ())

	var srvHandshakes atomic.Int32
	srv.BindHandshake(func(_ *transport.Session, err error) {
		if err == nil {
			srvHandshakes.Add(1)
		}
	})

	cli := NewClient(opts, srv.Addr().String(), WithARQ())
	var got messages
	var handshakes atomic.Int32
	cli.BindRecv(got.add)
	cli.BindHandshake(func(err error) {
		if err == nil {
			handshakes.Add(1)
		}
	})
	require.NoError(t, cli.Start(tt.Context(t)))
	defer stopClient(t, cli)
	assert.Equal(t, ProtocolARQ, cli.Protocol())
	assert.Equal(t, int32(1), handshakes.Load())

	const count = 100
	for i := 0; i < count; i++ {
		require.NoError(t, cli.Send([]byte(fmt.Sprintf("msg-%03d", i))))
	}
	big := bytes.Repeat([]byte("x"), 10*1024)
	require.NoError(t, cli.Send(big))

	require.Eventually(t, func() bool { return len(got.snapshot()) == count+1 }, tt.WaitTimeout, 10*time.Millisecond)
	list := got.snapshot()
	for i := 0; i < count; i++ {
		assert.Equal(t, fmt.Sprintf("msg-%03d", i), string(list[i]))
	}
	assert.Equal(t, big, list[count])
	assert.Equal(t, int32(1), srvHandshakes.Load())
}

func TestARQ_ClientStopSendsFIN(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := startEchoServer(t, opts, WithARQ())
	disconnects := make(chan error, 1)
	srv.BindDisconnect(func(_ *transport.Session, err error) { disconnects <- err })

	cli := NewClient(opts, srv.Addr().String(), WithARQ())
	require.NoError(t, cli.Start(tt.Context(t)))
	require.Eventually(t, func() bool { return srv.SessionCount() == 1 }, tt.WaitTimeout, 10*time.Millisecond)

	stopClient(t, cli)

	select {
	case err := <-disconnects:
		assert.ErrorIs(t, err, endpoint.ErrPeerClosed)
	case <-time.After(tt.WaitTimeout):
		t.Fatal("server session not disconnected")
	}
	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, tt.WaitTimeout, 10*time.Millisecond)
}

func TestARQ_ServerStopSendsFIN(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := NewServer(opts, "127.0.0.1:0", WithARQ())
	require.NoError(t, srv.Start(tt.Context(t)))

	cli := NewClient(opts, srv.Addr().String(), WithARQ())
	disconnects := make(chan error, 1)
	cli.BindDisconnect(func(err error) { disconnects <- err })
	require.NoError(t, cli.Start(tt.Context(t)))
	require.Eventually(t, func() bool {
		s, ok := srv.FindSession(cli.LocalAddr().String())
		return ok && s.IsStarted()
	}, tt.WaitTimeout, 10*time.Millisecond)

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

func TestARQ_HandshakeFailsWithoutServer(t *testing.T) {
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.Endpoint.ConnectTimeout = config.Duration(300 * time.Millisecond)
		cfg.ARQ.HandshakeInterval = config.Duration(50 * time.Millisecond)
	})
	cli := NewClient(opts, tt.FreeUDPAddr(t), WithARQ())
	var connects atomic.Int32
	cli.BindConnect(func() { connects.Add(1) })

	err := cli.Start(tt.Context(t))
	require.Error(t, err)
	assert.True(t, isAny(err, endpoint.ErrTimeout, endpoint.ErrRefused), "unexpected error: %v", err)
	assert.True(t, cli.IsStopped())
	assert.Equal(t, int32(0), connects.Load())
}

func TestARQ_IgnoresNonSYNFromUnknownAddress(t *testing.T) {
	opts := tt.Options(t, nil)
	srv := startEchoServer(t, opts, WithARQ())
	var accepts atomic.Int32
	srv.BindAccept(func(*transport.Session) { accepts.Add(1) })

	raw, err := net.Dial("udp", srv.Addr().String())
	require.NoError(t, err)
	defer raw.Close()

	_, err = raw.Write([]byte("not a handshake"))
	require.NoError(t, err)
	_, err = raw.Write(arq.MakeFIN(7).Marshal())
	require.NoError(t, err)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 0, srv.SessionCount())

	// 合法 SYN 创建会话并收到 SYN-ACK
	_, err = raw.Write(arq.MakeSYN(41).Marshal())
	require.NoError(t, err)
	buf := make([]byte, 64)
	_ = raw.SetReadDeadline(time.Now().Add(tt.WaitTimeout))
	n, err := raw.Read(buf)
	require.NoError(t, err)
	hdr, err := arq.ParseHeader(buf[:n])
	require.NoError(t, err)
	assert.True(t, hdr.IsSYNACK())
	assert.Equal(t, uint32(42), hdr.Ack)
	assert.Equal(t, arq.ConvFor(raw.LocalAddr().String()), hdr.Seq)
	assert.Equal(t, int32(1), accepts.Load())
}

func isAny(err error, targets ...error) bool {
	for _, target := range targets {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
