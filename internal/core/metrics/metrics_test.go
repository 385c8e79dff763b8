package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/internal/core/endpoint"
	"github.com/dep2p/go-netkit/internal/core/transport"
	"github.com/dep2p/go-netkit/internal/core/transport/tcp"
	tt "github.com/dep2p/go-netkit/internal/core/transport/transporttest"
)

func TestRateMeter_SlidingWindow(t *testing.T) {
	clk := clock.NewMock()
	m := NewRateMeter(clk)

	m.Add(600)
	assert.InDelta(t, 10.0, m.Rate(), 0.001)

	clk.Add(30 * time.Second)
	m.Add(600)
	assert.InDelta(t, 20.0, m.Rate(), 0.001)

	clk.Add(45 * time.Second)
	assert.InDelta(t, 10.0, m.Rate(), 0.001)

	clk.Add(2 * time.Minute)
	assert.Zero(t, m.Rate())
	assert.Equal(t, int64(1200), m.Total())
}

func TestCollector_TracksEndpoints(t *testing.T) {
	c := NewCollector("netkit", nil)
	reg := prometheus.NewRegistry()
	c.MustRegister(reg)

	opts := tt.Options(t, nil)
	opts.Observers = []endpoint.Observer{c}

	srv := tcp.NewServer(opts, "127.0.0.1:0")
	srv.BindRecv(func(s *transport.Session, data []byte) { s.AsyncSend(data, nil) })
	require.NoError(t, srv.Start(tt.Context(t)))

	cli := tcp.NewClient(opts, srv.Addr().String())
	var got tt.Buffer
	cli.BindRecv(got.Write)
	require.NoError(t, cli.Start(tt.Context(t)))
	require.NoError(t, cli.Send([]byte("12345")))
	require.Eventually(t, func() bool { return got.String() == "12345" }, tt.WaitTimeout, 10*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.active.WithLabelValues("client", "tcp")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.active.WithLabelValues("server", "tcp")))
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.active.WithLabelValues("session", "tcp")) == 1
	}, tt.WaitTimeout, 10*time.Millisecond)

	// 客户端与会话各收发 5 字节
	require.Eventually(t, func() bool {
		stats := c.Stats("tcp")
		return stats.TotalIn == 10 && stats.TotalOut == 10
	}, tt.WaitTimeout, 10*time.Millisecond)
	assert.Greater(t, c.Stats("tcp").RateIn, 0.0)
	assert.Equal(t, []string{"tcp"}, c.Protocols())

	cli.Stop()
	require.NoError(t, cli.WaitStopped(tt.Context(t)))
	srv.Stop()
	require.NoError(t, srv.WaitStopped(tt.Context(t)))

	assert.Zero(t, testutil.ToFloat64(c.active.WithLabelValues("client", "tcp")))
	assert.Zero(t, testutil.ToFloat64(c.active.WithLabelValues("session", "tcp")))
	assert.Zero(t, testutil.ToFloat64(c.active.WithLabelValues("server", "tcp")))

	n, err := testutil.GatherAndCount(reg, "netkit_bytes_total")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCollector_ConnectFailure(t *testing.T) {
	c := NewCollector("netkit", nil)
	opts := tt.Options(t, nil)
	opts.Observers = []endpoint.Observer{c}

	cli := tcp.NewClient(opts, tt.FreeTCPAddr(t))
	require.Error(t, cli.Start(tt.Context(t)))

	assert.Equal(t, 1.0, testutil.ToFloat64(c.failures.WithLabelValues("client", "tcp")))
	expected := `
# HELP netkit_connect_failures_total Start attempts that stopped before reaching started.
# TYPE netkit_connect_failures_total counter
netkit_connect_failures_total{protocol="tcp",role="client"} 1
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected), "netkit_connect_failures_total"))
}
