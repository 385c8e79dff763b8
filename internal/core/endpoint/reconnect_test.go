package endpoint

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpoint_ReconnectAfterDelay(t *testing.T) {
	f := newFixture(t, clock.NewMock(), nil)
	f.ep.SetReconnect(true, 100*time.Millisecond)

	enabled, delay := f.ep.Reconnect()
	assert.True(t, enabled)
	assert.Equal(t, 100*time.Millisecond, delay)

	require.NoError(t, f.ep.Start(startCtx(t)))

	// 连接丢失
	f.ep.Disconnect(ErrPeerClosed)
	f.waitStopped(t)
	assert.Equal(t, 1, f.tr.count("cb:init"))

	f.advance(t, 99*time.Millisecond)
	assert.Equal(t, 1, f.tr.count("cb:init"))
	assert.True(t, f.ep.IsStopped())

	f.advance(t, time.Millisecond)
	require.Eventually(t, f.ep.IsStarted, time.Second, 2*time.Millisecond)
	assert.Equal(t, 2, f.tr.count("cb:init"))
	assert.Equal(t, 2, f.tr.count("cb:connect"))
}

func TestEndpoint_ReconnectRetriesFailedConnect(t *testing.T) {
	f := newFixture(t, clock.NewMock(), nil)
	f.ep.SetReconnect(true, 50*time.Millisecond)
	f.hooks.connectErr = ErrRefused

	err := f.ep.Start(startCtx(t))
	require.ErrorIs(t, err, ErrRefused)
	f.sync(t)

	f.advance(t, 50*time.Millisecond)
	require.Eventually(t, func() bool { return f.tr.count("cb:init") == 2 }, time.Second, 2*time.Millisecond)
	f.waitStopped(t)

	// 用户停止取消等待中的重连
	f.ep.Stop()
	f.advance(t, time.Second)
	assert.Equal(t, 2, f.tr.count("cb:init"))
	assert.Zero(t, f.tr.count("cb:connect"))
}

func TestEndpoint_UserStopSuppressesReconnect(t *testing.T) {
	f := newFixture(t, clock.NewMock(), nil)
	f.ep.SetReconnect(true, 10*time.Millisecond)
	require.NoError(t, f.ep.Start(startCtx(t)))

	f.ep.Stop()
	f.waitStopped(t)
	f.advance(t, 100*time.Millisecond)

	assert.True(t, f.ep.IsStopped())
	assert.Equal(t, 1, f.tr.count("cb:init"))

	// 用户再次启动后重连策略仍然保留
	require.NoError(t, f.ep.Start(startCtx(t)))
	f.ep.Disconnect(ErrPeerClosed)
	f.waitStopped(t)
	f.advance(t, 10*time.Millisecond)
	require.Eventually(t, f.ep.IsStarted, time.Second, 2*time.Millisecond)
}

func TestEndpoint_ReconnectOnlyForClients(t *testing.T) {
	f := newFixture(t, clock.NewMock(), func(o *Options) { o.Role = RoleSession })
	f.ep.SetReconnect(true, 10*time.Millisecond)
	require.NoError(t, f.ep.Start(startCtx(t)))

	f.ep.Disconnect(ErrPeerClosed)
	f.waitStopped(t)
	f.advance(t, 100*time.Millisecond)
	assert.True(t, f.ep.IsStopped())
}
