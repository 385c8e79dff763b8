package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewConfig_Valid(t *testing.T) {
	cfg := NewConfig()
	require.NoError(t, cfg.Validate())

	assert.False(t, cfg.Reconnect.Enable)
	assert.Equal(t, 500*time.Millisecond, cfg.ARQ.HandshakeInterval.Duration())
	assert.True(t, cfg.TCP.ReuseAddress)
}

func TestFromJSON_OverridesDefaults(t *testing.T) {
	data := []byte(`{
		"reconnect": {"enable": true, "delay": "100ms"},
		"endpoint": {"connect_timeout": "2s", "silence_timeout": 1000000, "read_buffer_size": 1024},
		"arq": {"mtu": 1200, "send_window": 32, "recv_window": 32, "interval": "20ms", "handshake_interval": "250ms"}
	}`)

	cfg, err := FromJSON(data)
	require.NoError(t, err)

	assert.True(t, cfg.Reconnect.Enable)
	assert.Equal(t, 100*time.Millisecond, cfg.Reconnect.Delay.Duration())
	assert.Equal(t, 2*time.Second, cfg.Endpoint.ConnectTimeout.Duration())
	assert.Equal(t, time.Millisecond, cfg.Endpoint.SilenceTimeout.Duration())
	assert.Equal(t, 1200, cfg.ARQ.MTU)
	// 未出现的字段保留默认值
	assert.Equal(t, DefaultWebSocketConfig().Path, cfg.WebSocket.Path)
}

func TestFromJSON_Invalid(t *testing.T) {
	_, err := FromJSON([]byte(`{"reconnect": {"delay": "soon"}}`))
	require.Error(t, err)

	_, err = FromJSON([]byte(`{"arq": {"mtu": 10}}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "arq config")
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative pool", func(c *Config) { c.Pool.Size = -1 }},
		{"zero read buffer", func(c *Config) { c.Endpoint.ReadBufferSize = 0 }},
		{"negative reconnect delay", func(c *Config) { c.Reconnect.Delay = -1 }},
		{"tls half set", func(c *Config) { c.TLS.CertFile = "cert.pem" }},
		{"ws path", func(c *Config) { c.WebSocket.Path = "ws" }},
		{"udp datagram", func(c *Config) { c.UDP.MaxDatagramSize = 10 }},
		{"accept burst", func(c *Config) { c.TCP.MaxAcceptRate = 10; c.TCP.AcceptBurst = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAndFix(t *testing.T) {
	cfg := NewConfig()
	cfg.Pool.Size = -3
	cfg.Endpoint.ReadBufferSize = 0
	cfg.ARQ.SendWindow = 0

	fixed, err := ValidateAndFix(cfg)
	require.NoError(t, err)
	assert.Equal(t, DefaultPoolConfig().Size, fixed.Pool.Size)
	assert.Equal(t, DefaultEndpointConfig().ReadBufferSize, fixed.Endpoint.ReadBufferSize)
	assert.Equal(t, DefaultARQConfig().SendWindow, fixed.ARQ.SendWindow)
}

func TestLoadFile_RoundTrip(t *testing.T) {
	cfg := NewConfig()
	cfg.Reconnect.Enable = true
	cfg.Reconnect.Delay = Duration(250 * time.Millisecond)

	data, err := cfg.ToJSON()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"delay": "250ms"`)

	path := filepath.Join(t.TempDir(), "netkit.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	loaded, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Reconnect, loaded.Reconnect)
}

func TestDuration_JSON(t *testing.T) {
	var ec EndpointConfig
	require.NoError(t, json.Unmarshal([]byte(`{"connect_timeout": "", "silence_timeout": null}`), &ec))
	assert.Zero(t, ec.ConnectTimeout)
	assert.Zero(t, ec.SilenceTimeout)

	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"1.5s"`), &d))
	assert.Equal(t, 1500*time.Millisecond, d.Duration())
	assert.Equal(t, 1500, d.Milliseconds())
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))

	assert.Equal(t, 3*time.Second, Duration(0).Or(3*time.Second))
	assert.Equal(t, time.Second, Duration(time.Second).Or(3*time.Second))
}
