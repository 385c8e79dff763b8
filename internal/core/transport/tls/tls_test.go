package tls

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	cryptotls "crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dep2p/go-netkit/config"
	"github.com/dep2p/go-netkit/internal/core/transport"
	tt "github.com/dep2p/go-netkit/internal/core/transport/transporttest"
)

// testCert 生成 127.0.0.1 的自签名证书并写入临时目录
func testCert(t *testing.T) (certFile, keyFile string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "netkit-test"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IPAddresses:           []net.IP{net.IPv4(127, 0, 0, 1)},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	dir := t.TempDir()
	certFile = filepath.Join(dir, "cert.pem")
	keyFile = filepath.Join(dir, "key.pem")
	require.NoError(t, os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600))
	require.NoError(t, os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}), 0o600))
	return certFile, keyFile
}

func TestServerConfig_RequiresCertificate(t *testing.T) {
	_, err := ServerConfig(config.DefaultTLSConfig())
	assert.ErrorIs(t, err, ErrNoCertificate)
}

func TestClientConfig_BadCA(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ca.pem")
	require.NoError(t, os.WriteFile(path, []byte("not a certificate"), 0o600))

	cfg := config.DefaultTLSConfig()
	cfg.CAFile = path
	_, err := ClientConfig(cfg)
	assert.ErrorIs(t, err, ErrBadCA)
}

func TestTLS_HandshakeAndEcho(t *testing.T) {
	certFile, keyFile := testCert(t)
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	})

	srv, err := NewServer(opts, "127.0.0.1:0", nil)
	require.NoError(t, err)
	var srvHandshakes atomic.Int32
	srv.BindHandshake(func(_ *transport.Session, err error) {
		if err == nil {
			srvHandshakes.Add(1)
		}
	})
	srv.BindRecv(func(s *transport.Session, data []byte) { s.AsyncSend(data, nil) })
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	}()

	clientTLS := opts.Config.TLS
	clientTLS.CAFile = certFile
	clientTLS.CertFile, clientTLS.KeyFile = "", ""
	tc, err := ClientConfig(clientTLS)
	require.NoError(t, err)

	cli, err := NewClient(opts, srv.Addr().String(), tc)
	require.NoError(t, err)
	var order []string
	cli.BindHandshake(func(err error) {
		if err == nil {
			order = append(order, "handshake")
		}
	})
	cli.BindConnect(func() { order = append(order, "connect") })
	var got tt.Buffer
	cli.BindRecv(got.Write)

	require.NoError(t, cli.Start(tt.Context(t)))
	defer func() {
		cli.Stop()
		_ = cli.WaitStopped(tt.Context(t))
	}()

	require.NoError(t, cli.Send([]byte("secure")))
	require.Eventually(t, func() bool { return got.String() == "secure" }, tt.WaitTimeout, 10*time.Millisecond)

	var snapshot []string
	cli.Exec(func() { snapshot = append(snapshot, order...) })
	assert.Equal(t, []string{"handshake", "connect"}, snapshot)
	assert.Equal(t, int32(1), srvHandshakes.Load())
}

func TestTLS_UntrustedServer(t *testing.T) {
	certFile, keyFile := testCert(t)
	opts := tt.Options(t, func(cfg *config.Config) {
		cfg.TLS.CertFile = certFile
		cfg.TLS.KeyFile = keyFile
	})

	srv, err := NewServer(opts, "127.0.0.1:0", nil)
	require.NoError(t, err)
	require.NoError(t, srv.Start(tt.Context(t)))
	defer func() {
		srv.Stop()
		_ = srv.WaitStopped(tt.Context(t))
	}()

	cli, err := NewClient(opts, srv.Addr().String(), &cryptotls.Config{MinVersion: cryptotls.VersionTLS12})
	require.NoError(t, err)
	var handshakeErr atomic.Value
	var connects atomic.Int32
	cli.BindHandshake(func(err error) {
		if err != nil {
			handshakeErr.Store(err)
		}
	})
	cli.BindConnect(func() { connects.Add(1) })

	require.Error(t, cli.Start(tt.Context(t)))
	assert.NotNil(t, handshakeErr.Load())
	assert.Equal(t, int32(0), connects.Load())

	require.Eventually(t, func() bool { return srv.SessionCount() == 0 }, tt.WaitTimeout, 10*time.Millisecond)
}
