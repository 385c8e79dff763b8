package tls

import (
	cryptotls "crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/dep2p/go-netkit/config"
)

// ClientConfig 由配置生成客户端 TLS 配置
func ClientConfig(cfg config.TLSConfig) (*cryptotls.Config, error) {
	tc := &cryptotls.Config{
		ServerName:         cfg.ServerName,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // 由配置显式开启
		MinVersion:         cryptotls.VersionTLS12,
	}
	if cfg.CAFile != "" {
		pool, err := loadCA(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tc.RootCAs = pool
	}
	if cfg.CertFile != "" && cfg.KeyFile != "" {
		cert, err := cryptotls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("加载客户端证书失败: %w", err)
		}
		tc.Certificates = []cryptotls.Certificate{cert}
	}
	return tc, nil
}

// ServerConfig 由配置生成服务端 TLS 配置
//
// 配置了 CAFile 时要求并校验客户端证书。
func ServerConfig(cfg config.TLSConfig) (*cryptotls.Config, error) {
	if cfg.CertFile == "" || cfg.KeyFile == "" {
		return nil, ErrNoCertificate
	}
	cert, err := cryptotls.LoadX509KeyPair(cfg.CertFile, cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("加载服务端证书失败: %w", err)
	}

	tc := &cryptotls.Config{
		Certificates: []cryptotls.Certificate{cert},
		MinVersion:   cryptotls.VersionTLS12,
	}
	if cfg.CAFile != "" {
		pool, err := loadCA(cfg.CAFile)
		if err != nil {
			return nil, err
		}
		tc.ClientCAs = pool
		tc.ClientAuth = cryptotls.RequireAndVerifyClientCert
	}
	return tc, nil
}

func loadCA(path string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取 CA 文件失败: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, ErrBadCA
	}
	return pool, nil
}
