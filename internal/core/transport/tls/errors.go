package tls

import "errors"

var (
	// ErrNoCertificate 服务端未提供证书
	ErrNoCertificate = errors.New("tls: server certificate required")

	// ErrBadCA CA 文件中没有可用证书
	ErrBadCA = errors.New("tls: no certificates found in CA file")
)
