//go:build !unix

package transport

import "syscall"

// reuseControl 非 unix 平台不做处理
func reuseControl(network, address string, c syscall.RawConn) error {
	return nil
}
