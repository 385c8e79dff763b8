//go:build unix

package transport

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseControl 在 bind 前设置 SO_REUSEADDR
func reuseControl(network, address string, c syscall.RawConn) error {
	var serr error
	err := c.Control(func(fd uintptr) {
		serr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	if err != nil {
		return err
	}
	return serr
}
