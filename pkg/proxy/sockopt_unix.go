//go:build unix

package proxy

import "syscall"

// setSocketOptions marks player facing sockets for low latency:
// TCP_NODELAY and the IP_TOS "low delay, high throughput" class.
func setSocketOptions(fd uintptr) error {
	if err := syscall.SetsockoptInt(int(fd), syscall.IPPROTO_TCP, syscall.TCP_NODELAY, 1); err != nil {
		return err
	}
	// Best effort, not every platform/socket family supports it.
	_ = syscall.SetsockoptInt(int(fd), syscall.IPPROTO_IP, syscall.IP_TOS, 0x18)
	return nil
}
