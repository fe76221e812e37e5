// Package netutil provides address helpers for the frequent
// "give me just the host or port of this net.Addr" case.
package netutil

import (
	"net"
	"strconv"
	"strings"
)

// HostPortAddr provides the host and port of an address in cases where
// host, port, err := net.SplitHostPort(addressString) is too much
// and an error is unexpected or ignored.
type HostPortAddr interface {
	// Host returns the host part of the address.
	Host() string
	// Port returns the port part of the address.
	// Zero value means the port is unspecified.
	Port() uint16
}

// Host returns the host part of addr.
func Host(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	a, _ := WrapAddr(addr)
	return a.(HostPortAddr).Host()
}

// Port returns the port part of addr.
func Port(addr net.Addr) uint16 {
	if addr == nil {
		return 0
	}
	a, _ := WrapAddr(addr)
	return a.(HostPortAddr).Port()
}

// HostStr returns the host part of a "host:port" string,
// or the input itself if it carries no port.
func HostStr(s string) string {
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		return s
	}
	return host
}

// WrapAddr prepares a net.Addr to be used as a HostPortAddr.
func WrapAddr(addr net.Addr) (net.Addr, error) {
	if _, ok := addr.(HostPortAddr); ok {
		return addr, nil
	}
	var (
		port string
		err  error
		p    int
		a    = &address{Addr: addr}
	)
	a.host, port, err = net.SplitHostPort(addr.String())
	if err != nil {
		if isMissingPortErr(err) {
			a.host = addr.String()
			return a, nil
		}
		return a, err
	}
	p, err = strconv.Atoi(port)
	a.port = uint16(p)
	return a, err
}

func isMissingPortErr(err error) bool {
	aErr, ok := err.(*net.AddrError)
	return ok && strings.Contains(aErr.Err, "missing port")
}

// Parse parses addr and constructs a net.Addr compatible with HostPortAddr.
func Parse(addr, network string) (net.Addr, error) {
	host, portStr, err := net.SplitHostPort(addr)
	var p int
	if err == nil {
		p, err = strconv.Atoi(portStr)
	}
	return &address{
		Addr: &customAddr{
			network: network,
			str:     addr,
		},
		host: host,
		port: uint16(p),
	}, err
}

// NewAddr returns a new net.Addr ready to use as a HostPortAddr.
func NewAddr(network, host string, port uint16) net.Addr {
	return &address{
		Addr: &customAddr{
			network: network,
			str:     net.JoinHostPort(host, strconv.Itoa(int(port))),
		},
		host: host,
		port: port,
	}
}

type customAddr struct{ network, str string }

func (c *customAddr) Network() string { return c.network }
func (c *customAddr) String() string  { return c.str }

var _ net.Addr = (*customAddr)(nil)

type address struct {
	net.Addr
	host string
	port uint16
}

func (a *address) Host() string { return a.host }
func (a *address) Port() uint16 { return a.port }
