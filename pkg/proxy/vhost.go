package proxy

import (
	"strings"

	"github.com/bifrostmc/bifrost/pkg/util/netutil"
)

// forgeHandshakeHostnameToken is appended to the handshake address
// by Forge clients (1.8-1.12).
const forgeHandshakeHostnameToken = "\x00FML\x00"

// ClearVirtualHost removes null-separated suffixes from a handshake
// address, as spliced in by Forge ("\x00FML\x00", "\x00FML2\x00") and
// Bedrock/Floodgate transports.
func ClearVirtualHost(addr string) string {
	if i := strings.Index(addr, "\x00"); i != -1 {
		addr = addr[:i]
	}
	return addr
}

// cleanVirtualHost normalizes a handshake address for routing lookups:
// null-suffixes stripped, port stripped, trailing dot removed, lower-cased.
func cleanVirtualHost(addr string) string {
	host := netutil.HostStr(ClearVirtualHost(addr))
	host = strings.TrimSuffix(host, ".")
	return strings.ToLower(host)
}
