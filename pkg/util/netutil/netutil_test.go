package netutil

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAddr(t *testing.T) {
	addr := NewAddr("tcp", "lobby.example.com", 25565)
	assert.Equal(t, "tcp", addr.Network())
	assert.Equal(t, "lobby.example.com:25565", addr.String())
	assert.Equal(t, "lobby.example.com", Host(addr))
	assert.EqualValues(t, 25565, Port(addr))
}

func TestParse(t *testing.T) {
	addr, err := Parse("127.0.0.1:25566", "tcp")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1", Host(addr))
	assert.EqualValues(t, 25566, Port(addr))
}

func TestHost_TCPAddr(t *testing.T) {
	addr := &net.TCPAddr{IP: net.IPv4(203, 0, 113, 5), Port: 54321}
	assert.Equal(t, "203.0.113.5", Host(addr))
	assert.EqualValues(t, 54321, Port(addr))
}

func TestHostStr(t *testing.T) {
	assert.Equal(t, "lobby.example.com", HostStr("lobby.example.com:25565"))
	assert.Equal(t, "lobby.example.com", HostStr("lobby.example.com"))
}

func TestSplitHostPort_MissingPortDetected(t *testing.T) {
	_, _, err := net.SplitHostPort("host-without-port")
	require.Error(t, err)
	assert.True(t, isMissingPortErr(err))
}
