package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/proto"
	p "github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

func TestPacketIDsVaryByVersion(t *testing.T) {
	for _, tt := range []struct {
		ver *proto.Version
		id  proto.PacketID
	}{
		{version.Minecraft_1_7_2, 0x00},
		{version.Minecraft_1_8, 0x00},
		{version.Minecraft_1_9, 0x0B},
		{version.Minecraft_1_12, 0x0C},
		{version.Minecraft_1_12_1, 0x0B},
		{version.Minecraft_1_13, 0x0E},
		{version.Minecraft_1_17, 0x0F},
		{version.Minecraft_1_20_2, 0x14},
		{version.Minecraft_1_20_5, 0x18},
		{version.Minecraft_1_21, 0x18},
	} {
		r := Play.ServerBound.ProtocolRegistry(tt.ver.Protocol)
		require.NotNil(t, r, "no registry for %s", tt.ver)
		id, found := r.PacketID(&p.KeepAlive{})
		require.True(t, found, "KeepAlive not registered for %s", tt.ver)
		assert.Equal(t, tt.id, id, "wrong KeepAlive id for %s", tt.ver)
	}
}

func TestCreatePacket_UnknownID(t *testing.T) {
	r := Play.ClientBound.ProtocolRegistry(version.Minecraft_1_20_3.Protocol)
	require.NotNil(t, r)
	assert.Nil(t, r.CreatePacket(0x7F), "unknown id must create no packet")
}

func TestCreatePacket_ReturnsNewInstance(t *testing.T) {
	r := Handshake.ServerBound.ProtocolRegistry(version.Minecraft_1_7_2.Protocol)
	require.NotNil(t, r)
	a := r.CreatePacket(0x00)
	b := r.CreatePacket(0x00)
	require.IsType(t, &p.Handshake{}, a)
	assert.NotSame(t, a, b)
}

func TestFallbackToMinimumVersion(t *testing.T) {
	// The handshake registry falls back to the minimum version
	// for unknown protocol numbers.
	r := Handshake.ServerBound.ProtocolRegistry(proto.Protocol(999999))
	require.NotNil(t, r)
	assert.True(t, r.HasPacketID(0x00))

	// The play registry must not fall back.
	assert.Nil(t, Play.ServerBound.ProtocolRegistry(proto.Protocol(999999)))
}

func TestRegister_OverlappingIDsPanic(t *testing.T) {
	r := NewPacketRegistry(proto.ServerBound)
	r.Register(&p.StatusRequest{}, m(0x00, version.Minecraft_1_7_2))
	assert.Panics(t, func() {
		// Same id range registered twice is a startup configuration error.
		r.Register(&p.StatusPing{}, m(0x00, version.Minecraft_1_7_2))
	})
}

func TestRegister_SameTypeTwicePanics(t *testing.T) {
	r := NewPacketRegistry(proto.ServerBound)
	r.Register(&p.StatusRequest{}, m(0x00, version.Minecraft_1_7_2))
	assert.Panics(t, func() {
		r.Register(&p.StatusRequest{}, m(0x01, version.Minecraft_1_7_2))
	})
}

func TestFromDirection(t *testing.T) {
	sb := FromDirection(proto.ServerBound, Login, version.Minecraft_1_20_2.Protocol)
	require.NotNil(t, sb)
	_, found := sb.PacketID(&p.ServerLogin{})
	assert.True(t, found)

	cb := FromDirection(proto.ClientBound, Login, version.Minecraft_1_20_2.Protocol)
	require.NotNil(t, cb)
	_, found = cb.PacketID(&p.ServerLoginSuccess{})
	assert.True(t, found)
}
