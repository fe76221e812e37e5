package proxy

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/crypto"
	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

type fakeForwardingPlayer struct {
	id       uuid.UUID
	username string
	profile  profile.GameProfile
	protocol proto.Protocol
	key      crypto.IdentifiedKey
}

func (f *fakeForwardingPlayer) ID() uuid.UUID                      { return f.id }
func (f *fakeForwardingPlayer) Username() string                   { return f.username }
func (f *fakeForwardingPlayer) GameProfile() profile.GameProfile   { return f.profile }
func (f *fakeForwardingPlayer) Protocol() proto.Protocol           { return f.protocol }
func (f *fakeForwardingPlayer) IdentifiedKey() crypto.IdentifiedKey { return f.key }

func notchPlayer(t *testing.T) *fakeForwardingPlayer {
	t.Helper()
	id, err := uuid.Parse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	return &fakeForwardingPlayer{
		id:       id,
		username: "Notch",
		profile:  profile.GameProfile{ID: id, Name: "Notch"},
		protocol: version.Minecraft_1_20_3.Protocol,
	}
}

func TestVelocityForwardingData_MACVerifies(t *testing.T) {
	secret := []byte("forwarding-secret")
	player := notchPlayer(t)

	data, err := createVelocityForwardingData(secret, "203.0.113.5", player, velocityDefaultForwardingVersion)
	require.NoError(t, err)

	payload, ok := verifyVelocityForwardingData(data, secret)
	require.True(t, ok, "MAC must verify with the right secret")

	// Decode the payload: version, address, uuid, username, property count.
	rd := bytes.NewReader(payload)
	ver, err := protoutil.ReadVarInt(rd)
	require.NoError(t, err)
	assert.Equal(t, velocityDefaultForwardingVersion, ver)
	addr, err := protoutil.ReadString(rd)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.5", addr)
	id, err := protoutil.ReadUUID(rd)
	require.NoError(t, err)
	assert.Equal(t, player.id, id)
	name, err := protoutil.ReadString(rd)
	require.NoError(t, err)
	assert.Equal(t, "Notch", name)
	props, err := protoutil.ReadProperties(rd)
	require.NoError(t, err)
	assert.Empty(t, props)
	assert.Zero(t, rd.Len(), "payload must have no trailing bytes")
}

func TestVelocityForwardingData_FlippedBitFailsMAC(t *testing.T) {
	secret := []byte("forwarding-secret")
	player := notchPlayer(t)

	data, err := createVelocityForwardingData(secret, "203.0.113.5", player, velocityDefaultForwardingVersion)
	require.NoError(t, err)

	for i := 0; i < len(data); i++ {
		corrupted := bytes.Clone(data)
		corrupted[i] ^= 0x01
		_, ok := verifyVelocityForwardingData(corrupted, secret)
		assert.False(t, ok, "flipping bit in byte %d must fail verification", i)
	}

	_, ok := verifyVelocityForwardingData(data, []byte("wrong-secret"))
	assert.False(t, ok, "wrong secret must fail verification")
}

func TestVelocityForwardingVersion_Negotiation(t *testing.T) {
	player := notchPlayer(t)

	// v1 stays v1.
	assert.Equal(t, velocityDefaultForwardingVersion,
		findForwardingVersion(velocityDefaultForwardingVersion, player))

	// 1.19.3+ clients have no login-start key: lazy session when offered.
	assert.Equal(t, velocityLazySessionForwardingVersion,
		findForwardingVersion(velocityLazySessionForwardingVersion, player))
	assert.Equal(t, velocityDefaultForwardingVersion,
		findForwardingVersion(velocityWithKeyForwardingVersion, player))

	// Out of range requests are clamped.
	assert.Equal(t, velocityLazySessionForwardingVersion,
		findForwardingVersion(99, player))

	// A keyless 1.19 client falls back to v1.
	player.protocol = version.Minecraft_1_19.Protocol
	assert.Equal(t, velocityDefaultForwardingVersion,
		findForwardingVersion(velocityWithKeyV2ForwardingVersion, player))
}

func TestLegacyForwardingAddress(t *testing.T) {
	id, err := uuid.Parse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	gameProfile := profile.GameProfile{
		ID:   id,
		Name: "Notch",
		Properties: []profile.Property{
			{Name: "textures", Value: "dmFsdWU=", Signature: "c2ln"},
		},
	}

	addr, err := createLegacyForwardingAddress("lobby.example.com", "203.0.113.5", gameProfile)
	require.NoError(t, err)

	parts := strings.Split(addr, "\x00")
	require.Len(t, parts, 4)
	assert.Equal(t, "lobby.example.com", parts[0])
	assert.Equal(t, "203.0.113.5", parts[1])
	assert.Equal(t, "069a79f444e94726a5befca90e38aaf5", parts[2])

	var props []profile.Property
	require.NoError(t, json.Unmarshal([]byte(parts[3]), &props))
	assert.Equal(t, gameProfile.Properties, props)
}

func TestBungeeGuardForwardingAddress_CarriesToken(t *testing.T) {
	id, err := uuid.Parse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	gameProfile := profile.GameProfile{ID: id, Name: "Notch"}

	addr, err := createBungeeGuardForwardingAddress(
		"lobby.example.com", "203.0.113.5", gameProfile, []byte("the-secret"))
	require.NoError(t, err)

	parts := strings.Split(addr, "\x00")
	require.Len(t, parts, 4)

	var props []profile.Property
	require.NoError(t, json.Unmarshal([]byte(parts[3]), &props))
	require.Len(t, props, 1)
	assert.Equal(t, bungeeGuardTokenProperty, props[0].Name)
	assert.Equal(t, "the-secret", props[0].Value)
}
