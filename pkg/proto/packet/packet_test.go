package packet

import (
	"bytes"
	"testing"

	"github.com/Tnze/go-mc/nbt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// roundTrip encodes the packet for each version and decodes it
// into a fresh instance, which must carry equal contents.
func roundTrip(t *testing.T, newPacket func() proto.Packet, sample proto.Packet, versions ...*proto.Version) {
	t.Helper()
	for _, v := range versions {
		c := &proto.PacketContext{Protocol: v.Protocol}
		buf := new(bytes.Buffer)
		err := util.RecoverFunc(func() error {
			return sample.Encode(c, buf)
		})
		require.NoError(t, err, "encode for %s", v)

		decoded := newPacket()
		err = util.RecoverFunc(func() error {
			return decoded.Decode(c, buf)
		})
		require.NoError(t, err, "decode for %s", v)
		assert.Zero(t, buf.Len(), "decoder left bytes for %s", v)
		assert.Equal(t, sample, decoded, "contents differ for %s", v)
	}
}

func TestHandshake_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &Handshake{} }, &Handshake{
		ProtocolVersion: 765,
		ServerAddress:   "lobby.example.com",
		Port:            25565,
		NextStatus:      2,
	}, version.Minecraft_1_7_2, version.Minecraft_1_20_3)
}

func TestStatus_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &StatusPing{} },
		&StatusPing{RandomID: 0x1122334455667788},
		version.Minecraft_1_7_2, version.Minecraft_1_21)
	roundTrip(t, func() proto.Packet { return &StatusResponse{} },
		&StatusResponse{Status: `{"description":{"text":"motd"}}`},
		version.Minecraft_1_7_2, version.Minecraft_1_21)
}

func TestKeepAlive_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &KeepAlive{} },
		&KeepAlive{RandomID: 123456789},
		version.Minecraft_1_7_2, version.Minecraft_1_8,
		version.Minecraft_1_12_2, version.Minecraft_1_21)
}

func TestServerLogin_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &ServerLogin{} },
		&ServerLogin{Username: "Notch"},
		version.Minecraft_1_7_2, version.Minecraft_1_18_2)

	// Since 1.20.2 the profile id is mandatory.
	id, err := uuid.Parse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	require.NoError(t, err)
	roundTrip(t, func() proto.Packet { return &ServerLogin{} },
		&ServerLogin{Username: "Notch", HolderID: id},
		version.Minecraft_1_20_2, version.Minecraft_1_21)
}

func TestServerLoginSuccess_RoundTrip(t *testing.T) {
	id := uuid.OfflinePlayerUUID("Notch")
	roundTrip(t, func() proto.Packet { return &ServerLoginSuccess{} },
		&ServerLoginSuccess{UUID: id, Username: "Notch"},
		version.Minecraft_1_7_6, version.Minecraft_1_16, version.Minecraft_1_18_2)
	roundTrip(t, func() proto.Packet { return &ServerLoginSuccess{} },
		&ServerLoginSuccess{
			UUID:     id,
			Username: "Notch",
			Properties: []profile.Property{
				{Name: "textures", Value: "dmFsdWU=", Signature: "c2ln"},
			},
		},
		version.Minecraft_1_19, version.Minecraft_1_21)
}

func TestEncryption_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &EncryptionRequest{} },
		&EncryptionRequest{
			ServerID:    "",
			PublicKey:   bytes.Repeat([]byte{0x01}, 162),
			VerifyToken: []byte{1, 2, 3, 4},
		},
		version.Minecraft_1_8, version.Minecraft_1_19_4)

	roundTrip(t, func() proto.Packet { return &EncryptionResponse{} },
		&EncryptionResponse{
			SharedSecret: bytes.Repeat([]byte{0x02}, 128),
			VerifyToken:  bytes.Repeat([]byte{0x03}, 128),
		},
		version.Minecraft_1_8, version.Minecraft_1_18_2)
}

func TestSetCompression_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &SetCompression{} },
		&SetCompression{Threshold: 256},
		version.Minecraft_1_8, version.Minecraft_1_21)
}

func TestClientSettings_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &ClientSettings{} },
		&ClientSettings{
			Locale:         "en_US",
			ViewDistance:   10,
			ChatVisibility: 0,
			ChatColors:     true,
			SkinParts:      0x7f,
			MainHand:       1,
			TextFiltering:  false,
			ClientListing:  true,
		},
		version.Minecraft_1_18, version.Minecraft_1_21)
}

func emptyCompound() util.NBT {
	return util.NBT{Type: nbt.TagCompound, Data: []byte{byte(nbt.TagEnd)}}
}

func TestJoinGame_RoundTrip_Legacy(t *testing.T) {
	levelType := "default"
	roundTrip(t, func() proto.Packet { return &JoinGame{} },
		&JoinGame{
			EntityID:          1,
			Gamemode:          0,
			Dimension:         -1,
			Difficulty:        2,
			MaxPlayers:        20,
			LevelType:         &levelType,
			ReducedDebugInfo:  true,
		},
		version.Minecraft_1_8, version.Minecraft_1_12_2)
}

func TestJoinGame_RoundTrip_1202Up(t *testing.T) {
	levelName := "minecraft:overworld"
	roundTrip(t, func() proto.Packet { return &JoinGame{} },
		&JoinGame{
			EntityID:           7,
			Gamemode:           1,
			Hardcore:           false,
			MaxPlayers:         100,
			ViewDistance:       10,
			SimulationDistance: 10,
			ShowRespawnScreen:  true,
			DoLimitedCrafting:  false,
			LevelNames:         []string{"minecraft:overworld"},
			DimensionInfo: &DimensionInfo{
				RegistryIdentifier: "minecraft:overworld",
				LevelName:          &levelName,
			},
			PartialHashedSeed: 42,
			PortalCooldown:    0,
		},
		version.Minecraft_1_20_2, version.Minecraft_1_20_3)
}

func TestRespawn_RoundTrip(t *testing.T) {
	roundTrip(t, func() proto.Packet { return &Respawn{} },
		&Respawn{
			Dimension:         -1,
			Difficulty:        1,
			Gamemode:          0,
			LevelType:         "default",
		},
		version.Minecraft_1_8, version.Minecraft_1_12_2)

	levelName := "minecraft:the_nether"
	roundTrip(t, func() proto.Packet { return &Respawn{} },
		&Respawn{
			PartialHashedSeed: 7,
			Gamemode:          0,
			DimensionInfo: &DimensionInfo{
				RegistryIdentifier: "minecraft:the_nether",
				LevelName:          &levelName,
				Flat:               false,
				DebugType:          false,
			},
			PreviousGamemode: -1,
			DataToKeep:       1,
		},
		version.Minecraft_1_20_2, version.Minecraft_1_20_3)
}

func TestJoinGame_RoundTrip_116(t *testing.T) {
	levelName := "minecraft:overworld"
	roundTrip(t, func() proto.Packet { return &JoinGame{} },
		&JoinGame{
			EntityID:          3,
			Gamemode:          0,
			PreviousGamemode:  -1,
			Hardcore:          true,
			MaxPlayers:        10,
			ViewDistance:      8,
			ShowRespawnScreen: true,
			LevelNames:        []string{"minecraft:overworld"},
			Registry:          emptyCompound(),
			DimensionInfo: &DimensionInfo{
				RegistryIdentifier: "minecraft:overworld",
				LevelName:          &levelName,
			},
			PartialHashedSeed: 11,
		},
		version.Minecraft_1_16)
}
