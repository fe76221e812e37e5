package state

import (
	p "github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/chat"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/config"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	"github.com/bifrostmc/bifrost/pkg/proto/state/states"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// The registries storing the packets for each protocol state.
var (
	Handshake = NewRegistry(states.HandshakeState)
	Status    = NewRegistry(states.StatusState)
	Login     = NewRegistry(states.LoginState)
	Config    = NewRegistry(states.ConfigState)
	Play      = NewRegistry(states.PlayState)
)

func init() {
	Handshake.ServerBound.Register(&p.Handshake{},
		m(0x00, version.Minecraft_1_7_2))

	Status.ServerBound.Register(&p.StatusRequest{},
		m(0x00, version.Minecraft_1_7_2))
	Status.ServerBound.Register(&p.StatusPing{},
		m(0x01, version.Minecraft_1_7_2))

	Status.ClientBound.Register(&p.StatusResponse{},
		m(0x00, version.Minecraft_1_7_2))
	Status.ClientBound.Register(&p.StatusPing{},
		m(0x01, version.Minecraft_1_7_2))

	Login.ServerBound.Register(&p.ServerLogin{},
		m(0x00, version.Minecraft_1_7_2))
	Login.ServerBound.Register(&p.EncryptionResponse{},
		m(0x01, version.Minecraft_1_7_2))
	Login.ServerBound.Register(&p.LoginPluginResponse{},
		m(0x02, version.Minecraft_1_13))
	Login.ServerBound.Register(&p.LoginAcknowledged{},
		m(0x03, version.Minecraft_1_20_2))

	Login.ClientBound.Register(&p.Disconnect{},
		m(0x00, version.Minecraft_1_7_2))
	Login.ClientBound.Register(&p.EncryptionRequest{},
		m(0x01, version.Minecraft_1_7_2))
	Login.ClientBound.Register(&p.ServerLoginSuccess{},
		m(0x02, version.Minecraft_1_7_2))
	Login.ClientBound.Register(&p.SetCompression{},
		m(0x03, version.Minecraft_1_8))
	Login.ClientBound.Register(&p.LoginPluginMessage{},
		m(0x04, version.Minecraft_1_13))

	// The configuration state exists since 1.20.2.
	Config.ServerBound.Fallback = false
	Config.ClientBound.Fallback = false

	Config.ServerBound.Register(&p.ClientSettings{},
		m(0x00, version.Minecraft_1_20_2))
	Config.ServerBound.Register(&plugin.Message{},
		m(0x01, version.Minecraft_1_20_2),
		m(0x02, version.Minecraft_1_20_5))
	Config.ServerBound.Register(&config.FinishedUpdate{},
		m(0x02, version.Minecraft_1_20_2),
		m(0x03, version.Minecraft_1_20_5))
	Config.ServerBound.Register(&p.KeepAlive{},
		m(0x03, version.Minecraft_1_20_2),
		m(0x04, version.Minecraft_1_20_5))
	Config.ServerBound.Register(&config.KnownPacks{},
		m(0x07, version.Minecraft_1_20_5))

	Config.ClientBound.Register(&plugin.Message{},
		m(0x00, version.Minecraft_1_20_2),
		m(0x01, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&p.Disconnect{},
		m(0x01, version.Minecraft_1_20_2),
		m(0x02, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&config.FinishedUpdate{},
		m(0x02, version.Minecraft_1_20_2),
		m(0x03, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&p.KeepAlive{},
		m(0x03, version.Minecraft_1_20_2),
		m(0x04, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&config.RegistrySync{},
		m(0x05, version.Minecraft_1_20_2),
		m(0x07, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&config.TagsUpdate{},
		m(0x08, version.Minecraft_1_20_2),
		m(0x0D, version.Minecraft_1_20_5))
	Config.ClientBound.Register(&config.KnownPacks{},
		m(0x0E, version.Minecraft_1_20_5))

	// The play state forwards unknown ids opaquely, never fall back.
	Play.ServerBound.Fallback = false
	Play.ClientBound.Fallback = false

	Play.ServerBound.Register(&p.KeepAlive{},
		m(0x00, version.Minecraft_1_7_2),
		m(0x0B, version.Minecraft_1_9),
		m(0x0C, version.Minecraft_1_12),
		m(0x0B, version.Minecraft_1_12_1),
		m(0x0E, version.Minecraft_1_13),
		m(0x0F, version.Minecraft_1_14),
		m(0x10, version.Minecraft_1_16),
		m(0x0F, version.Minecraft_1_17),
		m(0x11, version.Minecraft_1_19),
		m(0x12, version.Minecraft_1_19_1),
		m(0x11, version.Minecraft_1_19_3),
		m(0x12, version.Minecraft_1_19_4),
		m(0x14, version.Minecraft_1_20_2),
		m(0x15, version.Minecraft_1_20_3),
		m(0x18, version.Minecraft_1_20_5),
	)
	Play.ServerBound.Register(&plugin.Message{},
		m(0x17, version.Minecraft_1_7_2),
		m(0x09, version.Minecraft_1_9),
		m(0x0A, version.Minecraft_1_12),
		m(0x09, version.Minecraft_1_12_1),
		m(0x0A, version.Minecraft_1_13),
		m(0x0B, version.Minecraft_1_14),
		m(0x0A, version.Minecraft_1_17),
		m(0x0C, version.Minecraft_1_19),
		m(0x0D, version.Minecraft_1_19_1),
		m(0x0C, version.Minecraft_1_19_3),
		m(0x0D, version.Minecraft_1_19_4),
		m(0x0F, version.Minecraft_1_20_2),
		m(0x10, version.Minecraft_1_20_3),
		m(0x12, version.Minecraft_1_20_5),
	)
	Play.ServerBound.Register(&p.ClientSettings{},
		m(0x15, version.Minecraft_1_7_2),
		m(0x04, version.Minecraft_1_9),
		m(0x05, version.Minecraft_1_12),
		m(0x04, version.Minecraft_1_12_1),
		m(0x05, version.Minecraft_1_14),
		m(0x07, version.Minecraft_1_19),
		m(0x08, version.Minecraft_1_19_1),
		m(0x07, version.Minecraft_1_19_3),
		m(0x08, version.Minecraft_1_19_4),
		m(0x09, version.Minecraft_1_20_2),
		m(0x0A, version.Minecraft_1_20_5),
	)
	Play.ServerBound.Register(&config.AckConfiguration{},
		m(0x0B, version.Minecraft_1_20_2),
		m(0x0C, version.Minecraft_1_20_5),
	)

	Play.ClientBound.Register(&p.KeepAlive{},
		m(0x00, version.Minecraft_1_7_2),
		m(0x1F, version.Minecraft_1_9),
		m(0x21, version.Minecraft_1_13),
		m(0x20, version.Minecraft_1_14),
		m(0x21, version.Minecraft_1_15),
		m(0x20, version.Minecraft_1_16),
		m(0x1F, version.Minecraft_1_16_2),
		m(0x21, version.Minecraft_1_17),
		m(0x1E, version.Minecraft_1_19),
		m(0x20, version.Minecraft_1_19_1),
		m(0x1F, version.Minecraft_1_19_3),
		m(0x23, version.Minecraft_1_19_4),
		m(0x24, version.Minecraft_1_20_2),
		m(0x26, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&p.JoinGame{},
		m(0x01, version.Minecraft_1_7_2),
		m(0x23, version.Minecraft_1_9),
		m(0x25, version.Minecraft_1_13),
		m(0x26, version.Minecraft_1_15),
		m(0x25, version.Minecraft_1_16),
		m(0x24, version.Minecraft_1_16_2),
		m(0x26, version.Minecraft_1_17),
		m(0x23, version.Minecraft_1_19),
		m(0x25, version.Minecraft_1_19_1),
		m(0x24, version.Minecraft_1_19_3),
		m(0x28, version.Minecraft_1_19_4),
		m(0x29, version.Minecraft_1_20_2),
		m(0x2B, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&p.Respawn{},
		m(0x07, version.Minecraft_1_7_2),
		m(0x33, version.Minecraft_1_9),
		m(0x34, version.Minecraft_1_12),
		m(0x35, version.Minecraft_1_12_1),
		m(0x38, version.Minecraft_1_13),
		m(0x3A, version.Minecraft_1_14),
		m(0x3B, version.Minecraft_1_15),
		m(0x3A, version.Minecraft_1_16),
		m(0x39, version.Minecraft_1_16_2),
		m(0x3D, version.Minecraft_1_17),
		m(0x3B, version.Minecraft_1_19),
		m(0x3E, version.Minecraft_1_19_1),
		m(0x3D, version.Minecraft_1_19_3),
		m(0x41, version.Minecraft_1_19_4),
		m(0x43, version.Minecraft_1_20_2),
		m(0x45, version.Minecraft_1_20_3),
		m(0x47, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&p.Disconnect{},
		m(0x40, version.Minecraft_1_7_2),
		m(0x1A, version.Minecraft_1_9),
		m(0x1B, version.Minecraft_1_13),
		m(0x1A, version.Minecraft_1_14),
		m(0x1B, version.Minecraft_1_15),
		m(0x1A, version.Minecraft_1_16),
		m(0x19, version.Minecraft_1_16_2),
		m(0x1A, version.Minecraft_1_17),
		m(0x17, version.Minecraft_1_19),
		m(0x19, version.Minecraft_1_19_1),
		m(0x17, version.Minecraft_1_19_3),
		m(0x1A, version.Minecraft_1_19_4),
		m(0x1B, version.Minecraft_1_20_2),
		m(0x1D, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&plugin.Message{},
		m(0x3F, version.Minecraft_1_7_2),
		m(0x18, version.Minecraft_1_9),
		m(0x19, version.Minecraft_1_13),
		m(0x18, version.Minecraft_1_14),
		m(0x19, version.Minecraft_1_15),
		m(0x18, version.Minecraft_1_16),
		m(0x17, version.Minecraft_1_16_2),
		m(0x18, version.Minecraft_1_17),
		m(0x15, version.Minecraft_1_19),
		m(0x16, version.Minecraft_1_19_1),
		m(0x15, version.Minecraft_1_19_3),
		m(0x17, version.Minecraft_1_19_4),
		m(0x18, version.Minecraft_1_20_2),
		m(0x19, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&chat.LegacyChat{},
		m(0x02, version.Minecraft_1_7_2),
		m(0x0F, version.Minecraft_1_9),
		m(0x0E, version.Minecraft_1_13),
		m(0x0F, version.Minecraft_1_15),
		m(0x0E, version.Minecraft_1_16),
		ml(0x0F, version.Minecraft_1_17, version.Minecraft_1_18_2),
	)
	Play.ClientBound.Register(&chat.SystemChat{},
		m(0x5F, version.Minecraft_1_19),
		m(0x62, version.Minecraft_1_19_1),
		m(0x60, version.Minecraft_1_19_3),
		m(0x64, version.Minecraft_1_19_4),
		m(0x67, version.Minecraft_1_20_2),
		m(0x69, version.Minecraft_1_20_3),
		m(0x6C, version.Minecraft_1_20_5),
	)
	Play.ClientBound.Register(&config.StartUpdate{},
		m(0x65, version.Minecraft_1_20_2),
		m(0x67, version.Minecraft_1_20_3),
		m(0x69, version.Minecraft_1_20_5),
	)
}

// FromState returns the registry of a protocol state.
func FromState(s states.State) *Registry {
	switch s {
	case states.HandshakeState:
		return Handshake
	case states.StatusState:
		return Status
	case states.LoginState:
		return Login
	case states.ConfigState:
		return Config
	default:
		return Play
	}
}
