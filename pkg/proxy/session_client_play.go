package proxy

import (
	"time"

	"github.com/gammazero/deque"
	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	cfgpacket "github.com/bifrostmc/bifrost/pkg/proto/packet/config"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
)

// clientPlaySessionHandler handles the play state of the connected client.
// This is effectively the primary nerve center joining backend servers
// with the player.
type clientPlaySessionHandler struct {
	log, debug logr.Logger
	player     *connectedPlayer
	spawned    atomic.Bool

	// Plugin messages sent by the client while the backend is in the play
	// state but has not finished joining, flushed in handleBackendJoinGame.
	queuedPluginMessages deque.Deque[*plugin.Message]

	netmc.NopSessionHandler
}

func newClientPlaySessionHandler(player *connectedPlayer) *clientPlaySessionHandler {
	log := player.log.WithName("clientPlaySession")
	return &clientPlaySessionHandler{
		player: player,
		log:    log,
		debug:  log.V(1),
	}
}

var _ netmc.SessionHandler = (*clientPlaySessionHandler)(nil)

func (c *clientPlaySessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		c.forwardToServer(pc)
		return
	}

	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		c.handleKeepAlive(p, pc)
	case *packet.ClientSettings:
		c.player.setSettings(p)
		c.forwardToServer(pc)
	case *plugin.Message:
		c.handlePluginMessage(p, pc)
	case *cfgpacket.AckConfiguration:
		c.handleAckConfiguration()
	default:
		c.forwardToServer(pc)
	}
}

func (c *clientPlaySessionHandler) Disconnected() {
	c.player.teardown()
}

func (c *clientPlaySessionHandler) Deactivated() {
	c.queuedPluginMessages.Clear()
}

func (c *clientPlaySessionHandler) forwardToServer(pc *proto.PacketContext) {
	if serverMc := c.canForward(); serverMc != nil {
		_ = serverMc.Write(pc.Payload)
	}
}

func (c *clientPlaySessionHandler) canForward() netmc.MinecraftConn {
	serverConn := c.player.connectedServer()
	if serverConn == nil {
		// No server connection yet, probably transitioning.
		return nil
	}
	serverMc := serverConn.conn()
	if serverMc != nil && serverConn.completedJoin.Load() {
		return serverMc
	}
	return nil
}

func (c *clientPlaySessionHandler) handleKeepAlive(p *packet.KeepAlive, pc *proto.PacketContext) {
	serverConn := c.player.connectedServer()
	if serverConn == nil || p.RandomID != serverConn.lastPingID.Load() {
		// Forward unknown keep-alive responses, the backend will
		// disconnect clients answering wrong.
		c.forwardToServer(pc)
		return
	}
	serverMc := serverConn.conn()
	if serverMc == nil {
		return
	}
	lastPingSent := time.UnixMilli(serverConn.lastPingSent.Load())
	c.player.ping.Store(time.Since(lastPingSent))
	_ = serverMc.Write(pc.Payload)
}

func (c *clientPlaySessionHandler) handlePluginMessage(p *plugin.Message, pc *proto.PacketContext) {
	serverConn := c.player.connectedServer()
	var backendConn netmc.MinecraftConn
	if serverConn != nil {
		backendConn = serverConn.conn()
	}
	if serverConn == nil || backendConn == nil {
		return
	}

	if backendConn.State() != state.Play {
		c.log.Info("a plugin message was received while the backend server was not ready, packet discarded",
			"channel", p.Channel)
		return
	}

	switch {
	case plugin.IsRegister(p):
		c.player.addKnownChannels(plugin.Channels(p)...)
		_ = backendConn.WritePacket(p)
	case plugin.IsUnregister(p):
		c.player.removeKnownChannels(plugin.Channels(p)...)
		_ = backendConn.WritePacket(p)
	case plugin.McBrand(p):
		c.player.setClientBrand(plugin.ReadBrandMessage(p.Data))
		c.player.proxy.Event().Fire(&PlayerClientBrandEvent{
			player: c.player,
			brand:  c.player.ClientBrand(),
		})
		_ = backendConn.WritePacket(plugin.RewriteMinecraftBrand(p, c.player.Protocol()))
	default:
		if !serverConn.completedJoin.Load() {
			// The client is sending messages too early, typically caused by
			// mods. Queue them to be sent once the backend finished joining.
			c.queuedPluginMessages.PushBack(p)
			return
		}
		if c.player.hasKnownChannel(p.Channel) {
			e := &PluginMessageEvent{
				source:     c.player,
				target:     serverConn,
				identifier: p.Channel,
				data:       p.Data,
			}
			c.player.proxy.Event().Fire(e)
			if !e.Allowed() {
				return
			}
		}
		_ = backendConn.Write(pc.Payload)
	}
}

// handleAckConfiguration moves the client back into the configuration
// state during a 1.20.2+ server switch.
func (c *clientPlaySessionHandler) handleAckConfiguration() {
	player := c.player
	player.SetState(state.Config)
	player.SetSessionHandler(newClientConfigSessionHandler(player))
	if f := player.configSwitchDone.Load(); f != nil {
		f.Complete(nil)
	}
}

// handleBackendJoinGame handles the JoinGame packet of the destination
// backend and is responsible for the client-side server switch.
func (c *clientPlaySessionHandler) handleBackendJoinGame(
	pc *proto.PacketContext, joinGame *packet.JoinGame, destination *serverConnection,
) (handled bool) {
	serverMc, ok := destination.ensureConnected()
	if !ok {
		return false
	}
	playerVersion := c.player.Protocol()
	if c.spawned.CompareAndSwap(false, true) {
		// Nothing special to do with regards to spawning the player.
		if c.player.BufferPayload(pc.Payload) != nil {
			return false
		}
	} else {
		// In order to handle switching to another server, you will need to
		// send two packets:
		//
		// - The join game packet from the backend server, with a different
		//   dimension
		// - A respawn with the correct dimension
		//
		// Most notably, by having the client accept the join game packet, we
		// can work around the need to perform entity ID rewrites, eliminating
		// potential issues from rewriting packets and improving compatibility
		// with mods.
		if c.player.BufferPacket(joinGame) != nil {
			return false
		}
		respawn := &packet.Respawn{
			PartialHashedSeed: joinGame.PartialHashedSeed,
			Difficulty:        joinGame.Difficulty,
			Gamemode:          joinGame.Gamemode,
			LevelType: func() string {
				if joinGame.LevelType != nil {
					return *joinGame.LevelType
				}
				return ""
			}(),
			DimensionInfo:        joinGame.DimensionInfo,
			PreviousGamemode:     joinGame.PreviousGamemode,
			CurrentDimensionData: joinGame.CurrentDimensionData,
			LastDeathPosition:    joinGame.LastDeathPosition,
			PortalCooldown:       joinGame.PortalCooldown,
		}

		// Since 1.16 a single respawn with the target dimension suffices;
		// older clients need the dimension flip to force a chunk reload.
		if playerVersion.Lower(version.Minecraft_1_16) {
			respawn.Dimension = joinGame.Dimension
			if joinGame.Dimension == 0 {
				respawn.Dimension = -1
			}
			if c.player.BufferPacket(respawn) != nil {
				return false
			}
		}

		respawn.Dimension = joinGame.Dimension
		if c.player.BufferPacket(respawn) != nil {
			return false
		}
	}

	// Tell the backend about this client's registered plugin channels.
	serverVersion := serverMc.Protocol()
	playerKnownChannels := c.player.knownChannelList()
	if len(playerKnownChannels) != 0 {
		channelsPacket := plugin.ConstructChannelsPacket(serverVersion, playerKnownChannels...)
		if serverMc.BufferPacket(channelsPacket) != nil {
			return false
		}
	}

	// Replay the cached client settings to the new backend.
	if settingsPacket := c.player.settingsPacket_(); settingsPacket != nil {
		if serverMc.BufferPacket(settingsPacket) != nil {
			return false
		}
	}

	// If plugin messages were queued during the transition, send them now.
	for c.queuedPluginMessages.Len() != 0 {
		pm := c.queuedPluginMessages.PopFront()
		if serverMc.BufferPacket(pm) != nil {
			return false
		}
	}

	// Flush everything.
	if c.player.Flush() != nil || serverMc.Flush() != nil {
		return false
	}
	destination.completeJoin()
	return true
}
