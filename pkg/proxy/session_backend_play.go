package proxy

import (
	"errors"
	"time"

	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
)

// backendPlaySessionHandler forwards gameplay traffic of an attached
// backend server to the player.
type backendPlaySessionHandler struct {
	serverConn           *serverConnection
	playerSessionHandler *clientPlaySessionHandler
	exceptionTriggered   atomic.Bool

	netmc.NopSessionHandler
}

func newBackendPlaySessionHandler(serverConn *serverConnection) (netmc.SessionHandler, error) {
	psh, ok := serverConn.player.SessionHandler().(*clientPlaySessionHandler)
	if !ok {
		return nil, errors.New("initializing backendPlaySessionHandler without backing client play session handler")
	}
	return &backendPlaySessionHandler{
		serverConn:           serverConn,
		playerSessionHandler: psh,
	}, nil
}

var _ netmc.SessionHandler = (*backendPlaySessionHandler)(nil)

func (b *backendPlaySessionHandler) Activated() {
	b.serverConn.server.players.add(b.serverConn.player)
}

func (b *backendPlaySessionHandler) Disconnected() {
	b.serverConn.server.players.remove(b.serverConn.player)
	if b.serverConn.gracefulDisconnect.Load() || b.exceptionTriggered.Load() {
		return
	}
	if b.proxy().cfg.FailoverOnUnexpectedServerDisconnect {
		b.serverConn.player.handleDisconnectWithReason(b.serverConn.server,
			internalServerConnectionError, true)
	} else {
		b.serverConn.player.Disconnect(internalServerConnectionError)
	}
}

func (b *backendPlaySessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// Forward unknown packet to the player.
		b.forwardToPlayer(pc, nil)
		return
	}
	if !b.shouldHandle() {
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		b.handleKeepAlive(p, pc)
	case *packet.Disconnect:
		b.handleDisconnect(p)
	case *plugin.Message:
		b.handlePluginMessage(p, pc)
	default:
		b.forwardToPlayer(pc, nil)
	}
}

func (b *backendPlaySessionHandler) shouldHandle() bool {
	if b.serverConn.active() {
		return true
	}
	// Obsolete connection
	b.serverConn.disconnect()
	return false
}

func (b *backendPlaySessionHandler) handleKeepAlive(p *packet.KeepAlive, pc *proto.PacketContext) {
	b.serverConn.lastPingID.Store(p.RandomID)
	b.serverConn.lastPingSent.Store(time.Now().UnixMilli())
	b.forwardToPlayer(pc, nil) // forward on
}

func (b *backendPlaySessionHandler) handleDisconnect(p *packet.Disconnect) {
	b.serverConn.disconnect()
	reason := p.Reason.AsComponentOrNil()
	b.serverConn.player.handleDisconnectWithReason(b.serverConn.server, reason, true)
}

func (b *backendPlaySessionHandler) handlePluginMessage(p *plugin.Message, pc *proto.PacketContext) {
	// REGISTER and UNREGISTER channel bookkeeping is needed
	// to replay channels on server switches.
	if plugin.IsRegister(p) {
		b.serverConn.player.addKnownChannels(plugin.Channels(p)...)
		b.forwardToPlayer(pc, nil)
		return
	} else if plugin.IsUnregister(p) {
		b.serverConn.player.removeKnownChannels(plugin.Channels(p)...)
		b.forwardToPlayer(pc, nil)
		return
	}

	if plugin.McBrand(p) {
		serverMc, ok := b.serverConn.ensureConnected()
		if !ok {
			return
		}
		rewritten := plugin.RewriteMinecraftBrand(p, serverMc.Protocol())
		b.forwardToPlayer(nil, rewritten)
		return
	}

	if b.serverConn.player.hasKnownChannel(p.Channel) {
		e := &PluginMessageEvent{
			source:     b.serverConn,
			target:     b.serverConn.player,
			identifier: p.Channel,
			data:       p.Data,
		}
		b.proxy().Event().Fire(e)
		if !e.Allowed() {
			return
		}
	}

	b.forwardToPlayer(pc, nil)
}

// forwardToPlayer forwards packets to the player, preferring the
// PacketContext: since we already have the packet's payload we can simply
// forward it on instead of encoding the packet again, which increases
// throughput and decreases CPU and memory usage.
func (b *backendPlaySessionHandler) forwardToPlayer(packetContext *proto.PacketContext, packet proto.Packet) {
	if packetContext == nil {
		_ = b.serverConn.player.WritePacket(packet)
		return
	}
	_ = b.serverConn.player.Write(packetContext.Payload)
}

func (b *backendPlaySessionHandler) proxy() *Proxy {
	return b.serverConn.proxy
}
