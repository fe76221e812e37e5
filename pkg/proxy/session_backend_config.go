package proxy

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	cfgpacket "github.com/bifrostmc/bifrost/pkg/proto/packet/config"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
)

// backendConfigSessionHandler handles the configuration phase (1.20.2+)
// of a backend server connection, relaying registry data to the client
// and completing the switch into the play state on both sides.
type backendConfigSessionHandler struct {
	serverConn *serverConnection
	requestCtx *connRequestCxt
	log        logr.Logger

	netmc.NopSessionHandler
}

func newBackendConfigSessionHandler(serverConn *serverConnection, requestCtx *connRequestCxt) netmc.SessionHandler {
	return &backendConfigSessionHandler{
		serverConn: serverConn,
		requestCtx: requestCtx,
		log:        serverConn.log.WithName("backendConfigSession"),
	}
}

var _ netmc.SessionHandler = (*backendConfigSessionHandler)(nil)

func (b *backendConfigSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// Forward unknown configuration data to the player.
		b.forwardToPlayer(pc, nil)
		return
	}
	if !b.shouldHandle() {
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.KeepAlive:
		b.forwardToPlayer(pc, nil)
	case *cfgpacket.RegistrySync:
		b.forwardToPlayer(pc, nil)
	case *cfgpacket.TagsUpdate:
		b.forwardToPlayer(pc, nil)
	case *cfgpacket.KnownPacks:
		b.forwardToPlayer(pc, nil)
	case *cfgpacket.FinishedUpdate:
		b.handleFinishedUpdate()
	case *plugin.Message:
		b.handlePluginMessage(p, pc)
	case *packet.Disconnect:
		b.handleDisconnect(p)
	default:
		b.log.V(1).Info("received unexpected packet from backend server during configuration",
			"packetType", reflect.TypeOf(p))
		b.forwardToPlayer(pc, nil)
	}
}

func (b *backendConfigSessionHandler) shouldHandle() bool {
	if b.serverConn.active() {
		return true
	}
	// Obsolete connection
	b.serverConn.disconnect()
	return false
}

func (b *backendConfigSessionHandler) handleDisconnect(p *packet.Disconnect) {
	b.serverConn.disconnect()
	result := disconnectResultForPacket(b.log.V(1), p,
		b.serverConn.player.Protocol(), b.serverConn.server, true)
	b.requestCtx.result(result, nil)
}

func (b *backendConfigSessionHandler) handlePluginMessage(p *plugin.Message, pc *proto.PacketContext) {
	if plugin.McBrand(p) {
		_ = b.serverConn.player.WritePacket(plugin.RewriteMinecraftBrand(p,
			b.serverConn.player.Protocol()))
		return
	}
	b.forwardToPlayer(pc, nil)
}

// handleFinishedUpdate relays the backend's configuration finish to the
// client and completes the transition into the play state on both sides
// once the client acknowledged.
func (b *backendConfigSessionHandler) handleFinishedUpdate() {
	smc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	player := b.serverConn.player

	configHandler, ok := player.SessionHandler().(*clientConfigSessionHandler)
	if !ok {
		err := fmt.Errorf("expected client config session handler, got %T", player.SessionHandler())
		b.log.Error(err, "error handling backend finished update packet")
		b.serverConn.disconnect()
		b.requestCtx.result(nil, err)
		return
	}

	// The backend now awaits our own FinishedUpdate and will follow up
	// with JoinGame once it got it, so move the reader to play already.
	smc.Reader().SetState(state.Play)

	done := configHandler.handleBackendFinishUpdate(b.serverConn)
	if done == nil {
		err := errors.New("failed relaying configuration finish to client")
		b.serverConn.disconnect()
		b.requestCtx.result(nil, err)
		return
	}
	done.ThenAccept(func(any) {
		if err := smc.WritePacket(&cfgpacket.FinishedUpdate{}); err != nil {
			b.log.Error(err, "error writing FinishedUpdate packet to backend")
			b.serverConn.disconnect()
			b.requestCtx.result(nil, fmt.Errorf("error writing FinishedUpdate packet: %w", err))
			return
		}
		smc.Writer().SetState(state.Play)

		// Await the backend's JoinGame to complete the switch.
		smc.SetSessionHandler(newBackendTransitionSessionHandler(b.serverConn, b.requestCtx))
	})
}

func (b *backendConfigSessionHandler) Disconnected() {
	b.requestCtx.result(nil, errors.New("unexpectedly disconnected from remote server"))
}

// forwardToPlayer forwards packets to the player,
// preferring the PacketContext payload.
func (b *backendConfigSessionHandler) forwardToPlayer(packetContext *proto.PacketContext, packet proto.Packet) {
	if packetContext == nil {
		_ = b.serverConn.player.WritePacket(packet)
		return
	}
	_ = b.serverConn.player.Write(packetContext.Payload)
}
