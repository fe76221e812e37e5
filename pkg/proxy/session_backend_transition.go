package proxy

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
)

// backendTransitionSessionHandler awaits the JoinGame packet of a freshly
// logged in backend connection and performs the client-side switch.
type backendTransitionSessionHandler struct {
	serverConn    *serverConnection
	requestCtx    *connRequestCxt
	listenDoneCtx chan struct{}
	log           logr.Logger

	netmc.NopSessionHandler
}

func newBackendTransitionSessionHandler(serverConn *serverConnection, requestCtx *connRequestCxt) netmc.SessionHandler {
	return &backendTransitionSessionHandler{
		serverConn: serverConn,
		requestCtx: requestCtx,
		log:        serverConn.log.WithName("backendTransitionSession"),
	}
}

var _ netmc.SessionHandler = (*backendTransitionSessionHandler)(nil)

func (b *backendTransitionSessionHandler) Activated() {
	b.listenDoneCtx = make(chan struct{})
	go func() {
		select {
		case <-b.listenDoneCtx:
		case <-b.requestCtx.Done():
			// Check again, the request context may be canceled
			// before Deactivated() was run.
			select {
			case <-b.listenDoneCtx:
				return
			default:
				b.requestCtx.result(nil, errors.New(
					"context deadline exceeded while transitioning player to backend server"))
				b.serverConn.disconnect()
			}
		}
	}()
}

func (b *backendTransitionSessionHandler) Deactivated() {
	if b.listenDoneCtx != nil {
		close(b.listenDoneCtx)
	}
}

func (b *backendTransitionSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		return // ignore unknown packets during transition
	}
	if !b.shouldHandle() {
		return
	}
	switch p := pc.Packet.(type) {
	case *packet.JoinGame:
		b.handleJoinGame(pc, p)
	case *packet.KeepAlive:
		b.handleKeepAlive(p)
	case *packet.Disconnect:
		b.handleDisconnect(p)
	case *plugin.Message:
		b.handlePluginMessage(p)
	default:
		b.log.V(1).Info("received unexpected packet from backend server while transitioning",
			"packetType", reflect.TypeOf(p))
	}
}

func (b *backendTransitionSessionHandler) shouldHandle() bool {
	if b.serverConn.active() {
		return true
	}
	// Obsolete connection
	b.serverConn.disconnect()
	return false
}

func (b *backendTransitionSessionHandler) handleKeepAlive(p *packet.KeepAlive) {
	// Answer the backend ourselves, the client is not attached yet.
	_ = b.serverConn.conn().WritePacket(p)
}

func (b *backendTransitionSessionHandler) handleDisconnect(p *packet.Disconnect) {
	result := disconnectResultForPacket(b.log.V(1), p,
		b.serverConn.player.Protocol(), b.serverConn.server, true)
	b.requestCtx.result(result, nil)
	b.serverConn.disconnect()
}

func (b *backendTransitionSessionHandler) handlePluginMessage(p *plugin.Message) {
	if plugin.IsRegister(p) {
		b.serverConn.player.addKnownChannels(plugin.Channels(p)...)
	} else if plugin.IsUnregister(p) {
		b.serverConn.player.removeKnownChannels(plugin.Channels(p)...)
	}
	_ = b.serverConn.player.WritePacket(p)
}

func (b *backendTransitionSessionHandler) handleJoinGame(pc *proto.PacketContext, p *packet.JoinGame) {
	smc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}

	failResult := func(format string, a ...any) {
		err := fmt.Errorf(format, a...)
		b.log.Error(err, "unable to switch player to new server, disconnecting")
		b.serverConn.player.Disconnect(internalServerConnectionError)
		b.requestCtx.result(nil, err)
	}

	player := b.serverConn.player
	player.mu.Lock()
	existingConn := player.connectedServer_
	var previousServer RegisteredServer
	if existingConn != nil {
		previousServer = existingConn.server
		// Shut down the existing server connection.
		player.connectedServer_ = nil
		player.mu.Unlock()
		existingConn.disconnect()

		// Send a keep-alive to try to avoid timeouts.
		if err := netmc.SendKeepAlive(player); err != nil {
			failResult("could not send keep alive packet, player might have disconnected: %v", err)
			return
		}
	} else {
		player.mu.Unlock()
	}

	// The goods are in hand, we got JoinGame.
	// Transition completely to the new state.
	connectedEvent := &ServerConnectedEvent{
		player:         player,
		server:         b.serverConn.server,
		previousServer: previousServer, // nil-able
	}
	// Fire the event in the same goroutine, no more incoming packets
	// may be read while the JoinGame is processed.
	b.proxy().Event().Fire(connectedEvent)
	// Make sure we can still transition,
	// an event handler may have disconnected the player.
	if !player.Active() {
		failResult("player was disconnected")
		return
	}

	if previousServer == nil {
		b.log.Info("player is joining the initial server")
	} else {
		b.log.Info("player is switching the server",
			"previous", previousServer.ServerInfo().Name(),
			"previousAddr", previousServer.ServerInfo().Addr())
	}

	// Ensure the client uses the play session handler.
	playHandler, ok := player.SessionHandler().(*clientPlaySessionHandler)
	if !ok {
		playHandler = newClientPlaySessionHandler(player)
		player.SetSessionHandler(playHandler)
	}

	if !playHandler.handleBackendJoinGame(pc, p, b.serverConn) {
		failResult("JoinGame packet could not be handled, client-side switching server failed")
		return
	}

	// Strap on the play session handler for the server. We have nothing
	// more to do with this connection once this task finishes.
	backendPlay, err := newBackendPlaySessionHandler(b.serverConn)
	if err != nil {
		failResult("error creating backend play session handler: %v", err)
		return
	}
	smc.SetSessionHandler(backendPlay)

	// Now set the connected server.
	player.setConnectedServer(b.serverConn)

	// We are done.
	b.proxy().Event().Fire(newServerPostConnectEvent(player, previousServer))
	b.requestCtx.result(plainConnectionResult(SuccessConnectionStatus, b.serverConn.server), nil)
}

func (b *backendTransitionSessionHandler) Disconnected() {
	b.requestCtx.result(nil, errors.New("unexpectedly disconnected from remote server"))
}

func (b *backendTransitionSessionHandler) proxy() *Proxy {
	return b.serverConn.proxy
}
