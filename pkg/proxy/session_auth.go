package proxy

import (
	"context"
	"time"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// authSessionHandler completes the login protocol phase: it sets up
// compression, sends the login success and waits for the client's
// acknowledgement on 1.20.2+ before handing over to the configuration
// or play phase.
type authSessionHandler struct {
	inbound *initialInbound
	player  *connectedPlayer
	proxy   *Proxy
	log     logr.Logger

	onlineMode bool

	netmc.NopSessionHandler
}

func newAuthSessionHandler(inbound *initialInbound, player *connectedPlayer, onlineMode bool) netmc.SessionHandler {
	return &authSessionHandler{
		inbound:    inbound,
		player:     player,
		proxy:      player.proxy,
		log:        player.log.WithName("authSession"),
		onlineMode: onlineMode,
	}
}

func (a *authSessionHandler) Disconnected() {
	a.player.teardown()
}

func (a *authSessionHandler) Activated() {
	cfg := a.proxy.cfg
	player := a.player

	// Send the compression threshold and install the filter right after
	// the packet was flushed, so the next packet is the first compressed one.
	threshold := cfg.Compression.Threshold
	if threshold >= 0 && player.Protocol().GreaterEqual(version.Minecraft_1_8) {
		err := player.WritePacket(&packet.SetCompression{Threshold: threshold})
		if err != nil {
			_ = player.Close()
			return
		}
		if err = player.SetCompressionThreshold(threshold); err != nil {
			a.log.Error(err, "error setting compression threshold")
			player.Disconnect(internalServerConnectionError)
			return
		}
	}

	// With no forwarding, backends synthesize their own offline-mode UUID
	// for the player; hand the client the matching one.
	playerID := player.ID()
	if cfg.Forwarding.Mode == config.NoneForwardingMode {
		playerID = uuid.OfflinePlayerUUID(player.Username())
	}
	if player.WritePacket(&packet.ServerLoginSuccess{
		UUID:       playerID,
		Username:   player.Username(),
		Properties: player.GameProfile().Properties,
	}) != nil {
		return
	}

	if player.Protocol().GreaterEqual(version.Minecraft_1_20_2) {
		// Stay in the login state until the client acknowledged,
		// see HandlePacket.
		a.completeLoginProtocolPhase(false)
		return
	}
	player.SetState(state.Play)
	a.completeLoginProtocolPhase(true)
}

func (a *authSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		_ = a.player.Close()
		return
	}
	switch pc.Packet.(type) {
	case *packet.LoginAcknowledged:
		a.handleLoginAcknowledged()
	default:
		// No other packet is expected during auth completion.
		_ = a.player.Close()
	}
}

// completeLoginProtocolPhase fires the login events and, when connect is
// true, immediately begins the initial server connect. On 1.20.2+ the
// connect is deferred until the client acknowledged the login.
func (a *authSessionHandler) completeLoginProtocolPhase(connect bool) {
	player := a.player

	loginEvent := &LoginEvent{player: player}
	a.proxy.Event().Fire(loginEvent)

	if !player.Active() {
		a.proxy.Event().Fire(&DisconnectEvent{
			player:      player,
			loginStatus: CanceledByUserBeforeCompleteLoginStatus,
		})
		return
	}

	if !loginEvent.Allowed() {
		player.Disconnect(loginEvent.Reason())
		return
	}

	if !a.proxy.registerConnection(player) {
		player.Disconnect(alreadyConnected)
		return
	}

	a.proxy.Event().Fire(&PostLoginEvent{player: player})

	if connect {
		player.SetSessionHandler(newClientPlaySessionHandler(player))
		a.connectToInitialServer()
	}
}

// handleLoginAcknowledged moves a 1.20.2+ client into the
// configuration state.
func (a *authSessionHandler) handleLoginAcknowledged() {
	player := a.player
	player.SetState(state.Config)
	player.SetSessionHandler(newClientConfigSessionHandler(player))
	a.connectToInitialServer()
}

// connectToInitialServer picks the initial server
// and starts the backend connect.
func (a *authSessionHandler) connectToInitialServer() {
	player := a.player
	initialFromConfig := player.nextServerToTry(nil)
	chooseServer := &PlayerChooseInitialServerEvent{
		player:        player,
		initialServer: initialFromConfig,
	}
	a.proxy.Event().Fire(chooseServer)
	if !player.Active() || // player was disconnected
		player.CurrentServer() != nil { // player was already connected to a server
		return
	}
	if chooseServer.InitialServer() == nil {
		player.Disconnect(noAvailableServers)
		return
	}
	ctx, cancel := context.WithTimeout(player.Context(),
		time.Duration(a.proxy.cfg.ConnectionTimeout)*time.Millisecond)
	defer cancel()
	player.createConnectionRequest(chooseServer.InitialServer()).ConnectWithIndication(ctx)
}
