package proxy

import (
	"errors"
	"reflect"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/errs"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
)

// backendLoginSessionHandler drives the login phase of a new
// backend server connection.
type backendLoginSessionHandler struct {
	serverConn    *serverConnection
	requestCtx    *connRequestCxt
	listenDoneCtx chan struct{}
	log           logr.Logger

	informationForwarded atomic.Bool

	netmc.NopSessionHandler
}

var _ netmc.SessionHandler = (*backendLoginSessionHandler)(nil)

func newBackendLoginSessionHandler(serverConn *serverConnection, requestCtx *connRequestCxt) netmc.SessionHandler {
	return &backendLoginSessionHandler{
		serverConn: serverConn,
		requestCtx: requestCtx,
		log:        serverConn.log.WithName("backendLoginSession"),
	}
}

func (b *backendLoginSessionHandler) Activated() {
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
					"context deadline exceeded while logging into backend server"))
				b.serverConn.disconnect()
			}
		}
	}()
}

func (b *backendLoginSessionHandler) Deactivated() {
	if b.listenDoneCtx != nil {
		close(b.listenDoneCtx)
	}
}

func (b *backendLoginSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		return // ignore unknown packets during login
	}

	switch p := pc.Packet.(type) {
	case *packet.LoginPluginMessage:
		b.handleLoginPluginMessage(p)
	case *packet.Disconnect:
		b.handleDisconnect(p)
	case *packet.EncryptionRequest:
		b.handleEncryptionRequest()
	case *packet.SetCompression:
		b.handleSetCompression(p)
	case *packet.ServerLoginSuccess:
		b.handleServerLoginSuccess()
	default:
		b.log.V(1).Info("received unexpected packet from backend server while logging in",
			"packetType", reflect.TypeOf(p))
	}
}

// ErrServerOnlineMode indicates the backend server is in online mode
// and rejects proxied players.
var ErrServerOnlineMode = errors.New("backend server is online mode, but must be offline with a proxy")

func (b *backendLoginSessionHandler) handleEncryptionRequest() {
	// If we get an encryption request we know the server is in
	// online mode and cannot accept proxied connections.
	b.requestCtx.result(nil, ErrServerOnlineMode)
}

func (b *backendLoginSessionHandler) handleLoginPluginMessage(p *packet.LoginPluginMessage) {
	mc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	if b.serverConn.forwardingMode() == config.VelocityForwardingMode &&
		p.Channel == velocityForwardingChannel {

		requestedForwardingVersion := velocityDefaultForwardingVersion
		if len(p.Data) == 1 {
			requestedForwardingVersion = int(p.Data[0])
		}

		forwardingData, err := createVelocityForwardingData(
			b.serverConn.config().ForwardingSecret(),
			netutil.Host(b.serverConn.player.RemoteAddr()),
			b.serverConn.player, requestedForwardingVersion,
		)
		if err != nil {
			b.log.Error(err, "error creating velocity forwarding data")
			b.serverConn.disconnect()
			return
		}
		if mc.WritePacket(&packet.LoginPluginResponse{
			ID:      p.ID,
			Success: true,
			Data:    forwardingData,
		}) != nil {
			return
		}
		b.informationForwarded.Store(true)
	} else {
		// Unknown login plugin channel, we cannot handle it.
		_ = mc.WritePacket(&packet.LoginPluginResponse{
			ID:      p.ID,
			Success: false,
		})
	}
}

func (b *backendLoginSessionHandler) handleDisconnect(p *packet.Disconnect) {
	result := disconnectResultForPacket(b.log.V(1), p, b.serverConn.player.Protocol(), b.serverConn.server, true)
	b.requestCtx.result(result, nil)
	b.serverConn.disconnect()
}

func (b *backendLoginSessionHandler) handleSetCompression(p *packet.SetCompression) {
	conn, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}
	if err := conn.SetCompressionThreshold(p.Threshold); err != nil {
		b.requestCtx.result(nil, err)
		b.serverConn.disconnect()
	}
}

func (b *backendLoginSessionHandler) handleServerLoginSuccess() {
	if b.serverConn.forwardingMode() == config.VelocityForwardingMode &&
		!b.informationForwarded.Load() {
		b.requestCtx.result(disconnectResult(velocityForwardingFailure, b.serverConn.server, true), nil)
		b.serverConn.disconnect()
		return
	}

	// The player has been logged on to the backend server, but there could
	// be other problems before we get the JoinGame packet from the server.
	serverMc, ok := b.serverConn.ensureConnected()
	if !ok {
		return
	}

	player := b.serverConn.player
	if player.Protocol().GreaterEqual(version.Minecraft_1_20_2) {
		// Acknowledge the login and move into the configuration phase.
		if serverMc.WritePacket(&packet.LoginAcknowledged{}) != nil {
			return
		}
		serverMc.SetState(state.Config)
		if player.State() == state.Play {
			// The player is switching servers: ask the client to re-enter
			// the configuration state. The client acknowledges with
			// AckConfiguration handled by its play session handler.
			player.switchToConfigState()
		}
		serverMc.SetSessionHandler(newBackendConfigSessionHandler(b.serverConn, b.requestCtx))
		return
	}

	// Move into the play phase and await the JoinGame packet.
	serverMc.SetState(state.Play)
	serverMc.SetSessionHandler(newBackendTransitionSessionHandler(b.serverConn, b.requestCtx))
}

func (b *backendLoginSessionHandler) Disconnected() {
	if b.serverConn.forwardingMode() == config.LegacyForwardingMode ||
		b.serverConn.forwardingMode() == config.BungeeGuardForwardingMode {
		b.requestCtx.result(nil, errs.NewSilentErr(`the connection to the remote server was unexpectedly closed
this is usually because the remote server does not have BungeeCord IP forwarding correctly enabled`))
	} else {
		b.requestCtx.result(nil, errs.NewSilentErr("the connection to the remote server was unexpectedly closed"))
	}
}

// disconnectResultForPacket decodes the disconnect reason of the packet
// into a connection result.
func disconnectResultForPacket(
	errLog logr.Logger,
	p *packet.Disconnect,
	protocol proto.Protocol,
	server RegisteredServer,
	safe bool,
) *connectionResult {
	var reason component.Component
	if p != nil && p.Reason != nil {
		reason = p.Reason.AsComponentOrNil()
	}
	if reason == nil && errLog.Enabled() {
		errLog.Info("backend server disconnect reason could not be decoded",
			"protocol", protocol, "server", server.ServerInfo().Name())
	}
	return disconnectResult(reason, server, safe)
}

func disconnectResult(reason component.Component, server RegisteredServer, safe bool) *connectionResult {
	return &connectionResult{
		status:        ServerDisconnectedConnectionStatus,
		reason:        reason,
		safe:          safe,
		attemptedConn: server,
	}
}
