package proxy

import (
	"fmt"
	"net"

	"github.com/go-logr/logr"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/state/states"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
)

type handshakeSessionHandler struct {
	conn  netmc.MinecraftConn
	proxy *Proxy
	log   logr.Logger

	netmc.NopSessionHandler
}

// newHandshakeSessionHandler returns a handler for clients in the handshake state.
func newHandshakeSessionHandler(conn netmc.MinecraftConn, proxy *Proxy) netmc.SessionHandler {
	return &handshakeSessionHandler{
		conn:  conn,
		proxy: proxy,
		log:   logr.FromContextOrDiscard(conn.Context()).WithName("handshakeSession"),
	}
}

func (h *handshakeSessionHandler) HandlePacket(pc *proto.PacketContext) {
	if !pc.KnownPacket() {
		// Unknown packet in the handshake state, close the connection.
		_ = h.conn.Close()
		return
	}
	switch typed := pc.Packet.(type) {
	case *packet.Handshake:
		h.handleHandshake(typed)
	default:
		_ = h.conn.Close()
	}
}

func (h *handshakeSessionHandler) handleHandshake(handshake *packet.Handshake) {
	vHost := netutil.NewAddr("tcp",
		cleanVirtualHost(handshake.ServerAddress), uint16(handshake.Port))
	inbound := newInitialInbound(h.conn, vHost)

	// The client sends the state it wants to enter in the handshake.
	nextState := stateForIntent(handshake.Intent())
	if nextState == nil {
		h.log.V(1).Info("client sent invalid next state, closing connection",
			"nextStatus", handshake.NextStatus)
		_ = h.conn.Close()
		return
	}

	// Update the connection to the requested state and protocol.
	h.conn.SetState(nextState)
	h.conn.SetProtocol(proto.Protocol(handshake.ProtocolVersion))

	switch nextState.State {
	case states.StatusState:
		// Wait for the StatusRequest packet.
		h.conn.SetSessionHandler(newStatusSessionHandler(h.conn, inbound, h.proxy))
	case states.LoginState:
		h.handleLogin(handshake, inbound)
	}
}

func (h *handshakeSessionHandler) handleLogin(p *packet.Handshake, inbound *initialInbound) {
	// Check for a supported client version.
	if !version.Protocol(p.ProtocolVersion).Supported() {
		_ = netmc.CloseWith(h.conn, packet.NewDisconnect(
			outdatedClient, version.Minecraft_1_20_2.Protocol, states.LoginState))
		return
	}

	// A client IP block rate limiter preventing too
	// fast logins hitting the session server.
	if quota := h.proxy.loginsQuota; quota != nil && quota.Blocked(netutil.Host(inbound.RemoteAddr())) {
		_ = netmc.CloseWith(h.conn, packet.NewDisconnect(
			loggingInTooFast, h.conn.Protocol(), states.LoginState))
		return
	}

	// The velocity forwarding payload cannot be transported to
	// backends speaking a protocol below 1.13.
	if h.anyVelocityForwarding() &&
		p.ProtocolVersion < int(version.Minecraft_1_13.Protocol) {
		_ = netmc.CloseWith(h.conn, packet.NewDisconnect(
			velocityProtocolTooOld, h.conn.Protocol(), states.LoginState))
		return
	}

	h.proxy.Event().Fire(&ConnectionHandshakeEvent{inbound: inbound})
	h.conn.SetSessionHandler(newInitialLoginSessionHandler(h.conn, inbound, h.proxy, p))
}

func (h *handshakeSessionHandler) anyVelocityForwarding() bool {
	if h.proxy.cfg.Forwarding.Mode == config.VelocityForwardingMode {
		return true
	}
	for _, mode := range h.proxy.cfg.Forwarding.PerServer {
		if mode == config.VelocityForwardingMode {
			return true
		}
	}
	return false
}

func stateForIntent(intent packet.HandshakeIntent) *state.Registry {
	switch intent {
	case packet.StatusHandshakeIntent:
		return state.Status
	case packet.LoginHandshakeIntent, packet.TransferHandshakeIntent:
		return state.Login
	}
	return nil
}

type initialInbound struct {
	netmc.MinecraftConn
	virtualHost net.Addr
}

var _ Inbound = (*initialInbound)(nil)

func newInitialInbound(c netmc.MinecraftConn, virtualHost net.Addr) *initialInbound {
	return &initialInbound{
		MinecraftConn: c,
		virtualHost:   virtualHost,
	}
}

func (i *initialInbound) VirtualHost() net.Addr {
	return i.virtualHost
}

func (i *initialInbound) Active() bool {
	return !netmc.Closed(i.MinecraftConn)
}

func (i *initialInbound) String() string {
	return fmt.Sprintf("[initial connection] %s -> %s", i.RemoteAddr(), i.virtualHost)
}
