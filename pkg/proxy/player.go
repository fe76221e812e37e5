package proxy

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/crypto"
	"github.com/bifrostmc/bifrost/pkg/internal/future"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/profile"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	cfgpacket "github.com/bifrostmc/bifrost/pkg/proto/packet/config"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// Inbound is an incoming connection to the proxy.
type Inbound interface {
	Protocol() proto.Protocol // The protocol version of the connection.
	VirtualHost() net.Addr    // The hostname the client dialed, if applicable.
	RemoteAddr() net.Addr     // The client's IP address.
	Active() bool             // Whether the connection remains active.
	// Context returns the context of the connection,
	// canceled when the connection is closed.
	Context() context.Context
}

// Player is a connected Minecraft player.
type Player interface {
	Inbound
	netmc.PacketWriter

	ID() uuid.UUID    // The Minecraft ID of the player.
	Username() string // The username of the player.
	// CurrentServer returns the player's current backend server
	// connection, or nil if there is none.
	CurrentServer() ServerConnection
	Ping() time.Duration // The player's ping, or -1 if currently unknown.
	OnlineMode() bool    // Whether the player was authenticated with Mojang.
	// CreateConnectionRequest creates a connection request
	// to begin switching the backend server.
	CreateConnectionRequest(target RegisteredServer) ConnectionRequest
	GameProfile() profile.GameProfile // Returns the player's game profile.
	// Settings returns the player's client settings,
	// or DefaultSettings if unknown.
	Settings() Settings
	// IdentifiedKey returns the player's signed public key, if presented (1.19+).
	IdentifiedKey() crypto.IdentifiedKey
	// ClientBrand returns the player's client brand, empty if unknown.
	ClientBrand() string
	// Disconnect disconnects the player with a reason.
	// Once called, further calls on this player are undefined.
	Disconnect(reason component.Component)
}

type connectedPlayer struct {
	netmc.MinecraftConn
	proxy *Proxy
	log   logr.Logger

	virtualHost    net.Addr
	rawVirtualHost string // as sent in the handshake, null-suffixes included
	onlineMode     bool
	profile        *profile.GameProfile
	playerKey      crypto.IdentifiedKey // nil-able, 1.19+
	intent         packet.HandshakeIntent
	ping           atomic.Duration
	// disconnectDueToDuplicateConnection is true when this connection is
	// being closed because another connection uses the same profile.
	disconnectDueToDuplicateConnection atomic.Bool

	// configSwitchDone completes when the client acknowledged re-entering
	// the configuration state during a 1.20.2+ server switch.
	configSwitchDone atomic.Pointer[future.Future[any]]

	mu               sync.RWMutex // Protects following fields
	connectedServer_ *serverConnection
	connInFlight     *serverConnection
	settings         Settings
	settingsPacket   *packet.ClientSettings
	clientBrand      string
	knownChannels    map[string]struct{} // channels REGISTERed by the client
	serversToTry     []string            // names of servers to try next
	tryIndex         int
}

var _ Player = (*connectedPlayer)(nil)

func newConnectedPlayer(
	conn netmc.MinecraftConn,
	proxy *Proxy,
	profile *profile.GameProfile,
	virtualHost net.Addr,
	rawVirtualHost string,
	onlineMode bool,
	intent packet.HandshakeIntent,
	playerKey crypto.IdentifiedKey,
) *connectedPlayer {
	var ping atomic.Duration
	ping.Store(-1)

	return &connectedPlayer{
		MinecraftConn:  conn,
		proxy:          proxy,
		log: logr.FromContextOrDiscard(conn.Context()).WithName("player").WithValues(
			"name", profile.Name, "id", profile.ID),
		profile:        profile,
		virtualHost:    virtualHost,
		rawVirtualHost: rawVirtualHost,
		onlineMode:     onlineMode,
		intent:         intent,
		playerKey:      playerKey,
		ping:           ping,
		knownChannels:  map[string]struct{}{},
	}
}

// PlayerLog exposes the player's logger for unexpected-disconnect logging.
func (p *connectedPlayer) PlayerLog() logr.Logger { return p.log }

func (p *connectedPlayer) ID() uuid.UUID        { return p.profile.ID }
func (p *connectedPlayer) Username() string     { return p.profile.Name }
func (p *connectedPlayer) GameProfile() profile.GameProfile { return *p.profile }
func (p *connectedPlayer) OnlineMode() bool     { return p.onlineMode }
func (p *connectedPlayer) Ping() time.Duration  { return p.ping.Load() }
func (p *connectedPlayer) VirtualHost() net.Addr { return p.virtualHost }
func (p *connectedPlayer) IdentifiedKey() crypto.IdentifiedKey { return p.playerKey }

func (p *connectedPlayer) Active() bool {
	return !netmc.Closed(p.MinecraftConn)
}

func (p *connectedPlayer) CurrentServer() ServerConnection {
	if s := p.connectedServer(); s != nil {
		return s
	}
	// We must return an explicit nil, not a (nil) *serverConnection.
	return nil
}

func (p *connectedPlayer) connectedServer() *serverConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connectedServer_
}

func (p *connectedPlayer) connectionInFlight() *serverConnection {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.connInFlight
}

func (p *connectedPlayer) setConnectedServer(conn *serverConnection) {
	p.mu.Lock()
	p.connectedServer_ = conn
	if conn != nil && p.connInFlight == conn {
		p.connInFlight = nil
	}
	p.mu.Unlock()
}

func (p *connectedPlayer) setInFlightConnection(conn *serverConnection) {
	p.mu.Lock()
	p.connInFlight = conn
	p.mu.Unlock()
}

func (p *connectedPlayer) resetInFlightConnection() {
	p.setInFlightConnection(nil)
}

func (p *connectedPlayer) Settings() Settings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.settings != nil {
		return p.settings
	}
	return DefaultSettings
}

// setSettings caches the client settings for replay on server switches.
func (p *connectedPlayer) setSettings(pkt *packet.ClientSettings) {
	settings := NewSettings(pkt)
	p.mu.Lock()
	p.settingsPacket = pkt
	p.settings = settings
	p.mu.Unlock()

	p.proxy.Event().Fire(&PlayerSettingsChangedEvent{
		player:   p,
		settings: settings,
	})
}

func (p *connectedPlayer) settingsPacket_() *packet.ClientSettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.settingsPacket
}

func (p *connectedPlayer) ClientBrand() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.clientBrand
}

func (p *connectedPlayer) setClientBrand(brand string) {
	p.mu.Lock()
	p.clientBrand = brand
	p.mu.Unlock()
}

func (p *connectedPlayer) addKnownChannels(channels ...string) {
	p.mu.Lock()
	for _, ch := range channels {
		if len(p.knownChannels) >= maxKnownChannels {
			break
		}
		p.knownChannels[ch] = struct{}{}
	}
	p.mu.Unlock()
}

func (p *connectedPlayer) removeKnownChannels(channels ...string) {
	p.mu.Lock()
	for _, ch := range channels {
		delete(p.knownChannels, ch)
	}
	p.mu.Unlock()
}

func (p *connectedPlayer) hasKnownChannel(channel string) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.knownChannels[channel]
	return ok
}

func (p *connectedPlayer) knownChannelList() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	channels := make([]string, 0, len(p.knownChannels))
	for ch := range p.knownChannels {
		channels = append(channels, ch)
	}
	return channels
}

const maxKnownChannels = 1024

func (p *connectedPlayer) Disconnect(reason component.Component) {
	if !p.Active() {
		return
	}
	pkt := packet.NewDisconnect(reason, p.Protocol(), p.State().State)
	if netmc.CloseWith(p.MinecraftConn, pkt) == nil {
		p.log.Info("player has been disconnected", "reason", plainText(reason))
	}
}

// plainText renders a component for log output.
func plainText(c component.Component) string {
	if c == nil {
		return ""
	}
	s, err := protoutil.MarshalPlain(c)
	if err != nil {
		return ""
	}
	return s
}

// nextServerToTry returns the next server to attempt to log into when the
// player was unexpectedly disconnected from current, skipping it.
// current may be nil for the initial connect.
// MAY RETURN NIL when no candidate is left.
func (p *connectedPlayer) nextServerToTry(current RegisteredServer) RegisteredServer {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.serversToTry) == 0 {
		p.serversToTry = p.proxy.candidateServers(cleanVirtualHost(p.rawVirtualHost))
	}
	if len(p.serversToTry) == 0 {
		return nil
	}

	sameName := func(rs RegisteredServer, name string) bool {
		return rs.ServerInfo().Name() == name
	}

	for i := p.tryIndex; i < len(p.serversToTry); i++ {
		toTry := p.serversToTry[i]
		if (p.connectedServer_ != nil && sameName(p.connectedServer_.Server(), toTry)) ||
			(p.connInFlight != nil && sameName(p.connInFlight.Server(), toTry)) ||
			(current != nil && sameName(current, toTry)) {
			continue
		}

		p.tryIndex = i
		if s := p.proxy.Server(toTry); s != nil {
			return s
		}
	}
	return nil
}

// teardown disconnects any backend connection after
// the player's own connection closed.
func (p *connectedPlayer) teardown() {
	p.mu.RLock()
	connInFlight := p.connInFlight
	connectedServer := p.connectedServer_
	p.mu.RUnlock()
	if connInFlight != nil {
		connInFlight.disconnect()
	}
	if connectedServer != nil {
		connectedServer.disconnect()
	}

	var status LoginStatus
	if p.proxy.unregisterConnection(p) {
		switch {
		case p.disconnectDueToDuplicateConnection.Load():
			status = ConflictingLoginStatus
		case netmc.KnownDisconnect(p.MinecraftConn):
			status = CanceledByProxyLoginStatus
		default:
			status = CanceledByUserLoginStatus
		}
	} else if netmc.KnownDisconnect(p.MinecraftConn) {
		status = CanceledByProxyLoginStatus
	} else {
		status = CanceledByUserLoginStatus
	}
	p.proxy.Event().Fire(&DisconnectEvent{player: p, loginStatus: status})
}

// switchToConfigState asks a 1.20.2+ client in the play state to
// re-enter the configuration state for a server switch. The client
// acknowledges with AckConfiguration, handled by the play session handler.
func (p *connectedPlayer) switchToConfigState() *future.Future[any] {
	f := new(future.Future[any])
	p.configSwitchDone.Store(f)
	_ = p.WritePacket(&cfgpacket.StartUpdate{})
	return f
}

func (p *connectedPlayer) SendPluginMessage(channel string, data []byte) error {
	return p.WritePacket(&plugin.Message{
		Channel: channel,
		Data:    data,
	})
}

func (p *connectedPlayer) String() string { return p.profile.Name }
