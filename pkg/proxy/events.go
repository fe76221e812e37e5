package proxy

import (
	"net"

	"go.minekube.com/common/minecraft/component"

	"github.com/bifrostmc/bifrost/pkg/ping"
	"github.com/bifrostmc/bifrost/pkg/profile"
)

// ListenerBoundEvent is fired when the proxy bound a listener.
type ListenerBoundEvent struct {
	Addr net.Addr
}

// ListenerCloseEvent is fired when a listener of the proxy is closed.
type ListenerCloseEvent struct {
	Addr net.Addr
}

// ConnectionHandshakeEvent is fired when the handshake
// of an inbound connection was read.
type ConnectionHandshakeEvent struct {
	inbound Inbound
}

// Inbound returns the inbound connection.
func (e *ConnectionHandshakeEvent) Inbound() Inbound { return e.inbound }

// PingEvent is fired when a server list ping response is about to be
// sent. Setting the ping to nil drops the response.
type PingEvent struct {
	inbound Inbound
	Ping    *ping.ServerPing
}

// Inbound returns the pinging connection.
func (e *PingEvent) Inbound() Inbound { return e.inbound }

// PreLoginEvent is fired before the proxy authenticates a joining player.
type PreLoginEvent struct {
	inbound  Inbound
	username string

	result PreLoginResult
	reason component.Component
}

func newPreLoginEvent(inbound Inbound, username string) *PreLoginEvent {
	return &PreLoginEvent{
		inbound:  inbound,
		username: username,
		result:   AllowedPreLogin,
	}
}

// PreLoginResult is the result of a PreLoginEvent.
type PreLoginResult uint8

const (
	AllowedPreLogin PreLoginResult = iota
	DeniedPreLogin
	ForceOnlineModePreLogin
	ForceOfflineModePreLogin
)

func (e *PreLoginEvent) Inbound() Inbound        { return e.inbound }
func (e *PreLoginEvent) Username() string        { return e.username }
func (e *PreLoginEvent) Result() PreLoginResult  { return e.result }
func (e *PreLoginEvent) Reason() component.Component { return e.reason }

// Deny denies the login with a reason.
func (e *PreLoginEvent) Deny(reason component.Component) {
	e.result = DeniedPreLogin
	e.reason = reason
}

// Allow resets the result to allowed.
func (e *PreLoginEvent) Allow() {
	e.result = AllowedPreLogin
	e.reason = nil
}

// ForceOnlineMode authenticates the player even if the proxy runs offline.
func (e *PreLoginEvent) ForceOnlineMode() { e.result = ForceOnlineModePreLogin }

// ForceOfflineMode skips authentication for this player.
func (e *PreLoginEvent) ForceOfflineMode() { e.result = ForceOfflineModePreLogin }

// GameProfileRequestEvent allows subscribers to
// modify a player's game profile before login completes.
type GameProfileRequestEvent struct {
	inbound         Inbound
	originalProfile profile.GameProfile
	onlineMode      bool

	use profile.GameProfile
}

// NewGameProfileRequestEvent creates a new GameProfileRequestEvent.
func NewGameProfileRequestEvent(
	inbound Inbound,
	original profile.GameProfile,
	onlineMode bool,
) *GameProfileRequestEvent {
	return &GameProfileRequestEvent{
		inbound:         inbound,
		originalProfile: original,
		onlineMode:      onlineMode,
	}
}

// Original returns the unmodified profile.
func (e *GameProfileRequestEvent) Original() profile.GameProfile { return e.originalProfile }

// OnlineMode indicates whether the player was authenticated with Mojang.
func (e *GameProfileRequestEvent) OnlineMode() bool { return e.onlineMode }

// SetGameProfile sets the profile to use for this player.
func (e *GameProfileRequestEvent) SetGameProfile(p profile.GameProfile) { e.use = p }

// GameProfile returns the profile to use for this player.
func (e *GameProfileRequestEvent) GameProfile() profile.GameProfile {
	if len(e.use.Name) != 0 {
		return e.use
	}
	return e.originalProfile
}

// LoginEvent is fired when a player has been authenticated
// but not yet connected to a backend server.
type LoginEvent struct {
	player Player

	denied bool
	reason component.Component
}

func (e *LoginEvent) Player() Player { return e.player }

// Allowed reports whether the player may stay connected.
func (e *LoginEvent) Allowed() bool { return !e.denied }

// Deny disconnects the player with a reason after the event returns.
func (e *LoginEvent) Deny(reason component.Component) {
	e.denied = true
	e.reason = reason
}

// Reason returns the deny reason, may be nil.
func (e *LoginEvent) Reason() component.Component { return e.reason }

// PostLoginEvent is fired after a player completed the login phase.
type PostLoginEvent struct {
	player Player
}

func (e *PostLoginEvent) Player() Player { return e.player }

// LoginStatus describes in which phase of the login a player disconnected.
type LoginStatus uint8

const (
	SuccessfulLoginStatus LoginStatus = iota
	ConflictingLoginStatus
	CanceledByUserLoginStatus
	CanceledByProxyLoginStatus
	CanceledByUserBeforeCompleteLoginStatus
)

// DisconnectEvent is fired when a player disconnects from the proxy.
type DisconnectEvent struct {
	player      Player
	loginStatus LoginStatus
}

func (e *DisconnectEvent) Player() Player            { return e.player }
func (e *DisconnectEvent) LoginStatus() LoginStatus  { return e.loginStatus }

// PlayerSettingsChangedEvent is fired when the client sends
// new client settings.
type PlayerSettingsChangedEvent struct {
	player   Player
	settings Settings
}

func (e *PlayerSettingsChangedEvent) Player() Player     { return e.player }
func (e *PlayerSettingsChangedEvent) Settings() Settings { return e.settings }

// PlayerClientBrandEvent is fired when the client sends its brand.
type PlayerClientBrandEvent struct {
	player Player
	brand  string
}

func (e *PlayerClientBrandEvent) Player() Player { return e.player }
func (e *PlayerClientBrandEvent) Brand() string  { return e.brand }

// ServerPreConnectEvent is fired before a player connects
// to a backend server.
type ServerPreConnectEvent struct {
	player   Player
	original RegisteredServer

	server RegisteredServer
}

func newServerPreConnectEvent(player Player, server RegisteredServer) *ServerPreConnectEvent {
	return &ServerPreConnectEvent{
		player:   player,
		original: server,
		server:   server,
	}
}

func (e *ServerPreConnectEvent) Player() Player               { return e.player }
func (e *ServerPreConnectEvent) OriginalServer() RegisteredServer { return e.original }

// Allowed reports whether the player may connect.
func (e *ServerPreConnectEvent) Allowed() bool { return e.server != nil }

// Server returns the server the player connects to,
// which a subscriber may have rerouted. Nil when denied.
func (e *ServerPreConnectEvent) Server() RegisteredServer { return e.server }

// Deny denies the connection.
func (e *ServerPreConnectEvent) Deny() { e.server = nil }

// Reroute redirects the connection to another server.
func (e *ServerPreConnectEvent) Reroute(server RegisteredServer) { e.server = server }

// PlayerChooseInitialServerEvent is fired when the proxy chose an
// initial server for a joining player. Subscribers may override it.
type PlayerChooseInitialServerEvent struct {
	player        Player
	initialServer RegisteredServer // May be nil if no server is configured.
}

func (e *PlayerChooseInitialServerEvent) Player() Player { return e.player }

// InitialServer returns the chosen initial server, may be nil.
func (e *PlayerChooseInitialServerEvent) InitialServer() RegisteredServer { return e.initialServer }

// SetInitialServer overrides the initial server.
func (e *PlayerChooseInitialServerEvent) SetInitialServer(server RegisteredServer) {
	e.initialServer = server
}

// ServerConnectedEvent is fired when a player logged
// on to a backend server.
type ServerConnectedEvent struct {
	player         Player
	server         RegisteredServer
	previousServer RegisteredServer // nil-able
}

func (e *ServerConnectedEvent) Player() Player                 { return e.player }
func (e *ServerConnectedEvent) Server() RegisteredServer       { return e.server }

// PreviousServer returns the server the player was on before, may be nil.
func (e *ServerConnectedEvent) PreviousServer() RegisteredServer { return e.previousServer }

// ServerPostConnectEvent is fired after a player completed
// the switch to a backend server.
type ServerPostConnectEvent struct {
	player         Player
	previousServer RegisteredServer // nil-able
}

func newServerPostConnectEvent(player Player, previousServer RegisteredServer) *ServerPostConnectEvent {
	return &ServerPostConnectEvent{player: player, previousServer: previousServer}
}

func (e *ServerPostConnectEvent) Player() Player                   { return e.player }
func (e *ServerPostConnectEvent) PreviousServer() RegisteredServer { return e.previousServer }

// ConnectionErrorEvent is fired when the connection
// to a backend server failed.
type ConnectionErrorEvent struct {
	err    error
	safe   bool
	player Player
	server RegisteredServer
}

func newConnectionErrorEvent(err error, safe bool, player Player, server RegisteredServer) *ConnectionErrorEvent {
	return &ConnectionErrorEvent{err: err, safe: safe, player: player, server: server}
}

func (e *ConnectionErrorEvent) Error() error             { return e.err }
func (e *ConnectionErrorEvent) Player() Player           { return e.player }
func (e *ConnectionErrorEvent) Server() RegisteredServer { return e.server }

// Safe reports whether it is safe to connect the player to another server.
func (e *ConnectionErrorEvent) Safe() bool { return e.safe }

// ServerKickResult is the result of a KickedFromServerEvent;
// one of DisconnectPlayerKickResult, RedirectPlayerKickResult
// and NotifyKickResult.
type ServerKickResult interface{ isServerKickResult() }

type (
	// DisconnectPlayerKickResult disconnects the player from the proxy.
	DisconnectPlayerKickResult struct {
		Reason component.Component
	}
	// RedirectPlayerKickResult redirects the player to another server.
	RedirectPlayerKickResult struct {
		Server  RegisteredServer
		Message component.Component // shown after the redirect, may be nil
	}
	// NotifyKickResult keeps the player on the current server
	// and only shows the message.
	NotifyKickResult struct {
		Message component.Component
	}
)

func (*DisconnectPlayerKickResult) isServerKickResult() {}
func (*RedirectPlayerKickResult) isServerKickResult()   {}
func (*NotifyKickResult) isServerKickResult()           {}

// KickedFromServerEvent is fired when a player is kicked
// from a backend server.
type KickedFromServerEvent struct {
	player              Player
	server              RegisteredServer
	originalReason      component.Component // may be nil
	duringServerConnect bool

	result ServerKickResult
}

func newKickedFromServerEvent(
	player Player, server RegisteredServer,
	reason component.Component, duringServerConnect bool,
	initialResult ServerKickResult,
) *KickedFromServerEvent {
	return &KickedFromServerEvent{
		player:              player,
		server:              server,
		originalReason:      reason,
		duringServerConnect: duringServerConnect,
		result:              initialResult,
	}
}

func (e *KickedFromServerEvent) Player() Player           { return e.player }
func (e *KickedFromServerEvent) Server() RegisteredServer { return e.server }

// OriginalReason returns the kick reason the server sent, may be nil.
func (e *KickedFromServerEvent) OriginalReason() component.Component { return e.originalReason }

// KickedDuringServerConnect returns true when the player
// had not yet completed the connect to the kicking server.
func (e *KickedFromServerEvent) KickedDuringServerConnect() bool { return e.duringServerConnect }

// Result returns the current result, never nil.
func (e *KickedFromServerEvent) Result() ServerKickResult { return e.result }

// SetResult overrides the result.
func (e *KickedFromServerEvent) SetResult(result ServerKickResult) {
	if result != nil {
		e.result = result
	}
}

// PluginMessageEvent is fired when a plugin message on a registered
// channel passes through the proxy.
type PluginMessageEvent struct {
	source     any // Player or ServerConnection
	target     any
	identifier string
	data       []byte

	denied bool
}

func (e *PluginMessageEvent) Source() any        { return e.source }
func (e *PluginMessageEvent) Target() any        { return e.target }
func (e *PluginMessageEvent) Identifier() string { return e.identifier }
func (e *PluginMessageEvent) Data() []byte       { return e.data }
func (e *PluginMessageEvent) Allowed() bool      { return !e.denied }
func (e *PluginMessageEvent) Deny()              { e.denied = true }

// PreShutdownEvent is fired before the proxy begins shutdown.
type PreShutdownEvent struct {
	reason component.Component
}

// Reason returns the shutdown kick reason, may be nil.
func (e *PreShutdownEvent) Reason() component.Component { return e.reason }

// SetReason overrides the shutdown kick reason.
func (e *PreShutdownEvent) SetReason(reason component.Component) { e.reason = reason }

// ShutdownEvent is fired when the proxy finished disconnecting
// all players and is about to exit.
type ShutdownEvent struct{}
