package proxy

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/packet/plugin"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
)

// ServerConnection is a connection from the proxy to a backend server
// on behalf of a player.
type ServerConnection interface {
	Server() RegisteredServer // The server this connection is for.
	Player() Player           // The player this connection is associated with.
	// SendPluginMessage sends a plugin message to the backend server.
	SendPluginMessage(channel string, data []byte) error
}

type serverConnection struct {
	proxy  *Proxy
	server *registeredServer
	player *connectedPlayer
	log    logr.Logger

	completedJoin      atomic.Bool
	gracefulDisconnect atomic.Bool
	lastPingID         atomic.Int64
	lastPingSent       atomic.Int64 // unix millis

	mu         sync.RWMutex // Protects following fields
	connection netmc.MinecraftConn
}

func newServerConnection(proxy *Proxy, server *registeredServer, player *connectedPlayer) *serverConnection {
	return &serverConnection{
		proxy:  proxy,
		server: server,
		player: player,
		log: player.log.WithName("serverConn").WithValues(
			"serverName", server.info.Name(),
			"serverAddr", server.info.Addr()),
	}
}

var _ ServerConnection = (*serverConnection)(nil)

func (s *serverConnection) Server() RegisteredServer { return s.server }
func (s *serverConnection) Player() Player           { return s.player }

// conn returns the backend connection, may be nil.
func (s *serverConnection) conn() netmc.MinecraftConn {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection
}

// ensureConnected returns the active backend connection or false.
func (s *serverConnection) ensureConnected() (backend netmc.MinecraftConn, connected bool) {
	if s == nil {
		return nil, false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connection, s.connection != nil
}

func (s *serverConnection) SendPluginMessage(channel string, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	mc, ok := s.ensureConnected()
	if !ok {
		return netmc.ErrClosedConn
	}
	return mc.WritePacket(&plugin.Message{
		Channel: channel,
		Data:    data,
	})
}

// active reports whether this server connection remains usable: the
// connection is established and not closed, not gracefully disconnected,
// and the player is still online.
func (s *serverConnection) active() bool {
	s.mu.RLock()
	conn := s.connection
	s.mu.RUnlock()
	return conn != nil && !netmc.Closed(conn) &&
		!s.gracefulDisconnect.Load() &&
		s.player.Active()
}

// disconnect closes the connection to the backend server.
func (s *serverConnection) disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connection != nil {
		s.gracefulDisconnect.Store(true)
		if !netmc.Closed(s.connection) {
			_ = s.connection.Close()
		}
		s.connection = nil // nil means not connected
	}
}

// completeJoin marks that the backend connection finished joining.
func (s *serverConnection) completeJoin() {
	if s.completedJoin.CompareAndSwap(false, true) {
		s.server.touchReachable()
	}
}

func (s *serverConnection) config() *config.Config {
	return s.proxy.cfg
}

// forwardingMode resolves the identity forwarding mode for this server.
func (s *serverConnection) forwardingMode() config.ForwardingMode {
	return s.config().ServerForwardingMode(s.server.info.Name())
}

// dial opens the raw transport connection to the backend.
func (s *serverConnection) dial(ctx context.Context) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, "tcp", s.server.info.Addr().String())
}

// handshakeAddr builds the address field of the backend handshake,
// which carries the spliced player identity with legacy style forwarding.
func (s *serverConnection) handshakeAddr(vHost string) (string, error) {
	switch s.forwardingMode() {
	case config.LegacyForwardingMode:
		return createLegacyForwardingAddress(
			vHost, netutil.Host(s.player.RemoteAddr()), s.player.GameProfile())
	case config.BungeeGuardForwardingMode:
		return createBungeeGuardForwardingAddress(
			vHost, netutil.Host(s.player.RemoteAddr()), s.player.GameProfile(),
			s.config().ForwardingSecret())
	default:
		return vHost, nil
	}
}

// connect establishes the connection to the backend server and drives it
// through the login (and config) phases in the background, blocking until
// the connect succeeded, failed or ctx is done.
func (s *serverConnection) connect(ctx context.Context) (result *connectionResult, err error) {
	debug := s.log.V(1)
	debug.Info("connecting to server...")
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, fmt.Errorf("error connecting to server %q: %w", s.server.info.Name(), err)
	}
	debug.Info("connected to server")

	cfg := s.config()
	readTimeout := time.Duration(cfg.ReadTimeout) * time.Millisecond
	writeTimeout := time.Duration(cfg.ConnectionTimeout) * time.Millisecond

	connCtx := logr.NewContext(s.player.Context(), s.log)
	serverMc, startReadLoop := netmc.NewMinecraftConn(
		connCtx, conn, proto.ClientBound,
		readTimeout, writeTimeout, cfg.Compression.Level,
	)

	resultChan := make(chan *connResponse, 1)
	serverMc.SetSessionHandler(newBackendLoginSessionHandler(s, &connRequestCxt{
		Context:  ctx,
		response: resultChan,
	}))

	s.mu.Lock()
	s.connection = serverMc
	s.mu.Unlock()

	debug.Info("establishing player connection with server...")

	// Initiate the handshake.
	protocol := s.player.Protocol()
	vHost := ClearVirtualHost(s.player.rawVirtualHost)
	if vHost == "" {
		vHost = netutil.Host(s.server.info.Addr())
	}
	addr, err := s.handshakeAddr(vHost)
	if err != nil {
		return nil, fmt.Errorf("error building handshake address: %w", err)
	}
	handshake := &packet.Handshake{
		ProtocolVersion: int(protocol),
		ServerAddress:   addr,
		Port:            int(netutil.Port(s.server.info.Addr())),
		NextStatus:      int(packet.LoginHandshakeIntent),
	}
	if err = serverMc.BufferPacket(handshake); err != nil {
		return nil, fmt.Errorf("error buffering handshake packet in server connection: %w", err)
	}

	// Set the server connection's protocol and state after writing the
	// handshake, but before writing ServerLogin.
	serverMc.SetProtocol(protocol)
	serverMc.SetState(state.Login)

	// Kick off the login.
	serverLogin := &packet.ServerLogin{
		Username:  s.player.Username(),
		PlayerKey: s.player.IdentifiedKey(),
		HolderID:  s.player.ID(),
	}
	if err = serverMc.WritePacket(serverLogin); err != nil {
		return nil, fmt.Errorf("error writing ServerLogin packet to server connection: %w", err)
	}
	go startReadLoop()

	// Block until the login (and config) phases concluded.
	select {
	case r := <-resultChan:
		return r.connectionResult, r.error
	case <-ctx.Done():
		s.disconnect()
		return nil, fmt.Errorf("connection to server %q timed out: %w", s.server.info.Name(), ctx.Err())
	}
}

type (
	connRequestCxt struct {
		context.Context
		response chan<- *connResponse
		once     sync.Once
	}
	connResponse struct {
		*connectionResult
		error
	}
)

// result delivers the connection result exactly once.
func (c *connRequestCxt) result(result *connectionResult, err error) {
	c.once.Do(func() { c.response <- &connResponse{connectionResult: result, error: err} })
}
