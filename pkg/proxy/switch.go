package proxy

import (
	"context"
	"fmt"
	"time"

	. "go.minekube.com/common/minecraft/color"
	. "go.minekube.com/common/minecraft/component"
)

// ConnectionRequest can send a connection request to another server on the
// proxy. A connection request is created with Player.CreateConnectionRequest.
type ConnectionRequest interface {
	// Server returns the server this connection request is for.
	Server() RegisteredServer
	// Connect blocks, initiates the connection to the server and returns
	// a result after the player logged on, or an error when one occurred
	// (e.g. the server could not be dialed, ctx was canceled).
	//
	// The given context can cancel the connection initiation, but has no
	// effect once the connection was established or canceled.
	//
	// No messages are communicated to the client:
	// the caller handles all errors.
	Connect(ctx context.Context) (ConnectionResult, error)
	// ConnectWithIndication is the same as Connect, but uses the proxy's
	// built-in handling to communicate errors to the player and reports
	// whether the player was successfully connected.
	ConnectWithIndication(ctx context.Context) (successful bool)
}

// ConnectionResult is the result of a ConnectionRequest.
type ConnectionResult interface {
	Status() ConnectionStatus // The connection result status.
	// Reason returns the reason for a failure to connect to the server.
	// It is nil if not provided.
	Reason() Component
}

// ConnectionStatus is the status of a ConnectionResult.
type ConnectionStatus uint8

const (
	// SuccessConnectionStatus indicates the player was successfully
	// connected to the server.
	SuccessConnectionStatus ConnectionStatus = iota
	// AlreadyConnectedConnectionStatus indicates the player is already
	// connected to this server.
	AlreadyConnectedConnectionStatus
	// InProgressConnectionStatus indicates a connection
	// is already in progress.
	InProgressConnectionStatus
	// CanceledConnectionStatus indicates an event
	// subscriber canceled the connection.
	CanceledConnectionStatus
	// ServerDisconnectedConnectionStatus indicates the server disconnected
	// the player. A reason MAY be provided in ConnectionResult.Reason.
	ServerDisconnectedConnectionStatus
)

// Successful is true when the player was successfully connected.
func (r ConnectionStatus) Successful() bool {
	return r == SuccessConnectionStatus
}

// AlreadyConnected is true when the player is already connected to this server.
func (r ConnectionStatus) AlreadyConnected() bool {
	return r == AlreadyConnectedConnectionStatus
}

// ConnectionInProgress is true when a connection is already in progress.
func (r ConnectionStatus) ConnectionInProgress() bool {
	return r == InProgressConnectionStatus
}

// Canceled is true when an event subscriber canceled the connection.
func (r ConnectionStatus) Canceled() bool {
	return r == CanceledConnectionStatus
}

// ServerDisconnected is true when the server disconnected the player.
func (r ConnectionStatus) ServerDisconnected() bool {
	return r == ServerDisconnectedConnectionStatus
}

func (p *connectedPlayer) CreateConnectionRequest(server RegisteredServer) ConnectionRequest {
	return p.createConnectionRequest(server)
}

func (p *connectedPlayer) createConnectionRequest(server RegisteredServer) *connectionRequest {
	return &connectionRequest{server: server, player: p}
}

type connectionRequest struct {
	server RegisteredServer // the target server to connect to
	player *connectedPlayer // the player to connect to the server
}

func (c *connectionRequest) Server() RegisteredServer { return c.server }

func (c *connectionRequest) Connect(ctx context.Context) (ConnectionResult, error) {
	return c.connect(ctx)
}

func (c *connectionRequest) connect(ctx context.Context) (*connectionResult, error) {
	result, err := c.internalConnect(ctx)
	if err == nil {
		if !result.safe {
			// It is not safe to continue the connection, shut it down.
			c.player.handleConnectionErr(result.attemptedConn, err, true)
		} else if !result.Status().Successful() {
			c.player.resetInFlightConnection()
		}
	}
	return result, err
}

func (c *connectionRequest) ConnectWithIndication(ctx context.Context) (successful bool) {
	result, err := c.internalConnect(ctx)
	if err != nil {
		c.player.handleConnectionErr(c.server, err, true)
		return false
	}

	switch result.Status() {
	case AlreadyConnectedConnectionStatus:
		_ = c.player.sendMessage(alreadyConnected)
	case InProgressConnectionStatus:
		_ = c.player.sendMessage(alreadyInProgress)
	case CanceledConnectionStatus:
		// Ignored, an event subscriber probably handled this already.
	case ServerDisconnectedConnectionStatus:
		reason := result.Reason()
		if reason == nil {
			reason = internalServerConnectionError
		}
		c.player.handleDisconnectWithReason(c.server, reason, result.safe)
	default:
		// Success, nothing to do.
	}

	return result.Status().Successful()
}

func (c *connectionRequest) internalConnect(ctx context.Context) (result *connectionResult, err error) {
	if ctx == nil {
		ctx = context.Background()
	}

	status, ok := c.checkServer(c.server)
	if !ok {
		return plainConnectionResult(status, c.server), nil
	}

	connectEvent := newServerPreConnectEvent(c.player, c.server)
	c.player.proxy.Event().Fire(connectEvent)
	if !connectEvent.Allowed() {
		return plainConnectionResult(CanceledConnectionStatus, c.server), nil
	}

	newDest := connectEvent.Server()
	status, ok = c.checkServer(newDest)
	if !ok {
		return plainConnectionResult(status, newDest), nil
	}

	server, ok := newDest.(*registeredServer)
	if !ok { // Must be of this type
		return plainConnectionResult(CanceledConnectionStatus, newDest), nil
	}

	conn := newServerConnection(c.player.proxy, server, c.player)
	c.player.setInFlightConnection(conn)
	defer c.resetIfInFlightIs(conn)
	return conn.connect(ctx)
}

// checkServer verifies the player may connect to the server right now.
func (c *connectionRequest) checkServer(server RegisteredServer) (s ConnectionStatus, ok bool) {
	p := c.player
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.connInFlight != nil || (p.connectedServer_ != nil &&
		!p.connectedServer_.completedJoin.Load()) {
		return InProgressConnectionStatus, false
	}
	if p.connectedServer_ != nil && RegisteredServerEqual(p.connectedServer_.Server(), server) {
		return AlreadyConnectedConnectionStatus, false
	}
	return 0, true
}

func (c *connectionRequest) resetIfInFlightIs(establishedConnection *serverConnection) {
	c.player.mu.Lock()
	defer c.player.mu.Unlock()
	if c.player.connInFlight == establishedConnection {
		c.player.connInFlight = nil
	}
}

func plainConnectionResult(status ConnectionStatus, attemptedConn RegisteredServer) *connectionResult {
	return &connectionResult{
		status:        status,
		safe:          true,
		attemptedConn: attemptedConn,
	}
}

type connectionResult struct {
	status        ConnectionStatus
	reason        Component
	safe          bool
	attemptedConn RegisteredServer
}

var _ ConnectionResult = (*connectionResult)(nil)

func (r *connectionResult) Status() ConnectionStatus { return r.status }
func (r *connectionResult) Reason() Component        { return r.reason }

// handleConnectionErr handles an error connecting to server.
// safe - whether it is safe to try another server
func (p *connectedPlayer) handleConnectionErr(server RegisteredServer, err error, safe bool) {
	log := p.log.WithValues(
		"serverName", server.ServerInfo().Name(),
		"serverAddr", server.ServerInfo().Addr())
	log.V(1).Info("could not connect player to server", "error", err)

	p.proxy.Event().Fire(newConnectionErrorEvent(err, safe, p, server))

	if !p.Active() {
		// The connection is no longer active, nothing to recover.
		return
	}

	var userMsg string
	connectedServer := p.CurrentServer()
	if connectedServer != nil && RegisteredServerEqual(connectedServer.Server(), server) {
		userMsg = fmt.Sprintf("Your connection to %q encountered an error.",
			server.ServerInfo().Name())
	} else {
		log.Info("unable to connect to server", "error", err)
		userMsg = fmt.Sprintf("Unable to connect to %q. Try again later.", server.ServerInfo().Name())
	}
	p.handleKickedFromServer(server, nil, &Text{Content: userMsg, S: Style{Color: Red}}, safe)
}

func (p *connectedPlayer) handleKickedFromServer(
	rs RegisteredServer,
	kickReason Component,
	friendlyReason Component,
	safe bool,
) {
	if !p.Active() {
		return
	}
	if !safe {
		// It is not safe to continue, disconnect the player.
		p.Disconnect(friendlyReason)
		return
	}
	currentServer := p.CurrentServer()
	kickedFromCurrent := currentServer == nil || RegisteredServerEqual(currentServer.Server(), rs)
	var result ServerKickResult
	if kickedFromCurrent {
		next := p.nextServerToTry(rs)
		if next == nil {
			result = &DisconnectPlayerKickResult{Reason: friendlyReason}
		} else {
			result = &RedirectPlayerKickResult{Server: next}
		}
	} else {
		// Kicked while connecting to another server, the
		// connection should no longer be in flight.
		p.mu.Lock()
		if p.connInFlight != nil && RegisteredServerEqual(p.connInFlight.Server(), rs) {
			p.connInFlight = nil
		}
		p.mu.Unlock()
		result = &NotifyKickResult{Message: friendlyReason}
	}
	e := newKickedFromServerEvent(p, rs, kickReason, !kickedFromCurrent, result)
	p.handleKickEvent(e, friendlyReason, kickedFromCurrent)
}

func (p *connectedPlayer) handleKickEvent(e *KickedFromServerEvent, friendlyReason Component, kickedFromCurrent bool) {
	p.proxy.Event().Fire(e)

	// There can not be any connection in flight now.
	p.setInFlightConnection(nil)

	// Clear the current connected server, the connection is invalid.
	p.mu.Lock()
	previouslyConnected := p.connectedServer_ != nil
	if kickedFromCurrent {
		p.connectedServer_ = nil
	}
	p.mu.Unlock()

	if !p.Active() {
		return
	}

	switch result := e.Result().(type) {
	case *DisconnectPlayerKickResult:
		p.Disconnect(result.Reason)
	case *RedirectPlayerKickResult:
		ctx, cancel := context.WithTimeout(context.Background(),
			time.Duration(p.proxy.cfg.ConnectionTimeout)*time.Millisecond)
		defer cancel()
		redirect, err := p.createConnectionRequest(result.Server).connect(ctx)
		if err != nil {
			p.handleConnectionErr(result.Server, err, true)
			return
		}

		switch redirect.Status() {
		// Impossible/nonsensical cases
		case AlreadyConnectedConnectionStatus, InProgressConnectionStatus:
		// Fatal case
		case CanceledConnectionStatus:
			reason := redirect.Reason()
			if reason == nil {
				reason = result.Message
			}
			if reason == nil {
				reason = friendlyReason
			}
			p.Disconnect(reason)
		case ServerDisconnectedConnectionStatus:
			reason := redirect.Reason()
			if reason == nil {
				reason = internalServerConnectionError
			}
			p.handleDisconnectWithReason(result.Server, reason, redirect.safe)
		case SuccessConnectionStatus:
			requestedMessage := result.Message
			if requestedMessage == nil {
				requestedMessage = friendlyReason
			}
			_ = p.sendMessage(requestedMessage)
		}
	case *NotifyKickResult:
		if e.KickedDuringServerConnect() && previouslyConnected {
			_ = p.sendMessage(result.Message)
		} else {
			p.Disconnect(result.Message)
		}
	default:
		// In case someone gets creative, assume we want to disconnect the player.
		p.Disconnect(friendlyReason)
	}
}

// handleDisconnectWithReason handles a backend kick with a decoded reason.
func (p *connectedPlayer) handleDisconnectWithReason(server RegisteredServer, reason Component, safe bool) {
	if !p.Active() {
		return
	}

	log := p.log.WithValues("server", server.ServerInfo().Name(),
		"reason", plainText(reason))

	connected := p.connectedServer()
	if connected != nil && ServerInfoEqual(connected.server.ServerInfo(), server.ServerInfo()) {
		log.Info("player was kicked from server")
		p.handleKickedFromServer(server, reason, &Text{
			Content: movedToNewServer.Content,
			S:       movedToNewServer.S,
			Extra:   componentOrEmpty(reason),
		}, safe)
		return
	}

	log.Info("player disconnected from server while connecting")
	p.handleKickedFromServer(server, reason, &Text{
		Content: fmt.Sprintf("Can't connect to server %q: ", server.ServerInfo().Name()),
		S:       Style{Color: Red},
		Extra:   componentOrEmpty(reason),
	}, safe)
}

func componentOrEmpty(c Component) []Component {
	if c == nil {
		return nil
	}
	return []Component{c}
}
