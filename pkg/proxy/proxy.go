// Package proxy implements the transparent Minecraft Java edition proxy:
// it accepts client connections, terminates the protocol with the player,
// establishes matching backend connections and relays gameplay traffic.
package proxy

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/go-logr/logr"
	"github.com/pires/go-proxyproto"
	"github.com/robinbraemer/event"
	"go.minekube.com/common/minecraft/component"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/bifrostmc/bifrost/pkg/auth"
	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/netmc"
	"github.com/bifrostmc/bifrost/pkg/proto"
	protoutil "github.com/bifrostmc/bifrost/pkg/proto/util"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
	"github.com/bifrostmc/bifrost/pkg/util/quotautil"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
	"github.com/bifrostmc/bifrost/pkg/util/validation"
)

// Proxy is a transparent Minecraft Java edition proxy.
type Proxy struct {
	log           logr.Logger
	cfg           *config.Config
	eventMgr      event.Manager
	authenticator auth.Authenticator
	pinger        *pinger

	startTime time.Time
	runOnce   atomic.Bool
	closeOnce sync.Once
	closed    chan struct{}

	shutdownReason component.Component
	motd           component.Component

	muS     sync.RWMutex                 // Protects following field
	servers map[string]*registeredServer // registered backend servers, lower case names

	muP         sync.RWMutex                   // Protects following fields
	playerNames map[string]*connectedPlayer    // lower case usernames
	playerIDs   map[uuid.UUID]*connectedPlayer // uuids

	connectionsQuota *quotautil.Quota
	loginsQuota      *quotautil.Quota
}

// Options to create a new Proxy.
type Options struct {
	// Config is the proxy configuration,
	// validated with config.Config.Validate.
	Config *config.Config
	// Logger is the root logger. Defaults to a discarding logger.
	Logger logr.Logger
	// EventMgr is the event manager. Defaults to a new one.
	EventMgr event.Manager
	// Authenticator authenticates online mode players.
	// Defaults to a new Mojang authenticator.
	Authenticator auth.Authenticator
}

// New validates the config and returns a new initialized Proxy ready to run.
func New(options Options) (p *Proxy, err error) {
	if options.Config == nil {
		return nil, errors.New("config must not be nil")
	}
	cfg := options.Config
	if _, errs := cfg.Validate(); len(errs) != 0 {
		return nil, fmt.Errorf("config validation errors: %w", errors.Join(errs...))
	}
	log := options.Logger
	eventMgr := options.EventMgr
	if eventMgr == nil {
		eventMgr = event.New()
	}
	authenticator := options.Authenticator
	if authenticator == nil {
		authenticator, err = auth.New(auth.Options{})
		if err != nil {
			return nil, fmt.Errorf("error creating authenticator: %w", err)
		}
	}

	p = &Proxy{
		log:           log,
		cfg:           cfg,
		eventMgr:      eventMgr,
		authenticator: authenticator,
		closed:        make(chan struct{}),
		servers:       map[string]*registeredServer{},
		playerNames:   map[string]*connectedPlayer{},
		playerIDs:     map[uuid.UUID]*connectedPlayer{},
	}
	p.pinger = newPinger(p)

	// Connection and login rate limiters.
	if quota := cfg.Quota.Connections; quota.Enabled {
		p.connectionsQuota = quotautil.NewQuota(quota.OPS, quota.Burst, quota.MaxEntries)
	}
	if quota := cfg.Quota.Logins; quota.Enabled {
		p.loginsQuota = quotautil.NewQuota(quota.OPS, quota.Burst, quota.MaxEntries)
	}

	if cfg.Status.Motd != "" {
		if p.motd, err = protoutil.ParseTextComponent(cfg.Status.Motd); err != nil {
			return nil, fmt.Errorf("error parsing status motd: %w", err)
		}
	}
	if cfg.ShutdownReason != "" {
		if p.shutdownReason, err = protoutil.ParseTextComponent(cfg.ShutdownReason); err != nil {
			return nil, fmt.Errorf("error parsing shutdown reason: %w", err)
		}
	}

	// Register the configured servers.
	for name, addr := range cfg.Servers {
		parsed, err := netutil.Parse(addr, "tcp")
		if err != nil {
			return nil, fmt.Errorf("error parsing address %q of server %q: %w", addr, name, err)
		}
		if _, err = p.Register(NewServerInfo(name, parsed)); err != nil {
			return nil, fmt.Errorf("error registering server %q: %w", name, err)
		}
	}
	if len(cfg.Servers) != 0 {
		log.Info("pre-registered servers", "count", len(cfg.Servers))
	}
	return p, nil
}

// ErrProxyAlreadyRun is returned by Start if the proxy instance was already run.
var ErrProxyAlreadyRun = errors.New("proxy was already run, create a new one")

// Event returns the proxy's event manager.
func (p *Proxy) Event() event.Manager { return p.eventMgr }

// Config returns the proxy's configuration.
func (p *Proxy) Config() *config.Config { return p.cfg }

// Start runs the proxy and blocks until ctx is canceled
// or an error occurred while starting.
func (p *Proxy) Start(ctx context.Context) error {
	if !p.runOnce.CompareAndSwap(false, true) {
		return ErrProxyAlreadyRun
	}
	p.startTime = time.Now().UTC()

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-p.closed:
		}
		close(stop)
	}()
	defer p.Shutdown(p.shutdownReason)

	g, ctx := errgroup.WithContext(logr.NewContext(ctx, p.log))
	g.Go(func() error { return p.listenAndServe(ctx, p.cfg.Bind, stop) })
	if p.cfg.EnableDynamicFallbacks || p.cfg.Status.PingPassthrough != "none" {
		g.Go(func() error {
			p.pinger.pollServers(ctx)
			return nil
		})
	}
	return g.Wait()
}

// Shutdown stops the proxy: it stops listening for new connections,
// disconnects all players with the given reason (nil for a blank reason)
// and waits for all event subscribers to finish.
func (p *Proxy) Shutdown(reason component.Component) {
	p.closeOnce.Do(func() {
		p.log.Info("shutting down the proxy...")
		defer p.log.Info("finished shutdown")

		pre := &PreShutdownEvent{reason: reason}
		p.eventMgr.Fire(pre)
		reason = pre.Reason()

		close(p.closed)
		p.DisconnectAll(reason)

		p.eventMgr.Fire(&ShutdownEvent{})
	})
}

// DisconnectAll disconnects all current players with a reason.
func (p *Proxy) DisconnectAll(reason component.Component) {
	p.muP.RLock()
	players := make([]*connectedPlayer, 0, len(p.playerIDs))
	for _, player := range p.playerIDs {
		players = append(players, player)
	}
	p.muP.RUnlock()
	for _, player := range players {
		player.Disconnect(reason)
	}
}

// listenAndServe binds the listener and accepts connections until stop is closed.
func (p *Proxy) listenAndServe(ctx context.Context, addr string, stop <-chan struct{}) error {
	select {
	case <-stop:
		return nil
	default:
	}

	lc := net.ListenConfig{Control: listenerControl}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("error binding listener on %q: %w", addr, err)
	}
	if p.cfg.ProxyProtocol {
		ln = &proxyproto.Listener{Listener: ln}
	}
	go func() {
		<-stop
		_ = ln.Close()
	}()

	p.eventMgr.Fire(&ListenerBoundEvent{Addr: ln.Addr()})
	defer p.eventMgr.Fire(&ListenerCloseEvent{Addr: ln.Addr()})
	p.log.Info("listening for connections", "addr", ln.Addr())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-stop:
				return nil
			default:
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			return fmt.Errorf("error accepting new connection: %w", err)
		}
		go p.HandleConn(conn)
	}
}

// listenerControl applies the socket options for player facing
// listeners: no delay and a low-latency type of service.
func listenerControl(_, _ string, c syscall.RawConn) error {
	var sockErr error
	err := c.Control(func(fd uintptr) {
		sockErr = setSocketOptions(fd)
	})
	if err != nil {
		return err
	}
	return sockErr
}

// HandleConn handles a just-accepted client connection
// until it is closed. It blocks and is run in its own goroutine.
func (p *Proxy) HandleConn(raw net.Conn) {
	defer func() { _ = raw.Close() }()

	// Connections per IP block rate limiter.
	ip := netutil.Host(raw.RemoteAddr())
	if quota := p.connectionsQuota; quota != nil && quota.Blocked(ip) {
		return
	}

	// The legacy ping (and legacy handshake) are exchanged before the
	// varint-framed protocol starts and must be answered here.
	conn, handledLegacy := p.answerLegacyPing(raw)
	if handledLegacy {
		return
	}

	readTimeout := time.Duration(p.cfg.ReadTimeout) * time.Millisecond
	writeTimeout := time.Duration(p.cfg.ConnectionTimeout) * time.Millisecond

	ctx := logr.NewContext(context.Background(), p.log)
	mcConn, startReadLoop := netmc.NewMinecraftConn(
		ctx, conn, proto.ServerBound,
		readTimeout, writeTimeout, p.cfg.Compression.Level,
	)
	mcConn.SetSessionHandler(newHandshakeSessionHandler(mcConn, p))
	startReadLoop()
}

// Server gets a registered server by name, or nil if not found.
func (p *Proxy) Server(name string) RegisteredServer {
	if s := p.server(name); s != nil {
		return s
	}
	return nil
}

func (p *Proxy) server(name string) *registeredServer {
	name = strings.ToLower(name)
	p.muS.RLock()
	defer p.muS.RUnlock()
	return p.servers[name] // may be nil
}

// Servers returns all registered servers.
func (p *Proxy) Servers() []RegisteredServer {
	p.muS.RLock()
	defer p.muS.RUnlock()
	l := make([]RegisteredServer, 0, len(p.servers))
	for _, rs := range p.servers {
		l = append(l, rs)
	}
	return l
}

// ErrServerAlreadyExists indicates a server name is already registered.
var ErrServerAlreadyExists = errors.New("server name already exists")

// Register registers a backend server with the proxy.
func (p *Proxy) Register(info ServerInfo) (RegisteredServer, error) {
	if info == nil || !validation.ValidServerName(info.Name()) ||
		validation.ValidHostPort(info.Addr().String()) != nil {
		return nil, errors.New("invalid server info")
	}
	name := strings.ToLower(info.Name())
	p.muS.Lock()
	defer p.muS.Unlock()
	if exists, ok := p.servers[name]; ok {
		return exists, ErrServerAlreadyExists
	}
	rs := newRegisteredServer(info)
	p.servers[name] = rs
	p.log.V(1).Info("registered new server", "name", info.Name(), "addr", info.Addr())
	return rs, nil
}

// PlayerCount returns the number of players on the proxy.
func (p *Proxy) PlayerCount() int {
	p.muP.RLock()
	defer p.muP.RUnlock()
	return len(p.playerIDs)
}

// Player gets a player by their Minecraft id, or nil if not online.
func (p *Proxy) Player(id uuid.UUID) Player {
	p.muP.RLock()
	defer p.muP.RUnlock()
	if player, ok := p.playerIDs[id]; ok {
		return player
	}
	return nil
}

// PlayerByName gets a player by their username, or nil if not online.
func (p *Proxy) PlayerByName(username string) Player {
	p.muP.RLock()
	defer p.muP.RUnlock()
	if player, ok := p.playerNames[strings.ToLower(username)]; ok {
		return player
	}
	return nil
}

// canRegisterConnection reports whether a new player connection
// with this profile could be registered.
func (p *Proxy) canRegisterConnection(player *connectedPlayer) bool {
	cfg := p.cfg
	if cfg.OnlineMode && cfg.OnlineModeKickExistingPlayers {
		return true
	}
	lowerName := strings.ToLower(player.Username())
	p.muP.RLock()
	defer p.muP.RUnlock()
	return p.playerNames[lowerName] == nil && p.playerIDs[player.ID()] == nil
}

// registerConnection attempts to register a new player connection.
func (p *Proxy) registerConnection(player *connectedPlayer) bool {
	lowerName := strings.ToLower(player.Username())
	cfg := p.cfg

retry:
	p.muP.Lock()
	if cfg.OnlineMode && cfg.OnlineModeKickExistingPlayers {
		existing, ok := p.playerIDs[player.ID()]
		if ok {
			// Make sure the player is disconnected before the new one
			// takes the slot.
			p.muP.Unlock()
			existing.disconnectDueToDuplicateConnection.Store(true)
			existing.Disconnect(&component.Translation{
				Key: "multiplayer.disconnect.duplicate_login",
			})
			goto retry
		}
	} else {
		if p.playerNames[lowerName] != nil || p.playerIDs[player.ID()] != nil {
			p.muP.Unlock()
			return false
		}
	}

	p.playerIDs[player.ID()] = player
	p.playerNames[lowerName] = player
	p.muP.Unlock()
	return true
}

// unregisterConnection unregisters a connected player,
// reporting whether the player was registered.
func (p *Proxy) unregisterConnection(player *connectedPlayer) bool {
	p.muP.Lock()
	defer p.muP.Unlock()
	_, found := p.playerIDs[player.ID()]
	delete(p.playerNames, strings.ToLower(player.Username()))
	delete(p.playerIDs, player.ID())
	return found
}

// candidateServers resolves the ordered candidate server names for the
// cleaned virtual host: the forced host entry when present, the try
// order otherwise, with the configured fallback reorderings applied.
func (p *Proxy) candidateServers(virtualHost string) []string {
	candidates := p.cfg.ForcedHosts[virtualHost]
	if len(candidates) == 0 {
		candidates = p.cfg.Try
	}
	if len(candidates) == 0 {
		return nil
	}
	return p.orderCandidates(candidates)
}

// dynamicFallbackReachabilityWindow is how recent a successful contact
// must be for a server to be considered reachable by dynamic fallbacks.
const dynamicFallbackReachabilityWindow = 30 * time.Second

// orderCandidates applies the dynamic-fallback and most-populated
// reorderings to a candidate list, both stable, dynamic first.
func (p *Proxy) orderCandidates(candidates []string) []string {
	ordered := make([]string, len(candidates))
	copy(ordered, candidates)
	if p.cfg.EnableDynamicFallbacks {
		// Push currently unreachable servers to the end, preserving
		// the relative order.
		reachable := make([]string, 0, len(ordered))
		var unreachable []string
		for _, name := range ordered {
			rs := p.server(name)
			if rs != nil && !rs.reachableWithin(dynamicFallbackReachabilityWindow) {
				unreachable = append(unreachable, name)
				continue
			}
			reachable = append(reachable, name)
		}
		ordered = append(reachable, unreachable...)
	}
	if p.cfg.EnableMostPopulatedFallbacks {
		sort.SliceStable(ordered, func(i, j int) bool {
			a, b := p.server(ordered[i]), p.server(ordered[j])
			var countA, countB int
			if a != nil {
				countA = a.players.Len()
			}
			if b != nil {
				countB = b.players.Len()
			}
			return countA > countB
		})
	}
	return ordered
}
