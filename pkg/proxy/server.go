package proxy

import (
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

// Players is a list of players safe for concurrent use.
type Players interface {
	Len() int                  // Returns the size of the player list.
	Range(func(p Player) bool) // Ranges over the players, stops when fn returns false.
}

type players struct {
	mu   sync.RWMutex // Protects following fields
	list map[uuid.UUID]*connectedPlayer
}

func newPlayers() *players {
	return &players{list: map[uuid.UUID]*connectedPlayer{}}
}

func (p *players) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.list)
}

func (p *players) Range(fn func(p Player) bool) {
	p.mu.RLock()
	list := make([]*connectedPlayer, 0, len(p.list))
	for _, player := range p.list {
		list = append(list, player)
	}
	p.mu.RUnlock()
	for _, player := range list {
		if !fn(player) {
			return
		}
	}
}

func (p *players) add(players ...*connectedPlayer) {
	p.mu.Lock()
	for _, player := range players {
		p.list[player.ID()] = player
	}
	p.mu.Unlock()
}

func (p *players) remove(players ...*connectedPlayer) {
	p.mu.Lock()
	for _, player := range players {
		delete(p.list, player.ID())
	}
	p.mu.Unlock()
}

// ServerInfo is the info of a backend server.
type ServerInfo interface {
	Name() string   // Returns the server name.
	Addr() net.Addr // Returns the server address.
}

func NewServerInfo(name string, addr net.Addr) ServerInfo {
	return &serverInfo{name: name, addr: addr}
}

// ServerInfoEqual returns true if ServerInfo a and b are equal.
// They are never equal if one of them is nil.
func ServerInfoEqual(a, b ServerInfo) bool {
	return a != nil && b != nil &&
		a.Name() == b.Name() &&
		a.Addr().String() == b.Addr().String() &&
		a.Addr().Network() == b.Addr().Network()
}

type serverInfo struct {
	name string
	addr net.Addr
}

func (i *serverInfo) Name() string   { return i.name }
func (i *serverInfo) Addr() net.Addr { return i.addr }

func (i *serverInfo) String() string { return fmt.Sprintf("%s (%s)", i.name, i.addr) }

// RegisteredServer is a backend server registered with the proxy.
type RegisteredServer interface {
	ServerInfo() ServerInfo
	Players() Players // The players connected to the server through this proxy.
}

// RegisteredServerEqual returns true if RegisteredServer a and b are equal.
// They are never equal if one of them is nil.
func RegisteredServerEqual(a, b RegisteredServer) bool {
	return a != nil && b != nil && ServerInfoEqual(a.ServerInfo(), b.ServerInfo())
}

type registeredServer struct {
	info    ServerInfo
	players *players

	// lastReachable is the unix nano timestamp of the last successful
	// status ping or backend connect, used by dynamic fallbacks.
	lastReachable atomic.Int64
}

func newRegisteredServer(info ServerInfo) *registeredServer {
	return &registeredServer{info: info, players: newPlayers()}
}

var _ RegisteredServer = (*registeredServer)(nil)

func (r *registeredServer) ServerInfo() ServerInfo { return r.info }
func (r *registeredServer) Players() Players       { return r.players }

// touchReachable records a successful contact with the server.
func (r *registeredServer) touchReachable() {
	r.lastReachable.Store(time.Now().UnixNano())
}

// reachableWithin reports whether the server was successfully
// contacted within the given duration.
func (r *registeredServer) reachableWithin(d time.Duration) bool {
	last := r.lastReachable.Load()
	return last != 0 && time.Since(time.Unix(0, last)) <= d
}
