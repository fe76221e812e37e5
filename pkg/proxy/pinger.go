package proxy

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"github.com/go-logr/logr"
	"github.com/jellydator/ttlcache/v3"

	"github.com/bifrostmc/bifrost/pkg/ping"
	"github.com/bifrostmc/bifrost/pkg/proto"
	"github.com/bifrostmc/bifrost/pkg/proto/codec"
	"github.com/bifrostmc/bifrost/pkg/proto/packet"
	"github.com/bifrostmc/bifrost/pkg/proto/state"
	"github.com/bifrostmc/bifrost/pkg/proto/version"
	"github.com/bifrostmc/bifrost/pkg/util/netutil"
)

// pinger issues server list pings against backend servers. The results
// feed the ping passthrough mode and the reachability signal of the
// dynamic fallbacks.
type pinger struct {
	proxy *Proxy
	cache *ttlcache.Cache[string, *ping.ServerPing] // keyed by server name
}

const (
	pingCacheTTL     = 10 * time.Second
	pingPollInterval = 10 * time.Second
	pingDialTimeout  = 5 * time.Second
)

func newPinger(p *Proxy) *pinger {
	c := ttlcache.New[string, *ping.ServerPing](
		ttlcache.WithTTL[string, *ping.ServerPing](pingCacheTTL),
		ttlcache.WithDisableTouchOnHit[string, *ping.ServerPing](),
	)
	go c.Start()
	return &pinger{proxy: p, cache: c}
}

// pollServers periodically pings the try-list servers
// to keep the reachability signal fresh.
func (pi *pinger) pollServers(ctx context.Context) {
	ticker := time.NewTicker(pingPollInterval)
	defer ticker.Stop()
	for {
		for _, name := range pi.proxy.cfg.Try {
			if ctx.Err() != nil {
				return
			}
			_, _ = pi.pingServer(ctx, name, version.MaximumVersion.Protocol)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// pingServer fetches the status of a registered server, cached.
// A successful ping marks the server reachable.
func (pi *pinger) pingServer(ctx context.Context, name string, protocol proto.Protocol) (*ping.ServerPing, error) {
	if item := pi.cache.Get(name); item != nil {
		return item.Value(), nil
	}
	rs := pi.proxy.server(name)
	if rs == nil {
		return nil, fmt.Errorf("server %q is not registered", name)
	}
	pong, err := fetchStatus(ctx, rs.info.Addr().String(), protocol)
	if err != nil {
		return nil, err
	}
	rs.touchReachable()
	pi.cache.Set(name, pong, ttlcache.DefaultTTL)
	return pong, nil
}

// firstReachableStatus returns the status of the first try-list server
// that answers, for the ping passthrough mode.
func (pi *pinger) firstReachableStatus(ctx context.Context, protocol proto.Protocol) *ping.ServerPing {
	for _, name := range pi.proxy.cfg.Try {
		pong, err := pi.pingServer(ctx, name, protocol)
		if err != nil {
			continue
		}
		return pong
	}
	return nil
}

// fetchStatus performs a complete server list ping exchange
// against addr: handshake, status request, status response.
func fetchStatus(ctx context.Context, addr string, protocol proto.Protocol) (*ping.ServerPing, error) {
	var d net.Dialer
	dialCtx, cancel := context.WithTimeout(ctx, pingDialTimeout)
	defer cancel()
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()
	deadline := time.Now().Add(pingDialTimeout)
	_ = conn.SetDeadline(deadline)

	log := logr.Discard()
	bw := bufio.NewWriter(conn)
	enc := codec.NewEncoder(bw, proto.ServerBound, log)
	dec := codec.NewDecoder(bufio.NewReader(conn), proto.ClientBound, log)

	host, port := splitHostPort(addr)
	if _, err = enc.WritePacket(&packet.Handshake{
		ProtocolVersion: int(protocol),
		ServerAddress:   host,
		Port:            int(port),
		NextStatus:      int(packet.StatusHandshakeIntent),
	}); err != nil {
		return nil, err
	}
	enc.SetProtocol(protocol)
	enc.SetState(state.Status)
	dec.SetProtocol(protocol)
	dec.SetState(state.Status)
	if _, err = enc.WritePacket(&packet.StatusRequest{}); err != nil {
		return nil, err
	}
	if err = bw.Flush(); err != nil {
		return nil, err
	}

	pc, err := dec.Decode()
	if err != nil {
		return nil, err
	}
	res, ok := pc.Packet.(*packet.StatusResponse)
	if !ok {
		return nil, fmt.Errorf("expected StatusResponse, got %T", pc.Packet)
	}
	pong := new(ping.ServerPing)
	if err = json.Unmarshal([]byte(res.Status), pong); err != nil {
		return nil, fmt.Errorf("error unmarshaling status response: %w", err)
	}
	return pong, nil
}

// statusResponse builds the server list ping response for a client,
// synthesized from the config or passed through from a backend.
func (p *Proxy) statusResponse(clientProtocol proto.Protocol) *ping.ServerPing {
	if p.cfg.Status.PingPassthrough == "all" {
		ctx, cancel := context.WithTimeout(context.Background(), pingDialTimeout)
		defer cancel()
		if pong := p.pinger.firstReachableStatus(ctx, clientProtocol); pong != nil {
			return pong
		}
		// Fall back to the synthesized status.
	}
	protocol := clientProtocol
	if !version.Protocol(protocol).Supported() {
		protocol = version.MaximumVersion.Protocol
	}
	return &ping.ServerPing{
		Version: ping.Version{
			Protocol: protocol,
			Name:     fmt.Sprintf("Bifrost %s", version.SupportedVersionsString),
		},
		Players: &ping.Players{
			Online: p.PlayerCount(),
			Max:    p.cfg.Status.ShowMaxPlayers,
		},
		Description: p.motd,
	}
}

func splitHostPort(addr string) (host string, port uint16) {
	a, err := netutil.Parse(addr, "tcp")
	if err != nil {
		return addr, 25565
	}
	return netutil.Host(a), netutil.Port(a)
}
