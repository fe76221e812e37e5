// Package config defines the proxy configuration.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/bifrostmc/bifrost/pkg/util/validation"
)

// Config is the configuration of the proxy.
type Config struct {
	Bind string // The address to listen on for connections.

	OnlineMode                    bool
	OnlineModeKickExistingPlayers bool
	// ForceKeyAuthentication requires 1.19-1.19.2 clients to
	// present a valid signed public key.
	ForceKeyAuthentication bool

	Forwarding Forwarding
	Status     Status

	Servers     map[string]string // server name -> address
	Try         []string          // ordered names of servers to try for joining players
	ForcedHosts ForcedHosts

	FailoverOnUnexpectedServerDisconnect bool
	// EnableDynamicFallbacks pushes currently unreachable servers
	// to the end of the candidate list.
	EnableDynamicFallbacks bool
	// EnableMostPopulatedFallbacks sorts candidates by player count
	// descending, applied after dynamic fallbacks.
	EnableMostPopulatedFallbacks bool

	ConnectionTimeout int // backend dial+login deadline in milliseconds
	ReadTimeout       int // per-packet read deadline in milliseconds

	Quota       Quota
	Compression Compression

	ProxyProtocol                       bool // accept HAProxy PROXY protocol on the listener
	ShouldPreventClientProxyConnections bool // sends the player ip to mojang on login

	Debug          bool
	ShutdownReason string
}

type (
	// ForcedHosts maps a virtual host to the candidate server names for it.
	ForcedHosts map[string][]string

	Status struct {
		ShowMaxPlayers  int
		Motd            string
		LogPingRequests bool
		// PingPassthrough proxies the status response of the first
		// reachable server of the try list: one of "none", "all".
		PingPassthrough string
	}

	Forwarding struct {
		Mode ForwardingMode
		// Secret used with the bungeeguard and velocity modes. The
		// BIFROST_FORWARDING_SECRET or VELOCITY_FORWARDING_SECRET
		// environment variables take precedence.
		Secret string
		// PerServer overrides the forwarding mode for single servers.
		PerServer map[string]ForwardingMode
	}

	Compression struct {
		Threshold int
		Level     int
	}

	// Quota is the config for rate limiting.
	Quota struct {
		Connections QuotaSettings // Limits new connections per second, per IP block.
		Logins      QuotaSettings // Limits logins per second, per IP block.
	}

	QuotaSettings struct {
		Enabled    bool    // If false, there is no limiting.
		OPS        float32 // Allowed operations/events per second, per IP block.
		Burst      int     // The maximum operations per second, per block; the token bucket size.
		MaxEntries int     // Maximum number of IP blocks to keep track of in the cache.
	}
)

// ForwardingMode is a player identity forwarding mode.
type ForwardingMode string

const (
	// NoneForwardingMode causes backends to see the proxy's
	// address and an offline-style UUID.
	NoneForwardingMode ForwardingMode = "none"
	// LegacyForwardingMode splices the identity into the handshake
	// address, the BungeeCord way.
	LegacyForwardingMode ForwardingMode = "legacy"
	// BungeeGuardForwardingMode is LegacyForwardingMode plus a
	// bungeeguard-token property carrying the forwarding secret.
	BungeeGuardForwardingMode ForwardingMode = "bungeeguard"
	// VelocityForwardingMode uses the MAC-authenticated
	// velocity:player_info login plugin channel, supported by Paper
	// for versions starting at 1.13.
	VelocityForwardingMode ForwardingMode = "velocity"
)

// SetDefault is the subset of viper used to set config defaults.
type SetDefault interface {
	SetDefault(key string, value any)
}

// SetDefaults sets the Config defaults used with Viper.
func SetDefaults(i SetDefault) {
	i.SetDefault("bind", "0.0.0.0:25565")
	i.SetDefault("onlineMode", true)
	i.SetDefault("forceKeyAuthentication", true)
	i.SetDefault("forwarding.mode", NoneForwardingMode)

	i.SetDefault("shutdownReason", "§cProxy shutting down.\nPlease reconnect in a moment!")

	i.SetDefault("status.motd", "§bA Bifrost proxy.")
	i.SetDefault("status.showMaxPlayers", 1000)
	i.SetDefault("status.pingPassthrough", "none")
	i.SetDefault("status.logPingRequests", false)

	i.SetDefault("compression.threshold", 256)
	i.SetDefault("compression.level", -1)

	// Default quotas should never affect legitimate operation
	// but rate limit aggressive behaviours.
	i.SetDefault("quota.connections.enabled", true)
	i.SetDefault("quota.connections.ops", 5)
	i.SetDefault("quota.connections.burst", 10)
	i.SetDefault("quota.connections.maxEntries", 1000)

	i.SetDefault("quota.logins.enabled", true)
	i.SetDefault("quota.logins.ops", 0.4)
	i.SetDefault("quota.logins.burst", 3)
	i.SetDefault("quota.logins.maxEntries", 1000)

	i.SetDefault("connectionTimeout", 5000)
	i.SetDefault("readTimeout", 30000)
	i.SetDefault("failoverOnUnexpectedServerDisconnect", true)
	i.SetDefault("enableDynamicFallbacks", false)
	i.SetDefault("enableMostPopulatedFallbacks", false)
}

// ForwardingSecret resolves the forwarding secret, preferring the
// environment over the config file. Both are consulted on every call.
func (c *Config) ForwardingSecret() []byte {
	for _, env := range []string{"BIFROST_FORWARDING_SECRET", "VELOCITY_FORWARDING_SECRET"} {
		if s := os.Getenv(env); s != "" {
			return []byte(s)
		}
	}
	return []byte(c.Forwarding.Secret)
}

// ServerForwardingMode returns the forwarding mode used when
// connecting to the named server.
func (c *Config) ServerForwardingMode(serverName string) ForwardingMode {
	if mode, ok := c.Forwarding.PerServer[strings.ToLower(serverName)]; ok {
		return mode
	}
	return c.Forwarding.Mode
}

func validForwardingMode(mode ForwardingMode) bool {
	switch mode {
	case NoneForwardingMode, LegacyForwardingMode, BungeeGuardForwardingMode, VelocityForwardingMode:
		return true
	}
	return false
}

// Validate validates the Config.
func (c *Config) Validate() (warns []error, errs []error) {
	e := func(m string, args ...any) { errs = append(errs, fmt.Errorf(m, args...)) }
	w := func(m string, args ...any) { warns = append(warns, fmt.Errorf(m, args...)) }

	if c == nil {
		e("config must not be nil")
		return
	}

	if len(c.Bind) == 0 {
		e("bind is empty")
	} else if err := validation.ValidHostPort(c.Bind); err != nil {
		e("invalid bind %q: %v", c.Bind, err)
	}

	if !c.OnlineMode {
		w("proxy is running in offline mode")
	}

	if !validForwardingMode(c.Forwarding.Mode) {
		e("unknown forwarding mode %q, must be one of none,legacy,bungeeguard,velocity", c.Forwarding.Mode)
	}
	secretRequired := c.Forwarding.Mode == BungeeGuardForwardingMode ||
		c.Forwarding.Mode == VelocityForwardingMode
	for name, mode := range c.Forwarding.PerServer {
		if !validForwardingMode(mode) {
			e("unknown forwarding mode %q for server %q", mode, name)
		}
		if _, ok := c.Servers[name]; !ok {
			e("forwarding override for unknown server %q", name)
		}
		secretRequired = secretRequired ||
			mode == BungeeGuardForwardingMode || mode == VelocityForwardingMode
	}
	if secretRequired && len(c.ForwardingSecret()) == 0 {
		e("forwarding secret must not be empty for the bungeeguard and velocity modes")
	}

	if c.Forwarding.Mode == NoneForwardingMode {
		w("player forwarding is disabled, backend servers will see " +
			"offline-mode UUIDs and the proxy's IP for every player")
	}

	if len(c.Servers) == 0 {
		w("no backend servers configured")
	}

	for name, addr := range c.Servers {
		if !validation.ValidServerName(name) {
			e("invalid server name %q: %s, length 1-%d", name,
				validation.QualifiedNameErrMsg, validation.QualifiedNameMaxLength)
		}
		if err := validation.ValidHostPort(addr); err != nil {
			e("invalid address %q for server %q: %v", addr, name, err)
		}
	}

	for _, name := range c.Try {
		if _, ok := c.Servers[name]; !ok {
			e("try server %q must be registered under servers", name)
		}
	}

	for host, servers := range c.ForcedHosts {
		for _, name := range servers {
			if _, ok := c.Servers[name]; !ok {
				e("forced host %q server %q must be registered under servers", host, name)
			}
		}
	}

	switch c.Status.PingPassthrough {
	case "none", "all":
	default:
		e("unknown ping passthrough mode %q, must be one of none,all", c.Status.PingPassthrough)
	}

	if c.Compression.Level < -1 || c.Compression.Level > 9 {
		e("unsupported compression level %d: must be -1..9", c.Compression.Level)
	} else if c.Compression.Level == 0 {
		w("all packets going through the proxy are uncompressed, this increases bandwidth usage")
	}

	if c.Compression.Threshold < -1 {
		e("invalid compression threshold %d: must be >= -1", c.Compression.Threshold)
	} else if c.Compression.Threshold == 0 {
		w("all packets going through the proxy are compressed, this lowers " +
			"bandwidth but increases CPU usage")
	}

	if c.ReadTimeout <= 0 {
		e("read timeout must be > 0 milliseconds")
	}
	if c.ConnectionTimeout <= 0 {
		e("connection timeout must be > 0 milliseconds")
	}
	return
}
