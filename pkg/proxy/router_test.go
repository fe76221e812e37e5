package proxy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifrostmc/bifrost/pkg/config"
	"github.com/bifrostmc/bifrost/pkg/util/uuid"
)

func testConfig() *config.Config {
	return &config.Config{
		Bind:       "127.0.0.1:25565",
		OnlineMode: true,
		Forwarding: config.Forwarding{Mode: config.NoneForwardingMode},
		Servers: map[string]string{
			"lobby":    "127.0.0.1:25566",
			"fallback": "127.0.0.1:25567",
			"minigame": "127.0.0.1:25568",
		},
		Try: []string{"lobby", "fallback", "minigame"},
		ForcedHosts: config.ForcedHosts{
			"lobby.example.com": {"lobby"},
		},
		Status:            config.Status{ShowMaxPlayers: 100, Motd: "motd", PingPassthrough: "none"},
		Compression:       config.Compression{Threshold: 256, Level: -1},
		ConnectionTimeout: 5000,
		ReadTimeout:       30000,
	}
}

func testProxy(t *testing.T, cfg *config.Config) *Proxy {
	t.Helper()
	p, err := New(Options{Config: cfg})
	require.NoError(t, err)
	return p
}

func fakePlayers(rs *registeredServer, n int) {
	rs.players.mu.Lock()
	defer rs.players.mu.Unlock()
	for i := 0; i < n; i++ {
		rs.players.list[uuid.New()] = nil
	}
}

func TestCandidateServers_ForcedHostWins(t *testing.T) {
	p := testProxy(t, testConfig())
	assert.Equal(t, []string{"lobby"}, p.candidateServers("lobby.example.com"))
}

func TestCandidateServers_FallsBackToTryOrder(t *testing.T) {
	p := testProxy(t, testConfig())
	assert.Equal(t, []string{"lobby", "fallback", "minigame"}, p.candidateServers("unknown.example"))
}

func TestCandidateServers_Empty(t *testing.T) {
	cfg := testConfig()
	cfg.Try = nil
	p := testProxy(t, cfg)
	assert.Empty(t, p.candidateServers("unknown.example"))
}

func TestOrderCandidates_DynamicFallbacks(t *testing.T) {
	cfg := testConfig()
	cfg.EnableDynamicFallbacks = true
	p := testProxy(t, cfg)

	// Only fallback was recently reachable: unreachable
	// candidates move to the end, preserving relative order.
	p.server("fallback").touchReachable()
	assert.Equal(t, []string{"fallback", "lobby", "minigame"},
		p.candidateServers("unknown.example"))

	// All reachable: the configured order is kept.
	p.server("lobby").touchReachable()
	p.server("minigame").touchReachable()
	assert.Equal(t, []string{"lobby", "fallback", "minigame"},
		p.candidateServers("unknown.example"))
}

func TestOrderCandidates_MostPopulated(t *testing.T) {
	cfg := testConfig()
	cfg.EnableMostPopulatedFallbacks = true
	p := testProxy(t, cfg)

	fakePlayers(p.server("minigame"), 5)
	fakePlayers(p.server("fallback"), 2)
	assert.Equal(t, []string{"minigame", "fallback", "lobby"},
		p.candidateServers("unknown.example"))
}

func TestOrderCandidates_DynamicThenPopulation(t *testing.T) {
	cfg := testConfig()
	cfg.EnableDynamicFallbacks = true
	cfg.EnableMostPopulatedFallbacks = true
	p := testProxy(t, cfg)

	// The dynamic reorder applies first, the population sort second:
	// with equal player counts the dynamic order is preserved, and
	// distinct player counts dominate the final order.
	p.server("lobby").touchReachable()
	p.server("fallback").touchReachable()
	assert.Equal(t, []string{"lobby", "fallback", "minigame"},
		p.candidateServers("unknown.example"))

	fakePlayers(p.server("minigame"), 5)
	fakePlayers(p.server("fallback"), 2)
	assert.Equal(t, []string{"minigame", "fallback", "lobby"},
		p.candidateServers("unknown.example"))
}

func TestRegister_DuplicateName(t *testing.T) {
	p := testProxy(t, testConfig())
	_, err := p.Register(NewServerInfo("lobby", p.server("lobby").info.Addr()))
	assert.ErrorIs(t, err, ErrServerAlreadyExists)
}

func TestServerLookup_CaseInsensitive(t *testing.T) {
	p := testProxy(t, testConfig())
	require.NotNil(t, p.Server("LOBBY"))
	assert.Nil(t, p.Server("unknown"))
}
