package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Bind:       "0.0.0.0:25565",
		OnlineMode: true,
		Forwarding: Forwarding{Mode: LegacyForwardingMode},
		Servers: map[string]string{
			"lobby":    "127.0.0.1:25566",
			"fallback": "127.0.0.1:25567",
		},
		Try:               []string{"lobby", "fallback"},
		Status:            Status{ShowMaxPlayers: 100, Motd: "motd", PingPassthrough: "none"},
		Compression:       Compression{Threshold: 256, Level: -1},
		ConnectionTimeout: 5000,
		ReadTimeout:       30000,
	}
}

func TestValidate_OK(t *testing.T) {
	_, errs := validConfig().Validate()
	assert.Empty(t, errs)
}

func TestValidate_BindRequired(t *testing.T) {
	cfg := validConfig()
	cfg.Bind = ""
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs)

	cfg.Bind = "not-an-address"
	_, errs = cfg.Validate()
	assert.NotEmpty(t, errs)
}

func TestValidate_UnknownForwardingMode(t *testing.T) {
	cfg := validConfig()
	cfg.Forwarding.Mode = "bungee"
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs)
}

func TestValidate_SecretRequiredForAuthenticatedModes(t *testing.T) {
	for _, mode := range []ForwardingMode{BungeeGuardForwardingMode, VelocityForwardingMode} {
		cfg := validConfig()
		cfg.Forwarding.Mode = mode
		_, errs := cfg.Validate()
		assert.NotEmpty(t, errs, "mode %s requires a secret", mode)

		cfg.Forwarding.Secret = "s3cr3t"
		_, errs = cfg.Validate()
		assert.Empty(t, errs, "mode %s with secret must validate", mode)
	}
}

func TestValidate_PerServerOverride(t *testing.T) {
	cfg := validConfig()
	cfg.Forwarding.PerServer = map[string]ForwardingMode{"lobby": VelocityForwardingMode}
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs, "velocity override requires a secret")

	cfg.Forwarding.Secret = "s3cr3t"
	_, errs = cfg.Validate()
	assert.Empty(t, errs)

	cfg.Forwarding.PerServer = map[string]ForwardingMode{"unknown": LegacyForwardingMode}
	_, errs = cfg.Validate()
	assert.NotEmpty(t, errs, "override must reference a registered server")
}

func TestValidate_TryServerMustBeRegistered(t *testing.T) {
	cfg := validConfig()
	cfg.Try = append(cfg.Try, "missing")
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs)
}

func TestValidate_ForcedHostServersMustBeRegistered(t *testing.T) {
	cfg := validConfig()
	cfg.ForcedHosts = ForcedHosts{"play.example.com": {"missing"}}
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs)
}

func TestValidate_CompressionBounds(t *testing.T) {
	cfg := validConfig()
	cfg.Compression.Level = 10
	_, errs := cfg.Validate()
	assert.NotEmpty(t, errs)

	cfg = validConfig()
	cfg.Compression.Threshold = -2
	_, errs = cfg.Validate()
	assert.NotEmpty(t, errs)
}

func TestServerForwardingMode(t *testing.T) {
	cfg := validConfig()
	cfg.Forwarding.PerServer = map[string]ForwardingMode{"lobby": VelocityForwardingMode}
	assert.Equal(t, VelocityForwardingMode, cfg.ServerForwardingMode("Lobby"))
	assert.Equal(t, LegacyForwardingMode, cfg.ServerForwardingMode("fallback"))
}

func TestForwardingSecret_EnvOverride(t *testing.T) {
	cfg := validConfig()
	cfg.Forwarding.Secret = "from-config"
	require.Equal(t, []byte("from-config"), cfg.ForwardingSecret())

	t.Setenv("VELOCITY_FORWARDING_SECRET", "from-env")
	assert.Equal(t, []byte("from-env"), cfg.ForwardingSecret())

	t.Setenv("BIFROST_FORWARDING_SECRET", "priority-env")
	assert.Equal(t, []byte("priority-env"), cfg.ForwardingSecret())
}
