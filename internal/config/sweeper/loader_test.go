package sweeper_config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "file", cfg.Store.Backend)
	require.Equal(t, "data/sites.json", cfg.Store.Path)

	require.Equal(t, 30*time.Second, cfg.Probe.Timeout)
	require.Equal(t, 10*time.Second, cfg.Probe.ConnectTimeout)
	require.Equal(t, 5, cfg.Probe.MaxRedirects)
	require.True(t, cfg.Probe.FollowRedirects)
	require.False(t, cfg.Probe.VerifyTLS, "probes must still answer against self-signed hosts")

	require.Equal(t, 5*time.Minute, cfg.Sweep.Every)
	require.Equal(t, 500*time.Millisecond, cfg.Sweep.Pause)

	require.False(t, cfg.Kafka.Enabled(), "transition feed is opt-in")
	require.Equal(t, "sitewatch.status.changed", cfg.Kafka.Topic)

	require.Equal(t, ":8083", cfg.Server.OpsAddr)
	require.Equal(t, "info", cfg.Log.Level)
}

func TestProbeConfigMapping(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	pc := cfg.Probe.AsProbeConfig()
	require.Equal(t, cfg.Probe.Timeout, pc.Timeout)
	require.Equal(t, cfg.Probe.UserAgent, pc.UserAgent)
	require.Equal(t, cfg.Probe.MaxRedirects, pc.MaxRedirects)
}
