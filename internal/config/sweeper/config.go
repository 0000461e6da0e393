package sweeper_config

import (
	"time"

	"github.com/sitewatch/sitewatch/internal/obs"
	"github.com/sitewatch/sitewatch/internal/probe"
	pginfra "github.com/sitewatch/sitewatch/internal/repository/postgres"
)

type Store struct {
	// Backend selects the registry persistence: "file" or "postgres".
	Backend string         `mapstructure:"backend"`
	Path    string         `mapstructure:"path"`
	DB      pginfra.Config `mapstructure:"db"`
}

type Probe struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	MaxRedirects    int           `mapstructure:"max_redirects"`
	FollowRedirects bool          `mapstructure:"follow_redirects"`
	VerifyTLS       bool          `mapstructure:"verify_tls"`
}

func (p Probe) AsProbeConfig() probe.Config {
	return probe.Config{
		Timeout:         p.Timeout,
		ConnectTimeout:  p.ConnectTimeout,
		UserAgent:       p.UserAgent,
		MaxRedirects:    p.MaxRedirects,
		FollowRedirects: p.FollowRedirects,
		VerifyTLS:       p.VerifyTLS,
	}
}

type Sweep struct {
	Every time.Duration `mapstructure:"every"`
	Pause time.Duration `mapstructure:"pause"`
}

type KafkaOut struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// Enabled reports whether the transition feed should be wired at all.
func (k KafkaOut) Enabled() bool { return len(k.Brokers) > 0 }

type Server struct {
	OpsAddr string `mapstructure:"ops_addr"`
}

type Log struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	Env    string `mapstructure:"env"`
}

func (l Log) AsLoggerConfig() obs.LogConfig {
	return obs.LogConfig{
		Level:  l.Level,
		Pretty: l.Pretty,
		App:    "sweeper",
		Env:    l.Env,
		Ver:    "1.0.0",
	}
}

type OTEL struct {
	Enable       bool    `mapstructure:"enable"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
}

func (o OTEL) AsOTELConfig() *obs.OTELConfig {
	return &obs.OTELConfig{
		Enable:      o.Enable,
		Endpoint:    o.OTLPEndpoint,
		ServiceName: o.ServiceName,
		SampleRatio: o.SampleRatio,
	}
}

type Config struct {
	Store  Store    `mapstructure:"store"`
	Probe  Probe    `mapstructure:"probe"`
	Sweep  Sweep    `mapstructure:"sweep"`
	Kafka  KafkaOut `mapstructure:"kafka_out"`
	Server Server   `mapstructure:"server"`
	Log    Log      `mapstructure:"log"`
	OTEL   OTEL     `mapstructure:"otel"`
}
