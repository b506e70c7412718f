package config

import "time"

const (
	DefaultPrefix     = "/clusterjoin"
	DefaultTokenFile  = "/var/lib/rancher/k3s/server/node-token"
	DefaultKubeconfig = "/etc/rancher/k3s/k3s.yaml"
	DefaultPort       = 6443
	DefaultHealthPath = "/healthz"
	DefaultMaxRetries = 5
)

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := newConfig()
	cfg.applyDefaults()
	return cfg
}

// newConfig seeds the fields whose zero value is meaningful, so that an
// explicit zero from a file or the environment is kept.
func newConfig() *Config {
	return &Config{Retry: RetryConfig{MaxRetries: DefaultMaxRetries}}
}

func (c *Config) applyDefaults() {
	if c.ExpectedNodes == 0 {
		c.ExpectedNodes = 1
	}

	setString(&c.Store.Backend, BackendSSM)
	setString(&c.Store.Prefix, DefaultPrefix)
	setString(&c.Store.Layout, "record")

	setString(&c.Cloud.Provider, ProviderAWS)
	setString(&c.Cloud.TagKey, "clusterjoin/role")
	setString(&c.Cloud.TagValue, "coordinator")

	setString(&c.Agent.Binary, "k3s")
	setString(&c.Agent.Mode, "systemd")
	setString(&c.Agent.ServerUnit, "k3s")
	setString(&c.Agent.AgentUnit, "k3s-agent")
	setString(&c.Agent.AgentEnvFile, "/etc/systemd/system/k3s-agent.service.env")

	setString(&c.Membership.Kubeconfig, DefaultKubeconfig)
	setString(&c.Membership.ReadyToken, "Ready")

	co := &c.Coordinator
	setString(&co.TokenFile, DefaultTokenFile)
	setDuration(&co.TokenWait, 60*time.Second)
	setString(&co.Scheme, "https")
	setInt(&co.Port, DefaultPort)
	setInt(&co.StartAttempts, 30)
	setDuration(&co.StartInterval, 2*time.Second)
	setDuration(&co.PollInterval, 10*time.Second)
	setDuration(&co.PollTimeout, 300*time.Second)
	if co.Chart != nil {
		setString(&co.Chart.Namespace, "default")
		setDuration(&co.Chart.Timeout, 5*time.Minute)
	}

	p := &c.Participant
	setDuration(&p.PollInterval, 10*time.Second)
	setDuration(&p.PollTimeout, 300*time.Second)
	setDuration(&p.FallbackInterval, 10*time.Second)
	setDuration(&p.FallbackTimeout, 120*time.Second)
	setString(&p.Scheme, "https")
	setInt(&p.Port, DefaultPort)
	setString(&p.HealthPath, DefaultHealthPath)
	setDuration(&p.ProbeTimeout, 5*time.Second)

	setDuration(&c.Retry.InitialDelay, time.Second)
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

func setInt(dst *int, v int) {
	if *dst == 0 {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v time.Duration) {
	if *dst == 0 {
		*dst = v
	}
}
