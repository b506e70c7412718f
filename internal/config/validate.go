package config

import (
	"fmt"
	"net"
	"regexp"
	"time"

	"github.com/imamik/clusterjoin/internal/store"
)

var clusterNamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ValidBackends lists the supported store backends.
var ValidBackends = map[string]bool{
	BackendSSM:    true,
	BackendS3:     true,
	BackendConsul: true,
	BackendRedis:  true,
	BackendMemory: true,
}

// ValidProviders lists the supported cloud providers.
var ValidProviders = map[string]bool{
	ProviderAWS:    true,
	ProviderHCloud: true,
	ProviderStatic: true,
	ProviderNone:   true,
}

// Validate checks the settings shared by all roles.
func (c *Config) Validate() error {
	if c.Cluster == "" {
		return fmt.Errorf("cluster is required")
	}
	if !clusterNamePattern.MatchString(c.Cluster) {
		return fmt.Errorf("cluster %q must be lowercase alphanumeric with dashes", c.Cluster)
	}

	if err := c.validateStore(); err != nil {
		return fmt.Errorf("store validation failed: %w", err)
	}
	if err := c.validateCloud(); err != nil {
		return fmt.Errorf("cloud validation failed: %w", err)
	}
	if err := c.validateParticipant(); err != nil {
		return fmt.Errorf("participant validation failed: %w", err)
	}
	if c.Agent.Mode != "systemd" && c.Agent.Mode != "exec" {
		return fmt.Errorf("unsupported agent mode %q", c.Agent.Mode)
	}
	if c.Retry.MaxRetries < 0 {
		return fmt.Errorf("retry.max_retries must not be negative")
	}
	return nil
}

// ValidateCoordinator checks the settings the coordinator role needs on top
// of Validate.
func (c *Config) ValidateCoordinator() error {
	if err := c.Validate(); err != nil {
		return err
	}

	co := c.Coordinator
	if c.ExpectedNodes < 1 {
		return fmt.Errorf("expected_nodes must be at least 1, got %d", c.ExpectedNodes)
	}
	if co.StartAttempts < 1 {
		return fmt.Errorf("coordinator.start_attempts must be at least 1")
	}
	if err := validateScheme(co.Scheme); err != nil {
		return fmt.Errorf("coordinator.scheme: %w", err)
	}
	if err := validatePort(co.Port); err != nil {
		return fmt.Errorf("coordinator.port: %w", err)
	}
	if co.AdvertiseAddress != "" && net.ParseIP(co.AdvertiseAddress) == nil {
		return fmt.Errorf("coordinator.advertise_address %q is not an IP address", co.AdvertiseAddress)
	}
	if err := validateWindow("coordinator", co.PollInterval, co.PollTimeout); err != nil {
		return err
	}
	if co.Chart != nil {
		if co.Chart.Chart == "" || co.Chart.Release == "" {
			return fmt.Errorf("coordinator.chart requires chart and release")
		}
	}
	return nil
}

func (c *Config) validateStore() error {
	s := c.Store
	if !ValidBackends[s.Backend] {
		return fmt.Errorf("unsupported backend %q", s.Backend)
	}
	if _, err := store.ParseLayout(s.Layout); err != nil {
		return err
	}
	switch s.Backend {
	case BackendS3:
		if s.Bucket == "" {
			return fmt.Errorf("bucket is required for the s3 backend")
		}
	case BackendConsul, BackendRedis:
		if s.Address == "" {
			return fmt.Errorf("address is required for the %s backend", s.Backend)
		}
	}
	return nil
}

func (c *Config) validateCloud() error {
	cl := c.Cloud
	if !ValidProviders[cl.Provider] {
		return fmt.Errorf("unsupported provider %q", cl.Provider)
	}
	if cl.Provider == ProviderStatic && cl.Static.LocalIPv4 != "" && net.ParseIP(cl.Static.LocalIPv4) == nil {
		return fmt.Errorf("static.local_ipv4 %q is not an IP address", cl.Static.LocalIPv4)
	}
	return nil
}

func (c *Config) validateParticipant() error {
	p := c.Participant
	if err := validateScheme(p.Scheme); err != nil {
		return fmt.Errorf("scheme: %w", err)
	}
	if err := validatePort(p.Port); err != nil {
		return fmt.Errorf("port: %w", err)
	}
	if len(p.HealthPath) == 0 || p.HealthPath[0] != '/' {
		return fmt.Errorf("health_path must start with /")
	}
	if p.ProbeTimeout <= 0 {
		return fmt.Errorf("probe_timeout must be positive")
	}
	if err := validateWindow("poll", p.PollInterval, p.PollTimeout); err != nil {
		return err
	}
	return validateWindow("fallback", p.FallbackInterval, p.FallbackTimeout)
}

func validateScheme(scheme string) error {
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme %q", scheme)
	}
	return nil
}

func validatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("%d is out of range", port)
	}
	return nil
}

func validateWindow(name string, interval, timeout time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("%s interval must be positive", name)
	}
	if timeout < interval {
		return fmt.Errorf("%s timeout %s is shorter than interval %s", name, timeout, interval)
	}
	return nil
}
