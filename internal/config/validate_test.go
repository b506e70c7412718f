package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Cluster = "demo"
	cfg.ExpectedNodes = 3
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing cluster", func(c *Config) { c.Cluster = "" }, "cluster is required"},
		{"bad cluster name", func(c *Config) { c.Cluster = "Demo/1" }, "lowercase"},
		{"unknown backend", func(c *Config) { c.Store.Backend = "etcd" }, "unsupported backend"},
		{"unknown layout", func(c *Config) { c.Store.Layout = "flat" }, "store validation failed"},
		{"s3 without bucket", func(c *Config) { c.Store.Backend = BackendS3 }, "bucket is required"},
		{"redis without address", func(c *Config) { c.Store.Backend = BackendRedis }, "address is required"},
		{"unknown provider", func(c *Config) { c.Cloud.Provider = "gcp" }, "unsupported provider"},
		{"bad static ip", func(c *Config) {
			c.Cloud.Provider = ProviderStatic
			c.Cloud.Static.LocalIPv4 = "ten.zero"
		}, "not an IP address"},
		{"bad scheme", func(c *Config) { c.Participant.Scheme = "ftp" }, "unsupported scheme"},
		{"bad port", func(c *Config) { c.Participant.Port = 70000 }, "out of range"},
		{"relative health path", func(c *Config) { c.Participant.HealthPath = "healthz" }, "health_path"},
		{"timeout below interval", func(c *Config) { c.Participant.PollTimeout = time.Second }, "shorter than interval"},
		{"unknown agent mode", func(c *Config) { c.Agent.Mode = "docker" }, "agent mode"},
		{"negative retries", func(c *Config) { c.Retry.MaxRetries = -1 }, "max_retries"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestValidateCoordinator(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"zero expected nodes", func(c *Config) { c.ExpectedNodes = 0 }, "expected_nodes"},
		{"zero start attempts", func(c *Config) { c.Coordinator.StartAttempts = 0 }, "start_attempts"},
		{"hostname advertise address", func(c *Config) { c.Coordinator.AdvertiseAddress = "cp.local" }, "not an IP address"},
		{"ip advertise address", func(c *Config) { c.Coordinator.AdvertiseAddress = "10.0.0.5" }, ""},
		{"chart without release", func(c *Config) { c.Coordinator.Chart = &ChartConfig{Chart: "nginx"} }, "requires chart and release"},
		{"shared settings", func(c *Config) { c.Cluster = "" }, "cluster is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.ValidateCoordinator()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			if assert.Error(t, err) {
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}
