package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides configuration values from environment variables.
// Unset or unparsable variables leave the current value in place.
//
// Environment Variables:
//   - CLUSTERJOIN_CLUSTER, CLUSTERJOIN_EXPECTED_NODES
//   - CLUSTERJOIN_STORE_BACKEND, CLUSTERJOIN_STORE_PREFIX, CLUSTERJOIN_STORE_LAYOUT
//   - CLUSTERJOIN_STORE_REGION, CLUSTERJOIN_STORE_BUCKET, CLUSTERJOIN_STORE_ADDRESS
//   - CLUSTERJOIN_STORE_TOKEN, CLUSTERJOIN_STORE_PASSWORD
//   - CLUSTERJOIN_CLOUD_PROVIDER, CLUSTERJOIN_CLOUD_REGION
//   - HCLOUD_TOKEN
//   - CLUSTERJOIN_ADVERTISE_ADDRESS, CLUSTERJOIN_TOKEN_FILE
//   - CLUSTERJOIN_COORDINATOR_POLL_INTERVAL, CLUSTERJOIN_COORDINATOR_POLL_TIMEOUT
//   - CLUSTERJOIN_PARTICIPANT_POLL_INTERVAL, CLUSTERJOIN_PARTICIPANT_POLL_TIMEOUT
//   - CLUSTERJOIN_FALLBACK_TIMEOUT
//   - CLUSTERJOIN_RETRY_MAX_RETRIES, CLUSTERJOIN_RETRY_INITIAL_DELAY
//   - CLUSTERJOIN_METRICS_TEXTFILE
func (c *Config) ApplyEnv() {
	c.Cluster = parseString("CLUSTERJOIN_CLUSTER", c.Cluster)
	c.ExpectedNodes = parseInt("CLUSTERJOIN_EXPECTED_NODES", c.ExpectedNodes)

	c.Store.Backend = parseString("CLUSTERJOIN_STORE_BACKEND", c.Store.Backend)
	c.Store.Prefix = parseString("CLUSTERJOIN_STORE_PREFIX", c.Store.Prefix)
	c.Store.Layout = parseString("CLUSTERJOIN_STORE_LAYOUT", c.Store.Layout)
	c.Store.Region = parseString("CLUSTERJOIN_STORE_REGION", c.Store.Region)
	c.Store.Bucket = parseString("CLUSTERJOIN_STORE_BUCKET", c.Store.Bucket)
	c.Store.Address = parseString("CLUSTERJOIN_STORE_ADDRESS", c.Store.Address)
	c.Store.Token = parseString("CLUSTERJOIN_STORE_TOKEN", c.Store.Token)
	c.Store.Password = parseString("CLUSTERJOIN_STORE_PASSWORD", c.Store.Password)

	c.Cloud.Provider = parseString("CLUSTERJOIN_CLOUD_PROVIDER", c.Cloud.Provider)
	c.Cloud.Region = parseString("CLUSTERJOIN_CLOUD_REGION", c.Cloud.Region)
	c.Cloud.HCloudToken = parseString("HCLOUD_TOKEN", c.Cloud.HCloudToken)

	c.Coordinator.AdvertiseAddress = parseString("CLUSTERJOIN_ADVERTISE_ADDRESS", c.Coordinator.AdvertiseAddress)
	c.Coordinator.TokenFile = parseString("CLUSTERJOIN_TOKEN_FILE", c.Coordinator.TokenFile)
	c.Coordinator.PollInterval = parseDuration("CLUSTERJOIN_COORDINATOR_POLL_INTERVAL", c.Coordinator.PollInterval)
	c.Coordinator.PollTimeout = parseDuration("CLUSTERJOIN_COORDINATOR_POLL_TIMEOUT", c.Coordinator.PollTimeout)

	c.Participant.PollInterval = parseDuration("CLUSTERJOIN_PARTICIPANT_POLL_INTERVAL", c.Participant.PollInterval)
	c.Participant.PollTimeout = parseDuration("CLUSTERJOIN_PARTICIPANT_POLL_TIMEOUT", c.Participant.PollTimeout)
	c.Participant.FallbackTimeout = parseDuration("CLUSTERJOIN_FALLBACK_TIMEOUT", c.Participant.FallbackTimeout)

	c.Retry.MaxRetries = parseInt("CLUSTERJOIN_RETRY_MAX_RETRIES", c.Retry.MaxRetries)
	c.Retry.InitialDelay = parseDuration("CLUSTERJOIN_RETRY_INITIAL_DELAY", c.Retry.InitialDelay)

	c.Metrics.Textfile = parseString("CLUSTERJOIN_METRICS_TEXTFILE", c.Metrics.Textfile)
}

func parseString(envVar string, defaultVal string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultVal
}

// parseDuration parses a duration from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseDuration(envVar string, defaultVal time.Duration) time.Duration {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	d, err := time.ParseDuration(val)
	if err != nil {
		return defaultVal
	}

	return d
}

// parseInt parses an integer from an environment variable.
// If the variable is not set or parsing fails, the default value is returned.
func parseInt(envVar string, defaultVal int) int {
	val := os.Getenv(envVar)
	if val == "" {
		return defaultVal
	}

	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}

	return i
}
