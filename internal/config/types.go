package config

import "time"

// Store backends.
const (
	BackendSSM    = "ssm"
	BackendS3     = "s3"
	BackendConsul = "consul"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Cloud providers used for instance metadata and fallback discovery.
const (
	ProviderAWS    = "aws"
	ProviderHCloud = "hcloud"
	ProviderStatic = "static"
	ProviderNone   = "none"
)

// Config holds the application configuration.
type Config struct {
	Cluster string `mapstructure:"cluster" yaml:"cluster"`

	// ExpectedNodes is the ready node count the coordinator waits for,
	// i.e. the number of participants plus one.
	ExpectedNodes int `mapstructure:"expected_nodes" yaml:"expected_nodes"`

	Store       StoreConfig       `mapstructure:"store" yaml:"store"`
	Cloud       CloudConfig       `mapstructure:"cloud" yaml:"cloud"`
	Agent       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	Membership  MembershipConfig  `mapstructure:"membership" yaml:"membership"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator" yaml:"coordinator"`
	Participant ParticipantConfig `mapstructure:"participant" yaml:"participant"`
	Metrics     MetricsConfig     `mapstructure:"metrics" yaml:"metrics"`
	Retry       RetryConfig       `mapstructure:"retry" yaml:"retry"`
}

// StoreConfig selects and configures the shared parameter store.
type StoreConfig struct {
	Backend string `mapstructure:"backend" yaml:"backend"` // ssm, s3, consul, redis, memory
	Prefix  string `mapstructure:"prefix" yaml:"prefix"`
	Layout  string `mapstructure:"layout" yaml:"layout"` // record, split, both

	// AWS backends (ssm, s3)
	Region   string `mapstructure:"region" yaml:"region"`
	KMSKeyID string `mapstructure:"kms_key_id" yaml:"kms_key_id"`
	Bucket   string `mapstructure:"bucket" yaml:"bucket"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"` // S3-compatible endpoint override
	Encrypt  bool   `mapstructure:"encrypt" yaml:"encrypt"`
	// CreateBucket lets the coordinator create a missing S3 bucket.
	CreateBucket bool `mapstructure:"create_bucket" yaml:"create_bucket"`

	// Network backends (consul, redis)
	Address  string `mapstructure:"address" yaml:"address"`
	Token    string `mapstructure:"token" yaml:"token"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// CloudConfig configures instance metadata and fallback discovery.
type CloudConfig struct {
	Provider         string `mapstructure:"provider" yaml:"provider"` // aws, hcloud, static, none
	Region           string `mapstructure:"region" yaml:"region"`
	HCloudToken      string `mapstructure:"hcloud_token" yaml:"hcloud_token"`
	MetadataEndpoint string `mapstructure:"metadata_endpoint" yaml:"metadata_endpoint"`

	// TagKey/TagValue identify coordinator instances on AWS.
	TagKey   string `mapstructure:"tag_key" yaml:"tag_key"`
	TagValue string `mapstructure:"tag_value" yaml:"tag_value"`

	// Labels identify coordinator servers on Hetzner Cloud.
	Labels map[string]string `mapstructure:"labels" yaml:"labels"`

	Static StaticIdentity `mapstructure:"static" yaml:"static"`
}

// StaticIdentity is used by the static provider.
type StaticIdentity struct {
	LocalIPv4  string `mapstructure:"local_ipv4" yaml:"local_ipv4"`
	PublicIPv4 string `mapstructure:"public_ipv4" yaml:"public_ipv4"`
	InstanceID string `mapstructure:"instance_id" yaml:"instance_id"`
	Region     string `mapstructure:"region" yaml:"region"`
}

// AgentConfig configures how k3s is driven.
type AgentConfig struct {
	Binary string `mapstructure:"binary" yaml:"binary"`

	// Mode is "systemd" (units created by the k3s install script) or "exec"
	// (k3s started directly as a child process).
	Mode         string   `mapstructure:"mode" yaml:"mode"`
	ServerUnit   string   `mapstructure:"server_unit" yaml:"server_unit"`
	AgentUnit    string   `mapstructure:"agent_unit" yaml:"agent_unit"`
	AgentEnvFile string   `mapstructure:"agent_env_file" yaml:"agent_env_file"`
	ServerArgs   []string `mapstructure:"server_args" yaml:"server_args"`
	AgentArgs    []string `mapstructure:"agent_args" yaml:"agent_args"`
}

// MembershipConfig configures access to the cluster membership API.
type MembershipConfig struct {
	Kubeconfig string `mapstructure:"kubeconfig" yaml:"kubeconfig"`
	ReadyToken string `mapstructure:"ready_token" yaml:"ready_token"`
}

// CoordinatorConfig configures the coordinator role.
type CoordinatorConfig struct {
	TokenFile        string        `mapstructure:"token_file" yaml:"token_file"`
	TokenWait        time.Duration `mapstructure:"token_wait" yaml:"token_wait"`
	AdvertiseAddress string        `mapstructure:"advertise_address" yaml:"advertise_address"`
	Scheme           string        `mapstructure:"scheme" yaml:"scheme"`
	Port             int           `mapstructure:"port" yaml:"port"`
	StartAttempts    int           `mapstructure:"start_attempts" yaml:"start_attempts"`
	StartInterval    time.Duration `mapstructure:"start_interval" yaml:"start_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`

	// Chart is installed once the cluster reaches its expected size.
	Chart *ChartConfig `mapstructure:"chart" yaml:"chart"`
}

// ChartConfig describes an optional Helm release.
type ChartConfig struct {
	Release   string                 `mapstructure:"release" yaml:"release"`
	Namespace string                 `mapstructure:"namespace" yaml:"namespace"`
	RepoURL   string                 `mapstructure:"repo_url" yaml:"repo_url"`
	Chart     string                 `mapstructure:"chart" yaml:"chart"`
	Version   string                 `mapstructure:"version" yaml:"version"`
	Values    map[string]interface{} `mapstructure:"values" yaml:"values"`
	Timeout   time.Duration          `mapstructure:"timeout" yaml:"timeout"`
}

// ParticipantConfig configures the participant role.
type ParticipantConfig struct {
	PollInterval     time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
	FallbackInterval time.Duration `mapstructure:"fallback_interval" yaml:"fallback_interval"`
	FallbackTimeout  time.Duration `mapstructure:"fallback_timeout" yaml:"fallback_timeout"`
	Scheme           string        `mapstructure:"scheme" yaml:"scheme"`
	Port             int           `mapstructure:"port" yaml:"port"`
	HealthPath       string        `mapstructure:"health_path" yaml:"health_path"`
	ProbeTimeout     time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	CAFile           string        `mapstructure:"ca_file" yaml:"ca_file"`
}

// MetricsConfig configures metric export.
type MetricsConfig struct {
	// Textfile is a node-exporter textfile collector path.
	Textfile string `mapstructure:"textfile" yaml:"textfile"`
}

// RetryConfig tunes store write retries. MaxRetries counts retries after the
// first attempt; 0 disables retrying.
type RetryConfig struct {
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	InitialDelay time.Duration `mapstructure:"initial_delay" yaml:"initial_delay"`
}
