package agent

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/store"
	"github.com/imamik/clusterjoin/internal/util/poll"
)

// Modes.
const (
	ModeSystemd = "systemd"
	ModeExec    = "exec"
)

// Settings configures K3s.
type Settings struct {
	Binary       string
	Mode         string
	ServerUnit   string
	AgentUnit    string
	AgentEnvFile string
	ServerArgs   []string
	AgentArgs    []string
}

// K3s drives the k3s CLI.
type K3s struct {
	runner    Runner
	settings  Settings
	writeFile func(name string, data []byte, perm os.FileMode) error
}

// Option configures K3s.
type Option func(*K3s)

// WithRunner replaces the command runner.
func WithRunner(r Runner) Option {
	return func(k *K3s) {
		k.runner = r
	}
}

// WithFileWriter replaces the writer used for the agent environment file.
func WithFileWriter(fn func(name string, data []byte, perm os.FileMode) error) Option {
	return func(k *K3s) {
		k.writeFile = fn
	}
}

// NewK3s creates a K3s driver.
func NewK3s(settings Settings, opts ...Option) *K3s {
	if settings.Binary == "" {
		settings.Binary = "k3s"
	}
	if settings.Mode == "" {
		settings.Mode = ModeSystemd
	}
	k := &K3s{
		runner:    ExecRunner{},
		settings:  settings,
		writeFile: writeFileAtomic,
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// StartControlService starts the k3s server.
func (k *K3s) StartControlService(ctx context.Context) error {
	logger := log.FromContext(ctx)

	if k.settings.Mode == ModeSystemd {
		logger.Info("starting control service", "unit", k.settings.ServerUnit)
		if _, err := k.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"start", k.settings.ServerUnit}}); err != nil {
			return fmt.Errorf("failed to start control service: %w", err)
		}
		return nil
	}

	args := append([]string{"server"}, k.settings.ServerArgs...)
	logger.Info("starting control service", "binary", k.settings.Binary)
	if err := k.runner.Start(ctx, Command{Name: k.settings.Binary, Args: args}); err != nil {
		return fmt.Errorf("failed to start control service: %w", err)
	}
	return nil
}

// Healthy returns nil once the local API server reports ready.
func (k *K3s) Healthy(ctx context.Context) error {
	out, err := k.runner.Run(ctx, Command{
		Name: k.settings.Binary,
		Args: []string{"kubectl", "get", "--raw=/readyz"},
	})
	if err != nil {
		return err
	}
	if got := strings.TrimSpace(string(out)); got != "ok" {
		return fmt.Errorf("control service not ready: %q", got)
	}
	return nil
}

// Join joins this node to the cluster behind endpoint. It must be called at
// most once per run.
func (k *K3s) Join(ctx context.Context, endpoint, secret string) error {
	if endpoint == "" || secret == "" {
		return fmt.Errorf("join requires both endpoint and secret")
	}
	logger := log.FromContext(ctx).WithValues("endpoint", endpoint, "secret", store.Fingerprint(secret))

	if k.settings.Mode == ModeSystemd {
		env := fmt.Sprintf("K3S_URL='%s'\nK3S_TOKEN='%s'\n", endpoint, secret)
		if err := k.writeFile(k.settings.AgentEnvFile, []byte(env), 0o600); err != nil {
			return fmt.Errorf("failed to write agent environment: %w", err)
		}
		logger.Info("joining cluster", "unit", k.settings.AgentUnit)
		if _, err := k.runner.Run(ctx, Command{Name: "systemctl", Args: []string{"restart", k.settings.AgentUnit}}); err != nil {
			return fmt.Errorf("join failed: %w", err)
		}
		return nil
	}

	args := append([]string{"agent", "--server", endpoint}, k.settings.AgentArgs...)
	logger.Info("joining cluster", "binary", k.settings.Binary)
	err := k.runner.Start(ctx, Command{
		Name: k.settings.Binary,
		Args: args,
		Env:  []string{"K3S_URL=" + endpoint, "K3S_TOKEN=" + secret},
	})
	if err != nil {
		return fmt.Errorf("join failed: %w", err)
	}
	return nil
}

// ReadToken waits up to wait for the token file to hold a non-empty value
// and returns it trimmed.
func ReadToken(ctx context.Context, path string, wait time.Duration) (string, error) {
	var token string
	err := poll.Until(ctx, time.Second, wait, func(context.Context) (bool, error) {
		// #nosec G304
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return false, nil
			}
			return false, fmt.Errorf("failed to read token file: %w", err)
		}
		token = string(bytes.TrimSpace(data))
		return token != "", nil
	})
	if err != nil {
		if token == "" {
			return "", fmt.Errorf("join secret at %s is absent or empty: %w", path, err)
		}
		return "", err
	}
	return token, nil
}

func writeFileAtomic(name string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(name), 0o755); err != nil {
		return err
	}
	tmp := name + ".tmp"
	if err := os.WriteFile(tmp, data, perm); err != nil {
		return err
	}
	return os.Rename(tmp, name)
}
