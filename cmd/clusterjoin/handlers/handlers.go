// Package handlers implements the business logic for CLI commands.
//
// This package contains handler functions that are called by command definitions
// in the commands package. Handlers are framework-agnostic and can be tested
// independently of the CLI framework.
package handlers

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-logr/logr"
	"sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/imamik/clusterjoin/internal/agent"
	"github.com/imamik/clusterjoin/internal/config"
	"github.com/imamik/clusterjoin/internal/metadata"
	"github.com/imamik/clusterjoin/internal/metrics"
	"github.com/imamik/clusterjoin/internal/util/prerequisites"
)

// Options are the global flags shared by every command.
type Options struct {
	ConfigPath      string
	Cluster         string
	Debug           bool
	MetricsTextfile string
}

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from file and environment (for testing injection).
	loadConfigFile = config.Load

	// checkPrereqs checks that the k3s binary (and systemctl in systemd mode)
	// is installed.
	checkPrereqs = prerequisites.CheckCluster

	// writeMetrics dumps the metrics registry to a textfile.
	writeMetrics = metrics.WriteTextfile

	// newLogger creates the root logger.
	newLogger = func(debug bool) logr.Logger {
		return zap.New(zap.UseDevMode(debug), zap.WriteTo(os.Stderr))
	}

	// stdout receives command output.
	stdout io.Writer = os.Stdout
)

// setupLogging installs the logger globally and in ctx.
func setupLogging(ctx context.Context, opts Options) context.Context {
	logger := newLogger(opts.Debug)
	log.SetLogger(logger)
	return log.IntoContext(ctx, logger)
}

// loadConfig loads the configuration and applies flag overrides. Validation
// is left to the caller since coordinators need stricter checks.
func loadConfig(opts Options) (*config.Config, error) {
	cfg, err := loadConfigFile(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if opts.Cluster != "" {
		cfg.Cluster = opts.Cluster
	}
	if opts.MetricsTextfile != "" {
		cfg.Metrics.Textfile = opts.MetricsTextfile
	}
	return cfg, nil
}

// ensurePrereqs fails when the k3s binary is missing and logs what was found.
func ensurePrereqs(ctx context.Context, cfg *config.Config) error {
	logger := log.FromContext(ctx)
	results := checkPrereqs(cfg.Agent.Binary, cfg.Agent.Mode == agent.ModeSystemd)
	for _, r := range results.Results {
		if !r.Found {
			continue
		}
		version := r.Version
		if version == "" {
			version = "unknown version"
		}
		logger.V(1).Info("found tool", "name", r.Tool.Name, "version", version)
	}
	return results.Error()
}

// flushMetrics writes the metrics textfile when one is configured. A
// failure is logged and does not change the command's outcome.
func flushMetrics(ctx context.Context, cfg *config.Config) {
	if cfg.Metrics.Textfile == "" {
		return
	}
	if err := writeMetrics(cfg.Metrics.Textfile); err != nil {
		log.FromContext(ctx).Error(err, "failed to write metrics textfile", "path", cfg.Metrics.Textfile)
	}
}

// logIdentity logs the instance identity at debug level.
func logIdentity(ctx context.Context, meta metadata.Provider) {
	logger := log.FromContext(ctx).V(1)
	if meta == nil || !logger.Enabled() {
		return
	}
	id, err := metadata.Describe(ctx, meta)
	if err != nil {
		logger.Info("instance identity unavailable", "error", err.Error())
		return
	}
	logger.Info("instance identity",
		"instanceID", id.InstanceID,
		"region", id.Region,
		"localIPv4", id.LocalIPv4,
		"publicIPv4", id.PublicIPv4,
	)
}
