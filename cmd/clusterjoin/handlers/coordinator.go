package handlers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/metrics"
	"github.com/imamik/clusterjoin/internal/store"
)

// CoordinatorOptions are the flags of the coordinator command. Zero values
// keep the configured settings.
type CoordinatorOptions struct {
	ExpectedNodes    int
	AdvertiseAddress string
}

// Coordinator bootstraps the control node of a cluster.
//
// The sequence is:
//  1. Loads and validates configuration (file, environment, flags)
//  2. Verifies the k3s binary is installed
//  3. Starts the control service and waits for it to become healthy
//  4. Publishes the join secret and endpoint to the parameter store
//  5. Waits until exactly the expected number of nodes are ready
//  6. Installs the configured chart, if any
//
// Nothing is rolled back on failure.
func Coordinator(ctx context.Context, opts Options, co CoordinatorOptions) error {
	ctx = setupLogging(ctx, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if co.ExpectedNodes > 0 {
		cfg.ExpectedNodes = co.ExpectedNodes
	}
	if co.AdvertiseAddress != "" {
		cfg.Coordinator.AdvertiseAddress = co.AdvertiseAddress
	}
	if err := cfg.ValidateCoordinator(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer flushMetrics(ctx, cfg)

	if err := ensurePrereqs(ctx, cfg); err != nil {
		return err
	}

	s, closeStore, err := newStore(ctx, cfg, true)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() { _ = closeStore() }()

	layout, err := store.ParseLayout(cfg.Store.Layout)
	if err != nil {
		return err
	}

	meta := newMetadata(cfg)
	logIdentity(ctx, meta)

	cc := cfg.Coordinator
	coordinator := handshake.NewCoordinator(handshake.CoordinatorConfig{
		Keys:             keysFor(cfg),
		Layout:           layout,
		ExpectedNodes:    cfg.ExpectedNodes,
		TokenFile:        cc.TokenFile,
		TokenWait:        cc.TokenWait,
		AdvertiseAddress: cc.AdvertiseAddress,
		Scheme:           cc.Scheme,
		Port:             cc.Port,
		StartAttempts:    cc.StartAttempts,
		StartInterval:    cc.StartInterval,
		PollInterval:     cc.PollInterval,
		PollTimeout:      cc.PollTimeout,
		PublishRetries:   cfg.Retry.MaxRetries,
		PublishDelay:     cfg.Retry.InitialDelay,
		Chart:            chartSpec(cc.Chart),
	}, handshake.CoordinatorDeps{
		Store:     s,
		Control:   newAgent(cfg.Agent),
		Members:   newMembers(cfg),
		Metadata:  meta,
		Charts:    newChartInstaller(cfg.Membership.Kubeconfig),
		Recorder:  metrics.NewRecorder(cfg.Cluster, "coordinator"),
		ReadToken: readToken,
	})

	log.FromContext(ctx).Info("bootstrapping coordinator",
		"cluster", cfg.Cluster,
		"expectedNodes", cfg.ExpectedNodes,
		"store", cfg.Store.Backend,
	)
	return coordinator.Bootstrap(ctx)
}
