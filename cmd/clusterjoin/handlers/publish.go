package handlers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/metrics"
	"github.com/imamik/clusterjoin/internal/store"
)

// Publish writes the join material of a running control service to the
// store. An empty endpoint is derived from the advertise address or the
// instance metadata.
func Publish(ctx context.Context, opts Options, endpoint string) error {
	ctx = setupLogging(ctx, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer flushMetrics(ctx, cfg)

	if endpoint != "" {
		if err := store.ValidateEndpoint(endpoint); err != nil {
			return err
		}
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

	cc := cfg.Coordinator
	coordinator := handshake.NewCoordinator(handshake.CoordinatorConfig{
		Keys:             keysFor(cfg),
		Layout:           layout,
		AdvertiseAddress: cc.AdvertiseAddress,
		Scheme:           cc.Scheme,
		Port:             cc.Port,
		PublishRetries:   cfg.Retry.MaxRetries,
		PublishDelay:     cfg.Retry.InitialDelay,
	}, handshake.CoordinatorDeps{
		Store:    s,
		Metadata: newMetadata(cfg),
		Recorder: metrics.NewRecorder(cfg.Cluster, "publisher"),
	})

	if endpoint == "" {
		if endpoint, err = coordinator.ResolveEndpoint(ctx); err != nil {
			return err
		}
	}

	secret, err := readToken(ctx, cc.TokenFile, cc.TokenWait)
	if err != nil {
		return fmt.Errorf("failed to read join secret: %w", err)
	}

	rec, err := coordinator.Publish(ctx, endpoint, secret)
	if err != nil {
		return err
	}
	log.FromContext(ctx).Info("join material published",
		"cluster", cfg.Cluster,
		"endpoint", rec.Endpoint,
		"generation", rec.Generation,
	)
	return nil
}
