package handlers

import (
	"context"
	"fmt"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/metrics"
	"github.com/imamik/clusterjoin/internal/store"
)

// ParticipantOptions are the flags of the participant command.
type ParticipantOptions struct {
	DisableFallback bool
}

// Participant waits for the join material of a cluster and joins this node.
func Participant(ctx context.Context, opts Options, po ParticipantOptions) error {
	ctx = setupLogging(ctx, opts)
	logger := log.FromContext(ctx)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	defer flushMetrics(ctx, cfg)

	if err := ensurePrereqs(ctx, cfg); err != nil {
		return err
	}

	s, closeStore, err := newStore(ctx, cfg, false)
	if err != nil {
		return fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	defer func() { _ = closeStore() }()

	layout, err := store.ParseLayout(cfg.Store.Layout)
	if err != nil {
		return err
	}

	prober, err := newProber(cfg.Participant)
	if err != nil {
		return fmt.Errorf("failed to create health prober: %w", err)
	}

	meta := newMetadata(cfg)
	logIdentity(ctx, meta)

	var discoverer handshake.Discoverer
	if !po.DisableFallback {
		discoverer, err = newDiscoverer(ctx, cfg, meta)
		if err != nil {
			return fmt.Errorf("failed to set up fallback discovery: %w", err)
		}
	}

	pc := cfg.Participant
	participant := handshake.NewParticipant(handshake.ParticipantConfig{
		Keys:             keysFor(cfg),
		Layout:           layout,
		PollInterval:     pc.PollInterval,
		PollTimeout:      pc.PollTimeout,
		FallbackInterval: pc.FallbackInterval,
		FallbackTimeout:  pc.FallbackTimeout,
		Scheme:           pc.Scheme,
		Port:             pc.Port,
	}, handshake.ParticipantDeps{
		Store:      s,
		Prober:     prober,
		Joiner:     newAgent(cfg.Agent),
		Discoverer: discoverer,
		Recorder:   metrics.NewRecorder(cfg.Cluster, "participant"),
	})

	logger.Info("waiting for join material", "cluster", cfg.Cluster, "store", cfg.Store.Backend)
	result, err := participant.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("node joined",
		"endpoint", result.Endpoint,
		"generation", result.Generation,
		"fallback", result.Fallback,
	)
	return nil
}
