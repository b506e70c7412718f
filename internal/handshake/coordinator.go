package handshake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/agent"
	"github.com/imamik/clusterjoin/internal/k8s"
	"github.com/imamik/clusterjoin/internal/metadata"
	"github.com/imamik/clusterjoin/internal/store"
	"github.com/imamik/clusterjoin/internal/util/poll"
	"github.com/imamik/clusterjoin/internal/util/retry"
)

// CoordinatorConfig tunes the coordinator sequence.
type CoordinatorConfig struct {
	Keys   store.Keys
	Layout store.Layout

	// ExpectedNodes is participants + 1.
	ExpectedNodes int

	TokenFile string
	TokenWait time.Duration

	AdvertiseAddress string
	Scheme           string
	Port             int

	StartAttempts int
	StartInterval time.Duration

	PollInterval time.Duration
	PollTimeout  time.Duration

	PublishRetries int
	PublishDelay   time.Duration

	// Chart is installed after the cluster is complete. Nil disables it.
	Chart *k8s.ChartSpec
}

// CoordinatorDeps are the collaborators of a Coordinator. Charts and
// Recorder are optional.
type CoordinatorDeps struct {
	Store    store.Store
	Control  ControlService
	Members  k8s.ReadyCounter
	Metadata metadata.Provider
	Charts   ChartInstaller
	Recorder Recorder

	// ReadToken defaults to agent.ReadToken.
	ReadToken func(ctx context.Context, path string, wait time.Duration) (string, error)
	// Now defaults to time.Now.
	Now func() time.Time
}

// Coordinator runs the coordinator side of the handshake.
type Coordinator struct {
	cfg  CoordinatorConfig
	deps CoordinatorDeps
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(cfg CoordinatorConfig, deps CoordinatorDeps) *Coordinator {
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if deps.ReadToken == nil {
		deps.ReadToken = agent.ReadToken
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Coordinator{cfg: cfg, deps: deps}
}

// Bootstrap runs the full coordinator sequence. Every returned error is
// fatal for the run; nothing is rolled back.
func (c *Coordinator) Bootstrap(ctx context.Context) error {
	logger := log.FromContext(ctx).WithValues("cluster", c.cfg.Keys.Cluster)
	ctx = log.IntoContext(ctx, logger)

	if err := c.startControlService(ctx); err != nil {
		return err
	}

	secret, err := c.deps.ReadToken(ctx, c.cfg.TokenFile, c.cfg.TokenWait)
	if err != nil {
		return fmt.Errorf("failed to read join secret: %w", err)
	}

	endpoint, err := c.ResolveEndpoint(ctx)
	if err != nil {
		return err
	}

	if _, err := c.Publish(ctx, endpoint, secret); err != nil {
		return err
	}

	if err := c.WaitForMembers(ctx); err != nil {
		return err
	}

	if c.cfg.Chart != nil && c.deps.Charts != nil {
		started := time.Now()
		err := c.deps.Charts.InstallOrUpgrade(ctx, *c.cfg.Chart)
		c.deps.Recorder.PhaseDone("chart", started, err)
		if err != nil {
			return fmt.Errorf("failed to install chart %s: %w", c.cfg.Chart.Chart, err)
		}
	}

	logger.Info("cluster bootstrap complete", "nodes", c.cfg.ExpectedNodes)
	return nil
}

func (c *Coordinator) startControlService(ctx context.Context) (err error) {
	started := time.Now()
	defer func() { c.deps.Recorder.PhaseDone("control-service", started, err) }()

	if err := c.deps.Control.StartControlService(ctx); err != nil {
		return err
	}

	logger := log.FromContext(ctx)
	err = poll.Attempts(ctx, c.cfg.StartInterval, c.cfg.StartAttempts, func(ctx context.Context) (bool, error) {
		c.deps.Recorder.PollAttempt("control-service")
		if err := c.deps.Control.Healthy(ctx); err != nil {
			logger.V(1).Info("control service not healthy yet", "error", err.Error())
			return false, nil
		}
		return true, nil
	})
	if err != nil {
		return fmt.Errorf("control service not healthy after %d attempts: %w", c.cfg.StartAttempts, err)
	}
	logger.Info("control service healthy")
	return nil
}

// ResolveEndpoint builds the join endpoint from the advertise address or
// the instance's private IPv4.
func (c *Coordinator) ResolveEndpoint(ctx context.Context) (string, error) {
	host := c.cfg.AdvertiseAddress
	if host == "" {
		if c.deps.Metadata == nil {
			return "", fmt.Errorf("no advertise address and no metadata provider configured")
		}
		ip, err := c.deps.Metadata.LocalIPv4(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to resolve local address: %w", err)
		}
		host = ip
	}

	endpoint := store.BuildEndpoint(c.cfg.Scheme, host, c.cfg.Port)
	if err := store.ValidateEndpoint(endpoint); err != nil {
		return "", err
	}
	return endpoint, nil
}

// Publish writes the join material to the store. Publishing material that
// is already in the store keeps its generation, so repeated runs leave the
// store unchanged.
func (c *Coordinator) Publish(ctx context.Context, endpoint, secret string) (store.JoinRecord, error) {
	logger := log.FromContext(ctx)
	started := time.Now()

	rec := store.NewJoinRecord(endpoint, secret, c.deps.Now())
	if err := rec.Validate(); err != nil {
		return store.JoinRecord{}, err
	}
	if c.cfg.Layout != store.LayoutSplit {
		existing, err := store.ReadRecord(ctx, c.deps.Store, c.cfg.Keys)
		switch {
		case err == nil && existing.SameMaterial(rec):
			rec = existing
		case err != nil && !errors.Is(err, store.ErrNotFound) && !errors.Is(err, store.ErrInvalidRecord):
			logger.V(1).Info("could not read existing join record", "error", err.Error())
		}
	}

	err := retry.WithExponentialBackoff(ctx, func(ctx context.Context) error {
		err := store.Publish(ctx, c.deps.Store, c.cfg.Keys, c.cfg.Layout, rec)
		if errors.Is(err, store.ErrPermissionDenied) {
			return retry.Fatal(err)
		}
		return err
	},
		retry.WithMaxRetries(c.cfg.PublishRetries),
		retry.WithInitialDelay(c.cfg.PublishDelay),
		retry.WithJitter(0.2),
		retry.WithOnRetry(func(attempt int, err error) {
			logger.Info("retrying publish", "attempt", attempt, "error", err.Error())
		}),
	)
	c.deps.Recorder.PhaseDone("publish", started, err)
	if err != nil {
		return store.JoinRecord{}, fmt.Errorf("failed to publish join material: %w", err)
	}

	logger.Info("published join material",
		"endpoint", rec.Endpoint,
		"generation", rec.Generation,
		"secret", store.Fingerprint(rec.Secret),
		"layout", string(c.cfg.Layout))
	return rec, nil
}

// WaitForMembers blocks until exactly ExpectedNodes nodes are ready.
func (c *Coordinator) WaitForMembers(ctx context.Context) error {
	started := time.Now()
	_, err := k8s.WaitForReadyCount(ctx, c.deps.Members, c.cfg.ExpectedNodes, c.cfg.PollInterval, c.cfg.PollTimeout, func(ready int) {
		c.deps.Recorder.PollAttempt("membership")
		c.deps.Recorder.ReadyNodes(ready, c.cfg.ExpectedNodes)
	})
	c.deps.Recorder.PhaseDone("membership", started, err)
	if err != nil {
		return fmt.Errorf("cluster incomplete: %w", err)
	}
	return nil
}
