package handshake

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/store"
	"github.com/imamik/clusterjoin/internal/util/poll"
	"github.com/imamik/clusterjoin/internal/util/retry"
)

// ErrAlreadyRun is returned when Run is called on a participant that has
// already run.
var ErrAlreadyRun = errors.New("participant has already run")

// ParticipantConfig tunes the participant sequence.
type ParticipantConfig struct {
	Keys   store.Keys
	Layout store.Layout

	PollInterval time.Duration
	PollTimeout  time.Duration

	FallbackInterval time.Duration
	FallbackTimeout  time.Duration

	// Scheme and Port build endpoints from discovered addresses.
	Scheme string
	Port   int
}

// ParticipantDeps are the collaborators of a Participant. A nil Discoverer
// disables fallback discovery.
type ParticipantDeps struct {
	Store      store.Store
	Prober     Prober
	Joiner     Joiner
	Discoverer Discoverer
	Recorder   Recorder
}

// JoinResult describes a successful join.
type JoinResult struct {
	Endpoint   string
	Generation string
	Fallback   bool
}

// Participant runs the participant side of the handshake.
type Participant struct {
	cfg  ParticipantConfig
	deps ParticipantDeps

	mu      sync.Mutex
	state   State
	history []State
}

// NewParticipant creates a Participant.
func NewParticipant(cfg ParticipantConfig, deps ParticipantDeps) *Participant {
	if deps.Recorder == nil {
		deps.Recorder = noopRecorder{}
	}
	if cfg.Scheme == "" {
		cfg.Scheme = "https"
	}
	return &Participant{cfg: cfg, deps: deps}
}

// State returns the current state.
func (p *Participant) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// History returns every state entered so far, in order.
func (p *Participant) History() []State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]State(nil), p.history...)
}

// credentialWatch is what the store poll has learned so far.
type credentialWatch struct {
	endpoint   string
	secret     string
	generation string
	healthy    bool
}

// Run executes the join sequence. The join command is invoked at most once,
// and only with a non-empty endpoint and secret.
func (p *Participant) Run(ctx context.Context) (JoinResult, error) {
	if p.State() != "" {
		return JoinResult{}, ErrAlreadyRun
	}
	logger := log.FromContext(ctx).WithValues("cluster", p.cfg.Keys.Cluster)
	ctx = log.IntoContext(ctx, logger)

	p.transition(ctx, StateWaiting)

	w, err := p.waitForCredentials(ctx)
	fallback := false
	switch {
	case err == nil:
	case errors.Is(err, poll.ErrTimeout) && !w.healthy:
		w.endpoint, err = p.discover(ctx)
		if err != nil {
			return JoinResult{}, p.fail(ctx, err)
		}
		fallback = true
		if err := p.refreshSecret(ctx, &w); err != nil {
			return JoinResult{}, p.fail(ctx, err)
		}
	case errors.Is(err, poll.ErrTimeout):
	default:
		return JoinResult{}, p.fail(ctx, err)
	}

	if w.secret == "" {
		w.secret, err = store.ReadSecret(ctx, p.deps.Store, p.cfg.Keys, p.cfg.Layout)
		if err != nil {
			return JoinResult{}, p.fail(ctx, fmt.Errorf("failed to read join secret: %w", err))
		}
		if w.secret == "" {
			return JoinResult{}, p.fail(ctx, fmt.Errorf("join secret was never published to %s", p.cfg.Keys.Prefix))
		}
	}

	p.transition(ctx, StateJoining)
	started := time.Now()
	err = p.deps.Joiner.Join(ctx, w.endpoint, w.secret)
	p.deps.Recorder.PhaseDone("join", started, err)
	if err != nil {
		return JoinResult{}, p.fail(ctx, fmt.Errorf("failed to join %s: %w", w.endpoint, err))
	}
	p.transition(ctx, StateJoined)

	logger.Info("joined cluster", "endpoint", w.endpoint, "generation", w.generation, "fallback", fallback)
	return JoinResult{Endpoint: w.endpoint, Generation: w.generation, Fallback: fallback}, nil
}

// waitForCredentials polls the store until a healthy endpoint and a secret
// are known. On timeout the returned watch holds whatever was learned.
func (p *Participant) waitForCredentials(ctx context.Context) (credentialWatch, error) {
	logger := log.FromContext(ctx)
	started := time.Now()
	var w credentialWatch

	err := poll.Until(ctx, p.cfg.PollInterval, p.cfg.PollTimeout, func(ctx context.Context) (bool, error) {
		p.deps.Recorder.PollAttempt("credentials")

		creds, err := store.ReadCredentials(ctx, p.deps.Store, p.cfg.Keys, p.cfg.Layout)
		if err != nil {
			if errors.Is(err, store.ErrPermissionDenied) {
				return false, retry.Fatal(fmt.Errorf("reading join material: %w", err))
			}
			logger.V(1).Info("join material not readable yet", "error", err.Error())
			return false, nil
		}

		if creds.Secret != "" {
			w.secret = creds.Secret
			w.generation = creds.Generation
		}
		if creds.Endpoint == "" {
			logger.V(1).Info("join endpoint not published yet")
			return false, nil
		}

		if creds.Endpoint != w.endpoint {
			if err := store.ValidateEndpoint(creds.Endpoint); err != nil {
				logger.Info("ignoring malformed join endpoint", "endpoint", creds.Endpoint, "error", err.Error())
				return false, nil
			}
			w.endpoint = creds.Endpoint
			w.healthy = false
			p.transition(ctx, StateEndpointFound)
		}

		if !w.healthy {
			if err := p.deps.Prober.Probe(ctx, w.endpoint); err != nil {
				logger.V(1).Info("join endpoint not healthy yet", "endpoint", w.endpoint, "error", err.Error())
				return false, nil
			}
			w.healthy = true
			p.transition(ctx, StateHealthy)
		}

		return w.secret != "", nil
	})
	p.deps.Recorder.PhaseDone("credentials", started, err)
	return w, err
}

// discover looks up coordinator instances through the cloud API and returns
// the first healthy endpoint.
func (p *Participant) discover(ctx context.Context) (string, error) {
	logger := log.FromContext(ctx)
	if p.deps.Discoverer == nil {
		return "", fmt.Errorf("no healthy join endpoint within %s and fallback discovery is disabled", p.cfg.PollTimeout)
	}

	logger.Info("no healthy join endpoint in store, falling back to instance discovery (degraded)",
		"waited", p.cfg.PollTimeout.String())
	p.transition(ctx, StateFallback)

	started := time.Now()
	var endpoint string
	err := poll.Until(ctx, p.cfg.FallbackInterval, p.cfg.FallbackTimeout, func(ctx context.Context) (bool, error) {
		p.deps.Recorder.PollAttempt("fallback")

		addrs, err := p.deps.Discoverer.Discover(ctx)
		if err != nil {
			if retry.IsFatal(err) {
				return false, err
			}
			logger.V(1).Info("coordinator discovery failed", "error", err.Error())
			return false, nil
		}

		for _, addr := range addrs {
			candidate := store.BuildEndpoint(p.cfg.Scheme, addr, p.cfg.Port)
			if err := p.deps.Prober.Probe(ctx, candidate); err != nil {
				logger.V(1).Info("discovered endpoint not healthy", "endpoint", candidate, "error", err.Error())
				continue
			}
			endpoint = candidate
			return true, nil
		}
		return false, nil
	})
	p.deps.Recorder.PhaseDone("fallback", started, err)
	if err != nil {
		return "", fmt.Errorf("fallback discovery found no healthy coordinator: %w", err)
	}

	logger.Info("discovered healthy coordinator", "endpoint", endpoint)
	p.transition(ctx, StateHealthy)
	return endpoint, nil
}

// refreshSecret re-reads the store after fallback discovery. A coordinator
// may have published a new generation in the meantime; its secret replaces
// the one seen earlier so that a join never pairs values from different
// generations.
func (p *Participant) refreshSecret(ctx context.Context, w *credentialWatch) error {
	creds, err := store.ReadCredentials(ctx, p.deps.Store, p.cfg.Keys, p.cfg.Layout)
	if err != nil {
		if errors.Is(err, store.ErrPermissionDenied) {
			return retry.Fatal(fmt.Errorf("reading join material: %w", err))
		}
		log.FromContext(ctx).Info("could not refresh join material after discovery", "error", err.Error())
		return nil
	}
	if creds.Secret == "" {
		return nil
	}
	if creds.Generation != w.generation || creds.Secret != w.secret {
		log.FromContext(ctx).Info("join material republished during discovery",
			"generation", creds.Generation, "previous", w.generation)
	}
	w.secret = creds.Secret
	w.generation = creds.Generation
	return nil
}

func (p *Participant) fail(ctx context.Context, err error) error {
	p.transition(ctx, StateFailed)
	return err
}

func (p *Participant) transition(ctx context.Context, to State) {
	p.mu.Lock()
	from := p.state
	if from == to {
		p.mu.Unlock()
		return
	}
	if !CanTransition(from, to) {
		log.FromContext(ctx).Info("unexpected state transition", "from", string(from), "to", string(to))
	}
	p.state = to
	p.history = append(p.history, to)
	p.mu.Unlock()

	log.FromContext(ctx).V(1).Info("participant state", "from", string(from), "to", string(to))
	p.deps.Recorder.StateChanged(string(from), string(to))
}
