package handshake

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/clusterjoin/internal/store"
	"github.com/imamik/clusterjoin/internal/util/poll"
	"github.com/imamik/clusterjoin/internal/util/retry"
)

const (
	testEndpoint = "https://10.0.0.5:6443"
	testSecret   = "tok-123"
)

func participantConfig(layout store.Layout) ParticipantConfig {
	return ParticipantConfig{
		Keys:             testKeys,
		Layout:           layout,
		PollInterval:     5 * time.Millisecond,
		PollTimeout:      150 * time.Millisecond,
		FallbackInterval: 5 * time.Millisecond,
		FallbackTimeout:  150 * time.Millisecond,
		Scheme:           "https",
		Port:             6443,
	}
}

func publishRecord(t *testing.T, s store.Store, endpoint, secret string) store.JoinRecord {
	t.Helper()
	rec := store.NewJoinRecord(endpoint, secret, time.Now())
	require.NoError(t, store.Publish(context.Background(), s, testKeys, store.LayoutRecord, rec))
	return rec
}

func assertValidHistory(t *testing.T, history []State) {
	t.Helper()
	var from State
	for _, to := range history {
		assert.True(t, CanTransition(from, to), "invalid transition %s -> %s in %v", from, to, history)
		from = to
	}
}

func TestParticipant_JoinsOnceWithPublishedMaterial(t *testing.T) {
	s := store.NewMemory()
	rec := publishRecord(t, s, testEndpoint, testSecret)
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)
	joiner := &MockJoiner{}
	recorder := &MockRecorder{}

	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{
		Store: s, Prober: prober, Joiner: joiner, Recorder: recorder,
	})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []JoinCall{{Endpoint: testEndpoint, Secret: testSecret}}, joiner.JoinCalls)
	assert.Equal(t, testEndpoint, res.Endpoint)
	assert.Equal(t, rec.Generation, res.Generation)
	assert.False(t, res.Fallback)
	assert.Equal(t, StateJoined, p.State())
	assert.Equal(t, []State{StateWaiting, StateEndpointFound, StateHealthy, StateJoining, StateJoined}, p.History())
	assert.Equal(t, []string{
		"WAITING_FOR_CREDENTIALS", "ENDPOINT_FOUND", "HEALTHY", "JOINING", "JOINED",
	}, recorder.States)
}

func TestParticipant_WaitsForSecretBeforeJoining(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(context.Background(), testKeys.Endpoint(), testEndpoint, true))
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)

	joiner := &MockJoiner{JoinFunc: func(_ context.Context, endpoint, secret string) error {
		if endpoint == "" || secret == "" {
			return errors.New("join called with partial material")
		}
		return nil
	}}

	go func() {
		time.Sleep(40 * time.Millisecond)
		_ = s.Put(context.Background(), testKeys.Secret(), testSecret, true)
	}()

	cfg := participantConfig(store.LayoutSplit)
	cfg.PollTimeout = 2 * time.Second
	p := NewParticipant(cfg, ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []JoinCall{{Endpoint: testEndpoint, Secret: testSecret}}, joiner.JoinCalls)
	assert.Len(t, prober.ProbeCalls, 1, "a healthy endpoint is not probed again")
}

func TestParticipant_NeverJoinsWithoutSecret(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(context.Background(), testKeys.Endpoint(), testEndpoint, true))
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutSplit), ParticipantDeps{
		Store: s, Prober: prober, Joiner: joiner, Discoverer: &MockDiscoverer{},
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "never published")
	assert.Empty(t, joiner.JoinCalls)
	assert.Equal(t, StateFailed, p.State())
	assertValidHistory(t, p.History())
}

func TestParticipant_ProbeGatesJoin(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, testEndpoint, testSecret)
	prober := &MockProber{}
	joiner := &MockJoiner{}

	go func() {
		time.Sleep(40 * time.Millisecond)
		prober.SetHealthy(testEndpoint)
	}()

	cfg := participantConfig(store.LayoutRecord)
	cfg.PollTimeout = 2 * time.Second
	p := NewParticipant(cfg, ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Greater(t, len(prober.ProbeCalls), 1)
	assert.Len(t, joiner.JoinCalls, 1)
}

func TestParticipant_FallbackWhenNoEndpoint(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(context.Background(), testKeys.Secret(), testSecret, true))
	prober := &MockProber{}
	prober.SetHealthy("https://10.0.0.7:6443")
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		return []string{"10.0.0.7"}, nil
	}}
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutSplit), ParticipantDeps{
		Store: s, Prober: prober, Joiner: joiner, Discoverer: discoverer,
	})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, []JoinCall{{Endpoint: "https://10.0.0.7:6443", Secret: testSecret}}, joiner.JoinCalls)
	assert.Equal(t, []State{StateWaiting, StateFallback, StateHealthy, StateJoining, StateJoined}, p.History())
}

func TestParticipant_FallbackWhenEndpointNeverHealthy(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, testEndpoint, testSecret)
	prober := &MockProber{}
	prober.SetHealthy("https://10.0.0.6:6443")
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		return []string{"10.0.0.9", "10.0.0.6"}, nil
	}}
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{
		Store: s, Prober: prober, Joiner: joiner, Discoverer: discoverer,
	})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, []JoinCall{{Endpoint: "https://10.0.0.6:6443", Secret: testSecret}}, joiner.JoinCalls)
	assert.Equal(t, []State{StateWaiting, StateEndpointFound, StateFallback, StateHealthy, StateJoining, StateJoined}, p.History())
}

func TestParticipant_FallbackUsesRepublishedSecret(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, "https://10.0.0.5:6443", "tok-old")
	prober := &MockProber{}
	prober.SetHealthy("https://10.0.0.9:6443")

	var republished store.JoinRecord
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		if republished.Generation == "" {
			republished = publishRecord(t, s, "https://10.0.0.9:6443", "tok-new")
		}
		return []string{"10.0.0.9"}, nil
	}}
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{
		Store: s, Prober: prober, Joiner: joiner, Discoverer: discoverer,
	})
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Fallback)
	assert.Equal(t, republished.Generation, res.Generation)
	assert.Equal(t, []JoinCall{{Endpoint: "https://10.0.0.9:6443", Secret: "tok-new"}}, joiner.JoinCalls)
}

func TestParticipant_FallbackFindsNothing(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(context.Background(), testKeys.Secret(), testSecret, true))
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		return nil, errors.New("no running coordinator instance found")
	}}
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutSplit), ParticipantDeps{
		Store: s, Prober: &MockProber{}, Joiner: joiner, Discoverer: discoverer,
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, poll.ErrTimeout)
	assert.Greater(t, discoverer.DiscoverCalls, 1)
	assert.Empty(t, joiner.JoinCalls)
	assert.Equal(t, StateFailed, p.State())
	assertValidHistory(t, p.History())
}

func TestParticipant_FallbackFatalDiscoveryError(t *testing.T) {
	s := store.NewMemory()
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		return nil, retry.Fatal(errors.New("unauthorized"))
	}}

	cfg := participantConfig(store.LayoutSplit)
	cfg.FallbackTimeout = 5 * time.Second
	p := NewParticipant(cfg, ParticipantDeps{
		Store: s, Prober: &MockProber{}, Joiner: &MockJoiner{}, Discoverer: discoverer,
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.True(t, retry.IsFatal(err))
	assert.Equal(t, 1, discoverer.DiscoverCalls)
}

func TestParticipant_FallbackDisabled(t *testing.T) {
	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{
		Store: store.NewMemory(), Prober: &MockProber{}, Joiner: &MockJoiner{},
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fallback discovery is disabled")
	assert.Equal(t, []State{StateWaiting, StateFailed}, p.History())
}

func TestParticipant_FallbackWithoutSecretFails(t *testing.T) {
	prober := &MockProber{}
	prober.SetHealthy("https://10.0.0.7:6443")
	discoverer := &MockDiscoverer{DiscoverFunc: func(context.Context) ([]string, error) {
		return []string{"10.0.0.7"}, nil
	}}
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutSplit), ParticipantDeps{
		Store: store.NewMemory(), Prober: prober, Joiner: joiner, Discoverer: discoverer,
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.Contains(t, err.Error(), "never published")
	assert.Empty(t, joiner.JoinCalls)
}

func TestParticipant_PermissionDeniedIsFatal(t *testing.T) {
	s := &scriptedStore{Store: store.NewMemory(), getErr: store.ErrPermissionDenied}

	cfg := participantConfig(store.LayoutRecord)
	cfg.PollTimeout = 5 * time.Second
	p := NewParticipant(cfg, ParticipantDeps{
		Store: s, Prober: &MockProber{}, Joiner: &MockJoiner{}, Discoverer: &MockDiscoverer{},
	})

	start := time.Now()
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.ErrorIs(t, err, store.ErrPermissionDenied)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StateFailed, p.State())
}

func TestParticipant_UnreachableStoreIsRetried(t *testing.T) {
	s := &scriptedStore{Store: store.NewMemory(), getErr: errors.New("dial tcp: connection refused")}
	publishRecord(t, s.Store, testEndpoint, testSecret)
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)

	go func() {
		time.Sleep(30 * time.Millisecond)
		s.mu.Lock()
		s.getErr = nil
		s.mu.Unlock()
	}()

	cfg := participantConfig(store.LayoutRecord)
	cfg.PollTimeout = 2 * time.Second
	joiner := &MockJoiner{}
	p := NewParticipant(cfg, ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, joiner.JoinCalls, 1)
}

func TestParticipant_FollowsRepublishedEndpoint(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, testEndpoint, "old-token")
	prober := &MockProber{}
	prober.SetHealthy("https://10.0.0.8:6443")
	joiner := &MockJoiner{}

	go func() {
		time.Sleep(30 * time.Millisecond)
		rec := store.NewJoinRecord("https://10.0.0.8:6443", "new-token", time.Now())
		_ = store.Publish(context.Background(), s, testKeys, store.LayoutRecord, rec)
	}()

	cfg := participantConfig(store.LayoutRecord)
	cfg.PollTimeout = 2 * time.Second
	p := NewParticipant(cfg, ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []JoinCall{{Endpoint: "https://10.0.0.8:6443", Secret: "new-token"}}, joiner.JoinCalls)
	assertValidHistory(t, p.History())
}

func TestParticipant_IgnoresMalformedEndpoint(t *testing.T) {
	s := store.NewMemory()
	require.NoError(t, s.Put(context.Background(), testKeys.Endpoint(), "10.0.0.5", true))
	require.NoError(t, s.Put(context.Background(), testKeys.Secret(), testSecret, true))
	prober := &MockProber{}

	p := NewParticipant(participantConfig(store.LayoutSplit), ParticipantDeps{
		Store: s, Prober: prober, Joiner: &MockJoiner{},
	})
	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Empty(t, prober.ProbeCalls)
}

func TestParticipant_JoinFailure(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, testEndpoint, testSecret)
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)
	joiner := &MockJoiner{JoinFunc: func(context.Context, string, string) error {
		return errors.New("exit status 1")
	}}

	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.Error(t, err)

	assert.Len(t, joiner.JoinCalls, 1)
	assert.Equal(t, StateFailed, p.State())
	assertValidHistory(t, p.History())
}

func TestParticipant_RunOnlyOnce(t *testing.T) {
	s := store.NewMemory()
	publishRecord(t, s, testEndpoint, testSecret)
	prober := &MockProber{}
	prober.SetHealthy(testEndpoint)
	joiner := &MockJoiner{}

	p := NewParticipant(participantConfig(store.LayoutRecord), ParticipantDeps{Store: s, Prober: prober, Joiner: joiner})
	_, err := p.Run(context.Background())
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyRun)
	assert.Len(t, joiner.JoinCalls, 1)
}

func TestParticipant_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	cfg := participantConfig(store.LayoutRecord)
	cfg.PollTimeout = 5 * time.Second
	joiner := &MockJoiner{}
	p := NewParticipant(cfg, ParticipantDeps{
		Store: store.NewMemory(), Prober: &MockProber{}, Joiner: joiner, Discoverer: &MockDiscoverer{},
	})
	_, err := p.Run(ctx)
	require.Error(t, err)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, joiner.JoinCalls)
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition("", StateWaiting))
	assert.True(t, CanTransition(StateWaiting, StateFallback))
	assert.True(t, CanTransition(StateFallback, StateHealthy))
	assert.False(t, CanTransition(StateWaiting, StateJoining))
	assert.False(t, CanTransition(StateJoined, StateWaiting))
	assert.False(t, CanTransition(StateFailed, StateJoining))

	assert.True(t, StateJoined.Terminal())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateHealthy.Terminal())
}
