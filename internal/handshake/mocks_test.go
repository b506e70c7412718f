package handshake

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imamik/clusterjoin/internal/k8s"
	"github.com/imamik/clusterjoin/internal/store"
)

var errUnhealthy = errors.New("connection refused")

var testKeys = store.Keys{Prefix: "/clusterjoin", Cluster: "demo"}

// scriptedStore wraps a store and fails calls from a script.
type scriptedStore struct {
	store.Store

	mu       sync.Mutex
	getErr   error
	putErrs  []error
	putCalls int
}

func (s *scriptedStore) Get(ctx context.Context, name string) (string, error) {
	s.mu.Lock()
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return "", err
	}
	return s.Store.Get(ctx, name)
}

func (s *scriptedStore) Put(ctx context.Context, name, value string, overwrite bool) error {
	s.mu.Lock()
	i := s.putCalls
	s.putCalls++
	s.mu.Unlock()
	if i < len(s.putErrs) && s.putErrs[i] != nil {
		return s.putErrs[i]
	}
	return s.Store.Put(ctx, name, value, overwrite)
}

// MockControl is a mock ControlService.
type MockControl struct {
	mu sync.Mutex

	StartFunc   func(ctx context.Context) error
	HealthyFunc func(ctx context.Context) error

	StartCalls   int
	HealthyCalls int
}

func (m *MockControl) StartControlService(ctx context.Context) error {
	m.mu.Lock()
	m.StartCalls++
	m.mu.Unlock()
	if m.StartFunc != nil {
		return m.StartFunc(ctx)
	}
	return nil
}

func (m *MockControl) Healthy(ctx context.Context) error {
	m.mu.Lock()
	m.HealthyCalls++
	m.mu.Unlock()
	if m.HealthyFunc != nil {
		return m.HealthyFunc(ctx)
	}
	return nil
}

// JoinCall tracks arguments to Join.
type JoinCall struct {
	Endpoint string
	Secret   string
}

// MockJoiner is a mock Joiner.
type MockJoiner struct {
	mu sync.Mutex

	JoinFunc  func(ctx context.Context, endpoint, secret string) error
	JoinCalls []JoinCall
}

func (m *MockJoiner) Join(ctx context.Context, endpoint, secret string) error {
	m.mu.Lock()
	m.JoinCalls = append(m.JoinCalls, JoinCall{Endpoint: endpoint, Secret: secret})
	m.mu.Unlock()
	if m.JoinFunc != nil {
		return m.JoinFunc(ctx, endpoint, secret)
	}
	return nil
}

// MockProber is a mock Prober. Endpoints listed in Healthy pass.
type MockProber struct {
	mu sync.Mutex

	Healthy    map[string]bool
	ProbeCalls []string
}

func (m *MockProber) Probe(_ context.Context, endpoint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProbeCalls = append(m.ProbeCalls, endpoint)
	if m.Healthy[endpoint] {
		return nil
	}
	return errUnhealthy
}

func (m *MockProber) SetHealthy(endpoint string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Healthy == nil {
		m.Healthy = map[string]bool{}
	}
	m.Healthy[endpoint] = true
}

// MockDiscoverer is a mock Discoverer.
type MockDiscoverer struct {
	mu sync.Mutex

	DiscoverFunc  func(ctx context.Context) ([]string, error)
	DiscoverCalls int
}

func (m *MockDiscoverer) Discover(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	m.DiscoverCalls++
	m.mu.Unlock()
	if m.DiscoverFunc != nil {
		return m.DiscoverFunc(ctx)
	}
	return nil, nil
}

// MockMembers is a mock k8s.ReadyCounter and NodeLister.
type MockMembers struct {
	mu sync.Mutex

	Ready     int
	Nodes     []k8s.Node
	Err       error
	ListCalls int
}

func (m *MockMembers) CountReady(context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	return m.Ready, m.Err
}

func (m *MockMembers) ListNodes(context.Context) ([]k8s.Node, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListCalls++
	return m.Nodes, m.Err
}

func (m *MockMembers) SetReady(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ready = n
}

// MockCharts is a mock ChartInstaller.
type MockCharts struct {
	Err      error
	Installs []k8s.ChartSpec
}

func (m *MockCharts) InstallOrUpgrade(_ context.Context, spec k8s.ChartSpec) error {
	m.Installs = append(m.Installs, spec)
	return m.Err
}

// MockRecorder captures state changes.
type MockRecorder struct {
	mu sync.Mutex

	States []string
	Polls  map[string]int
	Ready  []int
}

func (m *MockRecorder) PollAttempt(phase string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Polls == nil {
		m.Polls = map[string]int{}
	}
	m.Polls[phase]++
}

func (m *MockRecorder) PhaseDone(string, time.Time, error) {}

func (m *MockRecorder) StateChanged(_, to string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.States = append(m.States, to)
}

func (m *MockRecorder) ReadyNodes(ready, _ int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Ready = append(m.Ready, ready)
}
