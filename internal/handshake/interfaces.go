package handshake

import (
	"context"
	"time"

	"github.com/imamik/clusterjoin/internal/k8s"
)

// ControlService starts and health-checks the local control service.
type ControlService interface {
	StartControlService(ctx context.Context) error
	Healthy(ctx context.Context) error
}

// Joiner joins the local node to a cluster.
type Joiner interface {
	Join(ctx context.Context, endpoint, secret string) error
}

// Prober checks whether an endpoint is healthy.
type Prober interface {
	Probe(ctx context.Context, endpoint string) error
}

// Discoverer finds coordinator instance addresses through the cloud API.
type Discoverer interface {
	Discover(ctx context.Context) ([]string, error)
}

// NodeLister lists cluster members.
type NodeLister interface {
	ListNodes(ctx context.Context) ([]k8s.Node, error)
}

// ChartInstaller installs the application chart.
type ChartInstaller interface {
	InstallOrUpgrade(ctx context.Context, spec k8s.ChartSpec) error
}

// Recorder receives progress metrics.
type Recorder interface {
	PollAttempt(phase string)
	PhaseDone(phase string, started time.Time, err error)
	StateChanged(from, to string)
	ReadyNodes(ready, expected int)
}

type noopRecorder struct{}

func (noopRecorder) PollAttempt(string)                 {}
func (noopRecorder) PhaseDone(string, time.Time, error) {}
func (noopRecorder) StateChanged(string, string)        {}
func (noopRecorder) ReadyNodes(int, int)                {}
