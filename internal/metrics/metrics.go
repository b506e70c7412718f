// Package metrics exposes bootstrap progress as Prometheus metrics.
//
// Bootstrap runs are short-lived, so metrics are not served over HTTP.
// Instead [WriteTextfile] dumps the registry into a node-exporter textfile
// collector directory at the end of a run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every clusterjoin metric.
var Registry = prometheus.NewRegistry()

var (
	pollAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterjoin",
			Subsystem: "handshake",
			Name:      "poll_attempts_total",
			Help:      "Total number of polling attempts by role and phase",
		},
		[]string{"cluster", "role", "phase"},
	)

	phaseDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clusterjoin",
			Subsystem: "handshake",
			Name:      "phase_duration_seconds",
			Help:      "Duration of handshake phases in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 11), // 500ms to ~8.5min
		},
		[]string{"cluster", "role", "phase", "result"},
	)

	participantState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterjoin",
			Subsystem: "participant",
			Name:      "state",
			Help:      "Current participant state (1 for the active state, 0 otherwise)",
		},
		[]string{"cluster", "state"},
	)

	readyNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterjoin",
			Subsystem: "cluster",
			Name:      "ready_nodes",
			Help:      "Number of nodes reporting ready",
		},
		[]string{"cluster"},
	)

	expectedNodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "clusterjoin",
			Subsystem: "cluster",
			Name:      "expected_nodes",
			Help:      "Number of nodes the coordinator waits for",
		},
		[]string{"cluster"},
	)

	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clusterjoin",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of parameter store operations by operation and result",
		},
		[]string{"backend", "operation", "result"},
	)

	storeLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clusterjoin",
			Subsystem: "store",
			Name:      "latency_seconds",
			Help:      "Latency of parameter store operations in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.5s
		},
		[]string{"backend", "operation"},
	)
)

func init() {
	Registry.MustRegister(
		pollAttemptsTotal,
		phaseDuration,
		participantState,
		readyNodes,
		expectedNodes,
		storeOperationsTotal,
		storeLatency,
	)
}

// Recorder records handshake metrics for one cluster.
type Recorder struct {
	cluster string
	role    string
}

// NewRecorder creates a Recorder.
func NewRecorder(cluster, role string) *Recorder {
	return &Recorder{cluster: cluster, role: role}
}

// PollAttempt counts one polling attempt in phase.
func (r *Recorder) PollAttempt(phase string) {
	pollAttemptsTotal.WithLabelValues(r.cluster, r.role, phase).Inc()
}

// PhaseDone records how long phase took and whether it succeeded.
func (r *Recorder) PhaseDone(phase string, started time.Time, err error) {
	phaseDuration.WithLabelValues(r.cluster, r.role, phase, result(err)).Observe(time.Since(started).Seconds())
}

// StateChanged marks state as the only active participant state.
func (r *Recorder) StateChanged(from, to string) {
	if from != "" {
		participantState.WithLabelValues(r.cluster, from).Set(0)
	}
	participantState.WithLabelValues(r.cluster, to).Set(1)
}

// ReadyNodes records the observed and expected ready node counts.
func (r *Recorder) ReadyNodes(ready, expected int) {
	readyNodes.WithLabelValues(r.cluster).Set(float64(ready))
	expectedNodes.WithLabelValues(r.cluster).Set(float64(expected))
}

// WriteTextfile writes the registry to path in the text exposition format.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
