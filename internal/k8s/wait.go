package k8s

import (
	"context"
	"fmt"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/imamik/clusterjoin/internal/util/poll"
)

// ReadyCounter reports the number of ready cluster members.
type ReadyCounter interface {
	CountReady(ctx context.Context) (int, error)
}

// WaitForReadyCount polls until exactly expected nodes are ready. Listing
// errors are retryable. It returns the last observed count, and
// poll.ErrTimeout when the deadline passes first.
func WaitForReadyCount(ctx context.Context, counter ReadyCounter, expected int, interval, timeout time.Duration, observe func(int)) (int, error) {
	logger := log.FromContext(ctx)
	last := -1

	err := poll.Until(ctx, interval, timeout, func(ctx context.Context) (bool, error) {
		ready, err := counter.CountReady(ctx)
		if err != nil {
			logger.V(1).Info("membership not available yet", "error", err.Error())
			return false, nil
		}
		if ready != last {
			logger.Info("ready nodes", "ready", ready, "expected", expected)
		}
		last = ready
		if observe != nil {
			observe(ready)
		}
		return ready == expected, nil
	})
	if err != nil {
		return last, fmt.Errorf("waiting for %d ready nodes (last seen %d): %w", expected, last, err)
	}
	return last, nil
}
