package hcloud

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hetznercloud/hcloud-go/v2/hcloud"

	"github.com/imamik/clusterjoin/internal/util/retry"
)

// ErrNoCoordinator is returned when no running server carries the label.
var ErrNoCoordinator = errors.New("no running coordinator server found")

// LabelDiscoverer finds coordinator servers by label.
type LabelDiscoverer struct {
	lister ServerLister
	labels map[string]string
}

// NewLabelDiscoverer returns a discoverer matching all given labels.
func NewLabelDiscoverer(lister ServerLister, labels map[string]string) *LabelDiscoverer {
	return &LabelDiscoverer{lister: lister, labels: labels}
}

// Discover returns addresses of running labelled servers, newest first.
// The private network address is preferred over the public one.
func (d *LabelDiscoverer) Discover(ctx context.Context) ([]string, error) {
	servers, err := d.lister.GetServersByLabel(ctx, d.labels)
	if err != nil {
		if IsUnauthorized(err) {
			return nil, retry.Fatal(err)
		}
		return nil, err
	}

	running := make([]*hcloud.Server, 0, len(servers))
	for _, s := range servers {
		if s.Status == hcloud.ServerStatusRunning {
			running = append(running, s)
		}
	}
	sort.SliceStable(running, func(i, j int) bool {
		return running[i].Created.After(running[j].Created)
	})

	var addrs []string
	for _, s := range running {
		if ip := ServerPrivateIP(s); ip != "" {
			addrs = append(addrs, ip)
		} else if ip := ServerIPv4(s); ip != "" {
			addrs = append(addrs, ip)
		}
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("%w (labels %s)", ErrNoCoordinator, buildLabelSelector(d.labels))
	}
	return addrs, nil
}
