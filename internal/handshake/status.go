package handshake

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/imamik/clusterjoin/internal/k8s"
	"github.com/imamik/clusterjoin/internal/store"
)

// Status is a point-in-time view of the handshake for one cluster.
type Status struct {
	Cluster           string     `json:"cluster"`
	Layout            string     `json:"layout"`
	Endpoint          string     `json:"endpoint,omitempty"`
	Generation        string     `json:"generation,omitempty"`
	SecretFingerprint string     `json:"secretFingerprint,omitempty"`
	PublishedAt       *time.Time `json:"publishedAt,omitempty"`
	RecordError       string     `json:"recordError,omitempty"`

	Expected        int        `json:"expected"`
	Ready           int        `json:"ready"`
	Nodes           []k8s.Node `json:"nodes,omitempty"`
	MembershipError string     `json:"membershipError,omitempty"`
}

// Published reports whether complete join material is in the store.
func (s Status) Published() bool {
	return s.Endpoint != "" && s.SecretFingerprint != ""
}

// Complete reports whether the cluster reached its expected size.
func (s Status) Complete() bool {
	return s.MembershipError == "" && s.Ready == s.Expected
}

// InspectOptions selects what Inspect looks at. A nil Members skips the
// membership lookup.
type InspectOptions struct {
	Keys     store.Keys
	Layout   store.Layout
	Expected int
	Store    store.Store
	Members  NodeLister
	Policy   k8s.ReadyPolicy
}

// Inspect reads the store and the membership API concurrently. Store
// failures are returned; membership failures are reported in the status
// since the command may run away from the cluster.
func Inspect(ctx context.Context, opts InspectOptions) (Status, error) {
	st := Status{
		Cluster:  opts.Keys.Cluster,
		Layout:   string(opts.Layout),
		Expected: opts.Expected,
	}

	var nodes []k8s.Node
	var membershipErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		creds, err := store.ReadCredentials(gctx, opts.Store, opts.Keys, opts.Layout)
		if errors.Is(err, store.ErrInvalidRecord) {
			st.RecordError = err.Error()
			return nil
		}
		if err != nil {
			return fmt.Errorf("store: %w", err)
		}
		st.Endpoint = creds.Endpoint
		st.Generation = creds.Generation
		if creds.Secret != "" {
			st.SecretFingerprint = store.Fingerprint(creds.Secret)
		}
		if opts.Layout != store.LayoutSplit && creds.Generation != "" {
			if rec, err := store.ReadRecord(gctx, opts.Store, opts.Keys); err == nil {
				published := rec.PublishedAt
				st.PublishedAt = &published
			}
		}
		return nil
	})
	if opts.Members != nil {
		// membership failures land in the status, not the group
		g.Go(func() error {
			nodes, membershipErr = opts.Members.ListNodes(gctx)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return st, err
	}

	switch {
	case opts.Members == nil:
		st.MembershipError = "membership not queried"
	case membershipErr != nil:
		st.MembershipError = membershipErr.Error()
	default:
		st.Nodes = nodes
		st.Ready = opts.Policy.Count(nodes)
	}
	return st, nil
}
