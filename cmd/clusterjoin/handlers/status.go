package handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"sigs.k8s.io/yaml"

	"github.com/imamik/clusterjoin/internal/handshake"
	"github.com/imamik/clusterjoin/internal/k8s"
	"github.com/imamik/clusterjoin/internal/store"
	"github.com/imamik/clusterjoin/internal/ui/status"
)

// isInteractiveTTY can be replaced in tests.
var isInteractiveTTY = status.IsInteractiveTTY

// Status prints the published join material and the cluster membership.
// output selects json or yaml; empty renders a human-readable view.
func Status(ctx context.Context, opts Options, output string) error {
	ctx = setupLogging(ctx, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
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

	st, err := handshake.Inspect(ctx, handshake.InspectOptions{
		Keys:     keysFor(cfg),
		Layout:   layout,
		Expected: cfg.ExpectedNodes,
		Store:    s,
		Members:  newMembers(cfg),
		Policy:   k8s.ReadyPolicy{Token: cfg.Membership.ReadyToken},
	})
	if err != nil {
		return err
	}

	switch output {
	case "json":
		data, err := json.MarshalIndent(st, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		_, err = fmt.Fprintln(stdout, string(data))
		return err
	case "yaml":
		data, err := yaml.Marshal(st)
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		_, err = stdout.Write(data)
		return err
	default:
		_, err = fmt.Fprint(stdout, status.Render(st, isInteractiveTTY()))
		return err
	}
}
