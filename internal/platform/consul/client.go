// Package consul stores join material in the Consul KV store.
//
// Reads use consistent mode so a participant never observes a value older
// than the coordinator's acknowledged write. Writes without overwrite use
// check-and-set with index 0, which only succeeds for a missing key.
package consul

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/hashicorp/consul/api"

	"github.com/imamik/clusterjoin/internal/store"
)

// Client implements store.Store on Consul KV.
type Client struct {
	kv *api.KV
}

// NewClient creates a Consul KV client. An empty address falls back to the
// CONSUL_HTTP_ADDR environment handling of the Consul API package.
func NewClient(address, token string) (*Client, error) {
	cfg := api.DefaultConfig()
	if address != "" {
		cfg.Address = address
	}
	if token != "" {
		cfg.Token = token
	}

	client, err := api.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create consul client: %w", err)
	}
	return &Client{kv: client.KV()}, nil
}

// Get implements store.Store.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	key := kvKey(name)
	opts := (&api.QueryOptions{RequireConsistent: true}).WithContext(ctx)
	pair, _, err := c.kv.Get(key, opts)
	if err != nil {
		return "", classify(err, "failed to get key "+key)
	}
	if pair == nil {
		return "", fmt.Errorf("key %s: %w", key, store.ErrNotFound)
	}
	return string(pair.Value), nil
}

// Put implements store.Store.
func (c *Client) Put(ctx context.Context, name, value string, overwrite bool) error {
	key := kvKey(name)
	pair := &api.KVPair{Key: key, Value: []byte(value)}
	opts := (&api.WriteOptions{}).WithContext(ctx)

	if overwrite {
		if _, err := c.kv.Put(pair, opts); err != nil {
			return classify(err, "failed to put key "+key)
		}
		return nil
	}

	pair.ModifyIndex = 0
	ok, _, err := c.kv.CAS(pair, opts)
	if err != nil {
		return classify(err, "failed to put key "+key)
	}
	if !ok {
		return fmt.Errorf("key %s: %w", key, store.ErrAlreadyExists)
	}
	return nil
}

// kvKey strips the leading slash; Consul keys are relative.
func kvKey(name string) string {
	return strings.TrimPrefix(name, "/")
}

// forbiddenPrefix is how the Consul API formats a 403 response it did not
// wrap in a StatusError.
const forbiddenPrefix = "Unexpected response code: 403"

// classify maps ACL rejections to store.ErrPermissionDenied. Only the HTTP
// status is trusted: transport errors may mention "403" in an address.
func classify(err error, msg string) error {
	var statusErr api.StatusError
	if errors.As(err, &statusErr) {
		if statusErr.Code == http.StatusForbidden {
			return fmt.Errorf("%s: %w: %w", msg, store.ErrPermissionDenied, err)
		}
		return fmt.Errorf("%s: %w", msg, err)
	}
	if strings.HasPrefix(err.Error(), forbiddenPrefix) {
		return fmt.Errorf("%s: %w: %w", msg, store.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var _ store.Store = (*Client)(nil)
