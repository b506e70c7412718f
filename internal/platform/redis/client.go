// Package redis stores join material in Redis.
//
// Intended for single-primary deployments; reads go to the primary so the
// store behaves as read-your-writes. Writes without overwrite use SET NX.
package redis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	rdb "github.com/redis/go-redis/v9"

	"github.com/imamik/clusterjoin/internal/store"
)

// Client implements store.Store on Redis.
type Client struct {
	c *rdb.Client
}

// NewClient creates a Redis store client.
func NewClient(addr, password string, db int) *Client {
	return &Client{c: rdb.NewClient(&rdb.Options{Addr: addr, Password: password, DB: db})}
}

// Get implements store.Store.
func (r *Client) Get(ctx context.Context, name string) (string, error) {
	v, err := r.c.Get(ctx, name).Result()
	if errors.Is(err, rdb.Nil) {
		return "", fmt.Errorf("key %s: %w", name, store.ErrNotFound)
	}
	if err != nil {
		return "", classify(err, "failed to get key "+name)
	}
	return v, nil
}

// Put implements store.Store.
func (r *Client) Put(ctx context.Context, name, value string, overwrite bool) error {
	if overwrite {
		if err := r.c.Set(ctx, name, value, 0).Err(); err != nil {
			return classify(err, "failed to set key "+name)
		}
		return nil
	}

	ok, err := r.c.SetNX(ctx, name, value, 0).Result()
	if err != nil {
		return classify(err, "failed to set key "+name)
	}
	if !ok {
		return fmt.Errorf("key %s: %w", name, store.ErrAlreadyExists)
	}
	return nil
}

// Close releases the connection pool.
func (r *Client) Close() error {
	return r.c.Close()
}

func classify(err error, msg string) error {
	s := err.Error()
	if strings.HasPrefix(s, "NOPERM") || strings.HasPrefix(s, "NOAUTH") || strings.HasPrefix(s, "WRONGPASS") {
		return fmt.Errorf("%s: %w: %v", msg, store.ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var _ store.Store = (*Client)(nil)
