package store

import (
	"context"
	"errors"
	"path"
	"strings"
)

var (
	// ErrNotFound is returned by Get when the key has no value yet.
	ErrNotFound = errors.New("parameter not found")

	// ErrAlreadyExists is returned by Put when overwrite is false and the
	// key already holds a value.
	ErrAlreadyExists = errors.New("parameter already exists")

	// ErrPermissionDenied is returned when the backend rejects the caller.
	ErrPermissionDenied = errors.New("permission denied")
)

// Store is a strongly consistent key-value service holding string values.
type Store interface {
	Get(ctx context.Context, name string) (string, error)
	Put(ctx context.Context, name, value string, overwrite bool) error
}

// Key names below the per-cluster prefix.
const (
	SecretKey   = "join-secret"
	EndpointKey = "join-endpoint"
	RecordKey   = "join-record"
)

// Keys resolves the fully qualified parameter names for one cluster.
type Keys struct {
	Prefix  string
	Cluster string
}

// Secret returns the name of the legacy join-secret parameter.
func (k Keys) Secret() string { return k.name(SecretKey) }

// Endpoint returns the name of the legacy join-endpoint parameter.
func (k Keys) Endpoint() string { return k.name(EndpointKey) }

// Record returns the name of the versioned join record.
func (k Keys) Record() string { return k.name(RecordKey) }

func (k Keys) name(key string) string {
	prefix := strings.TrimSuffix(k.Prefix, "/")
	if prefix == "" {
		prefix = "/"
	}
	return path.Join(prefix, k.Cluster, key)
}

// IsSecret reports whether the named parameter carries secret material and
// should be stored encrypted where the backend supports it.
func IsSecret(name string) bool {
	base := path.Base(name)
	return base == SecretKey || base == RecordKey
}
