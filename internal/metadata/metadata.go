// Package metadata describes the node's own identity as reported by the
// cloud instance metadata service.
package metadata

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when a field is not provided by the source.
var ErrUnavailable = errors.New("metadata not available")

// Provider reads identity facts about the local instance.
type Provider interface {
	LocalIPv4(ctx context.Context) (string, error)
	PublicIPv4(ctx context.Context) (string, error)
	InstanceID(ctx context.Context) (string, error)
	Region(ctx context.Context) (string, error)
}

// Identity is a snapshot of all Provider fields.
type Identity struct {
	InstanceID string `json:"instanceId"`
	Region     string `json:"region"`
	LocalIPv4  string `json:"localIPv4"`
	PublicIPv4 string `json:"publicIPv4,omitempty"`
}

// Describe collects an Identity. The public address is optional; every other
// field must resolve.
func Describe(ctx context.Context, p Provider) (Identity, error) {
	var id Identity
	var err error
	if id.InstanceID, err = p.InstanceID(ctx); err != nil {
		return Identity{}, err
	}
	if id.Region, err = p.Region(ctx); err != nil {
		return Identity{}, err
	}
	if id.LocalIPv4, err = p.LocalIPv4(ctx); err != nil {
		return Identity{}, err
	}
	if id.PublicIPv4, err = p.PublicIPv4(ctx); err != nil && !errors.Is(err, ErrUnavailable) {
		return Identity{}, err
	}
	return id, nil
}

// Static is a Provider with fixed values, for bare metal and tests.
type Static struct {
	Identity Identity
}

// LocalIPv4 implements Provider.
func (s Static) LocalIPv4(context.Context) (string, error) {
	return orUnavailable(s.Identity.LocalIPv4)
}

// PublicIPv4 implements Provider.
func (s Static) PublicIPv4(context.Context) (string, error) {
	return orUnavailable(s.Identity.PublicIPv4)
}

// InstanceID implements Provider.
func (s Static) InstanceID(context.Context) (string, error) {
	return orUnavailable(s.Identity.InstanceID)
}

// Region implements Provider.
func (s Static) Region(context.Context) (string, error) { return orUnavailable(s.Identity.Region) }

func orUnavailable(v string) (string, error) {
	if v == "" {
		return "", ErrUnavailable
	}
	return v, nil
}
