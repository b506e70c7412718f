package metadata

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe_PublicOptional(t *testing.T) {
	id, err := Describe(context.Background(), Static{Identity: Identity{InstanceID: "i-1", Region: "eu-central-1", LocalIPv4: "10.0.0.5"}})
	require.NoError(t, err)
	assert.Equal(t, Identity{InstanceID: "i-1", Region: "eu-central-1", LocalIPv4: "10.0.0.5"}, id)
}

func TestDescribe_MissingLocalAddress(t *testing.T) {
	_, err := Describe(context.Background(), Static{Identity: Identity{InstanceID: "i-1", Region: "eu-central-1"}})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestStatic_Fields(t *testing.T) {
	ctx := context.Background()
	s := Static{Identity: Identity{InstanceID: "i-1", Region: "eu-central-1", LocalIPv4: "10.0.0.5", PublicIPv4: "203.0.113.7"}}

	ip, err := s.LocalIPv4(ctx)
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.5", ip)

	pub, err := s.PublicIPv4(ctx)
	require.NoError(t, err)
	assert.Equal(t, "203.0.113.7", pub)

	_, err = Static{}.Region(ctx)
	assert.ErrorIs(t, err, ErrUnavailable)
}
