package hcloud

import (
	"context"
	"fmt"
	"strconv"

	"github.com/hetznercloud/hcloud-go/v2/hcloud/metadata"
	"gopkg.in/yaml.v3"

	nodemeta "github.com/imamik/clusterjoin/internal/metadata"
)

// privateNetwork is one entry of the private-networks metadata document.
type privateNetwork struct {
	IP          string `yaml:"ip"`
	NetworkID   int64  `yaml:"network_id"`
	NetworkName string `yaml:"network_name"`
}

// Metadata implements metadata.Provider using the Hetzner metadata service.
type Metadata struct {
	client *metadata.Client
}

// NewMetadata returns a provider for the link-local metadata endpoint, or
// endpoint when non-empty.
func NewMetadata(endpoint string) *Metadata {
	var opts []metadata.ClientOption
	if endpoint != "" {
		opts = append(opts, metadata.WithEndpoint(endpoint))
	}
	return &Metadata{client: metadata.NewClient(opts...)}
}

// LocalIPv4 returns the first private network address, falling back to the
// public address for servers without a private network.
func (m *Metadata) LocalIPv4(ctx context.Context) (string, error) {
	raw, err := m.client.PrivateNetworks()
	if err != nil {
		return "", fmt.Errorf("failed to read private networks: %w", err)
	}
	var nets []privateNetwork
	if err := yaml.Unmarshal([]byte(raw), &nets); err != nil {
		return "", fmt.Errorf("failed to parse private networks: %w", err)
	}
	for _, n := range nets {
		if n.IP != "" {
			return n.IP, nil
		}
	}
	return m.PublicIPv4(ctx)
}

// PublicIPv4 implements metadata.Provider.
func (m *Metadata) PublicIPv4(context.Context) (string, error) {
	ip, err := m.client.PublicIPv4()
	if err != nil {
		return "", fmt.Errorf("failed to read public IPv4: %w", err)
	}
	if ip == nil {
		return "", nodemeta.ErrUnavailable
	}
	return ip.String(), nil
}

// InstanceID implements metadata.Provider.
func (m *Metadata) InstanceID(context.Context) (string, error) {
	id, err := m.client.InstanceID()
	if err != nil {
		return "", fmt.Errorf("failed to read instance id: %w", err)
	}
	return strconv.FormatInt(id, 10), nil
}

// Region implements metadata.Provider.
func (m *Metadata) Region(context.Context) (string, error) {
	region, err := m.client.Region()
	if err != nil {
		return "", fmt.Errorf("failed to read region: %w", err)
	}
	return region, nil
}

var _ nodemeta.Provider = (*Metadata)(nil)
