package aws

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/ec2/imds"
	"github.com/aws/smithy-go"

	"github.com/imamik/clusterjoin/internal/metadata"
)

// IMDSAPI is the subset of the IMDS client used here.
type IMDSAPI interface {
	GetMetadata(ctx context.Context, params *imds.GetMetadataInput, optFns ...func(*imds.Options)) (*imds.GetMetadataOutput, error)
	GetRegion(ctx context.Context, params *imds.GetRegionInput, optFns ...func(*imds.Options)) (*imds.GetRegionOutput, error)
}

// Metadata implements metadata.Provider using EC2 IMDSv2.
type Metadata struct {
	client IMDSAPI
}

// NewMetadata returns a provider talking to the link-local IMDS endpoint,
// or to endpoint when non-empty.
func NewMetadata(endpoint string) *Metadata {
	opts := imds.Options{}
	if endpoint != "" {
		opts.Endpoint = endpoint
	}
	return &Metadata{client: imds.New(opts)}
}

// NewMetadataWithClient wraps an existing IMDS client.
func NewMetadataWithClient(c IMDSAPI) *Metadata {
	return &Metadata{client: c}
}

// LocalIPv4 implements metadata.Provider.
func (m *Metadata) LocalIPv4(ctx context.Context) (string, error) {
	return m.get(ctx, "local-ipv4")
}

// PublicIPv4 implements metadata.Provider. Instances without a public
// address report metadata.ErrUnavailable.
func (m *Metadata) PublicIPv4(ctx context.Context) (string, error) {
	return m.get(ctx, "public-ipv4")
}

// InstanceID implements metadata.Provider.
func (m *Metadata) InstanceID(ctx context.Context) (string, error) {
	return m.get(ctx, "instance-id")
}

// Region implements metadata.Provider.
func (m *Metadata) Region(ctx context.Context) (string, error) {
	out, err := m.client.GetRegion(ctx, &imds.GetRegionInput{})
	if err != nil {
		return "", fmt.Errorf("failed to read region from IMDS: %w", err)
	}
	return out.Region, nil
}

func (m *Metadata) get(ctx context.Context, path string) (string, error) {
	out, err := m.client.GetMetadata(ctx, &imds.GetMetadataInput{Path: path})
	if err != nil {
		if isNotFound(err) {
			return "", fmt.Errorf("IMDS %s: %w", path, metadata.ErrUnavailable)
		}
		return "", fmt.Errorf("failed to read %s from IMDS: %w", path, err)
	}
	defer out.Content.Close()

	data, err := io.ReadAll(out.Content)
	if err != nil {
		return "", fmt.Errorf("failed to read IMDS %s: %w", path, err)
	}
	v := strings.TrimSpace(string(data))
	if v == "" {
		return "", fmt.Errorf("IMDS %s: %w", path, metadata.ErrUnavailable)
	}
	return v, nil
}

func isNotFound(err error) bool {
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return true
	}
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound"
}

var _ metadata.Provider = (*Metadata)(nil)
