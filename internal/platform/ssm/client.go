package ssm

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/aws/aws-sdk-go-v2/service/ssm/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/clusterjoin/internal/store"
)

// API is the subset of the SSM client used by the store.
type API interface {
	GetParameter(ctx context.Context, params *ssm.GetParameterInput, optFns ...func(*ssm.Options)) (*ssm.GetParameterOutput, error)
	PutParameter(ctx context.Context, params *ssm.PutParameterInput, optFns ...func(*ssm.Options)) (*ssm.PutParameterOutput, error)
}

// Client implements store.Store on SSM Parameter Store.
type Client struct {
	api      API
	kmsKeyID string
}

// Option configures a Client.
type Option func(*Client)

// WithKMSKey encrypts SecureString parameters with the given key.
func WithKMSKey(id string) Option {
	return func(c *Client) {
		c.kmsKeyID = id
	}
}

// WithAPI replaces the SSM API implementation (useful for testing).
func WithAPI(api API) Option {
	return func(c *Client) {
		c.api = api
	}
}

// NewClient creates a client using the default AWS credential chain, which
// resolves to the instance profile on EC2.
func NewClient(ctx context.Context, region string, opts ...Option) (*Client, error) {
	c := &Client{}
	for _, opt := range opts {
		opt(c)
	}
	if c.api == nil {
		cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
		if err != nil {
			return nil, fmt.Errorf("failed to load AWS config: %w", err)
		}
		c.api = ssm.NewFromConfig(cfg)
	}
	return c, nil
}

// Get implements store.Store.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	out, err := c.api.GetParameter(ctx, &ssm.GetParameterInput{
		Name:           aws.String(name),
		WithDecryption: aws.Bool(true),
	})
	if err != nil {
		return "", classify(err, "failed to get parameter "+name)
	}
	if out.Parameter == nil || out.Parameter.Value == nil {
		return "", fmt.Errorf("parameter %s: %w", name, store.ErrNotFound)
	}
	return *out.Parameter.Value, nil
}

// Put implements store.Store.
func (c *Client) Put(ctx context.Context, name, value string, overwrite bool) error {
	input := &ssm.PutParameterInput{
		Name:      aws.String(name),
		Value:     aws.String(value),
		Overwrite: aws.Bool(overwrite),
		Type:      types.ParameterTypeString,
		Tier:      types.ParameterTierStandard,
	}
	if store.IsSecret(name) {
		input.Type = types.ParameterTypeSecureString
		if c.kmsKeyID != "" {
			input.KeyId = aws.String(c.kmsKeyID)
		}
	}

	if _, err := c.api.PutParameter(ctx, input); err != nil {
		return classify(err, "failed to put parameter "+name)
	}
	return nil
}

func classify(err error, msg string) error {
	var notFound *types.ParameterNotFound
	if errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", msg, store.ErrNotFound)
	}
	var exists *types.ParameterAlreadyExists
	if errors.As(err, &exists) {
		return fmt.Errorf("%s: %w", msg, store.ErrAlreadyExists)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDeniedException", "UnrecognizedClientException", "ExpiredTokenException":
			return fmt.Errorf("%s: %w: %v", msg, store.ErrPermissionDenied, err)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

var _ store.Store = (*Client)(nil)
