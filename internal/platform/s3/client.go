package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/imamik/clusterjoin/internal/store"
)

// Options configures the S3-backed store.
type Options struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, for S3-compatible services
	AccessKey string // optional, default credential chain otherwise
	SecretKey string
	// Encrypt requests SSE-S3 encryption for secret-bearing objects.
	Encrypt bool
}

// Client implements store.Store on top of an S3 bucket.
type Client struct {
	s3      *s3.Client
	bucket  string
	encrypt bool
}

// NewClient creates a new S3 store client.
func NewClient(ctx context.Context, opts Options) (*Client, error) {
	if opts.Bucket == "" {
		return nil, errors.New("s3 store requires a bucket")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(opts.Region)}
	if opts.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(opts.AccessKey, opts.SecretKey, "")))
	}

	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})

	return &Client{s3: client, bucket: opts.Bucket, encrypt: opts.Encrypt}, nil
}

// Get implements store.Store.
func (c *Client) Get(ctx context.Context, name string) (string, error) {
	key := objectKey(name)
	result, err := c.s3.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(c.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return "", classifyRead(err, fmt.Sprintf("failed to get object %s from bucket %s", key, c.bucket))
	}
	defer result.Body.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(result.Body); err != nil {
		return "", fmt.Errorf("failed to read object body: %w", err)
	}
	return buf.String(), nil
}

// Put implements store.Store.
func (c *Client) Put(ctx context.Context, name, value string, overwrite bool) error {
	key := objectKey(name)
	data := []byte(value)
	input := &s3.PutObjectInput{
		Bucket:        aws.String(c.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("text/plain"),
	}
	if !overwrite {
		input.IfNoneMatch = aws.String("*")
	}
	if c.encrypt && store.IsSecret(name) {
		input.ServerSideEncryption = types.ServerSideEncryptionAes256
	}

	if _, err := c.s3.PutObject(ctx, input); err != nil {
		return classify(err, fmt.Sprintf("failed to put object %s in bucket %s", key, c.bucket))
	}
	return nil
}

// EnsureBucket creates the bucket if it is missing.
// Returns nil if the bucket already exists and is owned by us.
func (c *Client) EnsureBucket(ctx context.Context) error {
	_, err := c.s3.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(c.bucket)})
	if err == nil {
		return nil
	}
	if !isNotFoundError(err) {
		return classify(err, fmt.Sprintf("failed to check bucket %s", c.bucket))
	}

	_, err = c.s3.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(c.bucket)})
	if err != nil && !isBucketAlreadyOwnedByYou(err) {
		return classify(err, fmt.Sprintf("failed to create bucket %s", c.bucket))
	}
	return nil
}

func objectKey(name string) string {
	return strings.TrimPrefix(name, "/")
}

// classify maps S3 errors onto the store sentinel errors.
func classify(err error, msg string) error {
	switch {
	case isNotFoundError(err):
		return fmt.Errorf("%s: %w", msg, store.ErrNotFound)
	case isAccessDenied(err):
		return fmt.Errorf("%s: %w: %v", msg, store.ErrPermissionDenied, err)
	case isPreconditionFailed(err):
		return fmt.Errorf("%s: %w", msg, store.ErrAlreadyExists)
	default:
		return fmt.Errorf("%s: %w", msg, err)
	}
}

// classifyRead is classify for GetObject. Without s3:ListBucket, S3 answers
// a read of a missing key with 403, so a denied read is indistinguishable
// from "not published yet" and stays retryable.
func classifyRead(err error, msg string) error {
	if isAccessDenied(err) && !isNotFoundError(err) {
		return fmt.Errorf("%s: access denied, or object missing and s3:ListBucket not granted: %w", msg, err)
	}
	return classify(err, msg)
}

// isBucketAlreadyOwnedByYou checks if the error indicates the bucket exists and is owned by us.
func isBucketAlreadyOwnedByYou(err error) bool {
	if err == nil {
		return false
	}

	var baoby *types.BucketAlreadyOwnedByYou
	if errors.As(err, &baoby) {
		return true
	}

	// S3-compatible services may not return the exact SDK error types
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "BucketAlreadyOwnedByYou"
	}

	return false
}

// isNotFoundError checks if the error is a not found error.
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}

	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}

	var nsb *types.NoSuchBucket
	if errors.As(err, &nsb) {
		return true
	}

	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "NotFound" || code == "NoSuchKey" || code == "NoSuchBucket" || code == "404"
	}

	return false
}

func isAccessDenied(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "AccessDenied" || code == "Forbidden" || code == "403" || code == "InvalidAccessKeyId"
	}
	return httpStatus(err) == http.StatusForbidden
}

func isPreconditionFailed(err error) bool {
	if err == nil {
		return false
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		return code == "PreconditionFailed" || code == "ConditionalRequestConflict"
	}
	return httpStatus(err) == http.StatusPreconditionFailed
}

func httpStatus(err error) int {
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode()
	}
	return 0
}

var _ store.Store = (*Client)(nil)
