package store

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidRecord is returned when a stored join record cannot be decoded
// or fails validation.
var ErrInvalidRecord = errors.New("invalid join record")

// JoinRecord holds the join endpoint and secret of one coordinator
// bootstrap, written as a single document so both fields always belong to
// the same generation.
type JoinRecord struct {
	Generation  string    `json:"generation"`
	Endpoint    string    `json:"endpoint"`
	Secret      string    `json:"secret"`
	PublishedAt time.Time `json:"publishedAt"`
}

// NewJoinRecord returns a record with a fresh generation id.
func NewJoinRecord(endpoint, secret string, now time.Time) JoinRecord {
	return JoinRecord{
		Generation:  uuid.NewString(),
		Endpoint:    endpoint,
		Secret:      secret,
		PublishedAt: now.UTC(),
	}
}

// SameMaterial reports whether two records carry identical join material,
// ignoring generation and timestamp.
func (r JoinRecord) SameMaterial(other JoinRecord) bool {
	return r.Endpoint == other.Endpoint && r.Secret == other.Secret
}

// Validate checks that the record can be used to join.
func (r JoinRecord) Validate() error {
	if r.Generation == "" {
		return fmt.Errorf("%w: missing generation", ErrInvalidRecord)
	}
	if r.Secret == "" {
		return fmt.Errorf("%w: empty secret", ErrInvalidRecord)
	}
	if err := ValidateEndpoint(r.Endpoint); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	return nil
}

// Encode serializes the record.
func (r JoinRecord) Encode() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to encode join record: %w", err)
	}
	return string(data), nil
}

// DecodeRecord parses and validates a stored record.
func DecodeRecord(raw string) (JoinRecord, error) {
	var r JoinRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return JoinRecord{}, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if err := r.Validate(); err != nil {
		return JoinRecord{}, err
	}
	return r, nil
}

// ValidateEndpoint checks that endpoint is an http(s) URL with host and port.
func ValidateEndpoint(endpoint string) error {
	if endpoint == "" {
		return errors.New("empty endpoint")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("malformed endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	host, port, err := net.SplitHostPort(u.Host)
	if err != nil || host == "" || port == "" {
		return fmt.Errorf("endpoint %q: host and port required", endpoint)
	}
	return nil
}

// BuildEndpoint formats a control service endpoint from its parts.
func BuildEndpoint(scheme, host string, port int) string {
	return fmt.Sprintf("%s://%s", scheme, net.JoinHostPort(host, fmt.Sprint(port)))
}

// Fingerprint returns a short, log-safe digest of a secret.
func Fingerprint(secret string) string {
	if secret == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])[:12]
}
