// Package probe checks the health of a join endpoint over HTTP(S).
package probe

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"sigs.k8s.io/controller-runtime/pkg/log"
)

// Options configures an HTTP prober.
type Options struct {
	// Path is appended to the endpoint, e.g. "/healthz".
	Path    string
	Timeout time.Duration

	// CAFile verifies the endpoint certificate. Without it, verification is
	// skipped since k3s serves a self-signed certificate until the node has
	// its CA.
	CAFile string
}

// HTTPProber reports an endpoint healthy when GET <endpoint><path> answers 200.
type HTTPProber struct {
	client *http.Client
	path   string
}

// NewHTTPProber creates a prober from opts.
func NewHTTPProber(opts Options) (*HTTPProber, error) {
	if opts.Path == "" {
		opts.Path = "/healthz"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}

	tlsConfig := &tls.Config{MinVersion: tls.VersionTLS12}
	if opts.CAFile != "" {
		// #nosec G304
		pem, err := os.ReadFile(opts.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in %s", opts.CAFile)
		}
		tlsConfig.RootCAs = pool
	} else {
		tlsConfig.InsecureSkipVerify = true //nolint:gosec
	}

	return &HTTPProber{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		},
		path: opts.Path,
	}, nil
}

// Probe returns nil when the endpoint is healthy.
func (p *HTTPProber) Probe(ctx context.Context, endpoint string) error {
	url := strings.TrimSuffix(endpoint, "/") + p.path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("probe %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("probe %s: unexpected status %d", url, resp.StatusCode)
	}

	log.FromContext(ctx).V(1).Info("endpoint healthy", "url", url)
	return nil
}
