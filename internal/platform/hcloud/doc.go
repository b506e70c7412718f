// Package hcloud adapts Hetzner Cloud to the handshake.
//
//   - metadata.go: node identity from the Hetzner metadata service
//   - discovery.go: coordinator lookup by server label (fallback path)
//   - client.go: API client construction and options
//   - errors.go: error classification for retry decisions
//
// The API token is only needed for discovery; metadata reads are
// unauthenticated and only work from inside a Hetzner server.
package hcloud
