// Package handshake implements the cluster-join handshake between a
// coordinator and its participants.
//
// The coordinator starts the control service, publishes the join secret and
// endpoint to the shared parameter store and waits until the expected number
// of nodes report ready. A participant polls the store, probes the published
// endpoint, falls back to instance discovery when no healthy endpoint shows
// up in time, and joins exactly once.
//
// Every collaborator (store, membership, prober, k3s, discovery) is an
// interface so the sequences can be exercised without a cloud account.
package handshake
