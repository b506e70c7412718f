// Package agent drives the k3s command line on the local node.
//
// [K3s] starts the control service on the coordinator, reports its health
// and joins participants to an existing cluster. Commands go through a
// [Runner] so tests can observe them without a k3s binary. The join secret
// only ever reaches k3s through the K3S_TOKEN environment variable or the
// agent unit's environment file, never through argv or logs.
package agent
