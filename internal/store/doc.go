// Package store defines the shared parameter store used to hand join
// material from the coordinator to participants.
//
// A [Store] offers get and put of named string values. Backends live under
// internal/platform (SSM, S3, Consul, Redis); [Memory] is an in-process
// implementation for tests and dry runs.
//
// Join material is written either as one versioned [JoinRecord] document,
// as the two legacy keys join-secret and join-endpoint, or both. See
// [Layout].
package store
