// Package poll implements the fixed-interval waits used by both handshake
// roles.
//
// [Until] repeats a check at a fixed interval until it succeeds or a
// deadline elapses. [Attempts] bounds the same loop by an attempt count
// instead of a duration. Neither applies backoff or jitter. Both are built
// on the apimachinery wait package and honour context cancellation, so a
// caller can nest several waits under one signal-cancelled context.
package poll
