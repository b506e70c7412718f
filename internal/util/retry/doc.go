// Package retry provides exponential backoff for store writes and other
// calls that may fail transiently.
//
// [WithExponentialBackoff] retries an operation until it succeeds, the
// attempt budget runs out, or the context is cancelled. Errors wrapped with
// [Fatal] stop the loop at once; the handshake uses this to fail fast on
// rejected writes such as a permission-denied response from the parameter
// store.
package retry
