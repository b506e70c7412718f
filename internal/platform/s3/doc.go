// Package s3 stores join material as objects in an S3 bucket.
//
// Each parameter name maps to one object key (leading slash removed).
// Writes without overwrite use a conditional If-None-Match request so two
// coordinators cannot both create the same key. Works with AWS S3 and
// S3-compatible services such as Hetzner Object Storage via a custom
// endpoint.
//
// A denied GetObject is not reported as store.ErrPermissionDenied: S3
// returns 403 instead of 404 for missing keys when the caller lacks
// s3:ListBucket, so readers keep polling. Grant s3:ListBucket on the bucket
// to get prompt not-found answers. Denied writes are fatal.
package s3
