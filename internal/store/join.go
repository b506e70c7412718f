package store

import (
	"context"
	"errors"
	"fmt"
)

// Layout selects how join material is laid out in the store.
type Layout string

const (
	// LayoutRecord writes one versioned JoinRecord document.
	LayoutRecord Layout = "record"
	// LayoutSplit writes join-secret and join-endpoint as separate keys.
	// A concurrent re-bootstrap can leave the two keys from different
	// generations.
	LayoutSplit Layout = "split"
	// LayoutBoth writes the record and the split keys; readers prefer the
	// record.
	LayoutBoth Layout = "both"
)

// ParseLayout validates a layout name. Empty selects LayoutRecord.
func ParseLayout(s string) (Layout, error) {
	switch Layout(s) {
	case "", LayoutRecord:
		return LayoutRecord, nil
	case LayoutSplit, LayoutBoth:
		return Layout(s), nil
	default:
		return "", fmt.Errorf("unknown store layout %q (want record, split or both)", s)
	}
}

func (l Layout) writesRecord() bool { return l == LayoutRecord || l == LayoutBoth }
func (l Layout) writesSplit() bool  { return l == LayoutSplit || l == LayoutBoth }

// Credentials is the join material as observed by a reader. Either field
// may be empty while the coordinator has not published yet.
type Credentials struct {
	Endpoint   string
	Secret     string
	Generation string
}

// Complete reports whether both endpoint and secret are present.
func (c Credentials) Complete() bool {
	return c.Endpoint != "" && c.Secret != ""
}

// Publish writes the record according to layout, overwriting previous
// values. With LayoutSplit the secret is written before the endpoint.
func Publish(ctx context.Context, s Store, keys Keys, layout Layout, rec JoinRecord) error {
	if layout.writesRecord() {
		doc, err := rec.Encode()
		if err != nil {
			return err
		}
		if err := s.Put(ctx, keys.Record(), doc, true); err != nil {
			return fmt.Errorf("failed to write %s: %w", keys.Record(), err)
		}
	}
	if layout.writesSplit() {
		if err := s.Put(ctx, keys.Secret(), rec.Secret, true); err != nil {
			return fmt.Errorf("failed to write %s: %w", keys.Secret(), err)
		}
		if err := s.Put(ctx, keys.Endpoint(), rec.Endpoint, true); err != nil {
			return fmt.Errorf("failed to write %s: %w", keys.Endpoint(), err)
		}
	}
	return nil
}

// ReadRecord loads the versioned record. It returns ErrNotFound when
// nothing has been published and ErrInvalidRecord for unusable documents.
func ReadRecord(ctx context.Context, s Store, keys Keys) (JoinRecord, error) {
	raw, err := s.Get(ctx, keys.Record())
	if err != nil {
		return JoinRecord{}, err
	}
	return DecodeRecord(raw)
}

// ReadCredentials returns whatever join material is currently published.
// Missing values come back empty with a nil error; backend failures are
// returned as errors.
func ReadCredentials(ctx context.Context, s Store, keys Keys, layout Layout) (Credentials, error) {
	if layout.writesRecord() {
		rec, err := ReadRecord(ctx, s, keys)
		switch {
		case err == nil:
			return Credentials{Endpoint: rec.Endpoint, Secret: rec.Secret, Generation: rec.Generation}, nil
		case errors.Is(err, ErrNotFound):
			if layout == LayoutRecord {
				return Credentials{}, nil
			}
		case errors.Is(err, ErrInvalidRecord):
			if layout == LayoutRecord {
				return Credentials{}, err
			}
		default:
			return Credentials{}, err
		}
	}
	return readSplit(ctx, s, keys)
}

func readSplit(ctx context.Context, s Store, keys Keys) (Credentials, error) {
	var creds Credentials
	endpoint, err := s.Get(ctx, keys.Endpoint())
	switch {
	case err == nil:
		creds.Endpoint = endpoint
	case !errors.Is(err, ErrNotFound):
		return Credentials{}, err
	}
	secret, err := s.Get(ctx, keys.Secret())
	switch {
	case err == nil:
		creds.Secret = secret
	case !errors.Is(err, ErrNotFound):
		return Credentials{}, err
	}
	return creds, nil
}

// ReadSecret returns only the join secret, or "" when none is published.
func ReadSecret(ctx context.Context, s Store, keys Keys, layout Layout) (string, error) {
	creds, err := ReadCredentials(ctx, s, keys, layout)
	if err != nil && !errors.Is(err, ErrInvalidRecord) {
		return "", err
	}
	return creds.Secret, nil
}
