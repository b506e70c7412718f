package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateEndpoint(t *testing.T) {
	tests := []struct {
		endpoint string
		wantErr  bool
	}{
		{"https://10.0.0.5:6443", false},
		{"http://coordinator.internal:6443", false},
		{"https://[fd00::5]:6443", false},
		{"", true},
		{"10.0.0.5:6443", true},
		{"https://10.0.0.5", true},
		{"ftp://10.0.0.5:21", true},
		{"https://:6443", true},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			err := ValidateEndpoint(tt.endpoint)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestBuildEndpoint(t *testing.T) {
	assert.Equal(t, "https://10.0.0.5:6443", BuildEndpoint("https", "10.0.0.5", 6443))
	assert.Equal(t, "https://[fd00::5]:6443", BuildEndpoint("https", "fd00::5", 6443))
}

func TestJoinRecord_RoundTripAndValidation(t *testing.T) {
	rec := NewJoinRecord("https://10.0.0.5:6443", "tok-123", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NotEmpty(t, rec.Generation)

	doc, err := rec.Encode()
	require.NoError(t, err)

	got, err := DecodeRecord(doc)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestDecodeRecord_Invalid(t *testing.T) {
	tests := map[string]string{
		"not json":      "{",
		"empty secret":  `{"generation":"g","endpoint":"https://10.0.0.5:6443","secret":""}`,
		"bad endpoint":  `{"generation":"g","endpoint":"10.0.0.5","secret":"s"}`,
		"no generation": `{"endpoint":"https://10.0.0.5:6443","secret":"s"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeRecord(raw)
			assert.ErrorIs(t, err, ErrInvalidRecord)
		})
	}
}

func TestSameMaterial(t *testing.T) {
	now := time.Now()
	a := NewJoinRecord("https://10.0.0.5:6443", "tok", now)
	b := NewJoinRecord("https://10.0.0.5:6443", "tok", now.Add(time.Hour))
	c := NewJoinRecord("https://10.0.0.6:6443", "tok", now)

	assert.NotEqual(t, a.Generation, b.Generation)
	assert.True(t, a.SameMaterial(b))
	assert.False(t, a.SameMaterial(c))
}

func TestFingerprint(t *testing.T) {
	assert.Empty(t, Fingerprint(""))
	fp := Fingerprint("tok-123")
	assert.Len(t, fp, 12)
	assert.NotContains(t, fp, "tok")
	assert.Equal(t, fp, Fingerprint("tok-123"))
}
