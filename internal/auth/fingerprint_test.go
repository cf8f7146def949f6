package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprint(t *testing.T) {
	f, err := NewFingerprinter([]byte("key"))
	require.NoError(t, err)

	base := f.Fingerprint("alice@example.com", []byte("tok-123"))
	assert.Len(t, base, 64)
	assert.Equal(t, base, f.Fingerprint("alice@example.com", []byte("tok-123")))
	assert.NotContains(t, base, "tok-123")

	assert.NotEqual(t, base, f.Fingerprint("alice@example.com", []byte("tok-124")), "secret must change the key")
	assert.NotEqual(t, base, f.Fingerprint("bob@example.com", []byte("tok-123")), "username must change the key")
	// username and secret boundaries must not be ambiguous
	assert.NotEqual(t, f.Fingerprint("ab", []byte("c")), f.Fingerprint("a", []byte("bc")))

	other, err := NewFingerprinter([]byte("other-key"))
	require.NoError(t, err)
	assert.NotEqual(t, base, other.Fingerprint("alice@example.com", []byte("tok-123")))
}

func TestFingerprinterKeys(t *testing.T) {
	_, err := NewFingerprinter(nil)
	assert.Error(t, err)

	key := []byte("shared")
	f, err := NewFingerprinter(key)
	require.NoError(t, err)
	key[0] = 'X'
	g, err := NewFingerprinter([]byte("shared"))
	require.NoError(t, err)
	assert.Equal(t, g.Fingerprint("a", []byte("b")), f.Fingerprint("a", []byte("b")))

	r1, err := NewRandomFingerprinter()
	require.NoError(t, err)
	r2, err := NewRandomFingerprinter()
	require.NoError(t, err)
	assert.NotEqual(t, r1.Fingerprint("a", []byte("b")), r2.Fingerprint("a", []byte("b")))
}
