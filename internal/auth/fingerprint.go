package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

const randomKeySize = 32

// Fingerprinter derives cache keys from a username and secret. Keys differ
// whenever either input differs, and the secret cannot be recovered from them.
type Fingerprinter struct {
	key []byte
}

func NewFingerprinter(key []byte) (*Fingerprinter, error) {
	if len(key) == 0 {
		return nil, errors.New("fingerprint key must not be empty")
	}
	return &Fingerprinter{key: append([]byte(nil), key...)}, nil
}

// NewRandomFingerprinter uses a per-process key. Fingerprints from two
// processes never match.
func NewRandomFingerprinter() (*Fingerprinter, error) {
	key := make([]byte, randomKeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("generating fingerprint key: %w", err)
	}
	return &Fingerprinter{key: key}, nil
}

func (f *Fingerprinter) Fingerprint(username string, secret []byte) string {
	mac := hmac.New(sha256.New, f.key)
	var size [8]byte
	binary.BigEndian.PutUint64(size[:], uint64(len(username)))
	mac.Write(size[:])
	mac.Write([]byte(username))
	mac.Write(secret)
	return hex.EncodeToString(mac.Sum(nil))
}
