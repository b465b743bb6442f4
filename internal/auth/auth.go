// Package auth provides the salted, iterated password digest primitive,
// kept as a small, swappable Hasher behind which the algorithm could be
// replaced without touching any caller.
package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SaltLen and HashIters are part of the stored credential format: a
// fixed-width salt and a fixed iteration count.
const (
	SaltLen   = 16
	HashIters = 4096
)

// Hasher computes and verifies salted password digests.
type Hasher struct{}

// NewSalt returns SaltLen fresh random bytes.
func (Hasher) NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return salt, nil
}

// Digest returns hex(iterated-sha256(salt || password)).
func (Hasher) Digest(salt []byte, password string) string {
	sum := append(append([]byte{}, salt...), password...)
	h := sha256.Sum256(sum)
	for i := 1; i < HashIters; i++ {
		h = sha256.Sum256(h[:])
	}
	return hex.EncodeToString(h[:])
}

// Verify reports whether password hashes to want under salt, using a
// constant-time comparison so digest mismatches don't leak timing
// information about where the first differing byte is.
func (h Hasher) Verify(salt []byte, password, want string) bool {
	got := h.Digest(salt, password)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
