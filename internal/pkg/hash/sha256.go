package hash

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// SHA256 implements the Hash interface with an unkeyed SHA-256 digest,
// hex-encoded in lowercase.
//
// Suited to high-entropy inputs such as generated backup codes, where a
// key-stretching hash would add cost without adding security. Do not use it
// for user-chosen passwords.
type SHA256 struct{}

// NewSHA256 returns a SHA-256 hasher.
func NewSHA256() *SHA256 {
	return &SHA256{}
}

// Hash returns the lowercase hex SHA-256 digest of the input string.
func (s *SHA256) Hash(plaintext string) ([]byte, error) {
	return s.gen(plaintext), nil
}

// Verify checks whether the plaintext matches the given digest in
// constant time.
func (s *SHA256) Verify(hashed, plaintext string) bool {
	expected := s.gen(plaintext)
	return subtle.ConstantTimeCompare([]byte(hashed), expected) == 1
}

func (s *SHA256) gen(plaintext string) []byte {
	sum := sha256.Sum256([]byte(plaintext))
	result := make([]byte, hex.EncodedLen(len(sum)))
	hex.Encode(result, sum[:])
	return result
}
