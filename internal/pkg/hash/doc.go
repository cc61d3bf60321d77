// Package hash provides helpers for hashing and verifying secrets.
//
// Store only the hash, then verify input by comparing the plaintext against
// the stored value. Implementations live behind a small interface so callers
// stay agnostic of the digest in use.
package hash
