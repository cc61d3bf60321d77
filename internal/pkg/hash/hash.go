package hash

// Hash hashes plaintext values and verifies plaintext against stored hashes.
type Hash interface {
	Hash(plaintext string) ([]byte, error)
	Verify(hashed, plaintext string) bool
}
