package mfa

import (
	"crypto/rand"
	"encoding/hex"
	"io"
	"strings"
)

// BackupCodeGenerator defines an interface for generating MFA backup codes.
type BackupCodeGenerator interface {
	// Generate returns count unique backup codes, or an error if the random
	// source fails. A count of zero or less falls back to the default of 10.
	Generate(count int) ([]string, error)
}

const (
	// defaultBackupCodeCount matches the standard issue size per user.
	defaultBackupCodeCount = 10

	// backupCodeBytes is the raw entropy per code. Four bytes render as
	// eight hex characters.
	backupCodeBytes = 4
)

// BackupCode generates cryptographically secure MFA backup codes.
//
// Each code is formatted as 8 uppercase hexadecimal characters, e.g.
// "9F3A1C0D". Codes within one batch are unique.
type BackupCode struct {
	random io.Reader
}

// NewBackupCode returns a generator backed by crypto/rand.
func NewBackupCode() *BackupCode {
	return &BackupCode{random: rand.Reader}
}

// NewBackupCodeFromReader returns a generator backed by r, mainly for tests.
func NewBackupCodeFromReader(r io.Reader) *BackupCode {
	return &BackupCode{random: r}
}

// Generate produces a batch of unique backup codes.
func (bc *BackupCode) Generate(count int) ([]string, error) {
	if count <= 0 {
		count = defaultBackupCodeCount
	}

	out := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	raw := make([]byte, backupCodeBytes)
	for len(out) < count {
		if _, err := io.ReadFull(bc.random, raw); err != nil {
			return nil, err
		}

		code := strings.ToUpper(hex.EncodeToString(raw))

		// extremely unlikely, but prevents accidental duplicates
		if _, ok := seen[code]; ok {
			continue
		}

		seen[code] = struct{}{}
		out = append(out, code)
	}

	return out, nil
}
