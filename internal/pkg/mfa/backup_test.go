package mfa

import (
	"bytes"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var backupCodeShape = regexp.MustCompile(`^[0-9A-F]{8}$`)

func TestBackupCode_Generate(t *testing.T) {
	codes, err := NewBackupCode().Generate(0)
	require.NoError(t, err)
	require.Len(t, codes, 10)

	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		assert.Regexp(t, backupCodeShape, code)

		_, dup := seen[code]
		assert.False(t, dup, "duplicate code %q", code)
		seen[code] = struct{}{}
	}
}

func TestBackupCode_GenerateCount(t *testing.T) {
	codes, err := NewBackupCode().Generate(3)
	require.NoError(t, err)
	assert.Len(t, codes, 3)
}

func TestBackupCode_GenerateDeterministic(t *testing.T) {
	seed := []byte{0x9F, 0x3A, 0x1C, 0x0D, 0x00, 0x00, 0x00, 0x01}
	gen := NewBackupCodeFromReader(bytes.NewReader(seed))

	codes, err := gen.Generate(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"9F3A1C0D", "00000001"}, codes)
}

func TestBackupCode_GenerateSkipsDuplicates(t *testing.T) {
	// The reader repeats the first draw once; the batch must still be unique.
	seed := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x01, 0x02, 0x03, 0x04,
		0xAA, 0xBB, 0xCC, 0xDD,
	}
	gen := NewBackupCodeFromReader(bytes.NewReader(seed))

	codes, err := gen.Generate(2)
	require.NoError(t, err)
	assert.Equal(t, []string{"01020304", "AABBCCDD"}, codes)
}

func TestBackupCode_GenerateRandFailure(t *testing.T) {
	gen := NewBackupCodeFromReader(bytes.NewReader(nil))

	_, err := gen.Generate(1)
	assert.Error(t, err)
}
