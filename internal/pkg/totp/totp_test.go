package totp

import (
	"bytes"
	"encoding/base32"
	"strings"
	"testing"
	"time"

	pquerna "github.com/pquerna/otp"
	pquernatotp "github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// rfcSecret is the ASCII seed "12345678901234567890" from RFC 6238
// Appendix B, Base32-encoded.
const rfcSecret = "GEZDGNBVGY3TQOJQGEZDGNBVGY3TQOJQ"

func TestDeriveCode_RFC6238Vectors(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)

	tests := []struct {
		unix int64
		want string
	}{
		{59, "287082"},
		{1111111109, "081804"},
		{1111111111, "050471"},
		{1234567890, "005924"},
		{2000000000, "279037"},
		{20000000000, "353130"},
	}

	for _, tc := range tests {
		got, err := engine.DeriveCode(rfcSecret, time.Unix(tc.unix, 0))
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "unix=%d", tc.unix)
	}
}

func TestDeriveCode_InvalidSecret(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)

	for _, secret := range []string{"", "!!!!", "01-89"} {
		_, err := engine.DeriveCode(secret, time.Unix(59, 0))
		assert.ErrorIs(t, err, ErrInvalidSecret, "secret=%q", secret)
	}
}

func TestValidate_Window(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)
	now := time.Unix(1111111111, 0)

	code, err := engine.DeriveCode(rfcSecret, now)
	require.NoError(t, err)

	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"same step", now, true},
		{"one step behind", now.Add(-30 * time.Second), true},
		{"one step ahead", now.Add(30 * time.Second), true},
		{"two steps behind", now.Add(-60 * time.Second), false},
		{"two steps ahead", now.Add(60 * time.Second), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ok, err := engine.Validate(code, rfcSecret, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.want, ok)
		})
	}
}

func TestValidate_RejectsMalformedCodes(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)
	now := time.Unix(1111111111, 0)

	for _, code := range []string{"", "12345", "1234567", "28708a", "287 082"} {
		ok, err := engine.Validate(code, rfcSecret, now)
		require.NoError(t, err)
		assert.False(t, ok, "code=%q", code)
	}
}

func TestValidate_InvalidSecret(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)

	ok, err := engine.Validate("287082", "....", time.Unix(59, 0))
	assert.ErrorIs(t, err, ErrInvalidSecret)
	assert.False(t, ok)
}

func TestDecodeBase32_Tolerant(t *testing.T) {
	canonical := decodeBase32(rfcSecret)
	require.Equal(t, []byte("12345678901234567890"), canonical)

	tests := []struct {
		name   string
		secret string
	}{
		{"lowercase", strings.ToLower(rfcSecret)},
		{"padding", rfcSecret + "===="},
		{"spaces", "GEZD GNBV GY3T QOJQ GEZD GNBV GY3T QOJQ"},
		{"hyphens", "GEZD-GNBV-GY3T-QOJQ-GEZD-GNBV-GY3T-QOJQ"},
		{"mixed noise", "gezd.GNBV gy3t-QOJQ\tgezd GNBV GY3T qojq="},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, canonical, decodeBase32(tc.secret))
		})
	}
}

func TestDecodeBase32_TruncatesPartialBytes(t *testing.T) {
	// A single symbol carries 5 bits, not enough for a byte.
	assert.Empty(t, decodeBase32("G"))

	// Two symbols carry 10 bits, exactly one byte survives.
	assert.Len(t, decodeBase32("GE"), 1)
}

func TestGenerate(t *testing.T) {
	seed := bytes.Repeat([]byte{0xAB}, secretBytes)
	engine := NewEngine("Acme Corp", 30, 1, 6, WithRandReader(bytes.NewReader(seed)))

	secret, uri, err := engine.Generate("user@example.com")
	require.NoError(t, err)

	assert.Equal(t, base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(seed), secret)
	assert.Len(t, secret, 32)
	assert.Equal(t,
		"otpauth://totp/Acme%20Corp:user@example.com?secret="+secret+"&issuer=Acme+Corp",
		uri,
	)
}

func TestGenerate_RandFailure(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6, WithRandReader(bytes.NewReader(nil)))

	_, _, err := engine.Generate("user@example.com")
	assert.ErrorIs(t, err, ErrSecretGeneration)
}

// TestDeriveCode_CrossImplementation checks the engine against an
// independent RFC 6238 implementation over a spread of times.
func TestDeriveCode_CrossImplementation(t *testing.T) {
	engine := NewEngine("Acme", 30, 1, 6)

	for _, unix := range []int64{1, 59, 60, 1111111111, 1700000000, 4000000000} {
		at := time.Unix(unix, 0)

		want, err := pquernatotp.GenerateCodeCustom(rfcSecret, at, pquernatotp.ValidateOpts{
			Period:    30,
			Digits:    pquerna.DigitsSix,
			Algorithm: pquerna.AlgorithmSHA1,
		})
		require.NoError(t, err)

		got, err := engine.DeriveCode(rfcSecret, at)
		require.NoError(t, err)
		assert.Equal(t, want, got, "unix=%d", unix)
	}
}
