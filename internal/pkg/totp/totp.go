package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net/url"
	"time"
)

var (
	// ErrInvalidSecret is returned when a secret decodes to an empty key.
	ErrInvalidSecret = errors.New("totp: secret decodes to an empty key")

	// ErrSecretGeneration is returned when the random source fails.
	ErrSecretGeneration = errors.New("totp: failed to generate secret")
)

// OTP defines the contract for time-based one-time password operations.
type OTP interface {
	// Generate creates a secret and provisioning URI for an account label.
	Generate(accountLabel string) (secret string, uri string, err error)
	// Validate checks whether a code is valid at the given time, within
	// the configured skew window.
	Validate(code, secret string, at time.Time) (bool, error)
	// DeriveCode computes the code for the given secret and time.
	DeriveCode(secret string, at time.Time) (string, error)
}

const (
	defaultPeriod = 30
	defaultWindow = 1
	defaultDigits = 6

	// secretBytes is the raw entropy per RFC 4226's 160-bit recommendation.
	secretBytes = 20
)

// Engine implements OTP with HMAC-SHA1 per RFC 4226/6238.
type Engine struct {
	issuer string
	period uint
	window uint
	digits int
	random io.Reader
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRandReader replaces the secret randomness source, mainly for tests.
func WithRandReader(r io.Reader) Option {
	return func(e *Engine) { e.random = r }
}

// NewEngine constructs an Engine with RFC 6238 defaults applied to
// zero-valued parameters.
func NewEngine(issuer string, period, window uint, digits int, opts ...Option) *Engine {
	if period == 0 {
		period = defaultPeriod
	}
	if window == 0 {
		window = defaultWindow
	}
	if digits != 6 && digits != 8 {
		digits = defaultDigits
	}

	e := &Engine{
		issuer: issuer,
		period: period,
		window: window,
		digits: digits,
		random: rand.Reader,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Generate creates a new Base32 secret and its provisioning URI.
func (e *Engine) Generate(accountLabel string) (string, string, error) {
	raw := make([]byte, secretBytes)
	if _, err := io.ReadFull(e.random, raw); err != nil {
		return "", "", errors.Join(ErrSecretGeneration, err)
	}

	secret := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(raw)
	return secret, e.provisioningURI(secret, accountLabel), nil
}

// provisioningURI builds the otpauth:// Key URI consumed by authenticator
// apps. The key/value shape is fixed; issuer and label are percent-encoded.
func (e *Engine) provisioningURI(secret, accountLabel string) string {
	return fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
		url.PathEscape(e.issuer),
		url.PathEscape(accountLabel),
		secret,
		url.QueryEscape(e.issuer),
	)
}

// DeriveCode computes the code for the time step containing at.
func (e *Engine) DeriveCode(secret string, at time.Time) (string, error) {
	key := decodeBase32(secret)
	if len(key) == 0 {
		return "", ErrInvalidSecret
	}

	return hotp(key, e.counter(at), e.digits), nil
}

// Validate checks a candidate code against the steps in [-window, +window].
//
// Comparison per candidate is constant-time so the match position does not
// leak through timing.
func (e *Engine) Validate(code, secret string, at time.Time) (bool, error) {
	if !isNumeric(code, e.digits) {
		return false, nil
	}

	key := decodeBase32(secret)
	if len(key) == 0 {
		return false, ErrInvalidSecret
	}

	base := e.counter(at)
	window := int64(e.window)
	for delta := -window; delta <= window; delta++ {
		if delta < 0 && base < uint64(-delta) {
			continue
		}

		candidate := hotp(key, base+uint64(delta), e.digits)
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(code)) == 1 {
			return true, nil
		}
	}

	return false, nil
}

// counter maps a wall-clock time to its time-step counter. Times before the
// Unix epoch clamp to step zero; counters never go negative.
func (e *Engine) counter(at time.Time) uint64 {
	unix := at.Unix()
	if unix < 0 {
		return 0
	}
	return uint64(unix) / uint64(e.period)
}

// hotp implements the RFC 4226 HMAC-based one-time password computation:
// big-endian 8-byte counter, HMAC-SHA1, dynamic truncation to a 31-bit
// integer, reduced modulo 10^digits and zero-padded.
func hotp(key []byte, counter uint64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], counter)

	mac := hmac.New(sha1.New, key)
	mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	mod := uint32(1)
	for range digits {
		mod *= 10
	}

	return fmt.Sprintf("%0*d", digits, value%mod)
}

func isNumeric(code string, length int) bool {
	if len(code) != length {
		return false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < '0' || code[i] > '9' {
			return false
		}
	}
	return true
}
