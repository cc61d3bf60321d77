package entity

import (
	"errors"
	"time"
)

var (
	// ErrAlreadyEnabled indicates the user already has two-factor enabled.
	ErrAlreadyEnabled = errors.New("twofactor: already enabled")

	// ErrNotSetUp indicates the user has no usable two-factor configuration.
	ErrNotSetUp = errors.New("twofactor: not set up")

	// ErrInvalidCode indicates a code that failed verification, without
	// distinguishing TOTP from backup codes.
	ErrInvalidCode = errors.New("twofactor: invalid code")

	// ErrInvalidSecret indicates a stored secret that cannot be decoded.
	ErrInvalidSecret = errors.New("twofactor: invalid secret")
)

// TwoFactorRecord is the per-user two-factor configuration.
//
// A record starts pending (enabled=false, verified=false) after setup and
// becomes enabled through a successful verification. The TOTP secret is held
// encrypted; backup codes are held as digests only.
type TwoFactorRecord struct {
	UserID           int64
	Method           Method
	SecretCiphertext []byte
	KeyVersion       int16
	Enabled          bool
	Verified         bool
	BackupCodeHashes []string
	EnabledAt        *time.Time
	LastUsedAt       *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Attempt is one append-only audit entry for a verification attempt.
type Attempt struct {
	ID        int64
	UserID    int64
	Success   bool
	Method    Method
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// NewPendingRecord builds the record written by setup, before any
// verification has happened.
func NewPendingRecord(userID int64, ciphertext []byte, keyVersion int16, codeHashes []string, now time.Time) TwoFactorRecord {
	return TwoFactorRecord{
		UserID:           userID,
		Method:           MethodTOTP,
		SecretCiphertext: ciphertext,
		KeyVersion:       keyVersion,
		BackupCodeHashes: codeHashes,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}
