package mfa

// Purpose identifies the MFA encryption purpose.
type Purpose string

// PurposeOTPSeed scopes encryption to TOTP shared secrets at rest.
const PurposeOTPSeed Purpose = "otp_seed"

// Scope binds encryption to MFA-specific identifiers.
// This is used as AAD (Additional Authenticated Data) in AES-GCM.
type Scope struct {
	// UserID is the user identifier for scoping.
	UserID int64
	// Purpose is the encryption purpose.
	Purpose Purpose
}
