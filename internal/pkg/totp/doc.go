// Package totp implements time-based one-time passwords (RFC 6238) on top
// of the HOTP construction (RFC 4226), together with Base32 secret handling
// and provisioning URI generation for authenticator apps.
//
// The implementation is self-contained so that secret decoding stays
// tolerant (authenticator apps and users routinely paste secrets with
// padding, spaces, or lowercase letters) and so validation can guarantee
// constant-time code comparison.
package totp
