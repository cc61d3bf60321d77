package tests

import (
	"net/http"
	"strings"
	"testing"
)

func TestSetup(t *testing.T) {

	// Arrange
	_, token := userToken(t)

	// Act
	data := setupTwoFactor(t, token)

	// Assert
	if len(data.BackupCodes) != 10 {
		t.Fatalf("expected 10 backup codes, got %d", len(data.BackupCodes))
	}
	if !strings.HasPrefix(data.URI, "otpauth://totp/") {
		t.Fatalf("unexpected provisioning uri %q", data.URI)
	}
	if !strings.Contains(data.URI, "secret="+data.Secret) {
		t.Fatalf("provisioning uri does not carry the secret: %q", data.URI)
	}
}

func TestSetupAlreadyEnabled(t *testing.T) {

	// Arrange
	_, token := userToken(t)
	enableTwoFactor(t, token)

	// Act
	status, body := doJSON(t, http.MethodPost, "/api/v1/twofactor/setup", nil, token)

	// Assert
	if status != http.StatusConflict {
		errEnv := decodeError(t, body)
		t.Fatalf("expected conflict, got status=%d message=%q", status, errEnv.Message)
	}
}

func TestSetupUnauthenticated(t *testing.T) {

	// Act
	status, _ := doJSON(t, http.MethodPost, "/api/v1/twofactor/setup", nil, "")

	// Assert
	if status != http.StatusUnauthorized {
		t.Fatalf("expected unauthorized, got status=%d", status)
	}
}
