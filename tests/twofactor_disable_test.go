package tests

import (
	"net/http"
	"testing"
)

func TestDisable(t *testing.T) {

	// Arrange
	_, token := userToken(t)
	enableTwoFactor(t, token)

	// Act
	status, body := doJSON(t, http.MethodDelete, "/api/v1/twofactor", nil, token)

	// Assert
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("disable failed: status=%d message=%q", status, errEnv.Message)
	}

	// disabling again is a no-op, not an error
	status, body = doJSON(t, http.MethodDelete, "/api/v1/twofactor", nil, token)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("second disable failed: status=%d message=%q", status, errEnv.Message)
	}

	// a disabled user can set up again from scratch
	setupTwoFactor(t, token)
}
