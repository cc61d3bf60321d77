package tests

import (
	"net/http"
	"testing"
)

func TestVerify(t *testing.T) {

	t.Run("WithTOTP", func(t *testing.T) {

		// Arrange
		_, token := userToken(t)
		data := enableTwoFactor(t, token)

		// Act
		status, resp, errEnv := verifyCode(t, token, totpCode(t, data.Secret), false)

		// Assert
		if status != http.StatusOK {
			t.Fatalf("verify failed: status=%d message=%q", status, errEnv.Message)
		}
		if !resp.Success || resp.UsedBackupCode {
			t.Fatalf("expected totp verification, got %+v", resp)
		}
	})

	t.Run("WithBackupCode", func(t *testing.T) {

		// Arrange
		_, token := userToken(t)
		data := enableTwoFactor(t, token)

		// Act
		status, resp, errEnv := verifyCode(t, token, data.BackupCodes[0], false)

		// Assert
		if status != http.StatusOK {
			t.Fatalf("verify failed: status=%d message=%q", status, errEnv.Message)
		}
		if !resp.Success || !resp.UsedBackupCode {
			t.Fatalf("expected backup code verification, got %+v", resp)
		}

		// a backup code is single use
		status, _, _ = verifyCode(t, token, data.BackupCodes[0], false)
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("expected reused backup code to fail, got status=%d", status)
		}
	})

	t.Run("WrongCode", func(t *testing.T) {

		// Arrange
		_, token := userToken(t)
		enableTwoFactor(t, token)

		// Act
		status, _, errEnv := verifyCode(t, token, "000000", false)

		// Assert
		if status != http.StatusUnprocessableEntity {
			t.Fatalf("expected invalid code, got status=%d message=%q", status, errEnv.Message)
		}
	})

	t.Run("NotSetUp", func(t *testing.T) {

		// Arrange
		_, token := userToken(t)

		// Act
		status, _, _ := verifyCode(t, token, "123456", false)

		// Assert
		if status != http.StatusNotFound {
			t.Fatalf("expected not found, got status=%d", status)
		}
	})

	t.Run("PendingDoesNotGateLogin", func(t *testing.T) {

		// Arrange
		_, token := userToken(t)
		data := setupTwoFactor(t, token)

		// Act: a correct code without enable must not verify a pending setup
		status, _, _ := verifyCode(t, token, totpCode(t, data.Secret), false)

		// Assert
		if status != http.StatusNotFound {
			t.Fatalf("expected pending setup to be treated as not set up, got status=%d", status)
		}
	})
}
