package tests

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gardawira/twofa/internal/pkg/clock"
	"github.com/gardawira/twofa/internal/pkg/jwt"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/pkg/uid"
)

// Defaults match config/config.yaml for local development. Override with
// TWOFA_JWT_SECRET and TWOFA_JWT_ISSUER when testing another environment.
const (
	defaultJWTSecret = "local-development-secret-key-for-hs512-signing-do-not-use-in-production"
	defaultJWTIssuer = "twofa"

	totpIssuer = "TwoFA"
	totpPeriod = uint(30)
	totpSkew   = uint(1)
	totpDigits = 6
)

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// userToken mints a token for a fresh user directly, since this service
// trusts JWTs issued by the identity provider.
func userToken(t *testing.T) (int64, string) {
	t.Helper()

	signer, err := jwt.NewHS512(jwt.Config{
		Secret:     []byte(envOr("TWOFA_JWT_SECRET", defaultJWTSecret)),
		Issuer:     envOr("TWOFA_JWT_ISSUER", defaultJWTIssuer),
		Audiences:  []string{envOr("TWOFA_JWT_AUDIENCE", "twofa-api")},
		TTLMinutes: 15 * time.Minute,
		Clock:      clock.New(),
		UUID:       uid.NewUUID(),
	})
	if err != nil {
		t.Fatalf("build jwt signer: %v", err)
	}

	userID := time.Now().UnixNano()
	token, err := signer.Generate(userID, fmt.Sprintf("real-user-%d@example.com", userID))
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	return userID, token
}

func totpCode(t *testing.T, secret string) string {
	t.Helper()

	engine := totp.NewEngine(totpIssuer, totpPeriod, totpSkew, totpDigits)
	code, err := engine.DeriveCode(secret, time.Now())
	if err != nil {
		t.Fatalf("derive totp code: %v", err)
	}

	return code
}

type setupData struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

func setupTwoFactor(t *testing.T, token string) setupData {
	t.Helper()

	status, body := doJSON(t, http.MethodPost, "/api/v1/twofactor/setup", nil, token)
	if status != http.StatusOK {
		errEnv := decodeError(t, body)
		t.Fatalf("setup failed: status=%d message=%q", status, errEnv.Message)
	}

	var data setupData
	decodeSuccess(t, body, &data)
	if data.Secret == "" || data.URI == "" || len(data.BackupCodes) == 0 {
		t.Fatal("setup response missing fields")
	}

	return data
}

type verifyData struct {
	Success        bool `json:"success"`
	Enabled        bool `json:"enabled"`
	UsedBackupCode bool `json:"used_backup_code"`
}

func verifyCode(t *testing.T, token, code string, enable bool) (int, verifyData, errorEnvelope) {
	t.Helper()

	payload := map[string]any{
		"code":   code,
		"enable": enable,
	}

	status, body := doJSON(t, http.MethodPost, "/api/v1/twofactor/verify", payload, token)
	if status != http.StatusOK {
		return status, verifyData{}, decodeError(t, body)
	}

	var data verifyData
	decodeSuccess(t, body, &data)

	return status, data, errorEnvelope{}
}

func enableTwoFactor(t *testing.T, token string) setupData {
	t.Helper()

	data := setupTwoFactor(t, token)

	status, resp, errEnv := verifyCode(t, token, totpCode(t, data.Secret), true)
	if status != http.StatusOK {
		t.Fatalf("enable failed: status=%d message=%q", status, errEnv.Message)
	}
	if !resp.Success || !resp.Enabled {
		t.Fatalf("expected enable to succeed, got %+v", resp)
	}

	return data
}
