package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/pkg/idempotency"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/twofactor/entity"
)

type SetupOutput struct {
	Secret      string
	URI         string
	BackupCodes []string
}

// Setup provisions a fresh pending two-factor configuration for the current
// user. The secret and plaintext backup codes are returned exactly once;
// only ciphertext and digests are stored.
//
// Re-running setup before verification replaces the pending configuration.
// An enabled configuration is never replaced.
func (s *Usecase) Setup(ctx context.Context) (*SetupOutput, error) {
	ctx, span := s.startSpan(ctx, "Setup")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	var out *SetupOutput
	key := fmt.Sprintf("twofactor:setup:%d", clm.UserID)
	err = s.idemp.Exec(ctx, key, func(ctx context.Context) error {
		out, err = s.setup(ctx, clm.UserID, clm.UserEmail)
		return err
	}, idempotency.WithLockDuration(s.cfg.GetSecond("modules.twofactor.setup_lock_seconds")))

	switch {
	case errors.Is(err, idempotency.ErrAlreadyInProgress),
		errors.Is(err, idempotency.ErrAlreadyCompleted),
		errors.Is(err, idempotency.ErrAlreadyFailed):
		slog.WarnContext(ctx, "two-factor setup throttled", "user_id", clm.UserID, "reason", err)
		return nil, goerror.NewBusiness("Setup was just processed, try again shortly", goerror.CodeTooManyRequest)
	case err != nil:
		return nil, err
	}

	return out, nil
}

func (s *Usecase) setup(ctx context.Context, userID int64, email string) (*SetupOutput, error) {
	rec, err := s.repoDB.GetRecord(ctx, userID)
	if err != nil && !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get two-factor record", "user_id", userID, "error", err)
		return nil, storeError(err)
	}
	if rec != nil && rec.Enabled {
		return nil, goerror.NewBusinessError(entity.ErrAlreadyEnabled,
			"Two-factor authentication is already enabled", goerror.CodeConflict)
	}

	secret, uri, err := s.totp.Generate(email)
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate totp secret", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	codes, err := s.mfaBackupCode.Generate(s.cfg.GetInt("modules.twofactor.backup_code_count"))
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate backup codes", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	hashes := make([]string, 0, len(codes))
	for _, code := range codes {
		hashed, err := s.sha256.Hash(code)
		if err != nil {
			slog.ErrorContext(ctx, "failed to hash backup code", "user_id", userID, "error", err)
			return nil, goerror.NewServer(err)
		}
		hashes = append(hashes, string(hashed))
	}

	ciphertext, err := s.mfaEncryptor.Encrypt([]byte(secret), mfa.Scope{
		UserID:  userID,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to encrypt totp secret", "user_id", userID, "error", err)
		return nil, goerror.NewServer(err)
	}

	pending := entity.NewPendingRecord(userID, ciphertext, secretKeyVersion, hashes, s.clock.Now())
	if err := s.repoDB.UpsertPendingRecord(ctx, pending); err != nil {
		// The conditional upsert refuses to clobber a record that was
		// enabled between the read above and this write.
		if errors.Is(err, goerror.ErrConflict) {
			return nil, goerror.NewBusinessError(entity.ErrAlreadyEnabled,
				"Two-factor authentication is already enabled", goerror.CodeConflict)
		}

		slog.ErrorContext(ctx, "failed to upsert pending two-factor record", "user_id", userID, "error", err)
		return nil, storeError(err)
	}

	return &SetupOutput{
		Secret:      secret,
		URI:         uri,
		BackupCodes: codes,
	}, nil
}

// secretKeyVersion tags ciphertexts with the key generation that sealed
// them, so a future key rotation can re-encrypt selectively.
const secretKeyVersion int16 = 1
