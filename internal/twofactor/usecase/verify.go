package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/twofactor/entity"
)

type VerifyInput struct {
	// Length is deliberately not validated here. An out-of-range code must
	// still reach classifyCode so the failure lands in the attempt log.
	Code      string `validate:"required"`
	Enable    bool
	IPAddress string
	UserAgent string
}

type VerifyOutput struct {
	Success        bool
	Enabled        bool
	UsedBackupCode bool
}

// Verify checks a submitted code against the user's configuration and, when
// requested, promotes a pending configuration to enabled.
//
// Every attempt is recorded before the result is returned, successes and
// failures alike. The error for a failed code never reveals whether it was
// checked as a TOTP code or as a backup code.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) (*VerifyOutput, error) {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.repoDB.GetRecord(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "two-factor verify without configuration", "user_id", clm.UserID)
		return nil, goerror.NewBusinessError(entity.ErrNotSetUp,
			"Two-factor authentication is not set up", goerror.CodeNotFound)
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get two-factor record", "user_id", clm.UserID, "error", err)
		return nil, storeError(err)
	}

	// A pending configuration can only be verified as part of enabling it.
	// It must not satisfy a login gate.
	if !rec.Enabled && !in.Enable {
		if err := s.recordAttempt(ctx, clm.UserID, false, entity.MethodUnknown, in.IPAddress, in.UserAgent); err != nil {
			return nil, err
		}
		slog.WarnContext(ctx, "two-factor verify against pending configuration", "user_id", clm.UserID)
		return nil, goerror.NewBusinessError(entity.ErrNotSetUp,
			"Two-factor authentication is not set up", goerror.CodeNotFound)
	}

	method := classifyCode(in.Code)

	var matched bool
	switch method {
	case entity.MethodTOTP:
		matched, err = s.verifyTOTP(ctx, rec, in.Code)
	case entity.MethodBackupCode:
		matched, err = s.verifyBackupCode(ctx, rec, in.Code)
	default:
		// Unrecognized shape: fail without touching either primitive.
		matched, err = false, nil
	}
	if err != nil {
		return nil, err
	}

	if err := s.recordAttempt(ctx, clm.UserID, matched, method, in.IPAddress, in.UserAgent); err != nil {
		return nil, err
	}

	if !matched {
		return nil, goerror.NewBusinessError(entity.ErrInvalidCode,
			"Invalid two-factor code", goerror.CodeInvalidInput)
	}

	out := &VerifyOutput{Success: true, UsedBackupCode: method == entity.MethodBackupCode}
	now := s.clock.Now()

	if in.Enable && !rec.Enabled {
		flipped, err := s.repoDB.EnableRecord(ctx, clm.UserID, now)
		if err != nil {
			slog.ErrorContext(ctx, "failed to enable two-factor record", "user_id", clm.UserID, "error", err)
			return nil, storeError(err)
		}

		// Under concurrent enables exactly one call reports the flip;
		// the losers still verified successfully.
		out.Enabled = flipped
		if flipped {
			s.publishEnabled(ctx, TwoFactorEnabledEvent{
				UserID:    clm.UserID,
				Method:    rec.Method,
				EnabledAt: now,
			})
		}

		return out, nil
	}

	// Backup consumption already stamps last_used_at in the same write.
	if method == entity.MethodTOTP {
		if err := s.repoDB.TouchLastUsed(ctx, clm.UserID, now); err != nil {
			slog.ErrorContext(ctx, "failed to touch two-factor last used", "user_id", clm.UserID, "error", err)
			return nil, storeError(err)
		}
	}

	return out, nil
}

func (s *Usecase) verifyTOTP(ctx context.Context, rec *entity.TwoFactorRecord, code string) (bool, error) {
	secret, err := s.mfaEncryptor.Decrypt(rec.SecretCiphertext, mfa.Scope{
		UserID:  rec.UserID,
		Purpose: mfa.PurposeOTPSeed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to decrypt totp secret", "user_id", rec.UserID, "error", err)
		return false, goerror.NewServer(err)
	}

	ok, err := s.totp.Validate(code, string(secret), s.clock.Now())
	if errors.Is(err, totp.ErrInvalidSecret) {
		slog.ErrorContext(ctx, "stored totp secret is not decodable", "user_id", rec.UserID)
		return false, goerror.NewServer(errors.Join(entity.ErrInvalidSecret, err))
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to validate totp code", "user_id", rec.UserID, "error", err)
		return false, goerror.NewServer(err)
	}

	return ok, nil
}

func (s *Usecase) verifyBackupCode(ctx context.Context, rec *entity.TwoFactorRecord, code string) (bool, error) {
	hashed, err := s.sha256.Hash(strings.ToUpper(code))
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash submitted backup code", "user_id", rec.UserID, "error", err)
		return false, goerror.NewServer(err)
	}

	// Consumption is a single conditional write, so two concurrent uses of
	// the same code cannot both succeed.
	consumed, err := s.repoDB.ConsumeBackupCode(ctx, rec.UserID, string(hashed), s.clock.Now())
	if err != nil {
		slog.ErrorContext(ctx, "failed to consume backup code", "user_id", rec.UserID, "error", err)
		return false, storeError(err)
	}

	return consumed, nil
}

func (s *Usecase) publishEnabled(ctx context.Context, msg TwoFactorEnabledEvent) {
	s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoMessaging.PublishTwoFactorEnabled(ctx, msg); err != nil {
			slog.WarnContext(ctx, "failed to publish two-factor enabled event", "user_id", msg.UserID, "error", err)
		}
		return nil
	})
}

// classifyCode routes a submitted code by shape: exactly six digits is a
// TOTP code, exactly eight hex characters is a backup code, anything else
// matches nothing.
func classifyCode(code string) entity.Method {
	switch {
	case len(code) == 6 && isDigits(code):
		return entity.MethodTOTP
	case len(code) == 8 && isHex(code):
		return entity.MethodBackupCode
	default:
		return entity.MethodUnknown
	}
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
