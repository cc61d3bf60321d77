package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/twofactor/entity"
)

type StatusOutput struct {
	Configured           bool
	Enabled              bool
	Verified             bool
	Method               entity.Method
	BackupCodesRemaining int
	EnabledAt            *time.Time
	LastUsedAt           *time.Time
}

// Status reports the user's two-factor state without exposing any secret
// material. An unconfigured user gets a zero-valued status, not an error.
func (s *Usecase) Status(ctx context.Context) (*StatusOutput, error) {
	ctx, span := s.startSpan(ctx, "Status")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	rec, err := s.repoDB.GetRecord(ctx, clm.UserID)
	if errors.Is(err, goerror.ErrNotFound) {
		return &StatusOutput{}, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get two-factor record", "user_id", clm.UserID, "error", err)
		return nil, storeError(err)
	}

	return &StatusOutput{
		Configured:           true,
		Enabled:              rec.Enabled,
		Verified:             rec.Verified,
		Method:               rec.Method.Ensure(),
		BackupCodesRemaining: len(rec.BackupCodeHashes),
		EnabledAt:            rec.EnabledAt,
		LastUsedAt:           rec.LastUsedAt,
	}, nil
}
