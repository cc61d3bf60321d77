package usecase

import (
	"context"
	"log/slog"
)

type DisableOutput struct {
	Deleted bool
}

// Disable removes the user's two-factor configuration unconditionally.
// Calling it without a configuration is not an error, and audit rows are
// always kept.
func (s *Usecase) Disable(ctx context.Context) (*DisableOutput, error) {
	ctx, span := s.startSpan(ctx, "Disable")
	defer span.End()

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	deleted, err := s.repoDB.DeleteRecord(ctx, clm.UserID)
	if err != nil {
		slog.ErrorContext(ctx, "failed to delete two-factor record", "user_id", clm.UserID, "error", err)
		return nil, storeError(err)
	}

	if deleted {
		s.publishDisabled(ctx, TwoFactorDisabledEvent{
			UserID:     clm.UserID,
			DisabledAt: s.clock.Now(),
		})
	}

	return &DisableOutput{Deleted: deleted}, nil
}

func (s *Usecase) publishDisabled(ctx context.Context, msg TwoFactorDisabledEvent) {
	s.goroutine.Go(ctx, func(ctx context.Context) error {
		if err := s.repoMessaging.PublishTwoFactorDisabled(ctx, msg); err != nil {
			slog.WarnContext(ctx, "failed to publish two-factor disabled event", "user_id", msg.UserID, "error", err)
		}
		return nil
	})
}
