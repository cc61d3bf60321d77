package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/twofactor/entity"
	"github.com/samber/lo"
)

type AttemptsInput struct {
	Limit int32 `validate:"min=0,max=100"`
}

type AttemptData struct {
	ID        int64
	Success   bool
	Method    entity.Method
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

type AttemptsOutput struct {
	Attempts []AttemptData
}

const defaultAttemptsLimit int32 = 20

// Attempts lists the user's most recent verification attempts, newest first.
func (s *Usecase) Attempts(ctx context.Context, in AttemptsInput) (*AttemptsOutput, error) {
	ctx, span := s.startSpan(ctx, "Attempts")
	defer span.End()

	if err := s.validator.Validate(in); err != nil {
		return nil, goerror.NewInvalidInput(err)
	}

	clm, err := s.authenticated(ctx)
	if err != nil {
		return nil, err
	}

	limit := in.Limit
	if limit == 0 {
		limit = defaultAttemptsLimit
	}

	attempts, err := s.repoDB.ListAttempts(ctx, clm.UserID, limit)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo list verification attempts", "user_id", clm.UserID, "error", err)
		return nil, storeError(err)
	}

	return &AttemptsOutput{
		Attempts: lo.Map(attempts, func(att entity.Attempt, _ int) AttemptData {
			return AttemptData{
				ID:        att.ID,
				Success:   att.Success,
				Method:    att.Method.Ensure(),
				IPAddress: att.IPAddress,
				UserAgent: att.UserAgent,
				CreatedAt: att.CreatedAt,
			}
		}),
	}, nil
}
