package usecase

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gardawira/twofa/internal/pkg/clock"
	"github.com/gardawira/twofa/internal/pkg/config"
	"github.com/gardawira/twofa/internal/pkg/goerror"
	"github.com/gardawira/twofa/internal/pkg/goroutine"
	"github.com/gardawira/twofa/internal/pkg/hash"
	"github.com/gardawira/twofa/internal/pkg/idempotency"
	"github.com/gardawira/twofa/internal/pkg/instrument"
	"github.com/gardawira/twofa/internal/pkg/jwt"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/pkg/uid"
	"github.com/gardawira/twofa/internal/pkg/validator"
	"github.com/gardawira/twofa/internal/twofactor/entity"
	"go.opentelemetry.io/otel/trace"
)

type TwoFactorEnabledEvent struct {
	UserID    int64
	Method    entity.Method
	EnabledAt time.Time
}

type TwoFactorDisabledEvent struct {
	UserID     int64
	DisabledAt time.Time
}

type repoMessaging interface {
	PublishTwoFactorEnabled(ctx context.Context, msg TwoFactorEnabledEvent) error
	PublishTwoFactorDisabled(ctx context.Context, msg TwoFactorDisabledEvent) error
}

type repoDB interface {
	GetRecord(ctx context.Context, userID int64) (*entity.TwoFactorRecord, error)
	ListAttempts(ctx context.Context, userID int64, limit int32) ([]entity.Attempt, error)

	UpsertPendingRecord(ctx context.Context, rec entity.TwoFactorRecord) error
	EnableRecord(ctx context.Context, userID int64, at time.Time) (bool, error)
	ConsumeBackupCode(ctx context.Context, userID int64, codeHash string, at time.Time) (bool, error)
	TouchLastUsed(ctx context.Context, userID int64, at time.Time) error
	AppendAttempt(ctx context.Context, att entity.Attempt) error

	DeleteRecord(ctx context.Context, userID int64) (bool, error)
}

type Usecase struct {
	repoDB        repoDB
	repoMessaging repoMessaging
	idemp         idempotency.Idempotency
	validator     validator.Validator
	cfg           config.Config
	sha256        hash.Hash
	mfaEncryptor  mfa.Encryptor
	mfaBackupCode mfa.BackupCodeGenerator
	uid           uid.NumberID
	totp          totp.OTP
	clock         clock.Clocker
	ins           instrument.Instrumentation
	goroutine     *goroutine.Manager
}

type Dependency struct {
	RepoDB        repoDB
	RepoMessaging repoMessaging
	Idempotency   idempotency.Idempotency
	Validator     validator.Validator
	Config        config.Config
	SHA256        hash.Hash
	MFAEncryptor  mfa.Encryptor
	MFABackupCode mfa.BackupCodeGenerator
	UID           uid.NumberID
	Totp          totp.OTP
	Clock         clock.Clocker
	Instrument    instrument.Instrumentation
	Goroutine     *goroutine.Manager
}

func New(dep Dependency) *Usecase {
	return &Usecase{
		repoDB:        dep.RepoDB,
		repoMessaging: dep.RepoMessaging,
		idemp:         dep.Idempotency,
		validator:     dep.Validator,
		cfg:           dep.Config,
		sha256:        dep.SHA256,
		mfaEncryptor:  dep.MFAEncryptor,
		mfaBackupCode: dep.MFABackupCode,
		uid:           dep.UID,
		totp:          dep.Totp,
		clock:         dep.Clock,
		ins:           dep.Instrument,
		goroutine:     dep.Goroutine,
	}
}

func (s *Usecase) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.ins.Tracer("twofactor.usecase").Start(ctx, name)
}

func (s *Usecase) authenticated(ctx context.Context) (*jwt.Claims, error) {
	clm := jwt.GetAuth(ctx)
	if clm == nil {
		return nil, goerror.NewBusiness("authentication required", goerror.CodeUnauthorized)
	}
	return clm, nil
}

// storeError maps record-store failures onto the transport taxonomy,
// keeping outage errors distinguishable from plain server bugs.
func storeError(err error) error {
	if errors.Is(err, goerror.ErrUnavailable) {
		return goerror.NewUnavailable(err)
	}
	return goerror.NewServer(err)
}

// recordAttempt writes one audit row. Attempts are part of the operation's
// contract, so a write failure fails the verification itself.
func (s *Usecase) recordAttempt(ctx context.Context, userID int64, success bool, method entity.Method, ip, userAgent string) error {
	att := entity.Attempt{
		ID:        s.uid.Generate(),
		UserID:    userID,
		Success:   success,
		Method:    method,
		IPAddress: ip,
		UserAgent: userAgent,
		CreatedAt: s.clock.Now(),
	}

	if err := s.repoDB.AppendAttempt(ctx, att); err != nil {
		slog.ErrorContext(ctx, "failed to append verification attempt", "user_id", userID, "error", err)
		return storeError(err)
	}

	return nil
}
