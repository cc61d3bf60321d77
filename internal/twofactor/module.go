package twofactor

import (
	"github.com/gardawira/twofa/internal/pkg/clock"
	"github.com/gardawira/twofa/internal/pkg/config"
	"github.com/gardawira/twofa/internal/pkg/goroutine"
	"github.com/gardawira/twofa/internal/pkg/hash"
	"github.com/gardawira/twofa/internal/pkg/idempotency"
	"github.com/gardawira/twofa/internal/pkg/instrument"
	"github.com/gardawira/twofa/internal/pkg/messaging"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/pkg/router"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/pkg/uid"
	"github.com/gardawira/twofa/internal/pkg/validator"
	"github.com/gardawira/twofa/internal/twofactor/inbound"
	"github.com/gardawira/twofa/internal/twofactor/outbound/db"
	"github.com/gardawira/twofa/internal/twofactor/outbound/mq"
	"github.com/gardawira/twofa/internal/twofactor/usecase"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Dependency struct {
	DBConn        *pgxpool.Pool              `validate:"required"`
	Goroutine     *goroutine.Manager         `validate:"required"`
	Router        *router.Router             `validate:"required"`
	Idempotency   idempotency.Idempotency    `validate:"required"`
	Messaging     messaging.Messaging        `validate:"required"`
	Config        config.Config              `validate:"required"`
	Instrument    instrument.Instrumentation `validate:"required"`
	UID           uid.NumberID               `validate:"required"`
	SHA256        hash.Hash                  `validate:"required"`
	MFAEncryptor  mfa.Encryptor              `validate:"required"`
	MFABackupCode mfa.BackupCodeGenerator    `validate:"required"`
	Clock         clock.Clocker              `validate:"required"`
	Totp          totp.OTP                   `validate:"required"`
	Validator     validator.Validator        `validate:"required"`
}

func New(dep Dependency) error {
	if err := dep.Validator.Validate(dep); err != nil {
		return err
	}

	repo := db.NewDB(dep.DBConn, dep.Instrument)
	repoMsg := mq.NewMessaging(dep.Messaging, dep.Instrument)

	uc := usecase.New(usecase.Dependency{
		RepoDB:        repo,
		RepoMessaging: repoMsg,
		Idempotency:   dep.Idempotency,
		Validator:     dep.Validator,
		Config:        dep.Config,
		SHA256:        dep.SHA256,
		MFAEncryptor:  dep.MFAEncryptor,
		MFABackupCode: dep.MFABackupCode,
		UID:           dep.UID,
		Totp:          dep.Totp,
		Clock:         dep.Clock,
		Instrument:    dep.Instrument,
		Goroutine:     dep.Goroutine,
	})

	inbound.RegisterHTTPEndpoint(dep.Router, uc)

	return nil
}
