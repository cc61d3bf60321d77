package app

import (
	"log/slog"
	"os"

	"github.com/gardawira/twofa/internal/twofactor"
)

func (a *App) initModules() {
	if a.config.GetBool("modules.twofactor.enabled") {
		if err := twofactor.New(twofactor.Dependency{
			DBConn:        a.dbConn,
			Goroutine:     a.goroutine,
			Router:        a.router,
			Idempotency:   a.idemp,
			Messaging:     a.messaging,
			Config:        a.config,
			Instrument:    a.ins,
			UID:           a.uid,
			SHA256:        a.sha256,
			MFAEncryptor:  a.mfaEncryptor,
			MFABackupCode: a.mfaBackupCode,
			Clock:         a.clock,
			Totp:          a.totp,
			Validator:     a.validator,
		}); err != nil {
			slog.Error("failed to init module twofactor", "error", err)
			os.Exit(1)
		}
	}
}
