package app

import (
	"context"
	"net/http"

	"github.com/gardawira/twofa/internal/pkg/clock"
	"github.com/gardawira/twofa/internal/pkg/config"
	"github.com/gardawira/twofa/internal/pkg/goroutine"
	"github.com/gardawira/twofa/internal/pkg/hash"
	"github.com/gardawira/twofa/internal/pkg/idempotency"
	"github.com/gardawira/twofa/internal/pkg/instrument"
	"github.com/gardawira/twofa/internal/pkg/jwt"
	"github.com/gardawira/twofa/internal/pkg/messaging"
	"github.com/gardawira/twofa/internal/pkg/mfa"
	"github.com/gardawira/twofa/internal/pkg/router"
	"github.com/gardawira/twofa/internal/pkg/totp"
	"github.com/gardawira/twofa/internal/pkg/uid"
	"github.com/gardawira/twofa/internal/pkg/validator"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// App wires dependencies and manages service lifecycle.
type App struct {
	ctx    context.Context
	cancel context.CancelFunc

	// configuration
	config config.Config
	ins    instrument.Instrumentation

	// libraries
	goroutine     *goroutine.Manager
	validator     validator.Validator
	clock         clock.Clocker
	sha256        hash.Hash
	uid           uid.NumberID
	uuid          uid.StringID
	totp          totp.OTP
	jwt           jwt.JWT
	mfaEncryptor  mfa.Encryptor
	mfaBackupCode mfa.BackupCodeGenerator

	// resources
	dbConn    *pgxpool.Pool
	cacheConn *redis.Client
	idemp     idempotency.Idempotency
	messaging messaging.Messaging

	// server
	router     *router.Router
	httpServer *http.Server

	//
	closers []struct {
		name string
		fn   func(context.Context) error
	}
}

// New initializes the application with default wiring and returns an App instance.
func New() *App {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		ctx:    ctx,
		cancel: cancel,
	}

	app.initConfig()
	app.initInstrument()
	app.initLibraries()
	app.initJWT()
	app.initDatabase()
	app.initCache()
	app.initMessaging()
	app.initHTTPServer()
	app.initModules()
	app.initClosers()

	return app
}
