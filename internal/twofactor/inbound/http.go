package inbound

import (
	"context"

	"github.com/gardawira/twofa/internal/pkg/router"
	"github.com/gardawira/twofa/internal/twofactor/usecase"
)

type uc interface {
	Setup(ctx context.Context) (*usecase.SetupOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) (*usecase.VerifyOutput, error)
	Disable(ctx context.Context) (*usecase.DisableOutput, error)

	Status(ctx context.Context) (*usecase.StatusOutput, error)
	Attempts(ctx context.Context, in usecase.AttemptsInput) (*usecase.AttemptsOutput, error)
}

func RegisterHTTPEndpoint(r *router.Router, uc uc) {
	end := &HTTPEndpoint{uc: uc}

	// All endpoints need an authenticated user.
	r.POST("/api/v1/twofactor/setup", end.Setup)
	r.POST("/api/v1/twofactor/verify", end.Verify)
	r.DELETE("/api/v1/twofactor", end.Disable)

	r.GET("/api/v1/twofactor", end.Status)
	r.GET("/api/v1/twofactor/attempts", end.Attempts)
}
