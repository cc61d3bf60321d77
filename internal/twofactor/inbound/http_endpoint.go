package inbound

import (
	"github.com/gardawira/twofa/internal/pkg/router"
	"github.com/gardawira/twofa/internal/twofactor/usecase"
	"github.com/samber/lo"
)

// HTTPEndpoint exposes HTTP handlers for the two-factor workflows.
type HTTPEndpoint struct {
	uc uc
}

// Setup provisions a new two-factor configuration.
// @Summary Set up two-factor authentication
// @Description Generates a new secret, provisioning URI, and backup codes. These values are returned exactly once.
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=SetupResponse} "Setup result"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 409 {object} router.errorResponse "Already enabled"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/setup [post]
func (h *HTTPEndpoint) Setup(r *router.Request) (any, error) {
	resp, err := h.uc.Setup(r.Context())
	if err != nil {
		return nil, err
	}

	return SetupResponse{
		Secret:      resp.Secret,
		URI:         resp.URI,
		BackupCodes: resp.BackupCodes,
	}, nil
}

// Verify checks a TOTP or backup code, optionally enabling the configuration.
// @Summary Verify a two-factor code
// @Description Validates a 6-digit TOTP code or an 8-character backup code. Set enable=true to confirm a pending setup.
// @Tags TwoFactor
// @Security BearerAuth
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verification payload"
// @Success 200 {object} router.successResponse{data=VerifyResponse} "Verification result"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 404 {object} router.errorResponse "Not set up"
// @Failure 422 {object} router.errorResponse "Invalid code"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req); err != nil {
		return nil, err
	}

	resp, err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Code:      req.Code,
		Enable:    req.Enable,
		IPAddress: r.RemoteAddr,
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{
		Success:        resp.Success,
		Enabled:        resp.Enabled,
		UsedBackupCode: resp.UsedBackupCode,
	}, nil
}

// Disable removes the two-factor configuration.
// @Summary Disable two-factor authentication
// @Description Deletes the configuration unconditionally. Verification attempts are kept.
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse "Disabled"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor [delete]
func (h *HTTPEndpoint) Disable(r *router.Request) (any, error) {
	if _, err := h.uc.Disable(r.Context()); err != nil {
		return nil, err
	}

	return DisableResponse{}, nil
}

// Status reports the current two-factor state.
// @Summary Two-factor status
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Success 200 {object} router.successResponse{data=StatusResponse} "Status"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor [get]
func (h *HTTPEndpoint) Status(r *router.Request) (any, error) {
	resp, err := h.uc.Status(r.Context())
	if err != nil {
		return nil, err
	}

	out := StatusResponse{
		Configured:           resp.Configured,
		Enabled:              resp.Enabled,
		Verified:             resp.Verified,
		BackupCodesRemaining: resp.BackupCodesRemaining,
		EnabledAt:            resp.EnabledAt,
		LastUsedAt:           resp.LastUsedAt,
	}
	if resp.Configured {
		out.Method = resp.Method.String()
	}

	return out, nil
}

// Attempts lists recent verification attempts for the current user.
// @Summary List verification attempts
// @Tags TwoFactor
// @Security BearerAuth
// @Produce json
// @Param limit query int false "Max rows to return (default 20, max 100)"
// @Success 200 {object} router.successResponse{data=AttemptsResponse} "Attempts"
// @Failure 401 {object} router.errorResponse "Unauthorized"
// @Failure 500 {object} router.errorResponse "Internal server error"
// @Router /api/v1/twofactor/attempts [get]
func (h *HTTPEndpoint) Attempts(r *router.Request) (any, error) {
	limit, err := r.GetQueryInt32("limit")
	if err != nil {
		return nil, err
	}

	resp, err := h.uc.Attempts(r.Context(), usecase.AttemptsInput{Limit: limit})
	if err != nil {
		return nil, err
	}

	return AttemptsResponse{
		Attempts: lo.Map(resp.Attempts, func(att usecase.AttemptData, _ int) AttemptResponse {
			return AttemptResponse{
				ID:        att.ID,
				Success:   att.Success,
				Method:    att.Method.String(),
				IPAddress: att.IPAddress,
				UserAgent: att.UserAgent,
				CreatedAt: att.CreatedAt,
			}
		}),
	}, nil
}
