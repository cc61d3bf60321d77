package inbound

import "time"

type SetupResponse struct {
	Secret      string   `json:"secret"`
	URI         string   `json:"uri"`
	BackupCodes []string `json:"backup_codes"`
}

type VerifyRequest struct {
	Code   string `json:"code"`
	Enable bool   `json:"enable"`
}

type VerifyResponse struct {
	Success        bool `json:"success"`
	Enabled        bool `json:"enabled,omitempty"`
	UsedBackupCode bool `json:"used_backup_code,omitempty"`
}

type DisableResponse struct{}

func (DisableResponse) Message() string {
	return "Two-factor authentication has been disabled."
}

type StatusResponse struct {
	Configured           bool       `json:"configured"`
	Enabled              bool       `json:"enabled"`
	Verified             bool       `json:"verified"`
	Method               string     `json:"method,omitempty"`
	BackupCodesRemaining int        `json:"backup_codes_remaining"`
	EnabledAt            *time.Time `json:"enabled_at,omitempty"`
	LastUsedAt           *time.Time `json:"last_used_at,omitempty"`
}

type AttemptResponse struct {
	ID        int64     `json:"id,string"`
	Success   bool      `json:"success"`
	Method    string    `json:"method"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	CreatedAt time.Time `json:"created_at"`
}

type AttemptsResponse struct {
	Attempts []AttemptResponse `json:"attempts"`
}
