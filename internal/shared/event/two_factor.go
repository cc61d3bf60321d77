package event

const TwoFactorEnabledDestination string = "two_factor_enabled"

type TwoFactorEnabledMessage struct {
	UserID    int64  `json:"user_id"`
	Method    string `json:"method"`
	EnabledAt int64  `json:"enabled_at"`
}

const TwoFactorDisabledDestination string = "two_factor_disabled"

type TwoFactorDisabledMessage struct {
	UserID     int64 `json:"user_id"`
	DisabledAt int64 `json:"disabled_at"`
}
