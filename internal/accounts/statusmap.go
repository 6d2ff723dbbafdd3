package accounts

import (
	"strings"

	"outreach_backend/platform/logger"
)

// MapProviderStatus translates a gateway status token into an internal
// account status. Unknown tokens default to active so a new gateway token
// never quarantines a working account; they are logged for follow-up.
func MapProviderStatus(token string, log *logger.Logger) string {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "OK", "CONNECTED", "ACTIVE":
		return StatusActive
	case "CONNECTING", "SYNCING", "SYNC_SUCCESS", "RECONNECTING":
		return StatusConnecting
	case "CREDENTIALS", "DISCONNECTED", "PERMISSIONS", "INVALID_CREDENTIALS":
		return StatusCredentialsExpired
	case "CHECKPOINT", "CAPTCHA", "2FA", "OTP", "IN_APP_VALIDATION":
		return StatusCredentialsExpired
	case "STOPPED", "PAUSED":
		return StatusStopped
	case "DELETED", "REVOKED":
		return StatusInactive
	case "ERROR":
		return StatusError
	default:
		if log != nil {
			log.Warn("unknown provider account status token", "token", token)
		}
		return StatusActive
	}
}

// NeedsReconnectFor reports whether the internal status requires the user
// to re-authenticate the account.
func NeedsReconnectFor(status string) bool {
	return status == StatusCredentialsExpired
}
