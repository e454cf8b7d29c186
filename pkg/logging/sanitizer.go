package logging

import (
	"regexp"
)

// RedactedText is the replacement text for sensitive data
const RedactedText = "[REDACTED]"

var (
	// Matches password=xxx, pwd=xxx, pass=xxx in key/value DSNs and
	// sqlserver query strings, including single-quoted values.
	passwordPattern = regexp.MustCompile(`(?i)\b(password|pwd|pass)=('[^']*'|[^;&\s]+)`)

	// Matches the userinfo of postgres:// and sqlserver:// URLs. The password
	// may itself contain '@', so the match runs to the last '@' before the host.
	userInfoPattern = regexp.MustCompile(`://[^:/@\s]+:\S*@`)
)

// SanitizeConnectionString removes credentials from a warehouse or staging
// connection string. The host and database stay visible.
// Use this before logging any connection string
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}

	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	sanitized = userInfoPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@")

	return sanitized
}

// SanitizeError sanitizes error messages that might contain sensitive data
// Use this before logging any error from a driver or source connection
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeConnectionString(err.Error())
}
