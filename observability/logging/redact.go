package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue is the canonical placeholder used for sensitive fields in logs.
const RedactedValue = "[REDACTED]"

var redactionAllowlist = map[string]struct{}{
	"service":   {},
	"env":       {},
	"message":   {},
	"severity":  {},
	"timestamp": {},
	"error":     {},
	"component": {},
	"op":        {},
	"code":      {},
	"caller":    {},
	"vault_id":  {},
	"listen":    {},
	"backend":   {},
}

// IsAllowlisted reports whether key may be logged verbatim.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskField returns an attribute that hides value unless key is allowlisted.
// Empty values pass through so missing secrets remain visible as such.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// MaskDSN hides the credentials of a database connection string while
// keeping the host visible.
func MaskDSN(dsn string) string {
	scheme, rest, found := strings.Cut(dsn, "://")
	if !found {
		if strings.Contains(dsn, "password=") {
			fields := strings.Fields(dsn)
			for i, field := range fields {
				if strings.HasPrefix(field, "password=") {
					fields[i] = "password=" + RedactedValue
				}
			}
			return strings.Join(fields, " ")
		}
		return dsn
	}
	creds, host, hasCreds := strings.Cut(rest, "@")
	if !hasCreds {
		return dsn
	}
	user, _, _ := strings.Cut(creds, ":")
	return scheme + "://" + user + ":" + RedactedValue + "@" + host
}
