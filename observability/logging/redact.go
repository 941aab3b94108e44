package logging

import (
	"log/slog"
	"sort"
	"strings"
)

// RedactedValue replaces masked log values.
const RedactedValue = "[REDACTED]"

// Keys bankd logs in the clear. Addresses and position ids are public
// protocol state; tokens, passphrases and key material are not.
var clearKeys = map[string]struct{}{
	"service":   {},
	"env":       {},
	"component": {},
	"error":     {},
	"reason":    {},
	"tx":        {},
	"method":    {},
	"account":   {},
	"caller":    {},
	"vault":     {},
	"position":  {},
}

// IsAllowlisted reports whether key may be logged without masking.
func IsAllowlisted(key string) bool {
	_, ok := clearKeys[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// RedactionAllowlist returns the clear keys in sorted order.
func RedactionAllowlist() []string {
	keys := make([]string, 0, len(clearKeys))
	for key := range clearKeys {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// MaskValue hides non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return RedactedValue
}

// MaskField builds an attribute that is masked unless key is allowlisted.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}
