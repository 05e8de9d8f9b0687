package logger

import (
	"log/slog"
	"strings"

	"github.com/yndnr/chathub-go/internal/core/domain"
)

// Redacted replaces the value of a sensitive attribute.
const Redacted = "[REDACTED]"

// sensitiveWords are matched against the underscore separated words of an
// attribute key, so "password_hash" matches and "author" does not.
var sensitiveWords = map[string]bool{
	"password":      true,
	"passphrase":    true,
	"secret":        true,
	"token":         true,
	"credential":    true,
	"credentials":   true,
	"auth":          true,
	"authorization": true,
	"bearer":        true,
	"cookie":        true,
	"apikey":        true,
}

// redact is the ReplaceAttr hook of every handler built by New.
func redact(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	v := a.Value.String()
	if strings.HasPrefix(v, domain.SessionTokenPrefix) {
		return slog.String(a.Key, MaskToken(v))
	}
	if v != "" && SensitiveKey(a.Key) {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// MaskToken keeps the prefix and the first four body characters of a
// session token. Other strings are returned unchanged.
func MaskToken(v string) string {
	body, ok := strings.CutPrefix(v, domain.SessionTokenPrefix)
	if !ok {
		return v
	}
	if len(body) <= 8 {
		return domain.SessionTokenPrefix + "****"
	}
	return domain.SessionTokenPrefix + body[:4] + "****"
}

// SensitiveKey reports whether an attribute key names secret material.
// Keys ending in "key" (access_key, secret_key) count as well.
func SensitiveKey(key string) bool {
	k := strings.ToLower(key)
	k = strings.NewReplacer("-", "_", ".", "_").Replace(k)
	for _, w := range strings.Split(k, "_") {
		if sensitiveWords[w] {
			return true
		}
	}
	return k == "key" || strings.HasSuffix(k, "_key")
}
