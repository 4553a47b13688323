package logging

import (
	"log/slog"
	"net/url"
	"regexp"
	"strings"
)

// Redactor masks credentials in log attributes. It is installed as the
// ReplaceAttr hook of the slog handler, so it sees every attribute
// including those added with Logger.With.
type Redactor struct {
	keys map[string]struct{}
}

// Masked is the replacement of a sensitive value.
const Masked = "***"

// sensitiveKeys are always masked. Matching is case-insensitive on the
// attribute key.
var sensitiveKeys = []string{
	"token",
	"password",
	"passwd",
	"secret",
	"authorization",
	"api_key",
}

// urlKeys hold connection strings whose userinfo is masked while the host
// stays visible.
var urlKeys = map[string]struct{}{
	"store_url": {},
	"url":       {},
	"endpoint":  {},
}

var bearerPattern = regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9\-._~+/]+=*`)

// NewRedactor creates a Redactor masking the built-in credential keys plus
// extraKeys.
func NewRedactor(extraKeys []string) *Redactor {
	r := &Redactor{keys: make(map[string]struct{}, len(sensitiveKeys)+len(extraKeys))}
	for _, k := range sensitiveKeys {
		r.keys[k] = struct{}{}
	}
	for _, k := range extraKeys {
		if k = strings.ToLower(strings.TrimSpace(k)); k != "" {
			r.keys[k] = struct{}{}
		}
	}
	return r
}

// ReplaceAttr implements slog.HandlerOptions.ReplaceAttr.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() == slog.KindGroup {
		return a
	}

	key := strings.ToLower(a.Key)
	if r.isSensitiveKey(key) {
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, Masked)
	}

	if a.Value.Kind() != slog.KindString {
		return a
	}

	value := a.Value.String()
	if _, ok := urlKeys[key]; ok {
		return slog.String(a.Key, RedactURL(value))
	}
	if bearerPattern.MatchString(value) {
		return slog.String(a.Key, bearerPattern.ReplaceAllString(value, "Bearer "+Masked))
	}
	return a
}

// isSensitiveKey checks if a key name indicates a credential. Keys listed
// exactly or ending in one of the listed names ("webhook_token") match.
func (r *Redactor) isSensitiveKey(key string) bool {
	if _, ok := r.keys[key]; ok {
		return true
	}
	for k := range r.keys {
		if strings.HasSuffix(key, "_"+k) {
			return true
		}
	}
	return false
}

// RedactURL masks the password of a connection URL
// (redis://:secret@host:6379/0 becomes redis://:***@host:6379/0).
// Values that do not parse as URLs with userinfo are returned unchanged.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		u.User = url.UserPassword(u.User.Username(), Masked)
	} else if u.User.Username() != "" {
		u.User = url.User(Masked)
	}
	// url.String escapes "*" in userinfo; undo it for readability
	return strings.ReplaceAll(u.String(), "%2A", "*")
}
