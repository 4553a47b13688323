package status

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strings"
)

var (
	errNoAPIKey      = errors.New("no API key found")
	errInvalidAPIKey = errors.New("invalid API key")
)

// APIKeySource names a request header that may carry an API key.
type APIKeySource struct {
	Header string
	Scheme string // "Bearer", etc. (optional)
}

// DefaultAPIKeySources accepts "Authorization: Bearer <key>" and
// "X-API-Key: <key>".
var DefaultAPIKeySources = []APIKeySource{
	{Header: "Authorization", Scheme: "Bearer"},
	{Header: "X-API-Key"},
}

// APIKeyValidator validates API keys against a fixed set of keys.
type APIKeyValidator struct {
	keys [][]byte
}

// NewAPIKeyValidator creates a validator for keys. Empty keys are ignored.
func NewAPIKeyValidator(keys []string) *APIKeyValidator {
	v := &APIKeyValidator{}
	for _, key := range keys {
		if key = strings.TrimSpace(key); key != "" {
			v.keys = append(v.keys, []byte(key))
		}
	}
	return v
}

// Enabled reports whether any key is configured.
func (v *APIKeyValidator) Enabled() bool {
	return len(v.keys) > 0
}

// Validate checks key against every configured key in constant time.
func (v *APIKeyValidator) Validate(key string) error {
	presented := []byte(key)
	match := 0
	for _, k := range v.keys {
		match |= subtle.ConstantTimeCompare(presented, k)
	}
	if match != 1 {
		return errInvalidAPIKey
	}
	return nil
}

// APIKeyMiddleware rejects requests without a valid API key. Without
// configured keys every request is refused with 403.
func APIKeyMiddleware(validator *APIKeyValidator, sources []APIKeySource, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !validator.Enabled() {
				logger.WarnContext(r.Context(), "request refused, no API key configured",
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				writeError(w, http.StatusForbidden, "endpoint disabled: no API key configured")
				return
			}

			apiKey, err := extractAPIKey(r, sources)
			if err == nil {
				err = validator.Validate(apiKey)
			}
			if err != nil {
				logger.WarnContext(r.Context(), "request rejected",
					"error", err,
					"remote_addr", r.RemoteAddr,
					"path", r.URL.Path)
				w.Header().Set("WWW-Authenticate", `Bearer realm="sentinel"`)
				writeError(w, http.StatusUnauthorized, "missing or invalid API key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractAPIKey returns the first key found in sources.
func extractAPIKey(r *http.Request, sources []APIKeySource) (string, error) {
	for _, source := range sources {
		value := strings.TrimSpace(r.Header.Get(source.Header))
		if value == "" {
			continue
		}
		if source.Scheme == "" {
			return value, nil
		}
		// Scheme names are case-insensitive
		prefix := source.Scheme + " "
		if len(value) > len(prefix) && strings.EqualFold(value[:len(prefix)], prefix) {
			return strings.TrimSpace(value[len(prefix):]), nil
		}
	}
	return "", errNoAPIKey
}
