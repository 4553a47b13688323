package environment

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
)

// Kind identifies the deployment environment a process runs in.
type Kind string

const (
	// KindProduction is the live environment. It is the only kind with an
	// empty key prefix.
	KindProduction Kind = "production"

	// KindPreview is a per-change-request preview deployment.
	KindPreview Kind = "preview"

	// KindDevelopment is a process run from a developer machine.
	KindDevelopment Kind = "development"

	// KindTest is an automated test run.
	KindTest Kind = "test"
)

// Environment variables read by Resolve.
const (
	EnvApp               = "SENTINEL_ENV"
	EnvPlatform          = "SENTINEL_PLATFORM_ENV"
	EnvChangeRequestID   = "SENTINEL_CHANGE_REQUEST_ID"
	EnvGitBranch         = "SENTINEL_GIT_BRANCH"
	EnvTestRunID         = "SENTINEL_TEST_RUN_ID"
	EnvAllowSharedStore  = "SENTINEL_ALLOW_SHARED_STORE"
	EnvStoreURL          = "SENTINEL_STORE_URL"
	EnvStoreToken        = "SENTINEL_STORE_TOKEN"
	EnvPreviewStoreURL   = "SENTINEL_PREVIEW_STORE_URL"
	EnvPreviewStoreToken = "SENTINEL_PREVIEW_STORE_TOKEN"
	EnvDevStoreURL       = "SENTINEL_DEV_STORE_URL"
	EnvDevStoreToken     = "SENTINEL_DEV_STORE_TOKEN"
	EnvTestStoreURL      = "SENTINEL_TEST_STORE_URL"
	EnvTestStoreToken    = "SENTINEL_TEST_STORE_TOKEN"
)

// maxIdentifierLength bounds the identifier embedded in key prefixes.
const maxIdentifierLength = 64

// ErrEmptyPrefix is returned by Validate for a non-production context
// without a key prefix.
var ErrEmptyPrefix = errors.New("non-production environment has an empty key prefix")

// Credentials locate and authenticate against the key-value store.
type Credentials struct {
	// URL is the store address. The scheme selects the backend.
	URL string

	// Token is the store password or access token, if any.
	Token string

	// Shared is true when the credentials were borrowed from production by
	// a non-production context.
	Shared bool
}

// IsZero reports whether no store URL was resolved.
func (c Credentials) IsZero() bool {
	return c.URL == ""
}

// String returns the credentials with secrets masked.
func (c Credentials) String() string {
	if c.IsZero() {
		return "<none>"
	}
	return RedactURL(c.URL)
}

// LogValue implements slog.LogValuer so credentials never reach a log
// record in clear text.
func (c Credentials) LogValue() slog.Value {
	return slog.StringValue(c.String())
}

// Context is the resolved deployment identity of the process. It is
// computed once at startup and passed by value to every component that
// touches the store.
type Context struct {
	// Kind is the deployment environment.
	Kind Kind

	// Identifier distinguishes instances of the same kind (change request,
	// developer account, test run). Empty for production.
	Identifier string

	// KeyPrefix is prepended to every store key, e.g. "preview:142:".
	KeyPrefix string

	// Available is false when no store credentials could be resolved.
	// Callers skip store operations instead of failing.
	Available bool

	// Credentials are the resolved store credentials.
	Credentials Credentials
}

// Validate checks that the context cannot write unprefixed keys into a
// shared store.
func (c Context) Validate() error {
	if c.Kind != KindProduction && c.KeyPrefix == "" {
		return fmt.Errorf("%s environment: %w", c.Kind, ErrEmptyPrefix)
	}
	if c.Kind == KindProduction && c.KeyPrefix != "" {
		return fmt.Errorf("production environment must not use key prefix %q", c.KeyPrefix)
	}
	return nil
}

// LookupFunc reads a process-level variable. os.LookupEnv satisfies it.
type LookupFunc func(key string) (string, bool)

// FromOS resolves the context from the process environment.
func FromOS(logger *slog.Logger) Context {
	return Resolve(os.LookupEnv, logger)
}

// Resolve determines the deployment context from the variables visible
// through lookup. The decision order is test, production (application and
// platform flags must agree), preview, then development.
//
// Production only ever uses the production credential pair. A non-production
// context without its own credentials is unavailable unless
// SENTINEL_ALLOW_SHARED_STORE is set, in which case it borrows the
// production credentials under its own prefix and a warning is logged.
func Resolve(lookup LookupFunc, logger *slog.Logger) Context {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "environment")

	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	app := strings.ToLower(get(EnvApp))
	platform := strings.ToLower(get(EnvPlatform))

	var ctx Context
	switch {
	case app == string(KindTest):
		id := sanitizeIdentifier(firstNonEmpty(get(EnvTestRunID), "local"))
		ctx = Context{
			Kind:        KindTest,
			Identifier:  id,
			KeyPrefix:   "test:" + id + ":",
			Credentials: Credentials{URL: get(EnvTestStoreURL), Token: get(EnvTestStoreToken)},
		}

	case app == string(KindProduction) && platform == string(KindProduction):
		ctx = Context{
			Kind:        KindProduction,
			Credentials: Credentials{URL: get(EnvStoreURL), Token: get(EnvStoreToken)},
		}
		ctx.Available = !ctx.Credentials.IsZero()
		if !ctx.Available {
			logger.Error("production store credentials are missing, usage and health tracking disabled",
				"variable", EnvStoreURL)
		}
		return ctx

	case platform == string(KindPreview):
		if app == string(KindProduction) {
			logger.Warn("application flag says production but platform is preview, resolving as preview",
				"app_env", app, "platform_env", platform)
		}
		id := sanitizeIdentifier(firstNonEmpty(get(EnvChangeRequestID), get(EnvGitBranch), "unknown"))
		ctx = Context{
			Kind:        KindPreview,
			Identifier:  id,
			KeyPrefix:   "preview:" + id + ":",
			Credentials: Credentials{URL: get(EnvPreviewStoreURL), Token: get(EnvPreviewStoreToken)},
		}

	default:
		if app == string(KindProduction) {
			logger.Warn("application flag says production without a matching platform flag, resolving as development",
				"app_env", app, "platform_env", platform)
		}
		id := sanitizeIdentifier(firstNonEmpty(get("USER"), get("USERNAME"), "local"))
		ctx = Context{
			Kind:        KindDevelopment,
			Identifier:  id,
			KeyPrefix:   "dev:" + id + ":",
			Credentials: Credentials{URL: get(EnvDevStoreURL), Token: get(EnvDevStoreToken)},
		}
	}

	if ctx.Credentials.IsZero() {
		shared := Credentials{URL: get(EnvStoreURL), Token: get(EnvStoreToken), Shared: true}
		allow := strings.EqualFold(get(EnvAllowSharedStore), "true") || get(EnvAllowSharedStore) == "1"
		if allow && !shared.IsZero() {
			logger.Warn("no store credentials for this environment, using the production store with an isolating prefix",
				"kind", string(ctx.Kind),
				"prefix", ctx.KeyPrefix)
			ctx.Credentials = shared
		} else {
			logger.Info("no store credentials for this environment, usage and health tracking disabled",
				"kind", string(ctx.Kind))
		}
	}

	ctx.Available = !ctx.Credentials.IsZero()
	return ctx
}

// sanitizeIdentifier lowercases id and replaces every character outside
// [a-z0-9._-] with '-', so a prefix can never contain ':' or '*'.
func sanitizeIdentifier(id string) string {
	id = strings.ToLower(id)
	var sb strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			sb.WriteRune(r)
		default:
			sb.WriteByte('-')
		}
		if sb.Len() >= maxIdentifierLength {
			break
		}
	}
	out := strings.Trim(sb.String(), "-")
	if out == "" {
		return "unknown"
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// RedactURL masks the password of a store URL. When raw does not parse,
// everything between the scheme and the last '@' is masked.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err == nil {
		if u.User == nil {
			return raw
		}
		return u.Redacted()
	}
	at := strings.LastIndex(raw, "@")
	if at < 0 {
		return raw
	}
	start := 0
	if i := strings.Index(raw, "://"); i >= 0 && i < at {
		start = i + len("://")
	}
	return raw[:start] + "xxxxx" + raw[at:]
}
