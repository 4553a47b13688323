// Package environment resolves the deployment context of the process: which
// environment it runs in, the key prefix isolating that environment inside
// the shared key-value store, and the store credentials to use.
//
// The context is resolved once at startup and passed by value:
//
//	env := environment.FromOS(logger)
//	if !env.Available {
//	    // usage and health tracking run as no-ops
//	}
//
// Key prefixes by kind:
//
//	production   ""               SENTINEL_STORE_URL
//	preview      "preview:{id}:"  SENTINEL_PREVIEW_STORE_URL
//	development  "dev:{user}:"    SENTINEL_DEV_STORE_URL
//	test         "test:{id}:"     SENTINEL_TEST_STORE_URL
package environment
