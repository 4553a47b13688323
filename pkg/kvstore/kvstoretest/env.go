package kvstoretest

import (
	"io"
	"log/slog"

	"mercator-hq/sentinel/pkg/environment"
)

func testEnvironment(prefix string) environment.Context {
	return environment.Context{
		Kind:        environment.KindTest,
		Identifier:  "unit",
		KeyPrefix:   prefix,
		Available:   true,
		Credentials: environment.Credentials{URL: "memory://"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
