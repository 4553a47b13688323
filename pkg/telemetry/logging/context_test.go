package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/trace"
)

func TestContextKeys(t *testing.T) {
	ctx := context.Background()
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithService(ctx, "maps")

	if got := GetRequestID(ctx); got != "req-123" {
		t.Errorf("Expected request ID req-123, got %q", got)
	}
	if got := GetService(ctx); got != "maps" {
		t.Errorf("Expected service maps, got %q", got)
	}
}

func TestContextKeys_Empty(t *testing.T) {
	ctx := context.Background()

	if got := GetRequestID(ctx); got != "" {
		t.Errorf("Expected empty request ID, got %q", got)
	}
	if got := GetService(ctx); got != "" {
		t.Errorf("Expected empty service, got %q", got)
	}
}

func TestExtractContextFields(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})

	tests := []struct {
		name string
		ctx  context.Context
		want map[string]string
	}{
		{
			name: "empty context",
			ctx:  context.Background(),
			want: map[string]string{},
		},
		{
			name: "request id only",
			ctx:  WithRequestID(context.Background(), "req-1"),
			want: map[string]string{"request_id": "req-1"},
		},
		{
			name: "span context",
			ctx:  trace.ContextWithSpanContext(WithService(context.Background(), "maps"), sc),
			want: map[string]string{
				"service":  "maps",
				"trace_id": "4bf92f3577b34da6a3ce929d0e0e4736",
				"span_id":  "00f067aa0ba902b7",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := extractContextFields(tt.ctx)
			if len(fields) != len(tt.want) {
				t.Fatalf("Expected %d fields, got %d: %v", len(tt.want), len(fields), fields)
			}
			for _, f := range fields {
				if tt.want[f.Key] != f.Value.String() {
					t.Errorf("Expected %s=%q, got %q", f.Key, tt.want[f.Key], f.Value.String())
				}
			}
		})
	}
}

func TestContextHandler_WithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewContextHandler(slog.NewJSONHandler(&buf, nil)))

	logger.With("component", "status").WithGroup("http").InfoContext(
		WithRequestID(context.Background(), "req-9"), "served", "code", 200)

	out := buf.String()
	if !strings.Contains(out, `"component":"status"`) {
		t.Errorf("Expected component attribute, got %q", out)
	}
	if !strings.Contains(out, `"request_id":"req-9"`) {
		t.Errorf("Expected request_id, got %q", out)
	}
}
