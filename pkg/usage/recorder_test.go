package usage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"mercator-hq/sentinel/pkg/config"
	"mercator-hq/sentinel/pkg/environment"
	"mercator-hq/sentinel/pkg/kvstore"
	"mercator-hq/sentinel/pkg/kvstore/kvstoretest"
)

var testNow = time.Date(2026, 10, 18, 14, 30, 0, 0, time.UTC)

type recordingObserver struct {
	mu      sync.Mutex
	results map[string]int
}

func (o *recordingObserver) ObserveUsage(service, result string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.results == nil {
		o.results = make(map[string]int)
	}
	o.results[result]++
}

func (o *recordingObserver) count(result string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.results[result]
}

func newTestRecorder(t *testing.T, client *kvstore.Client) (*Recorder, *recordingObserver) {
	t.Helper()
	obs := &recordingObserver{}
	r := NewRecorder(client, config.Default().Usage, Options{
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Observer: obs,
		Now:      func() time.Time { return testNow },
	})
	return r, obs
}

func TestRecordUsage_IncrementsDailyAndMonthly(t *testing.T) {
	ctx := context.Background()
	r, obs := newTestRecorder(t, kvstoretest.NewClient(kvstore.NewMemoryBackend(), ""))

	for i := 0; i < 3; i++ {
		if err := r.RecordUsage(ctx, "geocoding", "/v1/geocode?q=berlin"); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}
	if err := r.RecordUsage(ctx, "geocoding", "/v1/reverse"); err != nil {
		t.Fatalf("RecordUsage failed: %v", err)
	}

	daily, err := r.DailyCount(ctx, "geocoding", "/v1/geocode", "2026-10-18")
	if err != nil {
		t.Fatalf("DailyCount failed: %v", err)
	}
	if daily != 3 {
		t.Errorf("Expected daily count 3, got %d", daily)
	}

	monthly, err := r.MonthlyCount(ctx, "geocoding", "2026-10")
	if err != nil {
		t.Fatalf("MonthlyCount failed: %v", err)
	}
	if monthly != 4 {
		t.Errorf("Expected monthly count 4, got %d", monthly)
	}

	if got := obs.count(ResultRecorded); got != 4 {
		t.Errorf("Expected 4 recorded outcomes, got %d", got)
	}
}

func TestRecordUsage_Concurrent(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRecorder(t, kvstoretest.NewClient(kvstore.NewMemoryBackend(), ""))

	const n = 100
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.RecordUsage(ctx, "maps", "/tiles"); err != nil {
				t.Errorf("RecordUsage failed: %v", err)
			}
		}()
	}
	wg.Wait()

	daily, _ := r.DailyCount(ctx, "maps", "/tiles", "2026-10-18")
	if daily != n {
		t.Errorf("Expected daily count %d, got %d", n, daily)
	}
	monthly, _ := r.MonthlyCount(ctx, "maps", "2026-10")
	if monthly != n {
		t.Errorf("Expected monthly count %d, got %d", n, monthly)
	}
}

func TestRecordUsage_StoreNotConfigured(t *testing.T) {
	env := environment.Context{Kind: environment.KindDevelopment, Identifier: "alice", KeyPrefix: "dev:alice:"}
	r, obs := newTestRecorder(t, kvstore.Unavailable(env, slog.New(slog.NewTextHandler(io.Discard, nil))))

	if err := r.RecordUsage(context.Background(), "maps", "/tiles"); err != nil {
		t.Errorf("Expected nil error without a store, got %v", err)
	}
	if r.Available() {
		t.Error("Expected recorder to report unavailable")
	}
	if got := obs.count(ResultSkipped); got != 1 {
		t.Errorf("Expected 1 skipped outcome, got %d", got)
	}
}

func TestRecordUsage_DailyFailure(t *testing.T) {
	faulty := kvstoretest.NewFaulty(nil)
	faulty.FailOn(kvstoretest.OpIncrBy, nil)

	// A client that would retry once: recording must still try only once
	env := environment.Context{Kind: environment.KindTest, Identifier: "unit", KeyPrefix: "test:unit:", Available: true}
	client, err := kvstore.NewClient(faulty, env, kvstore.Options{
		MaxRetries: 1,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	r, obs := newTestRecorder(t, client)

	err = r.RecordUsage(context.Background(), "maps", "/tiles")
	if !errors.Is(err, kvstore.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if calls := faulty.Calls(kvstoretest.OpIncrBy); calls != 1 {
		t.Errorf("Expected a single attempt, got %d", calls)
	}
	if got := obs.count(ResultFailed); got != 1 {
		t.Errorf("Expected 1 failed outcome, got %d", got)
	}
}

func TestRecordUsage_MonthlyFailureIsNotReturned(t *testing.T) {
	faulty := kvstoretest.NewFaulty(nil)
	faulty.FailOnKey(kvstoretest.OpIncrBy, MonthlyKeyPrefix, nil)
	r, obs := newTestRecorder(t, kvstoretest.NewClient(faulty, ""))
	ctx := context.Background()

	if err := r.RecordUsage(ctx, "maps", "/tiles"); err != nil {
		t.Fatalf("Expected monthly failure to be swallowed, got %v", err)
	}

	faulty.Reset()
	daily, _ := r.DailyCount(ctx, "maps", "/tiles", "2026-10-18")
	if daily != 1 {
		t.Errorf("Expected daily count 1, got %d", daily)
	}
	monthly, _ := r.MonthlyCount(ctx, "maps", "2026-10")
	if monthly != 0 {
		t.Errorf("Expected monthly aggregate to lag at 0, got %d", monthly)
	}
	if got := obs.count(ResultMonthlyFailed); got != 1 {
		t.Errorf("Expected 1 monthly_failed outcome, got %d", got)
	}
}

func TestRecordUsage_InvalidService(t *testing.T) {
	r, obs := newTestRecorder(t, kvstoretest.NewClient(kvstore.NewMemoryBackend(), ""))

	tests := []string{"", "Maps", "monthly", "a:b", "svc*"}
	for _, service := range tests {
		t.Run(service, func(t *testing.T) {
			err := r.RecordUsage(context.Background(), service, "/x")
			if !errors.Is(err, ErrInvalidService) {
				t.Errorf("Expected ErrInvalidService for %q, got %v", service, err)
			}
		})
	}
	if got := obs.count(ResultRejected); got != len(tests) {
		t.Errorf("Expected %d rejected outcomes, got %d", len(tests), got)
	}
}

func TestMonthlyServices(t *testing.T) {
	ctx := context.Background()
	client := kvstoretest.NewClient(kvstore.NewMemoryBackend(), "")
	r, _ := newTestRecorder(t, client)

	for _, service := range []string{"maps", "geocoding"} {
		if err := r.RecordUsage(ctx, service, "/"); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}
	// Previous month
	if _, err := client.Increment(ctx, MonthlyKey("weather", "2026-09"), 5, time.Hour); err != nil {
		t.Fatalf("Increment failed: %v", err)
	}

	services, err := r.MonthlyServices(ctx, "2026-10")
	if err != nil {
		t.Fatalf("MonthlyServices failed: %v", err)
	}
	if len(services) != 2 || services[0] != "geocoding" || services[1] != "maps" {
		t.Errorf("Expected [geocoding maps], got %v", services)
	}
}

func TestSnapshot(t *testing.T) {
	ctx := context.Background()
	r, _ := newTestRecorder(t, kvstoretest.NewClient(kvstore.NewMemoryBackend(), ""))

	calls := []struct{ service, endpoint string }{
		{"maps", "/tiles"},
		{"maps", "/tiles"},
		{"maps", "/v1/route:optimize"},
		{"geocoding", ""},
	}
	for _, c := range calls {
		if err := r.RecordUsage(ctx, c.service, c.endpoint); err != nil {
			t.Fatalf("RecordUsage failed: %v", err)
		}
	}

	snap, err := r.Snapshot(ctx, "2026-10-18", "2026-10")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.Daily["maps"]["/tiles"] != 2 {
		t.Errorf("Expected maps /tiles 2, got %d", snap.Daily["maps"]["/tiles"])
	}
	if snap.Daily["maps"]["/v1/route:optimize"] != 1 {
		t.Errorf("Expected endpoint containing ':' to be parsed, got %v", snap.Daily["maps"])
	}
	if snap.Daily["geocoding"]["/"] != 1 {
		t.Errorf("Expected empty endpoint stored as /, got %v", snap.Daily["geocoding"])
	}
	if snap.Monthly["maps"] != 3 || snap.Monthly["geocoding"] != 1 {
		t.Errorf("Expected monthly maps=3 geocoding=1, got %v", snap.Monthly)
	}

	other, err := r.Snapshot(ctx, "2026-10-17", "2026-09")
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if len(other.Daily) != 0 || len(other.Monthly) != 0 {
		t.Errorf("Expected empty snapshot for other day, got %+v", other)
	}
}

func TestSnapshot_Unavailable(t *testing.T) {
	faulty := kvstoretest.NewFaulty(nil)
	faulty.SetDown(true)
	r, _ := newTestRecorder(t, kvstoretest.NewClient(faulty, ""))

	_, err := r.Snapshot(context.Background(), "2026-10-18", "2026-10")
	if !errors.Is(err, kvstore.ErrUnavailable) {
		t.Errorf("Expected ErrUnavailable, got %v", err)
	}
}

func TestNormalizeEndpoint(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", "/"},
		{"  ", "/"},
		{"/v1/geocode", "/v1/geocode"},
		{"/v1/geocode?q=1&key=secret", "/v1/geocode"},
		{"/page#top", "/page"},
		{"?only=query", "/"},
	}
	for _, tt := range tests {
		if got := NormalizeEndpoint(tt.in); got != tt.want {
			t.Errorf("NormalizeEndpoint(%q): Expected %q, got %q", tt.in, tt.want, got)
		}
	}
}

func TestParseDailyKey(t *testing.T) {
	tests := []struct {
		key      string
		ok       bool
		service  string
		endpoint string
		day      string
	}{
		{"usage:maps:/tiles:2026-10-18", true, "maps", "/tiles", "2026-10-18"},
		{"usage:maps:/a:b:2026-10-18", true, "maps", "/a:b", "2026-10-18"},
		{"usage:monthly:maps:2026-10", false, "", "", ""},
		{"usage:maps:2026-10-18", false, "", "", ""},
		{"health:maps", false, "", "", ""},
	}
	for _, tt := range tests {
		service, endpoint, day, ok := parseDailyKey(tt.key)
		if ok != tt.ok || service != tt.service || endpoint != tt.endpoint || day != tt.day {
			t.Errorf("parseDailyKey(%q): Expected (%q, %q, %q, %v), got (%q, %q, %q, %v)",
				tt.key, tt.service, tt.endpoint, tt.day, tt.ok, service, endpoint, day, ok)
		}
	}
}

func TestTransport_RecordsAfterResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer upstream.Close()

	r, _ := newTestRecorder(t, kvstoretest.NewClient(kvstore.NewMemoryBackend(), ""))
	transport := NewTransport(nil, r, "geocoding", time.Second)
	client := &http.Client{Transport: transport}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(upstream.URL + "/v1/geocode?q=paris")
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		resp.Body.Close()
	}
	transport.Wait()

	daily, err := r.DailyCount(context.Background(), "geocoding", "/v1/geocode", "2026-10-18")
	if err != nil {
		t.Fatalf("DailyCount failed: %v", err)
	}
	if daily != 2 {
		t.Errorf("Expected 2 recorded calls, got %d", daily)
	}
}

func TestTransport_StoreDownDoesNotFailRequest(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer upstream.Close()

	faulty := kvstoretest.NewFaulty(nil)
	faulty.SetDown(true)
	r, obs := newTestRecorder(t, kvstoretest.NewClient(faulty, ""))
	transport := NewTransport(nil, r, "geocoding", 50*time.Millisecond)

	resp, err := (&http.Client{Transport: transport}).Get(upstream.URL + "/ping")
	if err != nil {
		t.Fatalf("Expected request to succeed, got %v", err)
	}
	resp.Body.Close()
	transport.Wait()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", resp.StatusCode)
	}
	if got := obs.count(ResultFailed); got != 1 {
		t.Errorf("Expected 1 failed outcome, got %d", got)
	}
}
