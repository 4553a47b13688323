package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"sort"
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/config"
)

// CheckFunc checks one dependency of this process. It returns nil when the
// dependency is usable.
type CheckFunc func(ctx context.Context) error

// CheckResult is the outcome of one readiness check.
type CheckResult struct {
	// Status is "ok" or "unhealthy".
	Status string `json:"status"`

	Message string `json:"message,omitempty"`

	// Required checks make the process unready when they fail. Optional
	// checks only degrade it.
	Required bool `json:"required"`

	Duration time.Duration `json:"duration_ms,omitempty"`
}

// ProcessStatus is the liveness or readiness of this process.
type ProcessStatus struct {
	// Status is "ok" (liveness), "ready", "degraded" or "unhealthy".
	Status string `json:"status"`

	Checks map[string]CheckResult `json:"checks,omitempty"`

	Timestamp time.Time `json:"timestamp"`
}

type registeredCheck struct {
	fn       CheckFunc
	required bool
}

// Checker runs the liveness and readiness checks of the sentinel process
// itself, as opposed to Tracker which follows monitored services.
//
// The key-value store is registered as an optional check: without it
// analytics are absent but the process keeps serving.
type Checker struct {
	mu      sync.RWMutex
	checks  map[string]registeredCheck
	timeout time.Duration
}

// NewChecker creates a Checker. A zero timeout uses the configured default.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = config.DefaultHealthCheckTimeout
	}
	return &Checker{
		checks:  make(map[string]registeredCheck),
		timeout: timeout,
	}
}

// RegisterCheck registers or replaces the check called name.
func (c *Checker) RegisterCheck(name string, required bool, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = registeredCheck{fn: check, required: required}
}

// ListChecks returns the registered check names, sorted.
func (c *Checker) ListChecks() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CheckLiveness reports that the process is running.
func (c *Checker) CheckLiveness(context.Context) ProcessStatus {
	return ProcessStatus{Status: "ok", Timestamp: time.Now()}
}

// CheckReadiness runs every registered check concurrently. A failed
// required check makes the process unhealthy; a failed optional check
// makes it degraded.
func (c *Checker) CheckReadiness(ctx context.Context) ProcessStatus {
	c.mu.RLock()
	checks := make(map[string]registeredCheck, len(c.checks))
	for name, check := range c.checks {
		checks[name] = check
	}
	c.mu.RUnlock()

	results := make(map[string]CheckResult, len(checks))
	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for name, check := range checks {
		wg.Add(1)
		go func(name string, check registeredCheck) {
			defer wg.Done()
			result := c.runCheck(ctx, check)

			mu.Lock()
			results[name] = result
			mu.Unlock()
		}(name, check)
	}
	wg.Wait()

	status := "ready"
	for _, result := range results {
		if result.Status == "ok" {
			continue
		}
		if result.Required {
			status = "unhealthy"
			break
		}
		status = "degraded"
	}

	return ProcessStatus{Status: status, Checks: results, Timestamp: time.Now()}
}

func (c *Checker) runCheck(ctx context.Context, check registeredCheck) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- check.fn(ctx)
	}()

	result := CheckResult{Status: "ok", Required: check.required}
	select {
	case err := <-errCh:
		if err != nil {
			result.Status = "unhealthy"
			result.Message = err.Error()
		}
	case <-ctx.Done():
		result.Status = "unhealthy"
		result.Message = "health check timeout"
	}
	result.Duration = time.Since(start)
	return result
}

// VersionInfo contains build information.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

// LivenessHandler serves the liveness probe. It always returns 200.
func (c *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, r, http.StatusOK, c.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler serves the readiness probe: 200 when ready or degraded,
// 503 when a required check failed.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := c.CheckReadiness(r.Context())
		code := http.StatusOK
		if status.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}
		writeProbe(w, r, code, status)
	}
}

// VersionHandler serves build information.
func VersionHandler(version, commit, buildTime string) http.HandlerFunc {
	info := VersionInfo{
		Version:   version,
		Commit:    commit,
		BuildTime: buildTime,
		GoVersion: runtime.Version(),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		writeProbe(w, r, http.StatusOK, info)
	}
}

func writeProbe(w http.ResponseWriter, r *http.Request, code int, body any) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if r.Method != http.MethodHead {
		_ = json.NewEncoder(w).Encode(body)
	}
}
