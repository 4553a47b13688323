package status

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"mercator-hq/sentinel/pkg/budget"
	"mercator-hq/sentinel/pkg/costs"
	"mercator-hq/sentinel/pkg/health"
	"mercator-hq/sentinel/pkg/telemetry/logging"
	"mercator-hq/sentinel/pkg/usage"
)

// maxReportBytes bounds the body of a health report.
const maxReportBytes = 16 << 10

// EnvironmentResponse is served by /status/environment. Credentials are
// never included.
type EnvironmentResponse struct {
	Kind       string `json:"kind"`
	Identifier string `json:"identifier"`
	Prefix     string `json:"prefix"`
	Available  bool   `json:"available"`
}

// UsageResponse is served by /status/usage.
type UsageResponse struct {
	Available bool `json:"available"`
	usage.Snapshot
}

// CostsResponse is served by /status/costs.
type CostsResponse struct {
	Available bool `json:"available"`
	costs.Report
}

// BudgetsResponse is served by /status/budgets.
type BudgetsResponse struct {
	Available bool            `json:"available"`
	Budgets   []budget.Status `json:"budgets"`
}

// ServiceHealth is the uptime of one service on /status/health.
type ServiceHealth struct {
	Available bool `json:"available"`
	health.UptimeSummary
}

// HealthResponse is served by /status/health.
type HealthResponse struct {
	WindowHours int             `json:"window_hours"`
	Services    []ServiceHealth `json:"services"`
}

// HealthReport is the body of POST /v1/health-reports.
type HealthReport struct {
	Service   string `json:"service"`
	Status    string `json:"status"`
	LatencyMs int64  `json:"latency_ms"`
}

// HealthReportResponse acknowledges a health report. Recorded is false when
// no store is configured for this environment.
type HealthReportResponse struct {
	Recorded bool `json:"recorded"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleEnvironment(w http.ResponseWriter, r *http.Request) {
	env := s.deps.Store.Environment()
	writeJSON(w, http.StatusOK, EnvironmentResponse{
		Kind:       string(env.Kind),
		Identifier: env.Identifier,
		Prefix:     env.KeyPrefix,
		Available:  s.deps.Store.Available(),
	})
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	now := s.deps.Now()
	day := r.URL.Query().Get("day")
	month := r.URL.Query().Get("month")

	if day == "" {
		day = usage.Day(now)
	} else if _, err := usage.ParseDay(day); err != nil {
		writeError(w, http.StatusBadRequest, "invalid day: expected YYYY-MM-DD")
		return
	}
	if month == "" {
		month = usage.Month(now)
	} else if _, err := usage.ParseMonth(month); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month: expected YYYY-MM")
		return
	}

	snap, err := s.deps.Usage.Snapshot(r.Context(), day, month)
	if err != nil {
		s.logger.WarnContext(r.Context(), "usage snapshot unavailable", "error", err)
		snap = usage.Snapshot{
			Day:     day,
			Month:   month,
			Daily:   map[string]map[string]int64{},
			Monthly: map[string]int64{},
		}
	}
	writeJSON(w, http.StatusOK, UsageResponse{
		Available: err == nil && s.deps.Usage.Available(),
		Snapshot:  snap,
	})
}

func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	month := r.URL.Query().Get("month")
	if month == "" {
		month = usage.Month(s.deps.Now())
	} else if _, err := usage.ParseMonth(month); err != nil {
		writeError(w, http.StatusBadRequest, "invalid month: expected YYYY-MM")
		return
	}

	report, err := s.deps.Costs.Report(r.Context(), month)
	if err != nil {
		s.logger.WarnContext(r.Context(), "cost report unavailable", "error", err)
		report = costs.Report{Month: month}
	}
	if report.Services == nil {
		report.Services = []costs.Estimate{}
	}
	writeJSON(w, http.StatusOK, CostsResponse{
		Available: err == nil && s.deps.Store.Available(),
		Report:    report,
	})
}

func (s *Server) handleBudgets(w http.ResponseWriter, r *http.Request) {
	statuses := s.deps.Budgets.Status(r.Context())

	available := s.deps.Store.Available()
	for _, st := range statuses {
		available = available && st.Available
	}
	writeJSON(w, http.StatusOK, BudgetsResponse{Available: available, Budgets: statuses})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	window := 24
	if raw := r.URL.Query().Get("window"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > s.deps.MaxWindowHours {
			writeError(w, http.StatusBadRequest,
				"invalid window: expected hours between 1 and "+strconv.Itoa(s.deps.MaxWindowHours))
			return
		}
		window = n
	}

	resp := HealthResponse{WindowHours: window, Services: make([]ServiceHealth, 0, len(s.deps.HealthServices))}
	for _, service := range s.deps.HealthServices {
		summary, err := s.deps.Health.GetUptime(r.Context(), service, window)
		if err != nil {
			s.logger.WarnContext(r.Context(), "uptime unavailable", "service", service, "error", err)
			summary = health.UptimeSummary{Service: service, WindowHours: window}
		}
		if summary.Incidents == nil {
			summary.Incidents = []health.Incident{}
		}
		resp.Services = append(resp.Services, ServiceHealth{
			Available:     err == nil && s.deps.Store.Available(),
			UptimeSummary: summary,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealthReport(w http.ResponseWriter, r *http.Request) {
	var report HealthReport
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxReportBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&report); err != nil {
		writeError(w, http.StatusBadRequest, "invalid health report: "+err.Error())
		return
	}

	status, err := health.ParseStatus(report.Status)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := logging.WithService(r.Context(), report.Service)
	err = s.deps.Health.RecordHealth(ctx, report.Service, status, report.LatencyMs)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, HealthReportResponse{Recorded: s.deps.Store.Available()})
	case errors.Is(err, health.ErrInvalidService), report.LatencyMs < 0:
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		// The runner retries on 5xx
		s.logger.ErrorContext(ctx, "failed to record health report", "error", err)
		writeError(w, http.StatusServiceUnavailable, "health store unavailable")
	}
}

func (s *Server) handleValidateCritical(w http.ResponseWriter, r *http.Request) {
	services := s.deps.CriticalServices
	if raw := r.URL.Query().Get("services"); raw != "" {
		services = splitList(raw)
	}
	if len(services) == 0 {
		writeError(w, http.StatusBadRequest, "no services to validate")
		return
	}

	v := s.deps.Health.ValidateCritical(r.Context(), services)
	code := http.StatusOK
	if !v.AllHealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, v)
}

// splitList splits a comma separated list, dropping empty items.
func splitList(raw string) []string {
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}
