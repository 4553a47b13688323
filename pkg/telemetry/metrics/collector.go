package metrics

import (
	"sync"
	"time"

	"mercator-hq/sentinel/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// maxServices bounds the distinct service label values. Services beyond it
// are aggregated into "other".
const maxServices = 1000

// Collector owns every Prometheus metric of sentinel. It implements the
// observer interfaces of kvstore, usage, costs, budget and health, so each
// component reports into it without importing this package.
//
// A Collector built from a disabled configuration accepts every call and
// records nothing.
type Collector struct {
	enabled  bool
	registry *prometheus.Registry

	store  *StoreMetrics
	usage  *UsageMetrics
	cost   *CostMetrics
	budget *BudgetMetrics
	health *HealthMetrics

	services *CardinalityLimiter
}

// NewCollector creates a collector registering into registry, or into a new
// private registry when registry is nil. Go runtime and process collectors
// are registered alongside.
//
// Example:
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	client, _ := kvstore.Connect(env, cfg.Store, kvstore.Options{Observer: collector})
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	namespace := cfg.Namespace
	if namespace == "" {
		namespace = config.DefaultMetricsNamespace
	}

	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return &Collector{
		enabled:  cfg.IsEnabled(),
		registry: registry,
		store:    NewStoreMetrics(namespace, registry),
		usage:    NewUsageMetrics(namespace, registry),
		cost:     NewCostMetrics(namespace, registry),
		budget:   NewBudgetMetrics(namespace, registry),
		health:   NewHealthMetrics(namespace, registry),
		services: NewCardinalityLimiter(maxServices),
	}
}

// Registry returns the Prometheus registry used by this collector.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// service returns the label value for service, or "other" once the
// cardinality limit is reached.
func (c *Collector) service(service string) string {
	if !c.services.Allow(service) {
		return "other"
	}
	return service
}

// ObserveStoreOperation implements kvstore.Observer.
func (c *Collector) ObserveStoreOperation(op, result string, duration time.Duration) {
	if !c.enabled {
		return
	}
	c.store.Record(op, result, duration)
}

// ObserveUsage implements usage.Observer.
func (c *Collector) ObserveUsage(service, result string) {
	if !c.enabled {
		return
	}
	c.usage.Record(c.service(service), result)
}

// ObserveCostEstimate implements costs.Observer.
func (c *Collector) ObserveCostEstimate(service string, amount float64, priced bool) {
	if !c.enabled {
		return
	}
	c.cost.Update(c.service(service), amount, priced)
}

// ObserveBudgetCheck implements budget.Observer.
func (c *Collector) ObserveBudgetCheck(service string, ratio float64, action string) {
	if !c.enabled {
		return
	}
	c.budget.RecordCheck(c.service(service), ratio, action)
}

// ObserveAlert implements budget.Observer.
func (c *Collector) ObserveAlert(service, level string) {
	if !c.enabled {
		return
	}
	c.budget.RecordAlert(c.service(service), level)
}

// ObserveReviewRequired implements budget.Observer.
func (c *Collector) ObserveReviewRequired(service string) {
	if !c.enabled {
		return
	}
	c.budget.RecordReview(c.service(service))
}

// ObserveHealthRecord implements health.Observer.
func (c *Collector) ObserveHealthRecord(service, status string) {
	if !c.enabled {
		return
	}
	c.health.RecordStatus(c.service(service), status)
}

// ObserveUptime implements health.Observer.
func (c *Collector) ObserveUptime(service string, percent float64) {
	if !c.enabled {
		return
	}
	c.health.UpdateUptime(c.service(service), percent)
}

// ObserveCriticalValidation implements health.Observer.
func (c *Collector) ObserveCriticalValidation(healthy bool, failures int) {
	if !c.enabled {
		return
	}
	c.health.RecordValidation(healthy, failures)
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label values.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow reports whether value may be used as a label value: it is already
// known, or the limit is not reached yet.
func (cl *CardinalityLimiter) Allow(value string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[value]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, exists := cl.current[value]; exists {
		return true
	}
	if len(cl.current) >= cl.maxCardinality {
		return false
	}
	cl.current[value] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}
