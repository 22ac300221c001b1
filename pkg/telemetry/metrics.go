package telemetry

import (
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsConfig configures the Prometheus collectors.
type MetricsConfig struct {
	// Namespace is the metrics namespace (default: "alpml").
	Namespace string

	// Subsystem is the metrics subsystem (default: "").
	Subsystem string

	// ConstLabels are constant labels added to all metrics.
	ConstLabels prometheus.Labels

	// Buckets are the histogram buckets for durations.
	// Default: prometheus.DefBuckets
	Buckets []float64

	// Registry is the Prometheus registry to use.
	// Default: prometheus.DefaultRegisterer
	Registry prometheus.Registerer
}

// MetricsOption configures NewMetrics.
type MetricsOption func(*MetricsConfig)

// WithNamespace sets the metrics namespace.
func WithNamespace(namespace string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Namespace = namespace
	}
}

// WithSubsystem sets the metrics subsystem.
func WithSubsystem(subsystem string) MetricsOption {
	return func(c *MetricsConfig) {
		c.Subsystem = subsystem
	}
}

// WithConstLabels sets constant labels for all metrics.
func WithConstLabels(labels prometheus.Labels) MetricsOption {
	return func(c *MetricsConfig) {
		c.ConstLabels = labels
	}
}

// WithBuckets sets the histogram buckets.
func WithBuckets(buckets []float64) MetricsOption {
	return func(c *MetricsConfig) {
		c.Buckets = buckets
	}
}

// WithRegistry sets the Prometheus registry.
func WithRegistry(registry prometheus.Registerer) MetricsOption {
	return func(c *MetricsConfig) {
		c.Registry = registry
	}
}

func defaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "alpml",
		Buckets:   prometheus.DefBuckets,
		Registry:  prometheus.DefaultRegisterer,
	}
}

// Metrics holds the Alpml collectors. A nil *Metrics records nothing.
type Metrics struct {
	componentsDefined *prometheus.CounterVec
	rendersTotal      *prometheus.CounterVec
	renderDuration    *prometheus.HistogramVec
	insertionFailures *prometheus.CounterVec
	declarations      *prometheus.CounterVec
	fetchDuration     *prometheus.HistogramVec
	pagesRendered     *prometheus.CounterVec
	reloads           prometheus.Counter
}

// NewMetrics creates and registers the collectors.
func NewMetrics(opts ...MetricsOption) *Metrics {
	config := defaultMetricsConfig()
	for _, opt := range opts {
		opt(&config)
	}
	factory := promauto.With(config.Registry)

	return &Metrics{
		componentsDefined: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "components_defined_total",
			Help:        "Total number of components defined",
			ConstLabels: config.ConstLabels,
		}, []string{"component"}),

		rendersTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "renders_total",
			Help:        "Total number of display node renders",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "kind"}),

		renderDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "render_duration_seconds",
			Help:        "Display node render duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"component"}),

		insertionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "insertion_failures_total",
			Help:        "Total number of failed child insertions",
			ConstLabels: config.ConstLabels,
		}, []string{"component", "code"}),

		declarations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "declarations_total",
			Help:        "Total number of component declarations fetched",
			ConstLabels: config.ConstLabels,
		}, []string{"scheme", "status"}),

		fetchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "fetch_duration_seconds",
			Help:        "Component document fetch duration in seconds",
			ConstLabels: config.ConstLabels,
			Buckets:     config.Buckets,
		}, []string{"scheme"}),

		pagesRendered: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "pages_rendered_total",
			Help:        "Total number of pages rendered",
			ConstLabels: config.ConstLabels,
		}, []string{"status"}),

		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace:   config.Namespace,
			Subsystem:   config.Subsystem,
			Name:        "reloads_total",
			Help:        "Total number of live reload broadcasts",
			ConstLabels: config.ConstLabels,
		}),
	}
}

// ComponentDefined records a component definition.
func (m *Metrics) ComponentDefined(name string) {
	if m == nil {
		return
	}
	m.componentsDefined.WithLabelValues(name).Inc()
}

// Rendered records a display node render.
func (m *Metrics) Rendered(name string, replaced bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	kind := "append"
	if replaced {
		kind = "replace"
	}
	m.rendersTotal.WithLabelValues(name, kind).Inc()
	m.renderDuration.WithLabelValues(name).Observe(elapsed.Seconds())
}

// InsertionFailed records a failed child insertion.
func (m *Metrics) InsertionFailed(name, code string) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.insertionFailures.WithLabelValues(name, code).Inc()
}

// DeclarationFetched records the outcome of fetching a component document.
func (m *Metrics) DeclarationFetched(ref string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	scheme := refScheme(ref)
	m.declarations.WithLabelValues(scheme, status(err)).Inc()
	m.fetchDuration.WithLabelValues(scheme).Observe(elapsed.Seconds())
}

// PageRendered records a rendered page.
func (m *Metrics) PageRendered(err error) {
	if m == nil {
		return
	}
	m.pagesRendered.WithLabelValues(status(err)).Inc()
}

// ReloadBroadcast records a live reload broadcast.
func (m *Metrics) ReloadBroadcast() {
	if m == nil {
		return
	}
	m.reloads.Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// refScheme keeps label cardinality bounded by reporting only the scheme.
func refScheme(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Scheme == "" {
		return "file"
	}
	return strings.ToLower(u.Scheme)
}
