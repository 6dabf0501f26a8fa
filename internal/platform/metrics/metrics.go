package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Metrics holds all Prometheus metrics for the naming service. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	Resolutions      *prometheus.CounterVec
	ResolveDuration  prometheus.Histogram
	HistoryEntries   *prometheus.CounterVec
	CacheLookups     *prometheus.CounterVec
	DNSQueries       *prometheus.CounterVec
	ProxyRequests    *prometheus.CounterVec
	UpstreamDuration prometheus.Histogram
	Mutations        *prometheus.CounterVec
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Resolutions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_resolutions_total",
			Help: "Domain resolutions by outcome",
		}, []string{"outcome"}),
		ResolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "antns_resolve_duration_seconds",
			Help:    "Duration of full history replays",
			Buckets: latencyBuckets,
		}),
		HistoryEntries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_history_entries_total",
			Help: "Register entries replayed, by classification",
		}, []string{"classification"}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_cache_lookups_total",
			Help: "Resolution cache lookups by result (hit, miss, disabled)",
		}, []string{"result"}),
		DNSQueries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_dns_queries_total",
			Help: "DNS queries answered, by response code",
		}, []string{"rcode"}),
		ProxyRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_proxy_requests_total",
			Help: "Proxied HTTP requests by response status",
		}, []string{"status"}),
		UpstreamDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "antns_upstream_duration_seconds",
			Help:    "Round trip time to the upstream gateway",
			Buckets: latencyBuckets,
		}),
		Mutations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "antns_mutations_total",
			Help: "Published record mutations by kind",
		}, []string{"kind"}),
	}
}

func (m *Metrics) IncrementResolution(outcome string) {
	if m == nil {
		return
	}
	m.Resolutions.WithLabelValues(outcome).Inc()
}

// ObserveResolve records a replay duration. Call with time.Now() taken at the
// start of the replay.
func (m *Metrics) ObserveResolve(start time.Time) {
	if m == nil {
		return
	}
	m.ResolveDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementHistoryEntry(classification string) {
	if m == nil {
		return
	}
	m.HistoryEntries.WithLabelValues(classification).Inc()
}

func (m *Metrics) IncrementCacheLookup(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementDNSQuery(rcode string) {
	if m == nil {
		return
	}
	m.DNSQueries.WithLabelValues(rcode).Inc()
}

func (m *Metrics) IncrementProxyRequest(status int) {
	if m == nil {
		return
	}
	m.ProxyRequests.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) ObserveUpstream(start time.Time) {
	if m == nil {
		return
	}
	m.UpstreamDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementMutation(kind string) {
	if m == nil {
		return
	}
	m.Mutations.WithLabelValues(kind).Inc()
}
