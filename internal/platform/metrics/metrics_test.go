package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersRegisterOnGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncrementResolution("ok")
	m.IncrementResolution("ok")
	m.IncrementCacheLookup("hit")
	m.IncrementProxyRequest(502)
	m.ObserveUpstream(time.Now())

	assert.Equal(t, 2.0, counterValue(t, reg, "antns_resolutions_total", "ok"))
	assert.Equal(t, 1.0, counterValue(t, reg, "antns_cache_lookups_total", "hit"))
	assert.Equal(t, 1.0, counterValue(t, reg, "antns_proxy_requests_total", "502"))

	// a second set on a separate registry must not collide
	assert.NotPanics(t, func() { New(prometheus.NewRegistry()) })
}

func TestNilMetricsRecordNothing(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncrementResolution("ok")
		m.ObserveResolve(time.Now())
		m.IncrementHistoryEntry("valid")
		m.IncrementCacheLookup("miss")
		m.IncrementDNSQuery("NOERROR")
		m.IncrementProxyRequest(200)
		m.ObserveUpstream(time.Now())
		m.IncrementMutation("add")
	})
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, label string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			for _, l := range m.GetLabel() {
				if l.GetValue() == label {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}
