package proxy

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"antns/internal/naming"
	"antns/internal/platform/metrics"
	"antns/pkg/testutil"
)

type stubLookup struct {
	targets map[string]string
	calls   []string
}

func (s *stubLookup) Lookup(_ context.Context, domain string) (string, error) {
	s.calls = append(s.calls, domain)
	if t, ok := s.targets[domain]; ok {
		return t, nil
	}
	return "", naming.ErrRegisterNotFound
}

// seen is what the upstream received.
type seen struct {
	method string
	path   string
	query  string
	header http.Header
	body   string
}

type ProxySuite struct {
	suite.Suite
	upstream *httptest.Server
	last     seen
	lookup   *stubLookup
	handler  http.Handler
}

func TestProxySuite(t *testing.T) {
	suite.Run(t, new(ProxySuite))
}

func (s *ProxySuite) SetupTest() {
	s.last = seen{}
	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		s.last = seen{method: r.Method, path: r.URL.Path, query: r.URL.RawQuery, header: r.Header.Clone(), body: string(body)}
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("payload for " + r.URL.Path))
	}))
	s.T().Cleanup(s.upstream.Close)

	s.lookup = &stubLookup{targets: map[string]string{"alice.ant": "deadbeef"}}
	s.handler = New(s.lookup, s.upstream.URL+"/$ADDRESS", []string{".ant", ".autonomi"}).Routes()
}

func (s *ProxySuite) do(method, host, target string) *httptest.ResponseRecorder {
	return testutil.DoRequest(s.handler, testutil.NewRequest(s.T(), method, target, host, ""))
}

func (s *ProxySuite) TestForwardsToResolvedTarget() {
	w := s.do(http.MethodGet, "alice.ant:18888", "/index.html?x=1&y=2")

	s.Equal(http.StatusTeapot, w.Code)
	s.Equal("payload for /deadbeef/index.html", w.Body.String())
	s.Equal("yes", w.Header().Get("X-Upstream"))
	s.Equal("alice.ant", w.Header().Get(HeaderDomain))
	s.Equal("deadbeef", w.Header().Get(HeaderTarget))
	s.Equal(s.upstream.URL+"/deadbeef/index.html?x=1&y=2", w.Header().Get(HeaderUpstream))
	s.NotEmpty(w.Header().Get("X-Request-ID"))

	s.Equal("/deadbeef/index.html", s.last.path)
	s.Equal("x=1&y=2", s.last.query)
	s.Equal([]string{"alice.ant"}, s.lookup.calls)
}

func (s *ProxySuite) TestForwardsMethodHeadersAndBody() {
	req := testutil.NewRequest(s.T(), http.MethodPost, "/submit", "alice.ant", "form=data")
	req.Header.Set("X-Custom", "kept")
	req.Header.Set("Content-Type", "text/plain")
	w := testutil.DoRequest(s.handler, req)

	s.Equal(http.StatusTeapot, w.Code)
	s.Equal(http.MethodPost, s.last.method)
	s.Equal("form=data", s.last.body)
	s.Equal("kept", s.last.header.Get("X-Custom"))
	s.Equal("text/plain", s.last.header.Get("Content-Type"))
}

func (s *ProxySuite) TestRejectsForeignHost() {
	for _, host := range []string{"example.com", "ant", "localhost:18888", "autonomi"} {
		w := s.do(http.MethodGet, host, "/")
		testutil.AssertStatusAndError(s.T(), w, http.StatusBadRequest, "bad_request")
		s.Contains(w.Body.String(), ".ant", host)
	}
	s.Empty(s.lookup.calls)
	s.Empty(s.last.method)
}

func (s *ProxySuite) TestLookupFailureIs404() {
	w := s.do(http.MethodGet, "nobody.autonomi", "/")
	testutil.AssertStatusAndError(s.T(), w, http.StatusNotFound, "not_found")
	s.Contains(w.Body.String(), "nobody.autonomi")
	s.Empty(s.last.method)
}

func (s *ProxySuite) TestUnreachableUpstreamIs502() {
	s.upstream.Close()
	w := s.do(http.MethodGet, "alice.ant", "/")
	testutil.AssertStatusAndError(s.T(), w, http.StatusBadGateway, "bad_gateway")
}

func (s *ProxySuite) TestInvalidUpstreamURLIs500() {
	s.lookup.targets["broken.ant"] = "bad host"
	s.handler = New(s.lookup, "http://$ADDRESS", []string{".ant"}).Routes()

	w := s.do(http.MethodGet, "broken.ant", "/")
	s.Equal(http.StatusInternalServerError, w.Code)
}

func TestUpstreamURL(t *testing.T) {
	u, err := url.Parse("/a/b%20c?q=1")
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8080/cafe/a/b%20c?q=1", UpstreamURL("http://127.0.0.1:8080/$ADDRESS", "cafe", u))

	root, err := url.Parse("/")
	require.NoError(t, err)
	assert.Equal(t, "http://gw/cafe/", UpstreamURL("http://gw/$ADDRESS", "cafe", root))
}

func TestHostDomain(t *testing.T) {
	assert.Equal(t, "alice.ant", hostDomain("Alice.ANT:8080"))
	assert.Equal(t, "alice.ant", hostDomain("alice.ant."))
	assert.Equal(t, "alice.ant", hostDomain("alice.ant"))
}

func TestProxyCountsStatuses(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := New(&stubLookup{}, "http://gw/$ADDRESS", []string{".ant"}, WithMetrics(metrics.New(reg)))

	for _, host := range []string{"ghost.ant", "example.com", "other.ant"} {
		req := testutil.NewRequest(t, http.MethodGet, "/", host, "")
		p.ServeHTTP(httptest.NewRecorder(), req)
	}

	families, err := reg.Gather()
	require.NoError(t, err)
	counts := map[string]float64{}
	for _, mf := range families {
		if mf.GetName() != "antns_proxy_requests_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, map[string]float64{"404": 2, "400": 1}, counts)
}
