// Package server runs the DNS responder, the HTTP proxy and the metrics
// listener together and stops them together.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"antns/internal/dnsserver"
	"antns/internal/platform/config"
	"antns/internal/platform/httpserver"
	"antns/internal/platform/metrics"
	"antns/internal/proxy"
	"antns/pkg/platform/httputil"
)

// Server owns the three listeners.
type Server struct {
	cfg      config.Config
	lookup   proxy.Lookuper
	logger   *slog.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	checks   map[string]HealthCheck
}

// HealthCheck reports whether a dependency is usable.
type HealthCheck func(ctx context.Context) error

type Option func(*Server)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithMetrics exposes m, gathered from g, on the metrics listener.
func WithMetrics(m *metrics.Metrics, g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = g
	}
}

// WithHealthCheck adds a named check to /healthz.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) { s.checks[name] = check }
}

func New(cfg config.Config, lookup proxy.Lookuper, opts ...Option) *Server {
	s := &Server{
		cfg:      cfg,
		lookup:   lookup,
		logger:   slog.Default(),
		gatherer: prometheus.DefaultGatherer,
		checks:   map[string]HealthCheck{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run serves until ctx is cancelled or any listener fails; either way all
// listeners are shut down before it returns.
func (s *Server) Run(ctx context.Context) error {
	suffixes := s.cfg.SuffixList()

	dns := dnsserver.NewServer(s.cfg.DNSAddr,
		dnsserver.NewHandler(suffixes, dnsserver.WithLogger(s.logger), dnsserver.WithMetrics(s.metrics)),
		s.logger)
	px := proxy.New(s.lookup, s.cfg.UpstreamTemplate, suffixes,
		proxy.WithLogger(s.logger), proxy.WithMetrics(s.metrics))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return dns.Run(gctx) })
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.New(s.cfg.HTTPAddr, px.Routes()), "proxy", s.logger)
	})
	g.Go(func() error {
		return httpserver.Serve(gctx, httpserver.New(s.cfg.MetricsAddr, s.AdminRoutes()), "metrics", s.logger)
	})

	s.logger.Info("antns server starting",
		"dns", s.cfg.DNSAddr,
		"proxy", s.cfg.HTTPAddr,
		"metrics", s.cfg.MetricsAddr,
		"upstream", s.cfg.UpstreamTemplate,
		"cache_ttl", s.cfg.CacheTTL,
		"backend", s.cfg.Backend,
	)
	err := g.Wait()
	s.logger.Info("antns server stopped")
	return err
}

// AdminRoutes serves /metrics and /healthz.
func (s *Server) AdminRoutes() http.Handler {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", s.health)
	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	code := http.StatusOK
	for name, check := range s.checks {
		if err := check(r.Context()); err != nil {
			status[name] = err.Error()
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	httputil.WriteJSON(w, code, status)
}
