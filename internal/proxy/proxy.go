// Package proxy forwards browser requests for AntNS hosts to the upstream
// gateway serving the domain's resolved target.
package proxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"antns/internal/platform/config"
	"antns/internal/platform/metrics"
	dErrors "antns/pkg/domain-errors"
	"antns/pkg/platform/httputil"
	"antns/pkg/platform/middleware/metadata"
	"antns/pkg/platform/middleware/request"
	"antns/pkg/platform/middleware/requesttime"
)

// Response headers describing how a request was routed.
const (
	HeaderDomain   = "X-AntNS-Domain"
	HeaderTarget   = "X-AntNS-Target"
	HeaderUpstream = "X-AntNS-Upstream"
)

// Lookuper resolves a domain to its target. lookupcache.Cache satisfies it.
type Lookuper interface {
	Lookup(ctx context.Context, domain string) (string, error)
}

// Proxy is the HTTP front end for AntNS hosts.
type Proxy struct {
	lookup   Lookuper
	template string
	suffixes []string
	client   *http.Client
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Proxy)

func WithLogger(logger *slog.Logger) Option {
	return func(p *Proxy) { p.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Proxy) { p.metrics = m }
}

// WithHTTPClient replaces the client used for upstream requests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Proxy) { p.client = c }
}

// New builds a proxy. template must contain config.AddressPlaceholder.
func New(lookup Lookuper, template string, suffixes []string, opts ...Option) *Proxy {
	p := &Proxy{
		lookup:   lookup,
		template: template,
		client:   &http.Client{Timeout: 60 * time.Second},
		logger:   slog.Default(),
	}
	for _, s := range suffixes {
		p.suffixes = append(p.suffixes, strings.ToLower(s))
	}
	for _, opt := range opts {
		opt(p)
	}
	// Redirects are relayed to the browser, not followed.
	p.client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return p
}

// Routes mounts the proxy behind the shared request middleware.
func (p *Proxy) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(request.RequestID)
	r.Use(request.Recovery(p.logger))
	r.Use(metadata.ClientMetadata)
	r.Use(requesttime.Middleware)
	r.Use(request.Logger(p.logger))
	r.Handle("/*", http.HandlerFunc(p.ServeHTTP))
	return r
}

func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	domain := hostDomain(r.Host)
	if !p.served(domain) {
		p.fail(w, dErrors.New(dErrors.CodeBadRequest,
			"only "+strings.Join(p.suffixes, " and ")+" domains are supported"))
		return
	}
	ctx := r.Context()

	target, err := p.lookup.Lookup(ctx, domain)
	if err != nil {
		p.logger.InfoContext(ctx, "lookup failed", "domain", domain, "error", err)
		p.fail(w, dErrors.Wrap(err, dErrors.CodeNotFound, "domain not found: "+domain))
		return
	}

	upstream := UpstreamURL(p.template, target, r.URL)
	u, err := url.Parse(upstream)
	if err != nil || u.Host == "" {
		p.logger.ErrorContext(ctx, "invalid upstream url", "url", upstream, "error", err)
		p.fail(w, dErrors.New(dErrors.CodeInternal, "invalid upstream url"))
		return
	}

	out, err := http.NewRequestWithContext(ctx, r.Method, u.String(), r.Body)
	if err != nil {
		p.fail(w, dErrors.Wrap(err, dErrors.CodeInternal, "build upstream request"))
		return
	}
	out.Header = r.Header.Clone()
	out.ContentLength = r.ContentLength

	start := time.Now()
	resp, err := p.client.Do(out)
	p.metrics.ObserveUpstream(start)
	if err != nil {
		p.logger.WarnContext(ctx, "upstream request failed", "url", upstream, "error", err)
		p.fail(w, dErrors.Wrap(err, dErrors.CodeBadGateway, "failed to proxy to upstream"))
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		p.logger.WarnContext(ctx, "upstream body read failed", "url", upstream, "error", err)
		p.fail(w, dErrors.Wrap(err, dErrors.CodeBadGateway, "failed to read upstream response"))
		return
	}

	h := w.Header()
	for name, values := range resp.Header {
		h[name] = append([]string(nil), values...)
	}
	h.Set(HeaderDomain, domain)
	h.Set(HeaderTarget, target)
	h.Set(HeaderUpstream, upstream)
	h.Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(body)

	p.metrics.IncrementProxyRequest(resp.StatusCode)
	p.logger.DebugContext(ctx, "proxied", "domain", domain, "target", target, "status", resp.StatusCode)
}

func (p *Proxy) fail(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
	p.metrics.IncrementProxyRequest(dErrors.HTTPStatus(dErrors.CodeOf(err)))
}

func (p *Proxy) served(domain string) bool {
	for _, s := range p.suffixes {
		if strings.HasSuffix(domain, s) && len(domain) > len(s) {
			return true
		}
	}
	return false
}

// hostDomain strips any port and the root dot from a Host header value.
func hostDomain(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.ToLower(strings.TrimSuffix(host, "."))
}

// UpstreamURL substitutes target into template and appends the request path
// and query unchanged.
func UpstreamURL(template, target string, reqURL *url.URL) string {
	var b strings.Builder
	b.WriteString(strings.ReplaceAll(template, config.AddressPlaceholder, target))
	b.WriteString(reqURL.EscapedPath())
	if reqURL.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(reqURL.RawQuery)
	}
	return b.String()
}
