// Package dnsserver answers DNS queries for AntNS suffixes with the loopback
// address so browsers reach the local proxy.
package dnsserver

import (
	"log/slog"
	"net"
	"strings"

	"github.com/miekg/dns"

	"antns/internal/platform/metrics"
)

// AnswerTTL is the TTL, in seconds, of every A answer.
const AnswerTTL = 300

var loopback = net.IPv4(127, 0, 0, 1).To4()

// Handler is a dns.Handler that is authoritative for a fixed set of suffixes.
type Handler struct {
	suffixes []string
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(h *Handler) { h.metrics = m }
}

// NewHandler serves names ending in one of suffixes (".ant", ".autonomi").
func NewHandler(suffixes []string, opts ...Option) *Handler {
	h := &Handler{logger: slog.Default()}
	for _, s := range suffixes {
		h.suffixes = append(h.suffixes, strings.ToLower(s))
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Matches reports whether name, with or without the trailing root dot, ends
// in a served suffix.
func (h *Handler) Matches(name string) bool {
	name = strings.ToLower(strings.TrimSuffix(name, "."))
	for _, s := range h.suffixes {
		if strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func (h *Handler) ServeDNS(w dns.ResponseWriter, r *dns.Msg) {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	switch {
	case len(r.Question) == 0:
		m.Rcode = dns.RcodeFormatError
	case h.Matches(r.Question[0].Name):
		q := r.Question[0]
		if q.Qtype == dns.TypeA {
			m.Answer = append(m.Answer, &dns.A{
				Hdr: dns.RR_Header{Name: q.Name, Rrtype: dns.TypeA, Class: dns.ClassINET, Ttl: AnswerTTL},
				A:   loopback,
			})
		}
	default:
		m.Rcode = dns.RcodeNameError
	}

	rcode := dns.RcodeToString[m.Rcode]
	h.metrics.IncrementDNSQuery(rcode)
	if len(r.Question) > 0 {
		h.logger.Debug("dns query",
			"name", r.Question[0].Name,
			"type", dns.TypeToString[r.Question[0].Qtype],
			"rcode", rcode,
		)
	}
	if err := w.WriteMsg(m); err != nil {
		h.logger.Warn("dns write failed", "error", err)
	}
}
