package main

import (
	"context"
	"flag"
	"io"
	"time"

	"antns/internal/server"
)

func (a *app) serverStart(ctx context.Context, _ io.Writer, args []string) error {
	fs := flag.NewFlagSet("server start", flag.ContinueOnError)
	cfg := a.cfg
	fs.StringVar(&cfg.DNSAddr, "dns-addr", cfg.DNSAddr, "DNS listen address")
	fs.StringVar(&cfg.HTTPAddr, "http-addr", cfg.HTTPAddr, "HTTP proxy listen address")
	fs.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "metrics listen address")
	fs.StringVar(&cfg.UpstreamTemplate, "upstream", cfg.UpstreamTemplate, "upstream URL template containing $ADDRESS")
	fs.DurationVar(&cfg.CacheTTL, "ttl", cfg.CacheTTL, "lookup cache TTL, 0 disables caching")
	if _, err := parseFlags(fs, args, 0); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg

	opts := []server.Option{
		server.WithLogger(a.logger),
		server.WithMetrics(a.metrics, a.registry),
	}
	if a.redis != nil {
		opts = append(opts, server.WithHealthCheck("redis", a.redis.Health))
	}
	if a.db != nil {
		opts = append(opts, server.WithHealthCheck("postgres", func(ctx context.Context) error {
			ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return a.db.PingContext(ctx)
		}))
	}
	return server.New(cfg, a.lookupCache(), opts...).Run(ctx)
}
