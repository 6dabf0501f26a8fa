package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"

	"antns/internal/keystore"
	"antns/internal/lookupcache"
	"antns/internal/naming"
	"antns/internal/network"
	"antns/internal/platform/config"
	"antns/internal/platform/metrics"
	"antns/internal/platform/postgres"
	platformredis "antns/internal/platform/redis"
	"antns/internal/vault"
	"antns/pkg/platform/audit"
	"antns/pkg/platform/audit/publisher"
	auditkafka "antns/pkg/platform/audit/store/kafka"
	auditpostgres "antns/pkg/platform/audit/store/postgres"
)

const auditBuffer = 256

// app holds every dependency a command may need. Fields that the
// configuration does not enable stay nil.
type app struct {
	cfg      config.Config
	logger   *slog.Logger
	registry *prometheus.Registry
	metrics  *metrics.Metrics

	redis *platformredis.Client
	db    *sql.DB
	net   network.Client

	// ephemeral is set for the in-process memory network, which loses every
	// register when the command exits.
	ephemeral bool

	resolver *naming.Resolver
	mutator  *naming.Mutator
	keys     *keystore.Store
	audit    *publisher.Publisher

	closers []func()
}

// newApp connects to the configured backends. Callers must Close it.
func newApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (*app, error) {
	deriver, err := naming.ParseSharedSecret(cfg.SharedSecret)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a := &app{
		cfg:       cfg,
		logger:    logger,
		registry:  reg,
		metrics:   metrics.New(reg),
		ephemeral: cfg.Backend == config.BackendMemory,
	}

	if err := a.connect(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var rdb *goredis.Client
	if a.redis != nil {
		rdb = a.redis.Client
	}
	a.net, err = network.Open(ctx, cfg.Backend, network.Backends{Redis: rdb, Postgres: a.db}, cfg.ChunkCacheSize)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open network: %w", err)
	}

	emitter, err := a.openAudit(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.wire(deriver, emitter)
	return a, nil
}

func (a *app) connect(ctx context.Context) error {
	rc, err := platformredis.New(ctx, a.cfg.Redis)
	if err != nil {
		return err
	}
	if rc != nil {
		a.redis = rc
		a.closers = append(a.closers, func() { _ = rc.Close() })
	}
	if a.cfg.PostgresDSN != "" {
		db, err := postgres.Open(ctx, a.cfg.PostgresDSN)
		if err != nil {
			return err
		}
		a.db = db
		a.closers = append(a.closers, func() { _ = db.Close() })
	}
	return nil
}

// openAudit picks Kafka when brokers are configured, then Postgres, and
// otherwise disables auditing.
func (a *app) openAudit(ctx context.Context) (audit.Emitter, error) {
	var store audit.Store
	switch {
	case len(a.cfg.KafkaBrokers) > 0:
		ks, err := auditkafka.New(a.cfg.KafkaBrokers, a.cfg.AuditTopic)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, ks.Close)
		if err := ks.EnsureTopic(ctx, 1, -1); err != nil {
			return nil, err
		}
		store = ks
	case a.db != nil:
		ps := auditpostgres.New(a.db)
		if err := ps.Migrate(ctx); err != nil {
			return nil, err
		}
		store = ps
	default:
		return audit.Nop{}, nil
	}
	a.audit = publisher.NewPublisher(store,
		publisher.WithAsyncBuffer(auditBuffer),
		publisher.WithLogger(a.logger),
	)
	// Registered last so it drains before the stores close.
	a.closers = append(a.closers, a.audit.Close)
	return a.audit, nil
}

func (a *app) wire(deriver *naming.Deriver, emitter audit.Emitter) {
	opts := []naming.Option{
		naming.WithLogger(a.logger),
		naming.WithMetrics(a.metrics),
		naming.WithAuditor(emitter),
	}
	a.resolver = naming.NewResolver(deriver, a.net, opts...)
	a.mutator = naming.NewMutator(deriver, a.net, opts...)
	a.keys = keystore.New(a.cfg.KeysDir)
}

// lookupCache builds the proxy's resolution cache, shared through Redis
// when it is configured.
func (a *app) lookupCache() *lookupcache.Cache {
	var store lookupcache.Store = lookupcache.NewInMemoryStore()
	if a.redis != nil {
		store = lookupcache.NewRedisStore(a.redis.Client, a.cfg.CacheTTL)
	}
	return lookupcache.New(a.resolver, store, a.cfg.CacheTTL,
		lookupcache.WithLogger(a.logger),
		lookupcache.WithMetrics(a.metrics),
	)
}

func (a *app) openVault() (*vault.Vault, error) {
	if a.redis == nil {
		return nil, errors.New("key backup needs a vault store: set ANTNS_REDIS_URL")
	}
	return vault.New(vault.NewRedisStore(a.redis.Client), a.keys, a.cfg.VaultSecret, vault.WithLogger(a.logger))
}

// Close releases connections in reverse order of acquisition.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
