package network

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"antns/internal/platform/config"
)

// Backends carries the shared connections a backend may be built on.
type Backends struct {
	Redis    *redis.Client
	Postgres *sql.DB
}

// Open selects the backend named by kind and wraps it with a chunk cache of
// cacheSize entries. The postgres backend is migrated before it is returned.
func Open(ctx context.Context, kind string, b Backends, cacheSize int) (Client, error) {
	var base Client
	switch kind {
	case config.BackendMemory:
		base = NewInMemory()
	case config.BackendRedis:
		if b.Redis == nil {
			return nil, fmt.Errorf("redis backend: no redis connection configured")
		}
		base = NewRedis(b.Redis)
	case config.BackendPostgres:
		if b.Postgres == nil {
			return nil, fmt.Errorf("postgres backend: no database configured")
		}
		pg := NewPostgres(b.Postgres)
		if err := pg.Migrate(ctx); err != nil {
			return nil, err
		}
		base = pg
	default:
		return nil, fmt.Errorf("unknown network backend %q", kind)
	}
	return NewCached(base, cacheSize)
}
