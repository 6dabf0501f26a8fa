package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("ANTNS_KEYS_DIR", t.TempDir())

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, DefaultSharedSecret, cfg.SharedSecret)
	assert.Equal(t, "127.0.0.1:5354", cfg.DNSAddr)
	assert.Equal(t, "127.0.0.1:18888", cfg.HTTPAddr)
	assert.Equal(t, []string{".ant", ".autonomi"}, cfg.Suffixes)
	assert.Equal(t, "http://127.0.0.1:8080/$ADDRESS", cfg.UpstreamTemplate)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, BackendMemory, cfg.Backend)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ANTNS_KEYS_DIR", t.TempDir())
	t.Setenv("ANTNS_CACHE_TTL", "0")
	t.Setenv("ANTNS_SUFFIXES", ".ant, .TEST, .ant")
	t.Setenv("ANTNS_BACKEND", "Redis")
	t.Setenv("ANTNS_REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("ANTNS_KAFKA_BROKERS", "a:9092,b:9092")
	t.Setenv("ANTNS_REDIS_READ_TIMEOUT", "250ms")

	cfg, err := FromEnv()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Zero(t, cfg.CacheTTL)
	assert.Equal(t, []string{".ant", ".test"}, cfg.Suffixes)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 250*time.Millisecond, cfg.Redis.ReadTimeout)
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	t.Setenv("ANTNS_KEYS_DIR", t.TempDir())
	t.Setenv("ANTNS_CACHE_TTL", "soon")
	t.Setenv("ANTNS_CHUNK_CACHE_SIZE", "many")

	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTNS_CACHE_TTL")
	assert.Contains(t, err.Error(), "ANTNS_CHUNK_CACHE_SIZE")
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			DNSAddr:          DefaultDNSAddr,
			HTTPAddr:         DefaultHTTPAddr,
			MetricsAddr:      DefaultMetricsAddr,
			Suffixes:         DefaultSuffixes,
			UpstreamTemplate: DefaultUpstreamTemplate,
			Backend:          BackendMemory,
			KeysDir:          "/tmp/keys",
		}
	}
	require.NoError(t, valid().Validate())

	cases := map[string]func(*Config){
		"bad dns addr":           func(c *Config) { c.DNSAddr = "nohost" },
		"no suffixes":            func(c *Config) { c.Suffixes = nil },
		"suffix without dot":     func(c *Config) { c.Suffixes = []string{"ant"} },
		"template without token": func(c *Config) { c.UpstreamTemplate = "http://127.0.0.1:8080/" },
		"negative ttl":           func(c *Config) { c.CacheTTL = -time.Second },
		"unknown backend":        func(c *Config) { c.Backend = "etcd" },
		"redis without url":      func(c *Config) { c.Backend = BackendRedis },
		"postgres without dsn":   func(c *Config) { c.Backend = BackendPostgres },
		"empty keys dir":         func(c *Config) { c.KeysDir = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := valid()
			mutate(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
