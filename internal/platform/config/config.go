package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	platformstrings "antns/pkg/platform/strings"
)

// Network backends.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// AddressPlaceholder is replaced by the resolved target in the upstream
// template.
const AddressPlaceholder = "$ADDRESS"

// DefaultSharedSecret is the network-wide register seed every participant
// uses. It is public: anyone must be able to locate any domain's register
// without a directory.
const DefaultSharedSecret = "3c2ad130b7863b34b17cf11b474fff302522f427e8818a3543d105d91cdb384c"

// Defaults used when the environment does not override them.
const (
	DefaultDNSAddr          = "127.0.0.1:5354"
	DefaultHTTPAddr         = "127.0.0.1:18888"
	DefaultMetricsAddr      = "127.0.0.1:9464"
	DefaultUpstreamTemplate = "http://127.0.0.1:8080/" + AddressPlaceholder
	DefaultCacheTTL         = 5 * time.Minute
	DefaultChunkCacheSize   = 4096
	DefaultAuditTopic       = "antns.audit"
)

// DefaultSuffixes are the domain suffixes served by the DNS responder and
// the proxy.
var DefaultSuffixes = []string{".ant", ".autonomi"}

// RedisConfig configures the shared Redis client.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config is the immutable process configuration.
type Config struct {
	SharedSecret string

	DNSAddr          string
	HTTPAddr         string
	MetricsAddr      string
	Suffixes         []string
	UpstreamTemplate string
	CacheTTL         time.Duration

	KeysDir string

	Backend        string
	ChunkCacheSize int
	Redis          RedisConfig
	PostgresDSN    string

	KafkaBrokers []string
	AuditTopic   string

	VaultSecret string

	LogLevel  string
	LogFormat string
}

// FromEnv loads an optional .env file and reads ANTNS_* variables over the
// defaults. Call Validate before use.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	keysDir, err := defaultKeysDir()
	if err != nil {
		return Config{}, err
	}

	var errs []error
	cfg := Config{
		SharedSecret:     getString("ANTNS_SHARED_SECRET", DefaultSharedSecret),
		DNSAddr:          getString("ANTNS_DNS_ADDR", DefaultDNSAddr),
		HTTPAddr:         getString("ANTNS_HTTP_ADDR", DefaultHTTPAddr),
		MetricsAddr:      getString("ANTNS_METRICS_ADDR", DefaultMetricsAddr),
		Suffixes:         platformstrings.DedupeFold(getList("ANTNS_SUFFIXES", DefaultSuffixes)),
		UpstreamTemplate: getString("ANTNS_UPSTREAM", DefaultUpstreamTemplate),
		KeysDir:          getString("ANTNS_KEYS_DIR", keysDir),
		Backend:          strings.ToLower(getString("ANTNS_BACKEND", BackendMemory)),
		PostgresDSN:      os.Getenv("ANTNS_POSTGRES_DSN"),
		KafkaBrokers:     platformstrings.Dedupe(getList("ANTNS_KAFKA_BROKERS", nil), nil),
		AuditTopic:       getString("ANTNS_AUDIT_TOPIC", DefaultAuditTopic),
		VaultSecret:      os.Getenv("ANTNS_VAULT_SECRET"),
		LogLevel:         getString("ANTNS_LOG_LEVEL", "info"),
		LogFormat:        getString("ANTNS_LOG_FORMAT", "text"),
		Redis: RedisConfig{
			URL: os.Getenv("ANTNS_REDIS_URL"),
		},
	}

	cfg.CacheTTL = getDuration("ANTNS_CACHE_TTL", DefaultCacheTTL, &errs)
	cfg.ChunkCacheSize = getInt("ANTNS_CHUNK_CACHE_SIZE", DefaultChunkCacheSize, &errs)
	cfg.Redis.PoolSize = getInt("ANTNS_REDIS_POOL_SIZE", 10, &errs)
	cfg.Redis.MinIdleConns = getInt("ANTNS_REDIS_MIN_IDLE_CONNS", 2, &errs)
	cfg.Redis.DialTimeout = getDuration("ANTNS_REDIS_DIAL_TIMEOUT", 5*time.Second, &errs)
	cfg.Redis.ReadTimeout = getDuration("ANTNS_REDIS_READ_TIMEOUT", 3*time.Second, &errs)
	cfg.Redis.WriteTimeout = getDuration("ANTNS_REDIS_WRITE_TIMEOUT", 3*time.Second, &errs)

	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the server cannot start with.
func (c Config) Validate() error {
	var errs []error
	for name, addr := range map[string]string{
		"ANTNS_DNS_ADDR":     c.DNSAddr,
		"ANTNS_HTTP_ADDR":    c.HTTPAddr,
		"ANTNS_METRICS_ADDR": c.MetricsAddr,
	} {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if len(c.Suffixes) == 0 {
		errs = append(errs, errors.New("ANTNS_SUFFIXES: at least one suffix is required"))
	}
	for _, s := range c.Suffixes {
		if !strings.HasPrefix(s, ".") || len(s) < 2 {
			errs = append(errs, fmt.Errorf("ANTNS_SUFFIXES: %q must start with a dot", s))
		}
	}
	if !strings.Contains(c.UpstreamTemplate, AddressPlaceholder) {
		errs = append(errs, fmt.Errorf("ANTNS_UPSTREAM: template must contain %s", AddressPlaceholder))
	} else if _, err := url.Parse(strings.ReplaceAll(c.UpstreamTemplate, AddressPlaceholder, "x")); err != nil {
		errs = append(errs, fmt.Errorf("ANTNS_UPSTREAM: %w", err))
	}
	if c.CacheTTL < 0 {
		errs = append(errs, errors.New("ANTNS_CACHE_TTL: must not be negative"))
	}
	switch c.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Redis.URL == "" {
			errs = append(errs, errors.New("ANTNS_REDIS_URL: required for the redis backend"))
		}
	case BackendPostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, errors.New("ANTNS_POSTGRES_DSN: required for the postgres backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("ANTNS_BACKEND: unknown backend %q", c.Backend))
	}
	if c.KeysDir == "" {
		errs = append(errs, errors.New("ANTNS_KEYS_DIR: must not be empty"))
	}
	return errors.Join(errs...)
}

// SuffixList returns the suffixes lower-cased without duplicates.
func (c Config) SuffixList() []string {
	return platformstrings.DedupeFold(c.Suffixes)
}

func defaultKeysDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		home, herr := os.UserHomeDir()
		if herr != nil {
			return "", fmt.Errorf("locate user data dir: %w", err)
		}
		base = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(base, "autonomi", "client", "user_data", "domain-keys"), nil
}

func getString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func getList(key string, def []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return append([]string(nil), def...)
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getInt(key string, def int, errs *[]error) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return n
}

// getDuration accepts Go durations ("90s") or bare integers as seconds.
func getDuration(key string, def time.Duration, errs *[]error) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return def
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}
