// Package keystore keeps domain owner keys on local disk, one hex seed file
// and one metadata file per domain.
package keystore

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"antns/internal/naming"
	"antns/pkg/platform/sentinel"
)

const (
	keyPrefix  = "domain-key-"
	keySuffix  = ".txt"
	metaPrefix = "domain-meta-"
	metaSuffix = ".json"
)

var (
	// ErrKeyNotFound means no key file exists for the domain.
	ErrKeyNotFound = fmt.Errorf("domain key %w", sentinel.ErrNotFound)
	// ErrInvalidDomain rejects names that cannot be used as file names.
	ErrInvalidDomain = errors.New("invalid domain name")
)

// Metadata is the JSON sidecar written next to each key.
type Metadata struct {
	Domain    string    `json:"domain"`
	PublicKey string    `json:"publicKey"`
	Created   time.Time `json:"created"`
}

// Store reads and writes keys under a single directory.
type Store struct {
	dir string
	now func() time.Time
}

type Option func(*Store)

// WithClock overrides the time recorded in metadata.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(dir string, opts ...Option) *Store {
	s := &Store{dir: dir, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Dir() string { return s.dir }

func (s *Store) keyPath(domain string) string {
	return filepath.Join(s.dir, keyPrefix+domain+keySuffix)
}

func (s *Store) metaPath(domain string) string {
	return filepath.Join(s.dir, metaPrefix+domain+metaSuffix)
}

// CheckDomain normalizes domain and rejects names that cannot be used as
// part of a key file name.
func CheckDomain(domain string) (string, error) {
	d := naming.NormalizeDomain(domain)
	if d == "" || strings.ContainsAny(d, `/\`) || strings.Contains(d, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidDomain, domain)
	}
	return d, nil
}

// Save writes key and fresh metadata for domain, replacing any existing
// files. It returns the key file path.
func (s *Store) Save(domain string, key ed25519.PrivateKey) (string, error) {
	d, err := CheckDomain(domain)
	if err != nil {
		return "", err
	}
	if len(key) != ed25519.PrivateKeySize {
		return "", naming.ErrInvalidKey
	}
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("create keys dir: %w", err)
	}

	path := s.keyPath(d)
	if err := os.WriteFile(path, []byte(naming.EncodePrivateKey(key)), 0o600); err != nil {
		return "", fmt.Errorf("write key for %s: %w", d, err)
	}

	meta, err := json.MarshalIndent(Metadata{
		Domain:    d,
		PublicKey: naming.EncodePublicKey(key.Public().(ed25519.PublicKey)),
		Created:   s.now().UTC().Truncate(time.Second),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(s.metaPath(d), meta, 0o600); err != nil {
		return "", fmt.Errorf("write metadata for %s: %w", d, err)
	}
	return path, nil
}

// Load returns the owner key for domain.
func (s *Store) Load(domain string) (ed25519.PrivateKey, error) {
	raw, err := s.Export(domain)
	if err != nil {
		return nil, err
	}
	key, err := naming.ParsePrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("key file for %s: %w", domain, err)
	}
	return key, nil
}

// Export returns the stored hex seed for domain as written on disk.
func (s *Store) Export(domain string) (string, error) {
	d, err := CheckDomain(domain)
	if err != nil {
		return "", err
	}
	raw, err := os.ReadFile(s.keyPath(d))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%s: %w", d, ErrKeyNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("read key for %s: %w", d, err)
	}
	return strings.TrimSpace(string(raw)), nil
}

// Import validates a hex key and saves it for domain, overwriting any
// existing key.
func (s *Store) Import(domain, hexKey string) (Metadata, error) {
	key, err := naming.ParsePrivateKey(hexKey)
	if err != nil {
		return Metadata{}, err
	}
	if _, err := s.Save(domain, key); err != nil {
		return Metadata{}, err
	}
	return s.Metadata(domain)
}

// Metadata reads the sidecar for domain.
func (s *Store) Metadata(domain string) (Metadata, error) {
	d, err := CheckDomain(domain)
	if err != nil {
		return Metadata{}, err
	}
	raw, err := os.ReadFile(s.metaPath(d))
	if errors.Is(err, fs.ErrNotExist) {
		return Metadata{}, fmt.Errorf("%s metadata: %w", d, ErrKeyNotFound)
	}
	if err != nil {
		return Metadata{}, fmt.Errorf("read metadata for %s: %w", d, err)
	}
	var m Metadata
	if err := json.Unmarshal(raw, &m); err != nil {
		return Metadata{}, fmt.Errorf("decode metadata for %s: %w", d, err)
	}
	return m, nil
}

// List returns every domain with a key file, sorted. A missing directory is
// an empty list.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read keys dir: %w", err)
	}
	domains := []string{}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, keyPrefix) || !strings.HasSuffix(name, keySuffix) {
			continue
		}
		if d := strings.TrimSuffix(strings.TrimPrefix(name, keyPrefix), keySuffix); d != "" {
			domains = append(domains, d)
		}
	}
	sort.Strings(domains)
	return domains, nil
}

// All returns domain to hex seed for every stored key.
func (s *Store) All() (map[string]string, error) {
	domains, err := s.List()
	if err != nil {
		return nil, err
	}
	keys := make(map[string]string, len(domains))
	for _, d := range domains {
		k, err := s.Export(d)
		if err != nil {
			return nil, err
		}
		keys[d] = k
	}
	return keys, nil
}
