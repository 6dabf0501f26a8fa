// Package vault backs up every local domain key as one JSON payload in a
// remote store addressed by a key derived from the wallet secret.
package vault

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/hkdf"

	"antns/internal/keystore"
	"antns/internal/naming"
	"antns/pkg/platform/sentinel"
)

// Version is the only payload schema this package reads and writes.
const Version = 1

const vaultInfo = "antns/vault/v1"

var (
	ErrNoBackup        = fmt.Errorf("vault backup %w", sentinel.ErrNotFound)
	ErrNothingToBackup = errors.New("no domain keys to back up")
	ErrInvalidBackup   = errors.New("invalid vault backup")
	ErrNoWalletSecret  = errors.New("wallet secret is required for vault access")
)

// Payload is the stored backup document.
type Payload struct {
	Keys      map[string]string `json:"keys"`
	CreatedAt time.Time         `json:"created_at"`
	Version   int               `json:"version"`
}

type wirePayload struct {
	Keys      *map[string]string `json:"keys"`
	CreatedAt *time.Time         `json:"created_at"`
	Version   *int               `json:"version"`
}

// Store persists one blob per vault key.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	// Get fails with sentinel.ErrNotFound when nothing is stored.
	Get(ctx context.Context, key string) ([]byte, error)
}

// DeriveKey returns the hex vault key for a wallet secret.
func DeriveKey(walletSecret string) (string, error) {
	if walletSecret == "" {
		return "", ErrNoWalletSecret
	}
	out := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(walletSecret), nil, []byte(vaultInfo)), out); err != nil {
		return "", fmt.Errorf("derive vault key: %w", err)
	}
	return hex.EncodeToString(out), nil
}

// Vault moves keys between a keystore.Store and a remote Store.
type Vault struct {
	store  Store
	keys   *keystore.Store
	key    string
	now    func() time.Time
	logger *slog.Logger
}

type Option func(*Vault)

func WithLogger(logger *slog.Logger) Option {
	return func(v *Vault) { v.logger = logger }
}

func WithClock(now func() time.Time) Option {
	return func(v *Vault) { v.now = now }
}

func New(store Store, keys *keystore.Store, walletSecret string, opts ...Option) (*Vault, error) {
	key, err := DeriveKey(walletSecret)
	if err != nil {
		return nil, err
	}
	v := &Vault{store: store, keys: keys, key: key, now: time.Now, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// Backup uploads all local keys, replacing any previous backup. It returns
// the backed-up domains, sorted.
func (v *Vault) Backup(ctx context.Context) ([]string, error) {
	keys, err := v.keys.All()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, ErrNothingToBackup
	}

	raw, err := json.MarshalIndent(Payload{
		Keys:      keys,
		CreatedAt: v.now().UTC().Truncate(time.Second),
		Version:   Version,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode backup: %w", err)
	}
	if err := v.store.Put(ctx, v.key, raw); err != nil {
		return nil, fmt.Errorf("store backup: %w", err)
	}

	domains := sortedDomains(keys)
	v.logger.InfoContext(ctx, "vault backup stored", "domains", len(domains))
	return domains, nil
}

// Fetch downloads and validates the backup without touching local keys.
func (v *Vault) Fetch(ctx context.Context) (Payload, error) {
	raw, err := v.store.Get(ctx, v.key)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Payload{}, ErrNoBackup
	}
	if err != nil {
		return Payload{}, fmt.Errorf("fetch backup: %w", err)
	}
	return Decode(raw)
}

// Restore writes every key in the backup to the keystore, overwriting local
// copies. Nothing is written unless every key in the payload is valid.
func (v *Vault) Restore(ctx context.Context) ([]string, error) {
	p, err := v.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	domains := sortedDomains(p.Keys)
	for _, d := range domains {
		if _, err := keystore.CheckDomain(d); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
		}
		if _, err := naming.ParsePrivateKey(p.Keys[d]); err != nil {
			return nil, fmt.Errorf("%w: key for %s: %w", ErrInvalidBackup, d, err)
		}
	}
	for _, d := range domains {
		if _, err := v.keys.Import(d, p.Keys[d]); err != nil {
			return nil, fmt.Errorf("restore %s: %w", d, err)
		}
	}
	v.logger.InfoContext(ctx, "vault backup restored", "domains", len(domains), "created_at", p.CreatedAt)
	return domains, nil
}

// Decode parses a stored payload, rejecting non-UTF-8 input and any
// document that is not a complete version 1 backup.
func Decode(raw []byte) (Payload, error) {
	if !utf8.Valid(raw) {
		return Payload{}, fmt.Errorf("%w: not valid UTF-8", ErrInvalidBackup)
	}
	var w wirePayload
	if err := json.Unmarshal(raw, &w); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrInvalidBackup, err)
	}
	if w.Keys == nil || w.CreatedAt == nil || w.Version == nil {
		return Payload{}, fmt.Errorf("%w: missing keys, created_at or version", ErrInvalidBackup)
	}
	if *w.Version != Version {
		return Payload{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidBackup, *w.Version)
	}
	return Payload{Keys: *w.Keys, CreatedAt: *w.CreatedAt, Version: *w.Version}, nil
}

func sortedDomains(keys map[string]string) []string {
	out := make([]string, 0, len(keys))
	for d := range keys {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
