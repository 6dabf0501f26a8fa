package naming

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"antns/internal/network"
	"antns/internal/platform/metrics"
	"antns/pkg/platform/audit"
	"antns/pkg/platform/sentinel"
)

// HistoryReader is the read side of the network the resolver needs.
type HistoryReader interface {
	GetChunk(ctx context.Context, addr network.ChunkAddress) ([]byte, error)
	RegisterHistory(addr network.RegisterAddress) network.HistoryIterator
	RegisterHead(ctx context.Context, addr network.RegisterAddress) (network.ChunkAddress, error)
}

type options struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
	auditor audit.Emitter
	now     func() time.Time
}

// Option configures a Resolver or Mutator.
type Option func(*options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) { o.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) { o.metrics = m }
}

// WithAuditor sets where the mutator reports published changes.
func WithAuditor(e audit.Emitter) Option {
	return func(o *options) { o.auditor = e }
}

// WithClock overrides the time source used for audit timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func newOptions(opts []Option) options {
	o := options{
		logger:  slog.Default(),
		auditor: audit.Nop{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Resolver replays register histories and computes the authoritative state
// of a domain. It holds no per-domain state and is safe for concurrent use.
type Resolver struct {
	deriver *Deriver
	net     HistoryReader
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewResolver(deriver *Deriver, net HistoryReader, opts ...Option) *Resolver {
	o := newOptions(opts)
	return &Resolver{
		deriver: deriver,
		net:     net,
		logger:  o.logger,
		metrics: o.metrics,
	}
}

// replay is the outcome of one pass over a register.
type replay struct {
	identity Identity
	owner    ed25519.PublicKey
	entries  []HistoryEntry
	// latest is the index of the last valid records entry, or -1.
	latest int
}

func (p *replay) recordSet() (*RecordSet, error) {
	if p.latest < 0 {
		return nil, fmt.Errorf("%s: %w", p.identity.Domain, ErrNoValidRecords)
	}
	e := p.entries[p.latest]
	return &RecordSet{
		Domain:         p.identity.Domain,
		Records:        append([]Record(nil), e.Records...),
		OwnerPublicKey: EncodePublicKey(p.owner),
		ChunkAddress:   e.ChunkAddress,
	}, nil
}

// History returns every entry of the domain's register, classified. Entries
// that fail to download, parse or verify are kept with their Failure set.
func (r *Resolver) History(ctx context.Context, domain string) ([]HistoryEntry, error) {
	p, err := r.replay(ctx, domain)
	if err != nil {
		return nil, err
	}
	return p.entries, nil
}

// Resolve returns the most recent authentic record set.
func (r *Resolver) Resolve(ctx context.Context, domain string) (*RecordSet, error) {
	set, err := r.resolve(ctx, domain)
	r.metrics.IncrementResolution(outcome(err))
	return set, err
}

// Records returns the authoritative records of domain.
func (r *Resolver) Records(ctx context.Context, domain string) ([]Record, error) {
	set, err := r.Resolve(ctx, domain)
	if err != nil {
		return nil, err
	}
	return set.Records, nil
}

// Lookup resolves the domain's active target: the value of the first root
// ANT record in the authoritative set.
func (r *Resolver) Lookup(ctx context.Context, domain string) (*Resolution, error) {
	res, err := r.lookup(ctx, domain)
	r.metrics.IncrementResolution(outcome(err))
	return res, err
}

func (r *Resolver) lookup(ctx context.Context, domain string) (*Resolution, error) {
	set, err := r.resolve(ctx, domain)
	if err != nil {
		return nil, err
	}
	target, ok := set.Target()
	if !ok {
		return nil, fmt.Errorf("%s: %w", domain, ErrNoTargetRecord)
	}
	r.logger.InfoContext(ctx, "domain resolved", "domain", domain, "target", target)
	return &Resolution{Domain: domain, Target: target, OwnerPublicKey: set.OwnerPublicKey}, nil
}

func (r *Resolver) resolve(ctx context.Context, domain string) (*RecordSet, error) {
	p, err := r.replay(ctx, domain)
	if err != nil {
		return nil, err
	}
	return p.recordSet()
}

// QuickLookupUnverified reads only the register head and returns its root
// ANT record. No signature is checked and earlier entries are ignored, so
// anyone able to append to the register controls the answer. Use Lookup
// wherever the result is trusted.
func (r *Resolver) QuickLookupUnverified(ctx context.Context, domain string) (string, error) {
	id := r.deriver.Derive(domain)
	head, err := r.net.RegisterHead(ctx, id.Address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", fmt.Errorf("%s: %w", domain, ErrRegisterNotFound)
		}
		return "", fmt.Errorf("read head of %s: %w", domain, err)
	}
	data, err := r.net.GetChunk(ctx, head)
	if err != nil {
		return "", fmt.Errorf("download head of %s: %w", domain, err)
	}
	doc, err := DecodeRecords(data)
	if err != nil {
		return "", fmt.Errorf("%s: %w: head is not a records document: %w", domain, ErrNoValidRecords, err)
	}
	for _, rec := range doc.Records {
		if rec.IsTarget() {
			return rec.Value, nil
		}
	}
	return "", fmt.Errorf("%s: %w", domain, ErrNoTargetRecord)
}

func (r *Resolver) replay(ctx context.Context, domain string) (*replay, error) {
	start := time.Now()
	defer r.metrics.ObserveResolve(start)

	id := r.deriver.Derive(domain)
	it := r.net.RegisterHistory(id.Address)

	first, ok, err := it.Next(ctx)
	if errors.Is(err, network.ErrMalformedEntry) {
		return nil, fmt.Errorf("%s: %w: %w", domain, ErrCorruptRegistration, err)
	}
	if err != nil {
		return nil, fmt.Errorf("read history of %s: %w", domain, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: %w", domain, ErrRegisterNotFound)
	}
	owner, ownerHex, err := r.readOwner(ctx, first)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", domain, err)
	}

	p := &replay{
		identity: id,
		owner:    owner,
		entries: []HistoryEntry{{
			Kind:         EntryOwner,
			ChunkAddress: first,
			PublicKey:    ownerHex,
			Valid:        true,
		}},
		latest: -1,
	}

	for {
		addr, ok, err := it.Next(ctx)
		malformed := errors.Is(err, network.ErrMalformedEntry)
		if err != nil && !malformed {
			return nil, fmt.Errorf("read history of %s: %w", domain, err)
		}
		if !ok {
			break
		}
		var entry HistoryEntry
		if malformed {
			r.logger.WarnContext(ctx, "register entry is not a chunk address", "domain", domain, "error", err)
			entry = HistoryEntry{Kind: EntryRecords, Failure: FailureParse}
		} else if entry, err = r.classify(ctx, addr, owner); err != nil {
			return nil, err
		}
		r.metrics.IncrementHistoryEntry(classification(entry))
		p.entries = append(p.entries, entry)
		if entry.Valid {
			p.latest = len(p.entries) - 1
		}
	}

	r.logger.DebugContext(ctx, "history replayed",
		"domain", domain,
		"entries", len(p.entries),
		"duration", time.Since(start),
	)
	return p, nil
}

// readOwner loads entry #1. A missing or unusable owner document means the
// domain was never successfully registered.
func (r *Resolver) readOwner(ctx context.Context, addr network.ChunkAddress) (ed25519.PublicKey, string, error) {
	data, err := r.net.GetChunk(ctx, addr)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, "", fmt.Errorf("%w: owner chunk %s missing", ErrCorruptRegistration, addr)
		}
		return nil, "", fmt.Errorf("download owner document: %w", err)
	}
	doc, err := DecodeOwner(data)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCorruptRegistration, err)
	}
	key, err := ParsePublicKey(doc.PublicKey)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", ErrCorruptRegistration, err)
	}
	return key, doc.PublicKey, nil
}

// classify turns one records entry into a HistoryEntry. Only cancellation of
// ctx is returned as an error; every other failure is recorded on the entry.
func (r *Resolver) classify(ctx context.Context, addr network.ChunkAddress, owner ed25519.PublicKey) (HistoryEntry, error) {
	entry := HistoryEntry{Kind: EntryRecords, ChunkAddress: addr}

	data, err := r.net.GetChunk(ctx, addr)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return entry, ctxErr
		}
		r.logger.WarnContext(ctx, "history entry download failed", "chunk", addr, "error", err)
		entry.Failure = FailureDownload
		return entry, nil
	}

	doc, err := DecodeRecords(data)
	if err != nil {
		r.logger.WarnContext(ctx, "history entry is not a records document", "chunk", addr, "error", err)
		entry.Failure = FailureParse
		return entry, nil
	}
	entry.Records = doc.Records
	entry.Signature = &doc.Signature

	if !Verify(doc.Records, doc.Signature, owner) {
		r.logger.DebugContext(ctx, "history entry signature invalid", "chunk", addr)
		entry.Failure = FailureSignature
		return entry, nil
	}
	entry.Valid = true
	return entry, nil
}

func classification(e HistoryEntry) string {
	switch {
	case e.Valid:
		return "valid"
	case e.Failure == FailureSignature:
		return "spam"
	default:
		return "corrupted"
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrRegisterNotFound):
		return "not_registered"
	case errors.Is(err, ErrCorruptRegistration):
		return "corrupt_registration"
	case errors.Is(err, ErrNoValidRecords):
		return "no_valid_records"
	case errors.Is(err, ErrNoTargetRecord):
		return "no_target_record"
	default:
		return "error"
	}
}
