package naming

import (
	"context"
	"crypto/ed25519"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"antns/internal/network"
	"antns/internal/platform/metrics"
	"antns/pkg/platform/audit"
	"antns/pkg/platform/sentinel"
	"antns/pkg/requestcontext"
)

// Registration is the result of claiming a new domain.
type Registration struct {
	Domain       string
	Address      network.RegisterAddress
	OwnerKey     ed25519.PrivateKey
	ChunkAddress network.ChunkAddress
}

// Publication is the result of a successful mutation.
type Publication struct {
	Domain       string
	Records      []Record
	ChunkAddress network.ChunkAddress
}

// Mutator edits domain record sets. Every edit republishes the complete set:
// resolve, modify in memory, sign, put the document, append its address.
type Mutator struct {
	deriver  *Deriver
	net      network.Client
	resolver *Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics
	auditor  audit.Emitter
	now      func() time.Time
}

func NewMutator(deriver *Deriver, net network.Client, opts ...Option) *Mutator {
	o := newOptions(opts)
	return &Mutator{
		deriver:  deriver,
		net:      net,
		resolver: NewResolver(deriver, net, opts...),
		logger:   o.logger,
		metrics:  o.metrics,
		auditor:  o.auditor,
		now:      o.now,
	}
}

// Register claims domain: it generates an owner keypair, publishes the owner
// document and creates the domain's register with it as entry #1. No records
// are published.
func (m *Mutator) Register(ctx context.Context, domain string) (*Registration, error) {
	id := m.deriver.Derive(domain)
	if _, err := m.net.RegisterHead(ctx, id.Address); err == nil {
		return nil, fmt.Errorf("register %s: %w", domain, sentinel.ErrConflict)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, fmt.Errorf("register %s: %w", domain, err)
	}

	owner, err := GenerateKey()
	if err != nil {
		return nil, err
	}
	doc, err := EncodeOwner(OwnerDocument{PublicKey: EncodePublicKey(owner.Public().(ed25519.PublicKey))})
	if err != nil {
		return nil, fmt.Errorf("encode owner document: %w", err)
	}
	chunk, err := m.net.PutChunk(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("upload owner document: %w", err)
	}
	addr, err := m.net.CreateRegister(ctx, id.RegisterKey, chunk)
	if err != nil {
		return nil, fmt.Errorf("create register for %s: %w", domain, err)
	}

	m.logger.InfoContext(ctx, "domain registered", "domain", domain, "register", addr)
	m.metrics.IncrementMutation("register")
	m.emit(ctx, audit.Event{
		Action:       audit.ActionDomainRegistered,
		Domain:       domain,
		ChunkAddress: chunk.String(),
	})
	return &Registration{Domain: domain, Address: addr, OwnerKey: owner, ChunkAddress: chunk}, nil
}

// Add appends record to the current set. A registered domain with no valid
// records starts from an empty set.
func (m *Mutator) Add(ctx context.Context, domain string, owner ed25519.PrivateKey, record Record) (*Publication, error) {
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return m.mutate(ctx, domain, owner, "add", true, func(records []Record) ([]Record, error) {
		return append(records, record), nil
	})
}

// Delete removes the record at index.
func (m *Mutator) Delete(ctx context.Context, domain string, owner ed25519.PrivateKey, index int) (*Publication, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
	}
	return m.mutate(ctx, domain, owner, "delete", false, func(records []Record) ([]Record, error) {
		if index >= len(records) {
			return nil, fmt.Errorf("%w: index %d, %d records", ErrIndexOutOfRange, index, len(records))
		}
		return append(records[:index:index], records[index+1:]...), nil
	})
}

// Update replaces the record at index.
func (m *Mutator) Update(ctx context.Context, domain string, owner ed25519.PrivateKey, index int, record Record) (*Publication, error) {
	if index < 0 {
		return nil, fmt.Errorf("%w: index %d", ErrIndexOutOfRange, index)
	}
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return m.mutate(ctx, domain, owner, "update", false, func(records []Record) ([]Record, error) {
		if index >= len(records) {
			return nil, fmt.Errorf("%w: index %d, %d records", ErrIndexOutOfRange, index, len(records))
		}
		out := append([]Record(nil), records...)
		out[index] = record
		return out, nil
	})
}

// Replace publishes records as the domain's complete set.
func (m *Mutator) Replace(ctx context.Context, domain string, owner ed25519.PrivateKey, records []Record) (*Publication, error) {
	for _, r := range records {
		if err := ValidateRecord(r); err != nil {
			return nil, err
		}
	}
	replacement := append([]Record{}, records...)
	return m.mutate(ctx, domain, owner, "replace", true, func([]Record) ([]Record, error) {
		return replacement, nil
	})
}

// SetTarget replaces the set with a single root ANT record pointing at target.
func (m *Mutator) SetTarget(ctx context.Context, domain string, owner ed25519.PrivateKey, target string) (*Publication, error) {
	record := Record{Type: RecordTypeANT, Name: RootName, Value: target}
	if err := ValidateRecord(record); err != nil {
		return nil, err
	}
	return m.mutate(ctx, domain, owner, "set_target", true, func([]Record) ([]Record, error) {
		return []Record{record}, nil
	})
}

// ValidateRecord rejects records that no resolver would understand.
func ValidateRecord(r Record) error {
	if !strings.EqualFold(r.Type, RecordTypeText) && !strings.EqualFold(r.Type, RecordTypeANT) {
		return fmt.Errorf("%w: unsupported record type %q", ErrInvalidRecord, r.Type)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: record name is empty", ErrInvalidRecord)
	}
	if strings.EqualFold(r.Type, RecordTypeANT) && strings.TrimSpace(r.Value) == "" {
		return fmt.Errorf("%w: ANT record needs a target", ErrInvalidRecord)
	}
	return nil
}

// mutate runs one read-modify-sign-publish-append transaction. emptyOK lets
// a domain without valid records start from an empty set.
func (m *Mutator) mutate(
	ctx context.Context,
	domain string,
	owner ed25519.PrivateKey,
	kind string,
	emptyOK bool,
	edit func([]Record) ([]Record, error),
) (*Publication, error) {
	if len(owner) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: owner key must be %d bytes", ErrInvalidKey, ed25519.PrivateKeySize)
	}

	p, err := m.resolver.replay(ctx, domain)
	if err != nil {
		return nil, err
	}
	if !p.owner.Equal(owner.Public()) {
		return nil, fmt.Errorf("%s: %w", domain, ErrNotOwner)
	}

	var current []Record
	set, err := p.recordSet()
	switch {
	case err == nil:
		current = set.Records
	case emptyOK && errors.Is(err, ErrNoValidRecords):
	default:
		return nil, err
	}

	records, err := edit(current)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}

	chunk, err := m.publish(ctx, p.identity, owner, records)
	if err != nil {
		return nil, err
	}

	m.logger.InfoContext(ctx, "records published",
		"domain", domain,
		"mutation", kind,
		"records", len(records),
		"chunk", chunk,
	)
	m.metrics.IncrementMutation(kind)
	m.emit(ctx, audit.Event{
		Action:       audit.ActionRecordsPublished,
		Domain:       domain,
		ChunkAddress: chunk.String(),
		RecordCount:  len(records),
		Mutation:     kind,
	})
	return &Publication{Domain: domain, Records: records, ChunkAddress: chunk}, nil
}

func (m *Mutator) publish(ctx context.Context, id Identity, owner ed25519.PrivateKey, records []Record) (network.ChunkAddress, error) {
	sig, err := Sign(records, owner)
	if err != nil {
		return network.ChunkAddress{}, err
	}
	doc, err := EncodeRecords(RecordsDocument{Records: records, Signature: sig})
	if err != nil {
		return network.ChunkAddress{}, fmt.Errorf("encode records document: %w", err)
	}
	chunk, err := m.net.PutChunk(ctx, doc)
	if err != nil {
		return network.ChunkAddress{}, fmt.Errorf("upload records document: %w", err)
	}
	if err := m.net.AppendRegister(ctx, id.RegisterKey, chunk); err != nil {
		return network.ChunkAddress{}, fmt.Errorf("append to register of %s: %w", id.Domain, err)
	}
	return chunk, nil
}

// emit reports a published change. Audit failures are logged, never returned:
// the network write has already happened.
func (m *Mutator) emit(ctx context.Context, event audit.Event) {
	event.Timestamp = m.now()
	if id := requestcontext.RequestID(ctx); id != "" {
		event.RequestID = id
	}
	if err := m.auditor.Emit(ctx, event); err != nil {
		m.logger.WarnContext(ctx, "audit emit failed",
			"action", event.Action,
			"domain", event.Domain,
			"error", err,
		)
	}
}
