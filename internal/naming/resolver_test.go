package naming

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"antns/internal/network"
	"antns/internal/platform/config"
	"antns/internal/platform/metrics"
)

type ResolverSuite struct {
	suite.Suite
	ctx      context.Context
	net      *network.InMemory
	deriver  *Deriver
	resolver *Resolver
	owner    ed25519.PrivateKey
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.ctx = context.Background()
	s.net = network.NewInMemory()
	d, err := ParseSharedSecret(config.DefaultSharedSecret)
	s.Require().NoError(err)
	s.deriver = d
	s.resolver = NewResolver(d, s.net)
	s.owner, err = GenerateKey()
	s.Require().NoError(err)
}

// register writes an owner document for domain as entry #1.
func (s *ResolverSuite) register(domain string) {
	doc, err := EncodeOwner(OwnerDocument{PublicKey: EncodePublicKey(s.owner.Public().(ed25519.PublicKey))})
	s.Require().NoError(err)
	s.registerRaw(domain, doc)
}

func (s *ResolverSuite) registerRaw(domain string, first []byte) {
	addr, err := s.net.PutChunk(s.ctx, first)
	s.Require().NoError(err)
	_, err = s.net.CreateRegister(s.ctx, s.deriver.Derive(domain).RegisterKey, addr)
	s.Require().NoError(err)
}

// appendRecords signs records with signer and appends the document.
func (s *ResolverSuite) appendRecords(domain string, signer ed25519.PrivateKey, records []Record) network.ChunkAddress {
	sig, err := Sign(records, signer)
	s.Require().NoError(err)
	data, err := EncodeRecords(RecordsDocument{Records: records, Signature: sig})
	s.Require().NoError(err)
	return s.appendRaw(domain, data)
}

func (s *ResolverSuite) appendRaw(domain string, data []byte) network.ChunkAddress {
	addr, err := s.net.PutChunk(s.ctx, data)
	s.Require().NoError(err)
	s.Require().NoError(s.net.AppendRegister(s.ctx, s.deriver.Derive(domain).RegisterKey, addr))
	return addr
}

func (s *ResolverSuite) TestLastValidRecordSetWins() {
	attacker, err := GenerateKey()
	s.Require().NoError(err)

	setA := []Record{{Type: "ANT", Name: ".", Value: "aaaa"}}
	setB := []Record{{Type: "ANT", Name: ".", Value: "bbbb"}}
	setC := []Record{{Type: "TEXT", Name: ".", Value: "c"}, {Type: "ant", Name: ".", Value: "cccc"}}

	s.register("alice.ant")
	s.appendRecords("alice.ant", s.owner, setA)
	s.appendRecords("alice.ant", attacker, setB)
	chunkC := s.appendRecords("alice.ant", s.owner, setC)

	set, err := s.resolver.Resolve(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.Equal(setC, set.Records)
	s.Equal(chunkC, set.ChunkAddress)
	s.Equal(EncodePublicKey(s.owner.Public().(ed25519.PublicKey)), set.OwnerPublicKey)

	res, err := s.resolver.Lookup(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.Equal("cccc", res.Target)

	entries, err := s.resolver.History(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.Require().Len(entries, 4)
	s.Equal(EntryOwner, entries[0].Kind)
	s.True(entries[1].Valid)
	s.False(entries[2].Valid)
	s.Equal(FailureSignature, entries[2].Failure)
	s.Equal(setB, entries[2].Records, "spam entries keep their parsed content for audit")
	s.True(entries[3].Valid)

	s.Equal(HistoryStats{Total: 4, Valid: 3, Spam: 1, Corrupted: 0}, CalculateStats(entries))
}

func (s *ResolverSuite) TestCorruptedEntriesAreClassifiedAndSkipped() {
	valid := []Record{{Type: "ANT", Name: ".", Value: "good"}}

	s.register("bob.ant")
	s.appendRecords("bob.ant", s.owner, valid)
	s.appendRaw("bob.ant", []byte("not json at all"))
	s.appendRaw("bob.ant", []byte(`{"publicKey":"ab"}`))
	lost := s.appendRaw("bob.ant", []byte(`{"records":[],"signature":"00"}`))
	s.net.DropChunk(lost)

	entries, err := s.resolver.History(s.ctx, "bob.ant")
	s.Require().NoError(err)
	s.Require().Len(entries, 5)
	s.Equal(FailureParse, entries[2].Failure)
	s.Nil(entries[2].Signature)
	s.Equal(FailureParse, entries[3].Failure)
	s.Equal(FailureDownload, entries[4].Failure)

	s.Equal(HistoryStats{Total: 5, Valid: 2, Spam: 0, Corrupted: 3}, CalculateStats(entries))

	res, err := s.resolver.Lookup(s.ctx, "bob.ant")
	s.Require().NoError(err)
	s.Equal("good", res.Target)
}

func (s *ResolverSuite) TestOwnerOnlyHistoryHasNoValidRecords() {
	s.register("carol.ant")

	_, err := s.resolver.Resolve(s.ctx, "carol.ant")
	s.ErrorIs(err, ErrNoValidRecords)

	_, err = s.resolver.Lookup(s.ctx, "carol.ant")
	s.ErrorIs(err, ErrNoValidRecords)

	entries, err := s.resolver.History(s.ctx, "carol.ant")
	s.Require().NoError(err)
	s.Len(entries, 1)
}

func (s *ResolverSuite) TestOnlySpamHasNoValidRecords() {
	attacker, err := GenerateKey()
	s.Require().NoError(err)
	s.register("dave.ant")
	s.appendRecords("dave.ant", attacker, []Record{{Type: "ANT", Name: ".", Value: "evil"}})

	_, err = s.resolver.Lookup(s.ctx, "dave.ant")
	s.ErrorIs(err, ErrNoValidRecords)
}

func (s *ResolverSuite) TestUnregisteredDomain() {
	_, err := s.resolver.Resolve(s.ctx, "nobody.ant")
	s.ErrorIs(err, ErrRegisterNotFound)

	_, err = s.resolver.History(s.ctx, "nobody.ant")
	s.ErrorIs(err, ErrRegisterNotFound)

	_, err = s.resolver.QuickLookupUnverified(s.ctx, "nobody.ant")
	s.ErrorIs(err, ErrRegisterNotFound)
}

func (s *ResolverSuite) TestCorruptRegistration() {
	cases := map[string][]byte{
		"not an owner document": []byte(`{"records":[],"signature":""}`),
		"public key not hex":    []byte(`{"publicKey":"xyz"}`),
		"public key too short":  []byte(`{"publicKey":"abcd"}`),
		"garbage":               []byte{0xff, 0xfe},
	}
	for name, first := range cases {
		s.Run(name, func() {
			domain := "corrupt-" + name + ".ant"
			s.registerRaw(domain, first)
			s.appendRecords(domain, s.owner, []Record{{Type: "ANT", Name: ".", Value: "x"}})

			_, err := s.resolver.Resolve(s.ctx, domain)
			s.ErrorIs(err, ErrCorruptRegistration)
		})
	}

	s.Run("owner chunk missing", func() {
		doc := []byte(`{"publicKey":"` + EncodePublicKey(s.owner.Public().(ed25519.PublicKey)) + `"}`)
		s.registerRaw("missing.ant", doc)
		s.net.DropChunk(network.AddressOf(doc))

		_, err := s.resolver.Resolve(s.ctx, "missing.ant")
		s.ErrorIs(err, ErrCorruptRegistration)
	})
}

func (s *ResolverSuite) TestNoTargetRecordIsDistinct() {
	s.register("erin.ant")
	s.appendRecords("erin.ant", s.owner, []Record{
		{Type: "TEXT", Name: ".", Value: "hello"},
		{Type: "ANT", Name: "www", Value: "not-root"},
	})

	records, err := s.resolver.Records(s.ctx, "erin.ant")
	s.Require().NoError(err)
	s.Len(records, 2)

	_, err = s.resolver.Lookup(s.ctx, "erin.ant")
	s.ErrorIs(err, ErrNoTargetRecord)
	s.NotErrorIs(err, ErrNoValidRecords)
}

func (s *ResolverSuite) TestFirstRootTargetWins() {
	s.register("frank.ant")
	s.appendRecords("frank.ant", s.owner, []Record{
		{Type: "Ant", Name: ".", Value: "first"},
		{Type: "ANT", Name: ".", Value: "second"},
	})

	res, err := s.resolver.Lookup(s.ctx, "frank.ant")
	s.Require().NoError(err)
	s.Equal("first", res.Target)
}

func (s *ResolverSuite) TestQuickLookupSkipsVerification() {
	attacker, err := GenerateKey()
	s.Require().NoError(err)
	s.register("gina.ant")
	s.appendRecords("gina.ant", s.owner, []Record{{Type: "ANT", Name: ".", Value: "real"}})
	s.appendRecords("gina.ant", attacker, []Record{{Type: "ANT", Name: ".", Value: "forged"}})

	target, err := s.resolver.QuickLookupUnverified(s.ctx, "gina.ant")
	s.Require().NoError(err)
	s.Equal("forged", target)

	res, err := s.resolver.Lookup(s.ctx, "gina.ant")
	s.Require().NoError(err)
	s.Equal("real", res.Target)
}

func (s *ResolverSuite) TestQuickLookupOnOwnerOnlyRegister() {
	s.register("hank.ant")
	_, err := s.resolver.QuickLookupUnverified(s.ctx, "hank.ant")
	s.ErrorIs(err, ErrNoValidRecords)
}

func (s *ResolverSuite) TestCancelledContextAbortsReplay() {
	s.register("ivy.ant")
	s.appendRecords("ivy.ant", s.owner, []Record{{Type: "ANT", Name: ".", Value: "x"}})

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()
	_, err := s.resolver.Resolve(ctx, "ivy.ant")
	s.ErrorIs(err, context.Canceled)
}

func (s *ResolverSuite) TestLookupOutcomesAreCountedOnce() {
	reg := prometheus.NewRegistry()
	resolver := NewResolver(s.deriver, s.net, WithMetrics(metrics.New(reg)))

	s.register("kim.ant")
	s.appendRecords("kim.ant", s.owner, []Record{{Type: "TEXT", Name: ".", Value: "no target"}})
	s.register("lee.ant")
	s.appendRecords("lee.ant", s.owner, []Record{{Type: "ANT", Name: ".", Value: "beef"}})

	_, err := resolver.Lookup(s.ctx, "kim.ant")
	s.ErrorIs(err, ErrNoTargetRecord)
	_, err = resolver.Lookup(s.ctx, "lee.ant")
	s.Require().NoError(err)
	_, err = resolver.Lookup(s.ctx, "nobody.ant")
	s.ErrorIs(err, ErrRegisterNotFound)

	families, err := reg.Gather()
	s.Require().NoError(err)
	counts := map[string]float64{}
	for _, f := range families {
		if f.GetName() != "antns_resolutions_total" {
			continue
		}
		for _, m := range f.GetMetric() {
			counts[m.GetLabel()[0].GetValue()] = m.GetCounter().GetValue()
		}
	}
	s.Equal(map[string]float64{"ok": 1, "no_target_record": 1, "not_registered": 1}, counts)
}

// garbledHistory reports the register value at position bad as undecodable.
type garbledHistory struct {
	*network.InMemory
	bad int
}

func (g garbledHistory) RegisterHistory(addr network.RegisterAddress) network.HistoryIterator {
	return &garbledIterator{inner: g.InMemory.RegisterHistory(addr), bad: g.bad}
}

type garbledIterator struct {
	inner network.HistoryIterator
	pos   int
	bad   int
}

func (it *garbledIterator) Next(ctx context.Context) (network.ChunkAddress, bool, error) {
	addr, ok, err := it.inner.Next(ctx)
	defer func() { it.pos++ }()
	if ok && err == nil && it.pos == it.bad {
		return network.ChunkAddress{}, true, fmt.Errorf("register entry %d: %w", it.pos, network.ErrMalformedEntry)
	}
	return addr, ok, err
}

func (s *ResolverSuite) TestMalformedRegisterValueIsAParseFailure() {
	valid := []Record{{Type: "ANT", Name: ".", Value: "good"}}
	s.register("max.ant")
	s.appendRecords("max.ant", s.owner, valid)
	s.appendRecords("max.ant", s.owner, []Record{{Type: "ANT", Name: ".", Value: "lost"}})

	resolver := NewResolver(s.deriver, garbledHistory{InMemory: s.net, bad: 2})

	entries, err := resolver.History(s.ctx, "max.ant")
	s.Require().NoError(err)
	s.Require().Len(entries, 3)
	s.True(entries[1].Valid)
	s.False(entries[2].Valid)
	s.Equal(FailureParse, entries[2].Failure)

	set, err := resolver.Resolve(s.ctx, "max.ant")
	s.Require().NoError(err)
	s.Equal(valid, set.Records)
}

func (s *ResolverSuite) TestMalformedOwnerValueIsCorruptRegistration() {
	s.register("ned.ant")

	resolver := NewResolver(s.deriver, garbledHistory{InMemory: s.net, bad: 0})

	_, err := resolver.Resolve(s.ctx, "ned.ant")
	s.ErrorIs(err, ErrCorruptRegistration)
	s.ErrorIs(err, network.ErrMalformedEntry)
}
