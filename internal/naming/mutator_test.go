package naming

import (
	"context"
	"crypto/ed25519"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"antns/internal/network"
	"antns/internal/platform/config"
	dErrors "antns/pkg/domain-errors"
	"antns/pkg/platform/audit"
	"antns/pkg/platform/audit/publisher"
	"antns/pkg/platform/audit/store/memory"
	"antns/pkg/platform/sentinel"
	"antns/pkg/requestcontext"
)

// countingNetwork records writes so tests can assert none happened.
type countingNetwork struct {
	network.Client
	puts    int
	appends int
}

func (c *countingNetwork) PutChunk(ctx context.Context, data []byte) (network.ChunkAddress, error) {
	c.puts++
	return c.Client.PutChunk(ctx, data)
}

func (c *countingNetwork) AppendRegister(ctx context.Context, key ed25519.PrivateKey, value network.ChunkAddress) error {
	c.appends++
	return c.Client.AppendRegister(ctx, key, value)
}

func (c *countingNetwork) writes() int {
	return c.puts + c.appends
}

type MutatorSuite struct {
	suite.Suite
	ctx      context.Context
	net      *countingNetwork
	audit    *memory.InMemoryStore
	mutator  *Mutator
	resolver *Resolver
	now      time.Time
}

func TestMutatorSuite(t *testing.T) {
	suite.Run(t, new(MutatorSuite))
}

func (s *MutatorSuite) SetupTest() {
	s.ctx = context.Background()
	s.net = &countingNetwork{Client: network.NewInMemory()}
	s.audit = memory.NewInMemoryStore()
	s.now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	d, err := ParseSharedSecret(config.DefaultSharedSecret)
	s.Require().NoError(err)
	s.mutator = NewMutator(d, s.net,
		WithAuditor(publisher.NewPublisher(s.audit)),
		WithClock(func() time.Time { return s.now }),
	)
	s.resolver = NewResolver(d, s.net)
}

func (s *MutatorSuite) registered(domain string) ed25519.PrivateKey {
	reg, err := s.mutator.Register(s.ctx, domain)
	s.Require().NoError(err)
	return reg.OwnerKey
}

func (s *MutatorSuite) TestEndToEnd() {
	reg, err := s.mutator.Register(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.NotEqual(network.RegisterAddressOf(reg.OwnerKey.Public().(ed25519.PublicKey)), reg.Address,
		"the register is owned by the derived key, not the owner key")

	_, err = s.mutator.Add(s.ctx, "alice.ant", reg.OwnerKey, Record{Type: "TEXT", Name: ".", Value: "hello"})
	s.Require().NoError(err)

	records, err := s.resolver.Records(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.Equal([]Record{{Type: "TEXT", Name: ".", Value: "hello"}}, records)

	_, err = s.mutator.Add(s.ctx, "alice.ant", reg.OwnerKey, Record{Type: "ANT", Name: ".", Value: "deadbeef"})
	s.Require().NoError(err)

	res, err := s.resolver.Lookup(s.ctx, "alice.ant")
	s.Require().NoError(err)
	s.Equal("deadbeef", res.Target)
	s.Equal("alice.ant", res.Domain)
	s.Equal(EncodePublicKey(reg.OwnerKey.Public().(ed25519.PublicKey)), res.OwnerPublicKey)
}

func (s *MutatorSuite) TestRegisterTwiceConflicts() {
	s.registered("bob.ant")
	before := s.net.writes()

	_, err := s.mutator.Register(s.ctx, "bob.ant")
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Equal(dErrors.CodeConflict, Classify(err))
	s.Equal(before, s.net.writes())
}

func (s *MutatorSuite) TestDeleteAndUpdate() {
	owner := s.registered("carol.ant")
	_, err := s.mutator.Replace(s.ctx, "carol.ant", owner, []Record{
		{Type: "TEXT", Name: ".", Value: "one"},
		{Type: "TEXT", Name: ".", Value: "two"},
		{Type: "TEXT", Name: ".", Value: "three"},
	})
	s.Require().NoError(err)

	pub, err := s.mutator.Delete(s.ctx, "carol.ant", owner, 1)
	s.Require().NoError(err)
	s.Equal([]Record{{Type: "TEXT", Name: ".", Value: "one"}, {Type: "TEXT", Name: ".", Value: "three"}}, pub.Records)

	_, err = s.mutator.Update(s.ctx, "carol.ant", owner, 0, Record{Type: "ANT", Name: ".", Value: "beef"})
	s.Require().NoError(err)

	records, err := s.resolver.Records(s.ctx, "carol.ant")
	s.Require().NoError(err)
	s.Equal([]Record{{Type: "ANT", Name: ".", Value: "beef"}, {Type: "TEXT", Name: ".", Value: "three"}}, records)
}

func (s *MutatorSuite) TestOutOfRangeIndexWritesNothing() {
	owner := s.registered("dave.ant")
	_, err := s.mutator.Add(s.ctx, "dave.ant", owner, Record{Type: "TEXT", Name: ".", Value: "only"})
	s.Require().NoError(err)
	before := s.net.writes()

	for _, index := range []int{1, 2, 100, -1} {
		_, err = s.mutator.Delete(s.ctx, "dave.ant", owner, index)
		s.ErrorIs(err, ErrIndexOutOfRange)

		_, err = s.mutator.Update(s.ctx, "dave.ant", owner, index, Record{Type: "TEXT", Name: ".", Value: "x"})
		s.ErrorIs(err, ErrIndexOutOfRange)
	}
	s.Equal(before, s.net.writes())
	s.Equal(dErrors.CodeValidation, Classify(err))
}

func (s *MutatorSuite) TestInvalidRecordRejectedBeforeAnyNetworkCall() {
	owner := s.registered("erin.ant")
	before := s.net.writes()

	invalid := []Record{
		{Type: "MX", Name: ".", Value: "mail"},
		{Type: "", Name: ".", Value: "x"},
		{Type: "TEXT", Name: "", Value: "x"},
		{Type: "ANT", Name: ".", Value: " "},
	}
	for _, r := range invalid {
		_, err := s.mutator.Add(s.ctx, "erin.ant", owner, r)
		s.ErrorIs(err, ErrInvalidRecord)
	}
	_, err := s.mutator.SetTarget(s.ctx, "erin.ant", owner, "")
	s.ErrorIs(err, ErrInvalidRecord)
	s.Equal(before, s.net.writes())
}

func (s *MutatorSuite) TestAddStartsFromEmptySet() {
	owner := s.registered("frank.ant")

	pub, err := s.mutator.Add(s.ctx, "frank.ant", owner, Record{Type: "text", Name: ".", Value: "hi"})
	s.Require().NoError(err)
	s.Len(pub.Records, 1)
}

func (s *MutatorSuite) TestDeleteOnDomainWithoutRecordsFails() {
	owner := s.registered("gina.ant")
	before := s.net.writes()

	_, err := s.mutator.Delete(s.ctx, "gina.ant", owner, 0)
	s.ErrorIs(err, ErrNoValidRecords)
	s.Equal(before, s.net.writes())
}

func (s *MutatorSuite) TestUnregisteredDomainAlwaysFails() {
	owner, err := GenerateKey()
	s.Require().NoError(err)

	_, err = s.mutator.Add(s.ctx, "nobody.ant", owner, Record{Type: "TEXT", Name: ".", Value: "x"})
	s.ErrorIs(err, ErrRegisterNotFound)
	_, err = s.mutator.SetTarget(s.ctx, "nobody.ant", owner, "abcd")
	s.ErrorIs(err, ErrRegisterNotFound)
	s.Equal(0, s.net.writes())
}

func (s *MutatorSuite) TestForeignKeyIsNotOwner() {
	s.registered("hank.ant")
	intruder, err := GenerateKey()
	s.Require().NoError(err)
	before := s.net.writes()

	_, err = s.mutator.SetTarget(s.ctx, "hank.ant", intruder, "abcd")
	s.ErrorIs(err, ErrNotOwner)
	s.Equal(dErrors.CodeForbidden, Classify(err))
	s.Equal(before, s.net.writes())
}

func (s *MutatorSuite) TestSetTargetReplacesEverything() {
	owner := s.registered("ivy.ant")
	_, err := s.mutator.Add(s.ctx, "ivy.ant", owner, Record{Type: "TEXT", Name: ".", Value: "note"})
	s.Require().NoError(err)

	_, err = s.mutator.SetTarget(s.ctx, "ivy.ant", owner, "cafe")
	s.Require().NoError(err)

	records, err := s.resolver.Records(s.ctx, "ivy.ant")
	s.Require().NoError(err)
	s.Equal([]Record{{Type: RecordTypeANT, Name: RootName, Value: "cafe"}}, records)
}

func (s *MutatorSuite) TestAuditEvents() {
	ctx := requestcontext.WithRequestID(s.ctx, "req-1")
	reg, err := s.mutator.Register(ctx, "jill.ant")
	s.Require().NoError(err)
	pub, err := s.mutator.SetTarget(ctx, "jill.ant", reg.OwnerKey, "abcd")
	s.Require().NoError(err)

	events, err := s.audit.ListByDomain(s.ctx, "jill.ant")
	s.Require().NoError(err)
	s.Require().Len(events, 2)

	s.Equal(audit.ActionDomainRegistered, events[0].Action)
	s.Equal(reg.ChunkAddress.String(), events[0].ChunkAddress)

	s.Equal(audit.ActionRecordsPublished, events[1].Action)
	s.Equal(pub.ChunkAddress.String(), events[1].ChunkAddress)
	s.Equal(1, events[1].RecordCount)
	s.Equal("set_target", events[1].Mutation)
	s.Equal("req-1", events[1].RequestID)
	s.Equal(s.now, events[1].Timestamp)
}

func (s *MutatorSuite) TestClassifySeparatesOutcomes() {
	s.Equal(dErrors.CodeNotFound, Classify(ErrRegisterNotFound))
	s.Equal(dErrors.CodeNotFound, Classify(ErrNoTargetRecord))
	s.Equal(dErrors.CodeUnavailable, Classify(sentinel.ErrUnavailable))
	s.Equal(dErrors.CodeTimeout, Classify(sentinel.ErrTimeout))
	s.Equal(dErrors.CodeInvariantViolation, Classify(ErrInvalidConfiguration))
	s.Equal(dErrors.Code(""), Classify(nil))
}
