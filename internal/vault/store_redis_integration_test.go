//go:build integration

package vault

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"antns/internal/keystore"
	"antns/internal/naming"
	"antns/pkg/platform/sentinel"
	"antns/pkg/testutil/containers"
)

type RedisVaultSuite struct {
	suite.Suite
	ctx   context.Context
	redis *containers.RedisContainer
	store *RedisStore
}

func TestRedisVaultSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisVaultSuite))
}

func (s *RedisVaultSuite) SetupSuite() {
	s.ctx = context.Background()
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = NewRedisStore(s.redis.Client)
}

func (s *RedisVaultSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(s.ctx))
}

func (s *RedisVaultSuite) TestMissingBlobIsNotFound() {
	_, err := s.store.Get(s.ctx, "absent")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisVaultSuite) TestBackupRestoreAcrossMachines() {
	src := keystore.New(filepath.Join(s.T().TempDir(), "src"))
	key, err := naming.GenerateKey()
	s.Require().NoError(err)
	_, err = src.Save("alice.ant", key)
	s.Require().NoError(err)

	backup, err := New(s.store, src, "wallet-secret")
	s.Require().NoError(err)
	saved, err := backup.Backup(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alice.ant"}, saved)

	dst := keystore.New(filepath.Join(s.T().TempDir(), "dst"))
	restore, err := New(s.store, dst, "wallet-secret")
	s.Require().NoError(err)
	restored, err := restore.Restore(s.ctx)
	s.Require().NoError(err)
	s.Equal([]string{"alice.ant"}, restored)

	loaded, err := dst.Load("alice.ant")
	s.Require().NoError(err)
	s.True(key.Equal(loaded))

	ttl, err := s.redis.Client.TTL(s.ctx, redisKeyPrefix+mustDerive(s.T(), "wallet-secret")).Result()
	s.Require().NoError(err)
	s.Equal(time.Duration(-1), ttl, "backups never expire")
}

func mustDerive(t *testing.T, secret string) string {
	t.Helper()
	k, err := DeriveKey(secret)
	if err != nil {
		t.Fatal(err)
	}
	return k
}
