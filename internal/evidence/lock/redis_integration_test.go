//go:build integration

package lock_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"evidentia/internal/evidence/lock"
	id "evidentia/pkg/domain"
	"evidentia/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis  *containers.RedisContainer
	locker *lock.Redis
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.locker = lock.NewRedis(s.redis.Client, lock.WithTTL(2*time.Second))
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisLockSuite) TestExclusiveUntilReleased() {
	key := lock.EvidenceKey(id.NewTenantID(), id.NewEvidenceID())
	release, err := s.locker.Acquire(context.Background(), key)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = s.locker.Acquire(ctx, key)
	s.Error(err, "second holder must wait")

	release()
	release2, err := s.locker.Acquire(context.Background(), key)
	s.Require().NoError(err)
	release2()
}

func (s *RedisLockSuite) TestExpiredLockCanBeTaken() {
	short := lock.NewRedis(s.redis.Client, lock.WithTTL(50*time.Millisecond))
	key := lock.DraftKey(id.NewTenantID(), id.NewDraftID())
	_, err := short.Acquire(context.Background(), key)
	s.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	release, err := short.Acquire(ctx, key)
	s.Require().NoError(err)
	release()
}
