//go:build integration

package attestation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sanctuary/internal/vault/store/attestation"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/testutil/containers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *attestation.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
	s.store = attestation.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

var (
	vault  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	key    = common.HexToHash("0xaaaa")
	issued = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	window = 300 * time.Second
)

func (s *RedisStoreSuite) TestLifecycle() {
	ctx := context.Background()

	reissued, err := s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)
	s.False(reissued)

	reissued, err = s.store.Issue(ctx, vault, key, issued.Add(time.Second))
	s.Require().NoError(err)
	s.True(reissued)

	_, err = s.store.TryConsume(ctx, key, issued.Add(window+2*time.Second), window)
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	got, err := s.store.TryConsume(ctx, key, issued.Add(window+time.Second), window)
	s.Require().NoError(err, "reissue moved the boundary by one second")
	s.True(got.Consumed)
	s.Equal(vault, got.Vault)
	s.Equal(issued.Add(time.Second), got.IssuedAt)

	_, err = s.store.TryConsume(ctx, key, issued.Add(window), window)
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	_, err = s.store.Issue(ctx, vault, key, issued.Add(time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)

	found, err := s.store.FindByKey(ctx, key)
	s.Require().NoError(err)
	s.True(found.Consumed)
	s.Equal(issued.Add(window+time.Second), found.ConsumedAt)
}

func (s *RedisStoreSuite) TestMissingKey() {
	_, err := s.store.TryConsume(context.Background(), common.HexToHash("0xdead"), issued, window)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.FindByKey(context.Background(), common.HexToHash("0xdead"))
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *RedisStoreSuite) TestConcurrentConsumeSucceedsOnce() {
	ctx := context.Background()
	_, err := s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)

	const goroutines = 32
	var (
		wg        sync.WaitGroup
		successes atomic.Int32
		used      atomic.Int32
	)
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.TryConsume(ctx, key, issued.Add(time.Second), window)
			switch {
			case err == nil:
				successes.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				used.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load())
	s.Equal(int32(goroutines-1), used.Load())
}

func (s *RedisStoreSuite) TestKeyPrefixIsolatesDeployments() {
	ctx := context.Background()
	other := attestation.NewRedis(s.redis.Client, attestation.WithKeyPrefix("staging:"))

	_, err := s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)

	_, err = other.FindByKey(ctx, key)
	s.True(errors.Is(err, sentinel.ErrNotFound))

	keys, err := s.redis.Client.Keys(ctx, "sanctuary:attestation:*").Result()
	s.Require().NoError(err)
	s.Len(keys, 1)
}
