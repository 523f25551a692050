//go:build integration

package attestation_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"sanctuary/internal/platform/postgres"
	"sanctuary/internal/vault/store/attestation"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/testutil/containers"

	"github.com/stretchr/testify/suite"
)

type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *attestation.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.pg.DB))
	s.store = attestation.NewPostgres(s.pg.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "attestations"))
}

func (s *PostgresStoreSuite) TestLifecycle() {
	ctx := context.Background()

	reissued, err := s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)
	s.False(reissued)

	reissued, err = s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)
	s.True(reissued)

	_, err = s.store.TryConsume(ctx, key, issued.Add(window+time.Second), window)
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	got, err := s.store.TryConsume(ctx, key, issued.Add(window), window)
	s.Require().NoError(err)
	s.True(got.Consumed)

	_, err = s.store.Issue(ctx, vault, key, issued.Add(time.Minute))
	s.Require().ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestConcurrentConsumeSucceedsOnce() {
	ctx := context.Background()
	_, err := s.store.Issue(ctx, vault, key, issued)
	s.Require().NoError(err)

	const goroutines = 16
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
