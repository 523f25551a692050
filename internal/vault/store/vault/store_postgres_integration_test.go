//go:build integration

package vault_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"sanctuary/internal/platform/postgres"
	"sanctuary/internal/vault/keys"
	"sanctuary/internal/vault/models"
	"sanctuary/internal/vault/store/vault"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/testutil/containers"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"
)

// PostgresStoreSuite runs against the pgx driver; the sqlmock tests cover lib/pq.
type PostgresStoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *vault.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	ctx := context.Background()
	s.pg = containers.GetManager().GetPostgres(s.T())

	db, err := postgres.Open(ctx, postgres.Config{Driver: postgres.DriverPGX, URL: s.pg.DSN})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = db.Close() })

	s.Require().NoError(postgres.Migrate(ctx, db))
	s.store = vault.NewPostgres(db)
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(context.Background(), "vaults"))
}

func (s *PostgresStoreSuite) newVault() *models.Vault {
	publicKey := bytes.Repeat([]byte{0x01}, models.PublicKeySize)
	v, err := models.NewVault(
		common.HexToAddress("0xa000000000000000000000000000000000000001"),
		publicKey,
		keys.OwnerKeyHash(publicKey),
		common.HexToAddress("0x0c00000000000000000000000000000000000003"),
		1,
		5*time.Minute,
		time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	)
	s.Require().NoError(err)
	return v
}

func (s *PostgresStoreSuite) TestCreateIsOneTime() {
	ctx := context.Background()
	v := s.newVault()

	s.Require().NoError(s.store.Create(ctx, v))
	s.Require().ErrorIs(s.store.Create(ctx, v), sentinel.ErrConflict)

	got, err := s.store.FindByAddress(ctx, v.Address)
	s.Require().NoError(err)
	s.Equal(v.OwnerKeyHash, got.OwnerKeyHash)
	s.Equal(v.ValidityWindow, got.ValidityWindow)
}

func (s *PostgresStoreSuite) TestExecuteAdvancesNonce() {
	ctx := context.Background()
	v := s.newVault()
	s.Require().NoError(s.store.Create(ctx, v))

	later := v.CreatedAt.Add(time.Minute)
	updated, err := s.store.Execute(ctx, v.Address,
		func(v *models.Vault) error { return v.CanExecute(0) },
		func(v *models.Vault) { v.ApplyExecution(later) },
	)
	s.Require().NoError(err)
	s.Equal(uint64(1), updated.Nonce)

	_, err = s.store.Execute(ctx, v.Address,
		func(v *models.Vault) error { return v.CanExecute(0) },
		func(v *models.Vault) { v.ApplyExecution(later) },
	)
	s.Require().Error(err, "stale nonce is rejected")
}
