package vault

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sanctuary/internal/platform/postgres"
	"sanctuary/internal/vault/models"
	"sanctuary/pkg/platform/sentinel"
	txcontext "sanctuary/pkg/platform/tx"

	"github.com/ethereum/go-ethereum/common"
)

// PostgresStore persists vaults in the vaults table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, v *models.Vault) error {
	_, err := s.execer(ctx).ExecContext(ctx, `
		INSERT INTO vaults (address, owner_key_hash, oracle, nonce, chain_id, validity_window, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		v.Address.Bytes(),
		v.OwnerKeyHash.Bytes(),
		v.Oracle.Bytes(),
		int64(v.Nonce),
		int64(v.ChainID),
		int64(v.ValidityWindow),
		v.CreatedAt,
		v.UpdatedAt,
	)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("vault %s: %w", v.Address.Hex(), sentinel.ErrConflict)
		}
		return fmt.Errorf("insert vault: %w", err)
	}
	return nil
}

const selectVault = `
	SELECT address, owner_key_hash, oracle, nonce, chain_id, validity_window, created_at, updated_at
	FROM vaults
	WHERE address = $1
`

func (s *PostgresStore) FindByAddress(ctx context.Context, address common.Address) (*models.Vault, error) {
	v, err := scanVault(s.db.QueryRowContext(ctx, selectVault, address.Bytes()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vault %s: %w", address.Hex(), sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find vault: %w", err)
	}
	return v, nil
}

// Execute locks the row with SELECT ... FOR UPDATE, runs validate and mutate
// and writes the mutable columns back in the same transaction. A transaction
// already carried in ctx is joined instead of starting a new one.
func (s *PostgresStore) Execute(ctx context.Context, address common.Address, validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error) {
	tx, joined := txcontext.From(ctx)
	if !joined {
		var err error
		tx, err = s.db.BeginTx(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("begin transaction: %w", err)
		}
		defer func() {
			_ = tx.Rollback()
		}()
	}

	v, err := scanVault(tx.QueryRowContext(ctx, selectVault+" FOR UPDATE", address.Bytes()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vault %s: %w", address.Hex(), sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find vault: %w", err)
	}
	if err := validate(v); err != nil {
		return nil, err
	}
	mutate(v)

	if _, err := tx.ExecContext(ctx, `
		UPDATE vaults
		SET oracle = $2, nonce = $3, updated_at = $4
		WHERE address = $1
	`, v.Address.Bytes(), v.Oracle.Bytes(), int64(v.Nonce), v.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update vault: %w", err)
	}
	if !joined {
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit vault update: %w", err)
		}
	}
	return v, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVault(row rowScanner) (*models.Vault, error) {
	var (
		address, ownerHash, oracle []byte
		nonce, chainID, window     int64
		v                          models.Vault
	)
	if err := row.Scan(&address, &ownerHash, &oracle, &nonce, &chainID, &window, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	v.Address = common.BytesToAddress(address)
	v.OwnerKeyHash = common.BytesToHash(ownerHash)
	v.Oracle = common.BytesToAddress(oracle)
	v.Nonce = uint64(nonce)
	v.ChainID = uint64(chainID)
	v.ValidityWindow = time.Duration(window)
	return &v, nil
}
