package attestation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"sanctuary/internal/vault/models"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
)

// PostgresStore persists attestations in the attestations table. Rows are
// never deleted.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Issue upserts the attestation. The conflict branch only fires for
// unconsumed rows, so a consumed key yields zero affected rows.
func (s *PostgresStore) Issue(ctx context.Context, vault common.Address, key common.Hash, now time.Time) (bool, error) {
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO attestations (attestation_key, vault, issued_at, consumed)
		VALUES ($1, $2, $3, FALSE)
		ON CONFLICT (attestation_key) DO UPDATE
		SET issued_at = EXCLUDED.issued_at
		WHERE attestations.consumed = FALSE
		RETURNING (xmax = 0) AS inserted
	`, key.Bytes(), vault.Bytes(), now).Scan(&inserted)
	if errors.Is(err, sql.ErrNoRows) {
		return false, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
	}
	if err != nil {
		return false, fmt.Errorf("issue attestation: %w", err)
	}
	return !inserted, nil
}

// TryConsume locks the row, applies the lifecycle checks and marks it
// consumed within one transaction.
func (s *PostgresStore) TryConsume(ctx context.Context, key common.Hash, now time.Time, window time.Duration) (*models.Attestation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	record, err := scanAttestation(tx.QueryRowContext(ctx, `
		SELECT attestation_key, vault, issued_at, consumed, consumed_at
		FROM attestations
		WHERE attestation_key = $1
		FOR UPDATE
	`, key.Bytes()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	if record.IsExpired(now, window) {
		return record, fmt.Errorf("attestation %s expired: %w", key.Hex(), sentinel.ErrExpired)
	}
	if record.Consumed {
		return record, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE attestations
		SET consumed = TRUE, consumed_at = $2
		WHERE attestation_key = $1
	`, key.Bytes(), now); err != nil {
		return nil, fmt.Errorf("consume attestation: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit consume: %w", err)
	}
	record.ApplyConsume(now)
	return record, nil
}

func (s *PostgresStore) FindByKey(ctx context.Context, key common.Hash) (*models.Attestation, error) {
	record, err := scanAttestation(s.db.QueryRowContext(ctx, `
		SELECT attestation_key, vault, issued_at, consumed, consumed_at
		FROM attestations
		WHERE attestation_key = $1
	`, key.Bytes()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find attestation: %w", err)
	}
	return record, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttestation(row rowScanner) (*models.Attestation, error) {
	var (
		key, vault []byte
		record     models.Attestation
		consumedAt sql.NullTime
	)
	if err := row.Scan(&key, &vault, &record.IssuedAt, &record.Consumed, &consumedAt); err != nil {
		return nil, err
	}
	record.Key = common.BytesToHash(key)
	record.Vault = common.BytesToAddress(vault)
	if consumedAt.Valid {
		record.ConsumedAt = consumedAt.Time
	}
	return &record, nil
}
