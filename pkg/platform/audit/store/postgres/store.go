package postgres

import (
	"context"
	"database/sql"
	"fmt"

	audit "sanctuary/pkg/platform/audit"
	txcontext "sanctuary/pkg/platform/tx"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Store implements audit.Store on the audit_events table. The per-vault
// sequence is allocated inside the insert and guarded by the
// (vault, sequence) unique constraint.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

type dbQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) querier(ctx context.Context) dbQuerier {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

// Append writes an event and fills in its ID, Sequence and Category.
func (s *Store) Append(ctx context.Context, event *audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Category = event.Kind.Category()

	query := `
		INSERT INTO audit_events (
			id, vault, sequence, kind, category, timestamp, actor,
			attestation_key, operation_hash, nonce, reason, detail, request_id
		)
		SELECT $1, $2, COALESCE(MAX(sequence), 0) + 1, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		FROM audit_events
		WHERE vault = $2
		RETURNING sequence
	`
	var seq int64
	err := s.querier(ctx).QueryRowContext(ctx, query,
		event.ID,
		event.Vault.Bytes(),
		string(event.Kind),
		string(event.Category),
		event.Timestamp,
		event.Actor.Bytes(),
		event.AttestationKey.Bytes(),
		event.OperationHash.Bytes(),
		int64(event.Nonce),
		event.Reason,
		event.Detail,
		event.RequestID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	event.Sequence = uint64(seq)
	return nil
}

const selectColumns = `
	SELECT id, vault, sequence, kind, category, timestamp, actor,
		   attestation_key, operation_hash, nonce, reason, detail, request_id
	FROM audit_events
`

// ListByVault returns the vault's events in sequence order.
func (s *Store) ListByVault(ctx context.Context, vault common.Address) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`WHERE vault = $1 ORDER BY sequence ASC`, vault.Bytes())
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events across all vaults.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`ORDER BY timestamp DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event

	for rows.Next() {
		var (
			event                     audit.Event
			kind, category            string
			vault, actor              []byte
			attestationKey, operation []byte
			seq, nonce                int64
		)
		err := rows.Scan(
			&event.ID,
			&vault,
			&seq,
			&kind,
			&category,
			&event.Timestamp,
			&actor,
			&attestationKey,
			&operation,
			&nonce,
			&event.Reason,
			&event.Detail,
			&event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}

		event.Vault = common.BytesToAddress(vault)
		event.Actor = common.BytesToAddress(actor)
		event.AttestationKey = common.BytesToHash(attestationKey)
		event.OperationHash = common.BytesToHash(operation)
		event.Kind = audit.EventKind(kind)
		event.Category = audit.EventCategory(category)
		event.Sequence = uint64(seq)
		event.Nonce = uint64(nonce)

		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}

	return events, nil
}
