package attestation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"sanctuary/internal/vault/models"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
)

// Error Contract:
// All attestation stores follow this error pattern:
// - Issue returns ErrAlreadyUsed when the key has been consumed
// - TryConsume returns, in this order of precedence, ErrNotFound when the
//   key was never issued, ErrExpired when now > issuedAt+window, and
//   ErrAlreadyUsed when it was consumed before
// - Infrastructure failures are wrapped with context

// InMemoryStore keeps attestations in a map guarded by a mutex. It serves
// tests and single-process deployments.
type InMemoryStore struct {
	mu           sync.Mutex
	attestations map[common.Hash]*models.Attestation
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		attestations: make(map[common.Hash]*models.Attestation),
	}
}

// Issue records or refreshes an attestation. reissued reports whether an
// unconsumed attestation already existed under key.
func (s *InMemoryStore) Issue(_ context.Context, vault common.Address, key common.Hash, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.attestations[key]; ok {
		if existing.Consumed {
			return false, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
		}
		existing.ApplyReissue(now)
		return true, nil
	}
	s.attestations[key] = &models.Attestation{Key: key, Vault: vault, IssuedAt: now}
	return false, nil
}

// TryConsume atomically checks freshness and flips the consumed flag.
func (s *InMemoryStore) TryConsume(_ context.Context, key common.Hash, now time.Time, window time.Duration) (*models.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.attestations[key]
	if !ok {
		return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
	}
	if record.IsExpired(now, window) {
		snapshot := *record
		return &snapshot, fmt.Errorf("attestation %s expired: %w", key.Hex(), sentinel.ErrExpired)
	}
	if record.Consumed {
		snapshot := *record
		return &snapshot, fmt.Errorf("attestation %s consumed: %w", key.Hex(), sentinel.ErrAlreadyUsed)
	}
	record.ApplyConsume(now)
	snapshot := *record
	return &snapshot, nil
}

func (s *InMemoryStore) FindByKey(_ context.Context, key common.Hash) (*models.Attestation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.attestations[key]
	if !ok {
		return nil, fmt.Errorf("attestation %s not found: %w", key.Hex(), sentinel.ErrNotFound)
	}
	snapshot := *record
	return &snapshot, nil
}
