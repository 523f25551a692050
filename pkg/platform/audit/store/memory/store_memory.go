package memory

import (
	"context"
	"sort"
	"sync"

	audit "sanctuary/pkg/platform/audit"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

type InMemoryStore struct {
	mu     sync.RWMutex
	events map[common.Address][]audit.Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{events: make(map[common.Address][]audit.Event)}
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = make(map[common.Address][]audit.Event)
}

func (s *InMemoryStore) Append(_ context.Context, event *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	event.Category = event.Kind.Category()
	event.Sequence = uint64(len(s.events[event.Vault])) + 1
	s.events[event.Vault] = append(s.events[event.Vault], *event)
	return nil
}

// ListByVault returns the vault's events in sequence order.
func (s *InMemoryStore) ListByVault(_ context.Context, vault common.Address) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Event{}, s.events[vault]...), nil
}

// ListRecent returns the most recent N events across all vaults, newest first.
func (s *InMemoryStore) ListRecent(_ context.Context, limit int) ([]audit.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []audit.Event
	for _, vaultEvents := range s.events {
		all = append(all, vaultEvents...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Timestamp.After(all[j].Timestamp)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}
