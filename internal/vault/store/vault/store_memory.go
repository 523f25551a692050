package vault

import (
	"context"
	"fmt"
	"sync"

	"sanctuary/internal/vault/models"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
)

// InMemory stores vaults for tests and single-process deployments.
type InMemory struct {
	mu     sync.RWMutex
	vaults map[common.Address]*models.Vault
}

func NewInMemory() *InMemory {
	return &InMemory{vaults: make(map[common.Address]*models.Vault)}
}

// Create stores a new vault. Returns ErrConflict if the address is taken.
func (s *InMemory) Create(_ context.Context, v *models.Vault) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vaults[v.Address]; ok {
		return fmt.Errorf("vault %s: %w", v.Address.Hex(), sentinel.ErrConflict)
	}
	stored := *v
	s.vaults[v.Address] = &stored
	return nil
}

func (s *InMemory) FindByAddress(_ context.Context, address common.Address) (*models.Vault, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vaults[address]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", address.Hex(), sentinel.ErrNotFound)
	}
	snapshot := *v
	return &snapshot, nil
}

// Execute runs validate then mutate on the stored vault under the write lock.
// If validate fails the vault is left unchanged and its error is returned.
func (s *InMemory) Execute(_ context.Context, address common.Address, validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vaults[address]
	if !ok {
		return nil, fmt.Errorf("vault %s: %w", address.Hex(), sentinel.ErrNotFound)
	}
	working := *v
	if err := validate(&working); err != nil {
		return nil, err
	}
	mutate(&working)
	s.vaults[address] = &working
	snapshot := working
	return &snapshot, nil
}
