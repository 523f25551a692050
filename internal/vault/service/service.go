package service

import (
	"context"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"sanctuary/internal/vault/ledger"
	"sanctuary/internal/vault/metrics"
	"sanctuary/internal/vault/models"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/audit/publisher"
	"sanctuary/pkg/platform/audit/store/memory"

	"github.com/ethereum/go-ethereum/common"
)

type VaultStore interface {
	Create(ctx context.Context, v *models.Vault) error
	FindByAddress(ctx context.Context, address common.Address) (*models.Vault, error)
	Execute(ctx context.Context, address common.Address, validate func(*models.Vault) error, mutate func(*models.Vault)) (*models.Vault, error)
}

type AttestationStore interface {
	Issue(ctx context.Context, vault common.Address, key common.Hash, now time.Time) (bool, error)
	TryConsume(ctx context.Context, key common.Hash, now time.Time, window time.Duration) (*models.Attestation, error)
	FindByKey(ctx context.Context, key common.Hash) (*models.Attestation, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
	List(ctx context.Context, vault common.Address) ([]audit.Event, error)
}

// Transactor groups a state change with the audit record it produces.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type noTx struct{}

func (noTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type Ledger interface {
	Execute(ctx context.Context, from, target common.Address, value *big.Int, payload []byte) error
}

// Service is the enforcement boundary for every vault it stores: setup,
// the oracle gateway, the validator and the executor.
type Service struct {
	vaults         VaultStore
	attestations   AttestationStore
	ledger         Ledger
	auditPublisher AuditPublisher
	tx             Transactor
	logger         *slog.Logger
	metrics        *metrics.Metrics

	chainID       uint64
	defaultWindow time.Duration

	// locks serializes state changes per vault. Attest and validate take
	// the read side so distinct keys proceed concurrently; rotation and
	// execution take the write side.
	locksMu sync.Mutex
	locks   map[common.Address]*sync.RWMutex
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = p
	}
}

func WithTransactor(tx Transactor) Option {
	return func(s *Service) {
		s.tx = tx
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithLedger(l Ledger) Option {
	return func(s *Service) {
		s.ledger = l
	}
}

// WithChainID sets the domain identifier mixed into every operation hash.
func WithChainID(chainID uint64) Option {
	return func(s *Service) {
		s.chainID = chainID
	}
}

// WithDefaultWindow sets the validity window used when setup omits one.
func WithDefaultWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.defaultWindow = window
		}
	}
}

func New(vaults VaultStore, attestations AttestationStore, opts ...Option) *Service {
	s := &Service{
		vaults:        vaults,
		attestations:  attestations,
		logger:        slog.Default(),
		chainID:       1,
		defaultWindow: models.DefaultValidityWindow,
		locks:         make(map[common.Address]*sync.RWMutex),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tx == nil {
		s.tx = noTx{}
	}
	if s.ledger == nil {
		s.ledger = ledger.NewInMemory()
	}
	if s.auditPublisher == nil {
		s.auditPublisher = publisher.NewPublisher(memory.NewInMemoryStore(), publisher.WithLogger(s.logger))
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// lockVault returns the vault's lock, creating it only once the vault is
// known to exist so unknown addresses never grow the lock table.
func (s *Service) lockVault(ctx context.Context, vault common.Address) (*sync.RWMutex, error) {
	s.locksMu.Lock()
	l, ok := s.locks[vault]
	s.locksMu.Unlock()
	if ok {
		return l, nil
	}

	if _, err := s.vaults.FindByAddress(ctx, vault); err != nil {
		return nil, err
	}

	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	l, ok = s.locks[vault]
	if !ok {
		l = &sync.RWMutex{}
		s.locks[vault] = l
	}
	return l, nil
}
