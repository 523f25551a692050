package models

import (
	"time"

	dErrors "sanctuary/pkg/domain-errors"

	"github.com/ethereum/go-ethereum/common"
)

// Boundary sizes of the ML-DSA-44 scheme. Inputs of any other length are
// rejected before further processing.
const (
	PublicKeySize = 1312
	SignatureSize = 2420
)

const (
	DefaultValidityWindow = 5 * time.Minute
	MaxValidityWindow     = 24 * time.Hour
)

// Vault is one enforcement instance. A vault exists in a store only once
// setup has succeeded, so presence means initialized.
//
// Invariants:
//   - OwnerKeyHash is bound at setup and never changes
//   - Oracle is never the zero address
//   - Nonce only increases, by exactly one per execution
//   - ValidityWindow is in (0, MaxValidityWindow]
type Vault struct {
	Address        common.Address `json:"address"`
	OwnerKeyHash   common.Hash    `json:"owner_key_hash"`
	Oracle         common.Address `json:"oracle"`
	Nonce          uint64         `json:"nonce"`
	ChainID        uint64         `json:"chain_id"`
	ValidityWindow time.Duration  `json:"validity_window"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NewVault validates setup inputs. ownerPublicKey must be exactly
// PublicKeySize bytes; ownerKeyHash is its digest.
func NewVault(address common.Address, ownerPublicKey []byte, ownerKeyHash common.Hash, oracle common.Address, chainID uint64, window time.Duration, now time.Time) (*Vault, error) {
	if address == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "vault address is required")
	}
	if len(ownerPublicKey) != PublicKeySize {
		return nil, dErrors.New(dErrors.CodeInvalidPublicKeySize, "owner public key must be 1312 bytes")
	}
	if oracle == (common.Address{}) {
		return nil, dErrors.New(dErrors.CodeInvalidPrincipal, "oracle principal cannot be the zero address")
	}
	if err := ValidateWindow(window); err != nil {
		return nil, err
	}
	return &Vault{
		Address:        address,
		OwnerKeyHash:   ownerKeyHash,
		Oracle:         oracle,
		ChainID:        chainID,
		ValidityWindow: window,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func ValidateWindow(window time.Duration) error {
	if window <= 0 || window > MaxValidityWindow {
		return dErrors.New(dErrors.CodeValidation, "validity window must be positive and at most 24h")
	}
	return nil
}

func (v *Vault) IsOracle(caller common.Address) bool {
	return caller != (common.Address{}) && caller == v.Oracle
}

// CanRotateOracle checks caller authority before the principal check.
func (v *Vault) CanRotateOracle(caller, next common.Address) error {
	if !v.IsOracle(caller) {
		return dErrors.New(dErrors.CodeNotOracle, "caller is not the oracle")
	}
	if next == (common.Address{}) {
		return dErrors.New(dErrors.CodeInvalidPrincipal, "new oracle cannot be the zero address")
	}
	return nil
}

func (v *Vault) ApplyOracleRotation(next common.Address, now time.Time) {
	v.Oracle = next
	v.UpdatedAt = now
}

// CanExecute rejects an execution prepared against a stale nonce.
func (v *Vault) CanExecute(expectedNonce uint64) error {
	if v.Nonce != expectedNonce {
		return dErrors.New(dErrors.CodeConflict, "execution nonce has advanced")
	}
	return nil
}

// ApplyExecution advances the counter and returns the new value.
func (v *Vault) ApplyExecution(now time.Time) uint64 {
	v.Nonce++
	v.UpdatedAt = now
	return v.Nonce
}
