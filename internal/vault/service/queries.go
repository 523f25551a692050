package service

import (
	"context"
	"errors"
	"math/big"

	"sanctuary/internal/vault/keys"
	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
)

// Vault returns a snapshot of the vault at address.
func (s *Service) Vault(ctx context.Context, address common.Address) (*models.Vault, error) {
	v, err := s.vaults.FindByAddress(ctx, address)
	if err != nil {
		return nil, vaultLookupError(err)
	}
	return v, nil
}

// Status reports whether the attestation for (operationHash, signatureDigest)
// would pass validation now. It never changes state. ExpiresAt is zero when
// the attestation is not valid.
func (s *Service) Status(ctx context.Context, vault common.Address, operationHash, signatureDigest common.Hash) (models.Status, error) {
	v, err := s.vaults.FindByAddress(ctx, vault)
	if err != nil {
		return models.Status{}, vaultLookupError(err)
	}

	key := keys.AttestationKey(v.Address, v.OwnerKeyHash, operationHash, signatureDigest)
	att, err := s.attestations.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return models.Status{}, nil
		}
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load attestation")
	}
	return models.StatusOf(att, requestcontext.Now(ctx), v.ValidityWindow), nil
}

// OperationHash computes the hash the owner signs for a call executed at the
// vault's current nonce.
func (s *Service) OperationHash(ctx context.Context, vault, target common.Address, value *big.Int, payload []byte) (common.Hash, uint64, error) {
	if value != nil && (value.Sign() < 0 || value.BitLen() > 256) {
		return common.Hash{}, 0, dErrors.New(dErrors.CodeInvalidInput, "value must be a non-negative 256-bit integer")
	}
	v, err := s.vaults.FindByAddress(ctx, vault)
	if err != nil {
		return common.Hash{}, 0, vaultLookupError(err)
	}
	hash := keys.OperationHash(keys.Operation{
		Vault:   v.Address,
		Target:  target,
		Value:   value,
		Payload: payload,
		Nonce:   v.Nonce,
		ChainID: v.ChainID,
	})
	return hash, v.Nonce, nil
}

// AuditTrail returns the vault's audit events in sequence order.
func (s *Service) AuditTrail(ctx context.Context, vault common.Address) ([]audit.Event, error) {
	if _, err := s.vaults.FindByAddress(ctx, vault); err != nil {
		return nil, vaultLookupError(err)
	}
	events, err := s.auditPublisher.List(ctx, vault)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load audit trail")
	}
	return events, nil
}
