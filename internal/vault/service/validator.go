package service

import (
	"context"
	"time"

	"sanctuary/internal/platform/tracing"
	"sanctuary/internal/vault/keys"
	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
)

// Validate consumes the attestation for (operationHash, signature) on vault.
// The returned code is ValidationOK only when an unexpired, unconsumed
// attestation existed for the exact derived key; err carries the failure.
func (s *Service) Validate(ctx context.Context, vault common.Address, operationHash common.Hash, signature []byte) (_ models.ValidationCode, err error) {
	ctx, finish := tracing.TraceOp(ctx, "vault.validate", attribute.String("vault", vault.Hex()))
	defer func() { finish(err) }()
	defer s.metrics.ObserveValidate(time.Now())

	lock, err := s.lockVault(ctx, vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("validate", kindLabel(err))
		return models.ValidationCodeOf(err), err
	}
	lock.RLock()
	defer lock.RUnlock()

	v, err := s.vaults.FindByAddress(ctx, vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("validate", kindLabel(err))
		return models.ValidationCodeOf(err), err
	}

	if _, err := s.consume(ctx, "validate", v, operationHash, signature); err != nil {
		return models.ValidationCodeOf(err), err
	}
	return models.ValidationOK, nil
}

// consume runs the validator steps after the vault is loaded: the signature
// size check, key derivation and the single atomic tryConsume. Callers hold
// the vault lock. Every outcome is recorded in the audit trail.
func (s *Service) consume(ctx context.Context, operation string, v *models.Vault, operationHash common.Hash, signature []byte) (*models.Attestation, error) {
	caller := requestcontext.Principal(ctx)

	if len(signature) != models.SignatureSize {
		err := dErrors.New(dErrors.CodeInvalidSignatureSize, "signature must be 2420 bytes")
		s.rejectConsume(ctx, operation, v, caller, common.Hash{}, operationHash, err)
		return nil, err
	}

	key := keys.AttestationKey(v.Address, v.OwnerKeyHash, operationHash, keys.SignatureDigest(signature))
	now := requestcontext.Now(ctx)

	att, err := s.attestations.TryConsume(ctx, key, now, v.ValidityWindow)
	if err != nil {
		err = consumeError(err)
		s.rejectConsume(ctx, operation, v, caller, key, operationHash, err)
		return nil, err
	}

	s.metrics.IncrementConsumed()
	s.emitAudit(ctx, audit.Event{
		Vault:          v.Address,
		Kind:           audit.EventAttestationConsumed,
		Actor:          caller,
		AttestationKey: key,
		OperationHash:  operationHash,
		Nonce:          v.Nonce,
		Timestamp:      now,
	})
	s.logger.InfoContext(ctx, "attestation consumed",
		"vault", v.Address.Hex(),
		"attestation_key", key.Hex(),
		"operation", operation,
		"request_id", requestcontext.RequestID(ctx),
	)
	return att, nil
}

func (s *Service) rejectConsume(ctx context.Context, operation string, v *models.Vault, caller common.Address, key, operationHash common.Hash, err error) {
	s.metrics.IncrementRejection(operation, kindLabel(err))
	s.emitAudit(ctx, audit.Event{
		Vault:          v.Address,
		Kind:           audit.EventValidationRejected,
		Actor:          caller,
		AttestationKey: key,
		OperationHash:  operationHash,
		Nonce:          v.Nonce,
		Reason:         string(dErrors.CodeOf(err)),
	})
	s.logger.WarnContext(ctx, "validation rejected",
		"vault", v.Address.Hex(),
		"attestation_key", key.Hex(),
		"operation", operation,
		"reason", dErrors.CodeOf(err),
		"request_id", requestcontext.RequestID(ctx),
	)
}
