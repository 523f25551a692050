package service

import (
	"context"
	"errors"
	"time"

	"sanctuary/internal/platform/tracing"
	"sanctuary/internal/vault/keys"
	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
)

// AttestResult describes the attestation recorded by Attest.
type AttestResult struct {
	Key       common.Hash
	IssuedAt  time.Time
	ExpiresAt time.Time
	Reissued  bool
}

// Attest records that the caller, who must be the vault's current oracle,
// verified signatureDigest over operationHash off-path. Attesting an
// unconsumed key again refreshes its clock.
func (s *Service) Attest(ctx context.Context, vault common.Address, operationHash, signatureDigest common.Hash) (_ *AttestResult, err error) {
	ctx, finish := tracing.TraceOp(ctx, "vault.attest", attribute.String("vault", vault.Hex()))
	defer func() { finish(err) }()

	lock, err := s.lockVault(ctx, vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("attest", kindLabel(err))
		return nil, err
	}
	lock.RLock()
	defer lock.RUnlock()

	caller := requestcontext.Principal(ctx)
	v, err := s.vaults.FindByAddress(ctx, vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("attest", kindLabel(err))
		return nil, err
	}

	key := keys.AttestationKey(v.Address, v.OwnerKeyHash, operationHash, signatureDigest)

	if !v.IsOracle(caller) {
		err := dErrors.New(dErrors.CodeNotOracle, "caller is not the oracle")
		s.rejectAttest(ctx, v.Address, caller, key, operationHash, err)
		return nil, err
	}

	now := requestcontext.Now(ctx)
	reissued, err := s.attestations.Issue(ctx, v.Address, key, now)
	if err != nil {
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			err := dErrors.New(dErrors.CodeAttestationConsumed, "attestation already consumed")
			s.rejectAttest(ctx, v.Address, caller, key, operationHash, err)
			return nil, err
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue attestation")
	}

	kind := audit.EventAttestationIssued
	if reissued {
		kind = audit.EventAttestationReissued
	}
	s.metrics.IncrementIssued(reissued)
	s.emitAudit(ctx, audit.Event{
		Vault:          v.Address,
		Kind:           kind,
		Actor:          caller,
		AttestationKey: key,
		OperationHash:  operationHash,
		Timestamp:      now,
	})
	s.logger.InfoContext(ctx, "attestation issued",
		"vault", v.Address.Hex(),
		"attestation_key", key.Hex(),
		"reissued", reissued,
		"request_id", requestcontext.RequestID(ctx),
	)

	return &AttestResult{
		Key:       key,
		IssuedAt:  now,
		ExpiresAt: now.Add(v.ValidityWindow),
		Reissued:  reissued,
	}, nil
}

func (s *Service) rejectAttest(ctx context.Context, vault, caller common.Address, key, operationHash common.Hash, err error) {
	s.metrics.IncrementRejection("attest", kindLabel(err))
	s.emitAudit(ctx, audit.Event{
		Vault:          vault,
		Kind:           audit.EventAttestDenied,
		Actor:          caller,
		AttestationKey: key,
		OperationHash:  operationHash,
		Reason:         string(dErrors.CodeOf(err)),
	})
	s.logger.WarnContext(ctx, "attest rejected",
		"vault", vault.Hex(),
		"caller", caller.Hex(),
		"reason", dErrors.CodeOf(err),
		"request_id", requestcontext.RequestID(ctx),
	)
}

// RotateOracle replaces the oracle principal. Only the current oracle may
// rotate. Attestations already issued stay valid.
func (s *Service) RotateOracle(ctx context.Context, vault, next common.Address) (_ *models.Vault, err error) {
	ctx, finish := tracing.TraceOp(ctx, "vault.rotate_oracle", attribute.String("vault", vault.Hex()))
	defer func() { finish(err) }()

	lock, err := s.lockVault(ctx, vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("rotate_oracle", kindLabel(err))
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	caller := requestcontext.Principal(ctx)
	now := requestcontext.Now(ctx)
	var previous common.Address

	var v *models.Vault
	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		v, err = s.vaults.Execute(ctx, vault,
			func(v *models.Vault) error {
				previous = v.Oracle
				return v.CanRotateOracle(caller, next)
			},
			func(v *models.Vault) {
				v.ApplyOracleRotation(next, now)
			},
		)
		if err != nil {
			return err
		}
		s.emitAudit(ctx, audit.Event{
			Vault:  v.Address,
			Kind:   audit.EventOracleRotated,
			Actor:  caller,
			Detail: "from=" + previous.Hex() + " to=" + next.Hex(),
		})
		return nil
	})
	if err != nil {
		err = mutationError(err, "failed to rotate oracle")
		s.metrics.IncrementRejection("rotate_oracle", kindLabel(err))
		s.logger.WarnContext(ctx, "oracle rotation rejected",
			"vault", vault.Hex(),
			"caller", caller.Hex(),
			"reason", dErrors.CodeOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}

	s.metrics.IncrementOracleRotation()
	s.logger.InfoContext(ctx, "oracle rotated",
		"vault", v.Address.Hex(),
		"previous_oracle", previous.Hex(),
		"oracle", next.Hex(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return v, nil
}
