package service

import (
	"context"
	"math/big"
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

// ExecuteCommand is an owner-signed call through the vault. Signature is the
// owner's signature over the operation hash at the vault's current nonce.
type ExecuteCommand struct {
	Vault     common.Address
	Target    common.Address
	Value     *big.Int
	Payload   []byte
	Signature []byte
}

// ExecuteResult reports the counter value the execution was keyed by.
type ExecuteResult struct {
	OperationHash common.Hash
	Nonce         uint64
}

// Execute validates and executes in one transition: it derives the operation
// hash at the current nonce, consumes the matching attestation, advances the
// counter and calls the ledger. There is no path to the ledger without a
// consumed attestation for the exact operation.
//
// A ledger failure is reported as ExecutionFailed. The counter and the
// attestation stay spent so the same signature cannot be replayed.
func (s *Service) Execute(ctx context.Context, cmd ExecuteCommand) (_ *ExecuteResult, err error) {
	ctx, finish := tracing.TraceOp(ctx, "vault.execute",
		attribute.String("vault", cmd.Vault.Hex()),
		attribute.String("target", cmd.Target.Hex()),
	)
	defer func() { finish(err) }()
	defer s.metrics.ObserveExecute(time.Now())

	value := cmd.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 || value.BitLen() > 256 {
		err := dErrors.New(dErrors.CodeInvalidInput, "value must be a non-negative 256-bit integer")
		s.metrics.IncrementRejection("execute", kindLabel(err))
		return nil, err
	}

	lock, err := s.lockVault(ctx, cmd.Vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("execute", kindLabel(err))
		return nil, err
	}
	lock.Lock()
	defer lock.Unlock()

	v, err := s.vaults.FindByAddress(ctx, cmd.Vault)
	if err != nil {
		err = vaultLookupError(err)
		s.metrics.IncrementRejection("execute", kindLabel(err))
		return nil, err
	}

	expected := v.Nonce
	operationHash := keys.OperationHash(keys.Operation{
		Vault:   v.Address,
		Target:  cmd.Target,
		Value:   value,
		Payload: cmd.Payload,
		Nonce:   expected,
		ChainID: v.ChainID,
	})

	att, err := s.consume(ctx, "execute", v, operationHash, cmd.Signature)
	if err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	var nonce uint64
	_, err = s.vaults.Execute(ctx, v.Address,
		func(v *models.Vault) error {
			return v.CanExecute(expected)
		},
		func(v *models.Vault) {
			nonce = v.ApplyExecution(now)
		},
	)
	if err != nil {
		err = mutationError(err, "failed to advance execution counter")
		s.metrics.IncrementRejection("execute", kindLabel(err))
		return nil, err
	}

	caller := requestcontext.Principal(ctx)
	result := &ExecuteResult{OperationHash: operationHash, Nonce: nonce}

	if lerr := s.ledger.Execute(ctx, v.Address, cmd.Target, value, cmd.Payload); lerr != nil {
		err = dErrors.Wrap(lerr, dErrors.CodeExecutionFailed, "ledger rejected the call")
		s.metrics.IncrementExecution("failed")
		s.emitAudit(ctx, audit.Event{
			Vault:          v.Address,
			Kind:           audit.EventExecutionFailed,
			Actor:          caller,
			AttestationKey: att.Key,
			OperationHash:  operationHash,
			Nonce:          nonce,
			Reason:         string(dErrors.CodeExecutionFailed),
			Detail:         lerr.Error(),
			Timestamp:      now,
		})
		s.logger.ErrorContext(ctx, "execution failed",
			"vault", v.Address.Hex(),
			"target", cmd.Target.Hex(),
			"nonce", nonce,
			"error", lerr,
			"request_id", requestcontext.RequestID(ctx),
		)
		return result, err
	}

	s.metrics.IncrementExecution("succeeded")
	s.emitAudit(ctx, audit.Event{
		Vault:          v.Address,
		Kind:           audit.EventOperationExecuted,
		Actor:          caller,
		AttestationKey: att.Key,
		OperationHash:  operationHash,
		Nonce:          nonce,
		Detail:         "target=" + cmd.Target.Hex() + " value=" + value.String(),
		Timestamp:      now,
	})
	s.logger.InfoContext(ctx, "operation executed",
		"vault", v.Address.Hex(),
		"target", cmd.Target.Hex(),
		"value", value.String(),
		"nonce", nonce,
		"request_id", requestcontext.RequestID(ctx),
	)
	return result, nil
}
