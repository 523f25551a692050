package service

import (
	"errors"

	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"
	"sanctuary/pkg/platform/sentinel"
)

// vaultLookupError converts a missing vault into NotInitialized: a vault that
// was never set up does not exist in the store.
func vaultLookupError(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotInitialized, "vault is not initialized")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load vault")
}

// consumeError translates attestation store sentinels into coded errors.
func consumeError(err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotAttested, "no attestation for this operation and signature")
	case errors.Is(err, sentinel.ErrExpired):
		return dErrors.New(dErrors.CodeAttestationExpired, "attestation expired")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeAttestationConsumed, "attestation already consumed")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to consume attestation")
	}
}

func kindLabel(err error) string {
	return string(models.KindOf(err))
}

// mutationError passes through coded errors raised by a validate callback and
// converts store failures.
func mutationError(err error, message string) error {
	var de *dErrors.Error
	if errors.As(err, &de) {
		return err
	}
	if errors.Is(err, sentinel.ErrNotFound) {
		return vaultLookupError(err)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
