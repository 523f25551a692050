package models

import (
	dErrors "sanctuary/pkg/domain-errors"
)

// Kind groups failure codes into the categories monitoring alerts on.
type Kind string

const (
	KindNone                Kind = ""
	KindStructuralInput     Kind = "structural_input"
	KindLifecycleViolation  Kind = "lifecycle_violation"
	KindAccessDenied        Kind = "access_denied"
	KindAttestationMissing  Kind = "attestation_missing"
	KindAttestationExpired  Kind = "attestation_expired"
	KindAttestationConsumed Kind = "attestation_consumed"
	KindExecutionFailure    Kind = "execution_failure"
	KindInternal            Kind = "internal"
)

// KindOf classifies err. A nil error has KindNone.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeInvalidPublicKeySize, dErrors.CodeInvalidSignatureSize,
		dErrors.CodeInvalidPrincipal, dErrors.CodeInvalidInput,
		dErrors.CodeValidation, dErrors.CodeBadRequest:
		return KindStructuralInput
	case dErrors.CodeNotInitialized, dErrors.CodeAlreadyInitialized:
		return KindLifecycleViolation
	case dErrors.CodeNotOracle, dErrors.CodeUnauthorized, dErrors.CodeForbidden,
		dErrors.CodeInvalidSignature:
		return KindAccessDenied
	case dErrors.CodeNotAttested:
		return KindAttestationMissing
	case dErrors.CodeAttestationExpired:
		return KindAttestationExpired
	case dErrors.CodeAttestationConsumed:
		return KindAttestationConsumed
	case dErrors.CodeExecutionFailed:
		return KindExecutionFailure
	default:
		return KindInternal
	}
}

// ValidationCode is the integer returned across the validate boundary.
// Zero is the only success value.
type ValidationCode uint8

const (
	ValidationOK ValidationCode = iota
	ValidationFailed
	ValidationNotInitialized
	ValidationInvalidSignatureSize
	ValidationNotAttested
	ValidationExpired
	ValidationConsumed
)

// ValidationCodeOf maps a validate result onto the boundary encoding.
func ValidationCodeOf(err error) ValidationCode {
	if err == nil {
		return ValidationOK
	}
	switch dErrors.CodeOf(err) {
	case dErrors.CodeNotInitialized:
		return ValidationNotInitialized
	case dErrors.CodeInvalidSignatureSize:
		return ValidationInvalidSignatureSize
	case dErrors.CodeNotAttested:
		return ValidationNotAttested
	case dErrors.CodeAttestationExpired:
		return ValidationExpired
	case dErrors.CodeAttestationConsumed:
		return ValidationConsumed
	default:
		return ValidationFailed
	}
}
