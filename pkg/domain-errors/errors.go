// Package domainerrors defines coded errors shared by services and transports.
//
// Services return *Error values (or wrap store sentinels into them) so the HTTP
// layer can render a stable error code without inspecting messages.
package domainerrors

import (
	"errors"
	"net/http"
)

// Code is a stable, machine-readable error identifier.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeValidation         Code = "validation_error"
	CodeInvalidInput       Code = "invalid_input"
	CodeUnauthorized       Code = "unauthorized"
	CodeForbidden          Code = "forbidden"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeUnavailable        Code = "service_unavailable"
	CodeInternal           Code = "internal_error"

	// Vault codes.
	CodeInvalidPublicKeySize Code = "invalid_public_key_size"
	CodeInvalidSignatureSize Code = "invalid_signature_size"
	CodeInvalidSignature     Code = "invalid_signature"
	CodeInvalidPrincipal     Code = "invalid_principal"
	CodeNotInitialized       Code = "not_initialized"
	CodeAlreadyInitialized   Code = "already_initialized"
	CodeNotOracle            Code = "not_oracle"
	CodeNotAttested          Code = "not_attested"
	CodeAttestationExpired   Code = "attestation_expired"
	CodeAttestationConsumed  Code = "attestation_consumed"
	CodeExecutionFailed      Code = "execution_failed"
)

// Error carries a Code, a client-safe message and an optional cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

// New creates a coded error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying error.
func Wrap(err error, code Code, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error with the same code. An empty target message
// matches any message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != e.Code {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// HasCode reports whether any *Error in err's chain has the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	for err != nil {
		if !errors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Err
	}
	return false
}

// Is is shorthand for HasCode.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the outermost code in err's chain, or CodeInternal.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message of the outermost *Error.
func MessageOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// HTTPStatus maps a code to the HTTP status used by the transport layer.
func HTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest, CodeValidation, CodeInvalidInput,
		CodeInvalidPublicKeySize, CodeInvalidSignatureSize, CodeInvalidPrincipal:
		return http.StatusBadRequest
	case CodeUnauthorized, CodeInvalidSignature:
		return http.StatusUnauthorized
	case CodeForbidden, CodeNotOracle:
		return http.StatusForbidden
	case CodeNotFound, CodeNotInitialized, CodeNotAttested:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyInitialized, CodeAttestationConsumed:
		return http.StatusConflict
	case CodeAttestationExpired:
		return http.StatusGone
	case CodeInvariantViolation:
		return http.StatusUnprocessableEntity
	case CodeExecutionFailed:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	case CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
