package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these wrapped with context
// and services translate them into coded domain errors:
//   - ErrNotFound: no vault or attestation under the key
//   - ErrConflict: a record with the same identity already exists
//   - ErrExpired: the attestation's validity window has elapsed
//   - ErrAlreadyUsed: the attestation has been consumed
//   - ErrInvalidState: the record cannot make the requested transition
//   - ErrUnavailable: the backend could not be reached
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrAlreadyUsed  = errors.New("already used")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
