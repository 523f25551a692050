package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outermost code", func(t *testing.T) {
		err := New(CodeNotOracle, "caller is not the oracle")
		assert.True(t, HasCode(err, CodeNotOracle))
		assert.False(t, HasCode(err, CodeForbidden))
	})

	t.Run("matches code through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("attest: %w", New(CodeNotInitialized, "vault not initialized"))
		assert.True(t, HasCode(err, CodeNotInitialized))
		assert.Equal(t, CodeNotInitialized, CodeOf(err))
	})

	t.Run("matches inner code of wrapped domain error", func(t *testing.T) {
		inner := New(CodeAttestationExpired, "attestation expired")
		err := Wrap(inner, CodeInternal, "validate")
		assert.True(t, HasCode(err, CodeAttestationExpired))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("plain errors have no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorIs(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", New(CodeAttestationConsumed, "attestation already consumed"))
	require.ErrorIs(t, err, New(CodeAttestationConsumed, "attestation already consumed"))
	require.ErrorIs(t, err, &Error{Code: CodeAttestationConsumed})
	require.NotErrorIs(t, err, New(CodeAttestationConsumed, "other message"))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodeInternal, "failed to load vault")
	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to load vault: connection refused", err.Error())
	assert.Equal(t, "failed to load vault", MessageOf(err))
}

func TestHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeInvalidSignatureSize: http.StatusBadRequest,
		CodeNotOracle:            http.StatusForbidden,
		CodeNotInitialized:       http.StatusNotFound,
		CodeNotAttested:          http.StatusNotFound,
		CodeAlreadyInitialized:   http.StatusConflict,
		CodeAttestationConsumed:  http.StatusConflict,
		CodeAttestationExpired:   http.StatusGone,
		CodeExecutionFailed:      http.StatusBadGateway,
		CodeInternal:             http.StatusInternalServerError,
		Code("unknown"):          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, HTTPStatus(code), string(code))
	}
}
