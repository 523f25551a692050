package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

func TestTraceOpWithoutProvider(t *testing.T) {
	ctx, finish := TraceOp(context.Background(), "vault.validate", attribute.String("vault", "0x01"))
	assert.NotNil(t, trace.SpanFromContext(ctx))
	assert.NotPanics(t, func() { finish(errors.New("rejected")) })
}
