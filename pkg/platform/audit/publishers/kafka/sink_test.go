package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/circuit"
	"sanctuary/pkg/platform/sentinel"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"
)

type fakeProducer struct {
	records []*kgo.Record
	err     error
}

func (f *fakeProducer) ProduceSync(_ context.Context, rs ...*kgo.Record) kgo.ProduceResults {
	results := make(kgo.ProduceResults, 0, len(rs))
	for _, r := range rs {
		f.records = append(f.records, r)
		results = append(results, kgo.ProduceResult{Record: r, Err: f.err})
	}
	return results
}

func TestPublishProducesKeyedRecord(t *testing.T) {
	producer := &fakeProducer{}
	sink := New(producer, "vault-audit")

	vault := common.HexToAddress("0x1111111111111111111111111111111111111111")
	key := common.HexToHash("0xabc")
	event := audit.Event{
		ID:             uuid.New(),
		Vault:          vault,
		Sequence:       7,
		Kind:           audit.EventAttestationConsumed,
		Category:       audit.CategoryOperations,
		Timestamp:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		AttestationKey: key,
	}

	require.NoError(t, sink.Publish(context.Background(), event))
	require.Len(t, producer.records, 1)

	rec := producer.records[0]
	assert.Equal(t, "vault-audit", rec.Topic)
	assert.Equal(t, vault.Bytes(), rec.Key)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(rec.Value, &msg))
	assert.Equal(t, "attestation_consumed", msg["kind"])
	assert.Equal(t, key.Hex(), msg["attestation_key"])
	assert.Equal(t, float64(7), msg["sequence"])
	assert.NotContains(t, msg, "actor")
}

func TestPublishOpensCircuitAfterFailures(t *testing.T) {
	producer := &fakeProducer{err: errors.New("broker not available")}
	breaker := circuit.New("test", circuit.WithFailureThreshold(2), circuit.WithCooldown(time.Hour))
	var states []bool
	sink := New(producer, "vault-audit",
		WithBreaker(breaker),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithStateObserver(func(open bool) { states = append(states, open) }),
	)

	event := audit.Event{Kind: audit.EventOracleRotated}
	require.Error(t, sink.Publish(context.Background(), event))
	require.Error(t, sink.Publish(context.Background(), event))
	assert.True(t, breaker.IsOpen())
	assert.Equal(t, []bool{true}, states)

	err := sink.Publish(context.Background(), event)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Len(t, producer.records, 2, "open circuit skips the broker")
}
