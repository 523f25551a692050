package publisher

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/audit/store/memory"

	"github.com/ethereum/go-ethereum/common"
	promtestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var vault = common.HexToAddress("0x5A0b54D5dc17e0AadC383d2db43B0a0D3E029c4c")

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventVaultInitialized})
	require.NoError(t, err)

	events, err := pub.List(context.Background(), vault)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, audit.EventVaultInitialized, events[0].Kind)
	assert.Equal(t, audit.CategoryLifecycle, events[0].Category)
	assert.Equal(t, uint64(1), events[0].Sequence)
}

func TestPublisher_AsyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(10))
	defer pub.Close()

	err := pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventAttestationIssued})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		events, _ := pub.List(context.Background(), vault)
		return len(events) == 1
	}, time.Second, 10*time.Millisecond)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventAttestationIssued}))
	}

	require.NoError(t, pub.Close())

	events, err := store.ListByVault(context.Background(), vault)
	require.NoError(t, err)
	require.Len(t, events, 10, "all events should be drained on close")
	for i, e := range events {
		assert.Equal(t, uint64(i+1), e.Sequence)
	}

	assert.Error(t, pub.Emit(context.Background(), audit.Event{Vault: vault}), "emit after close fails")
}

func TestPublisher_BufferFull_DropsEvent(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(1))
	defer pub.Close()

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventAttestationIssued}))
		}()
	}
	wg.Wait()
}

func TestPublisher_SetsTimestamp(t *testing.T) {
	fixed := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithClock(func() time.Time { return fixed }))

	require.NoError(t, pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventOracleRotated}))

	events, err := pub.List(context.Background(), vault)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, fixed, events[0].Timestamp)
}

func TestPublisher_PreservesExistingTimestamp(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)

	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Vault: vault, Timestamp: custom}))

	events, err := pub.List(context.Background(), vault)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, custom, events[0].Timestamp)
}

type recordingSink struct {
	mu     sync.Mutex
	events []audit.Event
	err    error
}

func (s *recordingSink) Publish(_ context.Context, e audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return s.err
}

func TestPublisher_ForwardsToSinks(t *testing.T) {
	store := memory.NewInMemoryStore()
	sink := &recordingSink{err: errors.New("broker unavailable")}
	pub := NewPublisher(store, WithSink(sink))

	err := pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventOperationExecuted, Nonce: 1})
	require.NoError(t, err, "sink failures must not fail the emit")

	require.Len(t, sink.events, 1)
	assert.Equal(t, uint64(1), sink.events[0].Sequence, "sinks see the persisted sequence")

	events, err := store.ListByVault(context.Background(), vault)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

type failingStore struct{ *memory.InMemoryStore }

func (failingStore) Append(context.Context, *audit.Event) error {
	return errors.New("disk full")
}

func TestPublisher_SyncReturnsStoreError(t *testing.T) {
	pub := NewPublisher(failingStore{memory.NewInMemoryStore()})
	err := pub.Emit(context.Background(), audit.Event{Vault: vault})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}

func TestPublisher_RecordsMetrics(t *testing.T) {
	m := NewMetrics(nil)

	pub := NewPublisher(memory.NewInMemoryStore(), WithMetrics(m))
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Vault: vault, Kind: audit.EventAttestationIssued}))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.Persisted))

	failing := NewPublisher(failingStore{memory.NewInMemoryStore()}, WithMetrics(m))
	require.Error(t, failing.Emit(context.Background(), audit.Event{Vault: vault}))
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.PersistFailures))

	m.SetCircuitBreakerState(true)
	assert.Equal(t, 1.0, promtestutil.ToFloat64(m.CircuitBreakerState))
}
