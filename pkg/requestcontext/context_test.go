package requestcontext

import (
	"context"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
)

func TestAccessorsDefaults(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, common.Address{}, Principal(ctx))
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.WithinDuration(t, time.Now(), Now(ctx), time.Second)
}

func TestAccessorsRoundTrip(t *testing.T) {
	fixed := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	oracle := common.HexToAddress("0x00000000000000000000000000000000000000aa")

	ctx := WithTime(context.Background(), fixed)
	ctx = WithPrincipal(ctx, oracle)
	ctx = WithRequestID(ctx, "req-1")
	ctx = WithClientIP(ctx, "10.0.0.1")

	assert.Equal(t, fixed, Now(ctx))
	assert.Equal(t, oracle, Principal(ctx))
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
}
