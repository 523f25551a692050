package ledger

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	vault  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	target = common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f8b2E1")
)

func TestInMemoryExecute(t *testing.T) {
	ctx := context.Background()
	l := NewInMemory()
	l.Deposit(vault, big.NewInt(100))

	require.NoError(t, l.Execute(ctx, vault, target, big.NewInt(40), []byte{0x01}))
	assert.Equal(t, big.NewInt(60), l.Balance(vault))
	assert.Equal(t, big.NewInt(40), l.Balance(target))
	require.Len(t, l.Calls(), 1)
	assert.Equal(t, []byte{0x01}, l.Calls()[0].Payload)

	err := l.Execute(ctx, vault, target, big.NewInt(61), nil)
	require.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, big.NewInt(60), l.Balance(vault), "failed transfer moves nothing")

	require.NoError(t, l.Execute(ctx, vault, target, nil, []byte("ping")), "nil value is a pure call")

	l.Reject(target)
	require.ErrorIs(t, l.Execute(ctx, vault, target, big.NewInt(1), nil), ErrCallRejected)
	assert.Len(t, l.Calls(), 2)
}
