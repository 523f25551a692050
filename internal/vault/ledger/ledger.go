// Package ledger provides the execution primitive that moves value once an
// operation has been authorized.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrCallRejected      = errors.New("call rejected by target")
)

// Ledger executes a value transfer with an optional call payload.
type Ledger interface {
	Execute(ctx context.Context, from, target common.Address, value *big.Int, payload []byte) error
}

// Call is one executed ledger call.
type Call struct {
	From    common.Address
	Target  common.Address
	Value   *big.Int
	Payload []byte
}

// InMemory is a balance ledger for development and tests. Targets registered
// with Reject refuse every call.
type InMemory struct {
	mu       sync.Mutex
	balances map[common.Address]*big.Int
	rejects  map[common.Address]bool
	calls    []Call
}

func NewInMemory() *InMemory {
	return &InMemory{
		balances: make(map[common.Address]*big.Int),
		rejects:  make(map[common.Address]bool),
	}
}

func (l *InMemory) Deposit(addr common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balanceLocked(addr).Add(l.balanceLocked(addr), amount)
}

func (l *InMemory) Balance(addr common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceLocked(addr))
}

// Reject makes every future call to target fail.
func (l *InMemory) Reject(target common.Address) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rejects[target] = true
}

func (l *InMemory) Calls() []Call {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Call{}, l.calls...)
}

func (l *InMemory) Execute(_ context.Context, from, target common.Address, value *big.Int, payload []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if value == nil {
		value = new(big.Int)
	}
	if l.rejects[target] {
		return fmt.Errorf("call to %s: %w", target.Hex(), ErrCallRejected)
	}
	balance := l.balanceLocked(from)
	if balance.Cmp(value) < 0 {
		return fmt.Errorf("transfer %s from %s: %w", value, from.Hex(), ErrInsufficientFunds)
	}
	balance.Sub(balance, value)
	l.balanceLocked(target).Add(l.balanceLocked(target), value)
	l.calls = append(l.calls, Call{
		From:    from,
		Target:  target,
		Value:   new(big.Int).Set(value),
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

func (l *InMemory) balanceLocked(addr common.Address) *big.Int {
	b, ok := l.balances[addr]
	if !ok {
		b = new(big.Int)
		l.balances[addr] = b
	}
	return b
}
