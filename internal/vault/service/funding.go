package service

import (
	"context"
	"math/big"

	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
)

// FundableLedger is a ledger whose balances can be credited directly. Only
// the in-memory development ledger implements it.
type FundableLedger interface {
	Ledger
	Deposit(addr common.Address, amount *big.Int)
	Balance(addr common.Address) *big.Int
}

// Deposit credits amount to an initialized vault on a fundable ledger and
// returns the new balance.
func (s *Service) Deposit(ctx context.Context, vault common.Address, amount *big.Int) (*big.Int, error) {
	funder, ok := s.ledger.(FundableLedger)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "ledger does not accept deposits")
	}
	if amount == nil || amount.Sign() <= 0 || amount.BitLen() > 256 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "amount must be a positive 256-bit integer")
	}

	lock, err := s.lockVault(ctx, vault)
	if err != nil {
		return nil, vaultLookupError(err)
	}
	lock.Lock()
	defer lock.Unlock()

	funder.Deposit(vault, amount)
	balance := funder.Balance(vault)

	s.emitAudit(ctx, audit.Event{
		Vault:  vault,
		Kind:   audit.EventVaultFunded,
		Actor:  requestcontext.Principal(ctx),
		Detail: "amount=" + amount.String(),
	})
	s.logger.InfoContext(ctx, "vault funded",
		"vault", vault.Hex(),
		"amount", amount.String(),
		"balance", balance.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return balance, nil
}

// Balance reports the ledger balance of addr.
func (s *Service) Balance(_ context.Context, addr common.Address) (*big.Int, error) {
	funder, ok := s.ledger.(FundableLedger)
	if !ok {
		return nil, dErrors.New(dErrors.CodeForbidden, "ledger does not report balances")
	}
	return funder.Balance(addr), nil
}
