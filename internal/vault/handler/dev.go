package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	dErrors "sanctuary/pkg/domain-errors"
	"sanctuary/pkg/platform/httputil"
	"sanctuary/pkg/requestcontext"
)

// FundingService credits and reads balances on the development ledger.
type FundingService interface {
	Deposit(ctx context.Context, vault common.Address, amount *big.Int) (*big.Int, error)
	Balance(ctx context.Context, addr common.Address) (*big.Int, error)
}

// DevHandler serves ledger funding endpoints. It is only mounted when dev
// deposits are enabled.
type DevHandler struct {
	service FundingService
	logger  *slog.Logger
}

func NewDevHandler(service FundingService, logger *slog.Logger) *DevHandler {
	return &DevHandler{service: service, logger: logger}
}

func (h *DevHandler) Register(r chi.Router) {
	r.Post("/ledger/{address}/deposits", h.HandleDeposit)
	r.Get("/ledger/{address}/balance", h.HandleBalance)
}

// DepositRequest is the body of POST /ledger/{address}/deposits.
type DepositRequest struct {
	Amount string `json:"amount"`

	amount *big.Int
}

func (r *DepositRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.amount, err = parseValue(r.Amount); err != nil {
		return err
	}
	if r.amount.Sign() == 0 {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	return nil
}

type BalanceResponse struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

func (h *DevHandler) HandleDeposit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, err := parseVaultAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[DepositRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	balance, err := h.service.Deposit(ctx, vault, req.amount)
	if err != nil {
		h.logger.DebugContext(ctx, "deposit rejected",
			"code", dErrors.CodeOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Address: vault.Hex(), Balance: balance.String()})
}

func (h *DevHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	addr, err := parseVaultAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	balance, err := h.service.Balance(ctx, addr)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, BalanceResponse{Address: addr.Hex(), Balance: balance.String()})
}
