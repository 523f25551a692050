package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"

	"sanctuary/internal/vault/models"
	"sanctuary/internal/vault/service"
	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/httputil"
	"sanctuary/pkg/requestcontext"
)

// Service defines the vault operations exposed over HTTP.
type Service interface {
	Setup(ctx context.Context, cmd service.SetupCommand) (*models.Vault, error)
	Vault(ctx context.Context, address common.Address) (*models.Vault, error)
	Attest(ctx context.Context, vault common.Address, operationHash, signatureDigest common.Hash) (*service.AttestResult, error)
	Status(ctx context.Context, vault common.Address, operationHash, signatureDigest common.Hash) (models.Status, error)
	Validate(ctx context.Context, vault common.Address, operationHash common.Hash, signature []byte) (models.ValidationCode, error)
	RotateOracle(ctx context.Context, vault, next common.Address) (*models.Vault, error)
	OperationHash(ctx context.Context, vault, target common.Address, value *big.Int, payload []byte) (common.Hash, uint64, error)
	Execute(ctx context.Context, cmd service.ExecuteCommand) (*service.ExecuteResult, error)
	AuditTrail(ctx context.Context, vault common.Address) ([]audit.Event, error)
}

// Handler wires vault endpoints to the vault service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts vault endpoints on the router. Authentication is applied
// by the caller.
func (h *Handler) Register(r chi.Router) {
	r.Post("/vaults", h.HandleSetup)
	r.Route("/vaults/{address}", func(r chi.Router) {
		r.Get("/", h.HandleGetVault)
		r.Post("/attestations", h.HandleAttest)
		r.Get("/attestations/status", h.HandleStatus)
		r.Post("/validate", h.HandleValidate)
		r.Post("/oracle", h.HandleRotateOracle)
		r.Post("/operations/hash", h.HandleOperationHash)
		r.Post("/execute", h.HandleExecute)
		r.Get("/audit", h.HandleAuditTrail)
	})
}

func (h *Handler) HandleSetup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SetupRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	v, err := h.service.Setup(ctx, service.SetupCommand{
		Address:        req.address,
		OwnerPublicKey: req.publicKey,
		Oracle:         req.oracle,
		ValidityWindow: req.ValidityWindow(),
	})
	if err != nil {
		h.writeServiceError(ctx, w, "setup", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, FromVault(v))
}

func (h *Handler) HandleGetVault(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	v, err := h.service.Vault(ctx, vault)
	if err != nil {
		h.writeServiceError(ctx, w, "get_vault", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVault(v))
}

func (h *Handler) HandleAttest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[AttestRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.Attest(ctx, vault, req.operationHash, req.signatureDigest)
	if err != nil {
		h.writeServiceError(ctx, w, "attest", err)
		return
	}
	status := http.StatusCreated
	if res.Reissued {
		status = http.StatusOK
	}
	httputil.WriteJSON(w, status, FromAttestResult(res))
}

func (h *Handler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	operationHash, err := parseHash("operation_hash", r.URL.Query().Get("operation_hash"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	signatureDigest, err := parseHash("signature_digest", r.URL.Query().Get("signature_digest"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	st, err := h.service.Status(ctx, vault, operationHash, signatureDigest)
	if err != nil {
		h.writeServiceError(ctx, w, "status", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromStatus(st))
}

// HandleValidate returns the validation code in the body for both outcomes;
// failures also carry the HTTP status of their error code.
func (h *Handler) HandleValidate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ValidateRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	code, err := h.service.Validate(ctx, vault, req.operationHash, req.signature)
	if err != nil {
		h.logRejection(ctx, "validate", err)
		errCode := dErrors.CodeOf(err)
		resp := ValidateResponse{ValidationData: code, Error: string(errCode)}
		if errCode != dErrors.CodeInternal {
			resp.ErrorDescription = dErrors.MessageOf(err)
		}
		httputil.WriteJSON(w, dErrors.HTTPStatus(errCode), resp)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ValidateResponse{ValidationData: code})
}

func (h *Handler) HandleRotateOracle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[RotateOracleRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	v, err := h.service.RotateOracle(ctx, vault, req.newOracle)
	if err != nil {
		h.writeServiceError(ctx, w, "rotate_oracle", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromVault(v))
}

func (h *Handler) HandleOperationHash(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[OperationRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	hash, nonce, err := h.service.OperationHash(ctx, vault, req.target, req.value, req.payload)
	if err != nil {
		h.writeServiceError(ctx, w, "operation_hash", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, OperationHashResponse{OperationHash: hash.Hex(), Nonce: nonce})
}

func (h *Handler) HandleExecute(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	req, ok := httputil.DecodeAndPrepare[ExecuteRequest](w, r, h.logger, ctx, requestcontext.RequestID(ctx))
	if !ok {
		return
	}

	res, err := h.service.Execute(ctx, service.ExecuteCommand{
		Vault:     vault,
		Target:    req.target,
		Value:     req.value,
		Payload:   req.payload,
		Signature: req.signature,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "execute", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ExecuteResponse{OperationHash: res.OperationHash.Hex(), Nonce: res.Nonce})
}

func (h *Handler) HandleAuditTrail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vault, ok := h.vaultParam(w, r)
	if !ok {
		return
	}
	events, err := h.service.AuditTrail(ctx, vault)
	if err != nil {
		h.writeServiceError(ctx, w, "audit_trail", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, FromAuditTrail(vault.Hex(), events))
}

func (h *Handler) vaultParam(w http.ResponseWriter, r *http.Request) (common.Address, bool) {
	vault, err := parseVaultAddress(chi.URLParam(r, "address"))
	if err != nil {
		httputil.WriteError(w, err)
		return common.Address{}, false
	}
	return vault, true
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, operation string, err error) {
	h.logRejection(ctx, operation, err)
	httputil.WriteError(w, err)
}

func (h *Handler) logRejection(ctx context.Context, operation string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, "vault operation failed",
			"operation", operation,
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		return
	}
	h.logger.DebugContext(ctx, "vault operation rejected",
		"operation", operation,
		"code", dErrors.CodeOf(err),
		"request_id", requestcontext.RequestID(ctx),
	)
}
