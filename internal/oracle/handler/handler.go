package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/go-chi/chi/v5"

	"sanctuary/internal/oracle/service"
	dErrors "sanctuary/pkg/domain-errors"
	"sanctuary/pkg/platform/httputil"
	"sanctuary/pkg/requestcontext"
)

// Service defines the oracle verifier operations exposed over HTTP.
type Service interface {
	SubmitBatch(ctx context.Context, subs []service.Submission) ([]service.Result, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the oracle endpoints on the router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/oracle/submissions", h.HandleSubmit)
}

// SubmissionItem is one owner-signed operation, hex encoded.
type SubmissionItem struct {
	Vault          string `json:"vault"`
	OwnerPublicKey string `json:"owner_public_key"`
	OperationHash  string `json:"operation_hash"`
	Signature      string `json:"signature"`
}

// SubmitRequest is the body of POST /oracle/submissions.
type SubmitRequest struct {
	Submissions []SubmissionItem `json:"submissions"`

	parsed []service.Submission
}

func (r *SubmitRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Submissions) == 0 {
		return dErrors.New(dErrors.CodeValidation, "submissions is required")
	}
	if len(r.Submissions) > service.MaxBatchSize {
		return dErrors.New(dErrors.CodeValidation, "too many submissions in one batch")
	}
	r.parsed = make([]service.Submission, 0, len(r.Submissions))
	for _, item := range r.Submissions {
		sub, err := item.parse()
		if err != nil {
			return err
		}
		r.parsed = append(r.parsed, sub)
	}
	return nil
}

func (i SubmissionItem) parse() (service.Submission, error) {
	var sub service.Submission
	vault := strings.TrimSpace(i.Vault)
	if !common.IsHexAddress(vault) {
		return sub, dErrors.New(dErrors.CodeValidation, "vault must be a 20-byte hex address")
	}
	sub.Vault = common.HexToAddress(vault)

	opHash, err := hexutil.Decode(strings.TrimSpace(i.OperationHash))
	if err != nil || len(opHash) != common.HashLength {
		return sub, dErrors.New(dErrors.CodeValidation, "operation_hash must be a 32-byte 0x-prefixed hex value")
	}
	sub.OperationHash = common.BytesToHash(opHash)

	if sub.OwnerPublicKey, err = hexutil.Decode(strings.TrimSpace(i.OwnerPublicKey)); err != nil {
		return sub, dErrors.New(dErrors.CodeValidation, "owner_public_key must be 0x-prefixed hex")
	}
	if sub.Signature, err = hexutil.Decode(strings.TrimSpace(i.Signature)); err != nil {
		return sub, dErrors.New(dErrors.CodeValidation, "signature must be 0x-prefixed hex")
	}
	return sub, nil
}

// SubmissionResult reports one item; Error is set when it was not attested.
type SubmissionResult struct {
	Vault            string     `json:"vault"`
	OperationHash    string     `json:"operation_hash"`
	Attested         bool       `json:"attested"`
	AttestationKey   string     `json:"attestation_key,omitempty"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	Error            string     `json:"error,omitempty"`
	ErrorDescription string     `json:"error_description,omitempty"`
}

type SubmitResponse struct {
	Results []SubmissionResult `json:"results"`
}

// HandleSubmit verifies and attests a batch. The response is 200 with a
// per-item outcome; only request-level failures use an error status.
func (h *Handler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, ok := httputil.DecodeAndPrepare[SubmitRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	results, err := h.service.SubmitBatch(ctx, req.parsed)
	if err != nil {
		h.logger.WarnContext(ctx, "oracle batch failed",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	resp := SubmitResponse{Results: make([]SubmissionResult, len(results))}
	attested := 0
	for i, res := range results {
		item := SubmissionResult{
			Vault:         req.parsed[i].Vault.Hex(),
			OperationHash: req.parsed[i].OperationHash.Hex(),
		}
		if res.Err != nil {
			code := dErrors.CodeOf(res.Err)
			item.Error = string(code)
			if code != dErrors.CodeInternal {
				item.ErrorDescription = dErrors.MessageOf(res.Err)
			}
		} else {
			attested++
			expires := res.Attestation.ExpiresAt
			item.Attested = true
			item.AttestationKey = res.Attestation.Key.Hex()
			item.ExpiresAt = &expires
		}
		resp.Results[i] = item
	}

	h.logger.InfoContext(ctx, "oracle batch processed",
		"submitted", len(results),
		"attested", attested,
		"request_id", requestID,
	)
	httputil.WriteJSON(w, http.StatusOK, resp)
}
