package handler

import (
	"time"

	"sanctuary/internal/vault/models"
	"sanctuary/internal/vault/service"
	audit "sanctuary/pkg/platform/audit"

	"github.com/ethereum/go-ethereum/common"
)

type VaultResponse struct {
	Address               string    `json:"address"`
	OwnerKeyHash          string    `json:"owner_key_hash"`
	Oracle                string    `json:"oracle"`
	Nonce                 uint64    `json:"nonce"`
	ChainID               uint64    `json:"chain_id"`
	ValidityWindowSeconds int64     `json:"validity_window_seconds"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

func FromVault(v *models.Vault) VaultResponse {
	return VaultResponse{
		Address:               v.Address.Hex(),
		OwnerKeyHash:          v.OwnerKeyHash.Hex(),
		Oracle:                v.Oracle.Hex(),
		Nonce:                 v.Nonce,
		ChainID:               v.ChainID,
		ValidityWindowSeconds: int64(v.ValidityWindow / time.Second),
		CreatedAt:             v.CreatedAt,
		UpdatedAt:             v.UpdatedAt,
	}
}

type AttestResponse struct {
	AttestationKey string    `json:"attestation_key"`
	IssuedAt       time.Time `json:"issued_at"`
	ExpiresAt      time.Time `json:"expires_at"`
	Reissued       bool      `json:"reissued"`
}

func FromAttestResult(r *service.AttestResult) AttestResponse {
	return AttestResponse{
		AttestationKey: r.Key.Hex(),
		IssuedAt:       r.IssuedAt,
		ExpiresAt:      r.ExpiresAt,
		Reissued:       r.Reissued,
	}
}

// StatusResponse carries expires_at as unix seconds, 0 when not valid.
type StatusResponse struct {
	Valid     bool  `json:"valid"`
	ExpiresAt int64 `json:"expires_at"`
}

func FromStatus(s models.Status) StatusResponse {
	resp := StatusResponse{Valid: s.Valid}
	if s.Valid {
		resp.ExpiresAt = s.ExpiresAt.Unix()
	}
	return resp
}

// ValidateResponse mirrors the validate boundary: validation_data is 0 on
// success and a failure code otherwise.
type ValidateResponse struct {
	ValidationData   models.ValidationCode `json:"validation_data"`
	Error            string                `json:"error,omitempty"`
	ErrorDescription string                `json:"error_description,omitempty"`
}

type OperationHashResponse struct {
	OperationHash string `json:"operation_hash"`
	Nonce         uint64 `json:"nonce"`
}

type ExecuteResponse struct {
	OperationHash string `json:"operation_hash"`
	Nonce         uint64 `json:"nonce"`
}

type AuditEventResponse struct {
	Sequence       uint64    `json:"sequence"`
	Kind           string    `json:"kind"`
	Category       string    `json:"category"`
	Timestamp      time.Time `json:"timestamp"`
	Actor          string    `json:"actor,omitempty"`
	AttestationKey string    `json:"attestation_key,omitempty"`
	OperationHash  string    `json:"operation_hash,omitempty"`
	Nonce          uint64    `json:"nonce"`
	Reason         string    `json:"reason,omitempty"`
	Detail         string    `json:"detail,omitempty"`
}

type AuditTrailResponse struct {
	Vault  string               `json:"vault"`
	Events []AuditEventResponse `json:"events"`
}

func FromAuditTrail(vault string, events []audit.Event) AuditTrailResponse {
	resp := AuditTrailResponse{Vault: vault, Events: make([]AuditEventResponse, 0, len(events))}
	for _, e := range events {
		item := AuditEventResponse{
			Sequence:  e.Sequence,
			Kind:      string(e.Kind),
			Category:  string(e.Category),
			Timestamp: e.Timestamp,
			Nonce:     e.Nonce,
			Reason:    e.Reason,
			Detail:    e.Detail,
		}
		if e.Actor != (common.Address{}) {
			item.Actor = e.Actor.Hex()
		}
		if e.AttestationKey != (common.Hash{}) {
			item.AttestationKey = e.AttestationKey.Hex()
		}
		if e.OperationHash != (common.Hash{}) {
			item.OperationHash = e.OperationHash.Hex()
		}
		resp.Events = append(resp.Events, item)
	}
	return resp
}
