package handler

import (
	"math/big"
	"strings"
	"time"

	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// maxPayloadBytes bounds the call data accepted for execution.
const maxPayloadBytes = 64 << 10

// SetupRequest is the body of POST /vaults.
type SetupRequest struct {
	Address               string `json:"address"`
	OwnerPublicKey        string `json:"owner_public_key"`
	Oracle                string `json:"oracle"`
	ValidityWindowSeconds int64  `json:"validity_window_seconds"`

	address   common.Address
	publicKey []byte
	oracle    common.Address
}

// Validate parses the request. Key size is left to the service so the
// rejection carries the structural error code.
func (r *SetupRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.address, err = parseAddress("address", r.Address); err != nil {
		return err
	}
	if r.publicKey, err = parseBytes("owner_public_key", r.OwnerPublicKey); err != nil {
		return err
	}
	if r.oracle, err = parseAddress("oracle", r.Oracle); err != nil {
		return err
	}
	if r.ValidityWindowSeconds < 0 {
		return dErrors.New(dErrors.CodeValidation, "validity_window_seconds cannot be negative")
	}
	if r.ValidityWindowSeconds > int64(models.MaxValidityWindow/time.Second) {
		return dErrors.New(dErrors.CodeValidation, "validity_window_seconds exceeds the maximum window")
	}
	return nil
}

func (r *SetupRequest) ValidityWindow() time.Duration {
	return time.Duration(r.ValidityWindowSeconds) * time.Second
}

// AttestRequest is the body of POST /vaults/{address}/attestations.
type AttestRequest struct {
	OperationHash   string `json:"operation_hash"`
	SignatureDigest string `json:"signature_digest"`

	operationHash   common.Hash
	signatureDigest common.Hash
}

func (r *AttestRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.operationHash, err = parseHash("operation_hash", r.OperationHash); err != nil {
		return err
	}
	if r.signatureDigest, err = parseHash("signature_digest", r.SignatureDigest); err != nil {
		return err
	}
	return nil
}

// ValidateRequest is the body of POST /vaults/{address}/validate.
type ValidateRequest struct {
	OperationHash string `json:"operation_hash"`
	Signature     string `json:"signature"`

	operationHash common.Hash
	signature     []byte
}

func (r *ValidateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.operationHash, err = parseHash("operation_hash", r.OperationHash); err != nil {
		return err
	}
	if r.signature, err = parseBytes("signature", r.Signature); err != nil {
		return err
	}
	return nil
}

// RotateOracleRequest is the body of POST /vaults/{address}/oracle.
type RotateOracleRequest struct {
	NewOracle string `json:"new_oracle"`

	newOracle common.Address
}

// Validate accepts the zero address so the service can reject it with
// invalid_principal.
func (r *RotateOracleRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	r.newOracle, err = parseAddress("new_oracle", r.NewOracle)
	return err
}

// OperationRequest describes a call through the vault.
type OperationRequest struct {
	Target  string `json:"target"`
	Value   string `json:"value"`
	Payload string `json:"payload"`

	target  common.Address
	value   *big.Int
	payload []byte
}

func (r *OperationRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	var err error
	if r.target, err = parseAddress("target", r.Target); err != nil {
		return err
	}
	if r.value, err = parseValue(r.Value); err != nil {
		return err
	}
	if r.Payload != "" {
		if r.payload, err = parseBytes("payload", r.Payload); err != nil {
			return err
		}
	}
	if len(r.payload) > maxPayloadBytes {
		return dErrors.New(dErrors.CodeValidation, "payload is too large")
	}
	return nil
}

// ExecuteRequest is the body of POST /vaults/{address}/execute.
type ExecuteRequest struct {
	OperationRequest
	Signature string `json:"signature"`

	signature []byte
}

func (r *ExecuteRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if err := r.OperationRequest.Validate(); err != nil {
		return err
	}
	var err error
	r.signature, err = parseBytes("signature", r.Signature)
	return err
}

func parseAddress(field, s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return common.Address{}, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeValidation, field+" must be a 20-byte hex address")
	}
	return common.HexToAddress(s), nil
}

func parseHash(field, s string) (common.Hash, error) {
	b, err := hexutil.Decode(strings.TrimSpace(s))
	if err != nil || len(b) != common.HashLength {
		return common.Hash{}, dErrors.New(dErrors.CodeValidation, field+" must be a 32-byte 0x-prefixed hex value")
	}
	return common.BytesToHash(b), nil
}

func parseBytes(field, s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, dErrors.New(dErrors.CodeValidation, field+" is required")
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeValidation, field+" must be 0x-prefixed hex")
	}
	return b, nil
}

// parseValue reads a decimal amount. An empty value means zero.
func parseValue(s string) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 || v.BitLen() > 256 {
		return nil, dErrors.New(dErrors.CodeValidation, "value must be a non-negative decimal 256-bit integer")
	}
	return v, nil
}

// parseVaultAddress reads the {address} path parameter. A malformed path
// address is a lookup miss, not a body validation failure.
func parseVaultAddress(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, dErrors.New(dErrors.CodeNotInitialized, "vault is not initialized")
	}
	return common.HexToAddress(s), nil
}
