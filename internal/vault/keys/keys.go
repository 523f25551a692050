// Package keys derives the binding values that tie an attestation to one
// vault, one owner, one operation and one signature.
//
// All digests are keccak256 over fixed-width big-endian fields, so every
// input occupies a fixed position and no two input tuples share an encoding.
package keys

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AttestationKey = keccak256(vault(20) ‖ ownerKeyHash(32) ‖ operationHash(32) ‖ signatureDigest(32)).
func AttestationKey(vault common.Address, ownerKeyHash, operationHash, signatureDigest common.Hash) common.Hash {
	return crypto.Keccak256Hash(
		vault.Bytes(),
		ownerKeyHash.Bytes(),
		operationHash.Bytes(),
		signatureDigest.Bytes(),
	)
}

// OwnerKeyHash is the canonical owner identity bound at setup.
func OwnerKeyHash(publicKey []byte) common.Hash {
	return crypto.Keccak256Hash(publicKey)
}

// SignatureDigest is the compact stand-in for a full signature.
func SignatureDigest(signature []byte) common.Hash {
	return crypto.Keccak256Hash(signature)
}

// Operation is what the owner authorizes: a call against target carrying
// value and payload, at a specific counter value of a specific vault.
type Operation struct {
	Vault   common.Address
	Target  common.Address
	Value   *big.Int
	Payload []byte
	Nonce   uint64
	ChainID uint64
}

// OperationHash = keccak256(vault(20) ‖ target(20) ‖ value(32) ‖ keccak256(payload)(32) ‖ nonce(32) ‖ chainID(32)).
// A nil Value hashes as zero. Value must be non-negative and fit in 256 bits.
func OperationHash(op Operation) common.Hash {
	value := op.Value
	if value == nil {
		value = new(big.Int)
	}
	return crypto.Keccak256Hash(
		op.Vault.Bytes(),
		op.Target.Bytes(),
		common.LeftPadBytes(value.Bytes(), 32),
		crypto.Keccak256(op.Payload),
		word(op.Nonce),
		word(op.ChainID),
	)
}

func word(n uint64) []byte {
	return common.LeftPadBytes(new(big.Int).SetUint64(n).Bytes(), 32)
}
