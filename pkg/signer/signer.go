// Package signer is the owner-side ML-DSA-44 wallet. It produces the
// 1312-byte public key bound at vault setup and the 2420-byte signatures the
// oracle verifies before attesting.
package signer

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"github.com/cloudflare/circl/sign"
	"github.com/cloudflare/circl/sign/mldsa/mldsa44"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	PublicKeySize  = mldsa44.PublicKeySize
	PrivateKeySize = mldsa44.PrivateKeySize
	SignatureSize  = mldsa44.SignatureSize
	SeedSize       = mldsa44.SeedSize
)

var (
	ErrInvalidPublicKeySize  = errors.New("invalid public key size")
	ErrInvalidPrivateKeySize = errors.New("invalid private key size")
	ErrInvalidSignatureSize  = errors.New("invalid signature size")
	ErrInvalidSeedSize       = errors.New("invalid seed size")
	ErrInvalidValue          = errors.New("value must be a non-negative 256-bit integer")
)

var scheme = mldsa44.Scheme()

// Wallet holds an ML-DSA-44 key pair.
type Wallet struct {
	public  sign.PublicKey
	private sign.PrivateKey
	pk      []byte
}

// New generates a wallet from system randomness.
func New() (*Wallet, error) {
	pub, priv, err := scheme.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generate key: %w", err)
	}
	return newWallet(pub, priv)
}

// FromSeed derives a wallet deterministically from a 32-byte seed.
func FromSeed(seed []byte) (*Wallet, error) {
	if len(seed) != SeedSize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidSeedSize, len(seed), SeedSize)
	}
	pub, priv := scheme.DeriveKey(seed)
	return newWallet(pub, priv)
}

// FromPrivateKey restores a wallet from its packed private key.
func FromPrivateKey(b []byte) (*Wallet, error) {
	if len(b) != PrivateKeySize {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrInvalidPrivateKeySize, len(b), PrivateKeySize)
	}
	priv, err := scheme.UnmarshalBinaryPrivateKey(b)
	if err != nil {
		return nil, fmt.Errorf("unpack private key: %w", err)
	}
	pub, ok := priv.Public().(sign.PublicKey)
	if !ok {
		return nil, errors.New("unpack private key: no public key")
	}
	return newWallet(pub, priv)
}

func newWallet(pub sign.PublicKey, priv sign.PrivateKey) (*Wallet, error) {
	pk, err := pub.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("pack public key: %w", err)
	}
	return &Wallet{public: pub, private: priv, pk: pk}, nil
}

// PublicKey returns a copy of the packed public key.
func (w *Wallet) PublicKey() []byte {
	return append([]byte(nil), w.pk...)
}

func (w *Wallet) PublicKeyHex() string {
	return hex.EncodeToString(w.pk)
}

// PublicKeyHash is keccak256 of the public key, the owner identity hash a
// vault stores at setup.
func (w *Wallet) PublicKeyHash() common.Hash {
	return crypto.Keccak256Hash(w.pk)
}

// PrivateKey returns the packed private key.
func (w *Wallet) PrivateKey() ([]byte, error) {
	return w.private.MarshalBinary()
}

// Sign produces a deterministic detached signature over message.
func (w *Wallet) Sign(message []byte) []byte {
	return scheme.Sign(w.private, message, nil)
}

// SignOperation signs the 32 bytes of an operation hash.
func (w *Wallet) SignOperation(operationHash common.Hash) []byte {
	return w.Sign(operationHash.Bytes())
}

// Verify checks a detached signature. Sizes are checked exactly before any
// cryptographic work; a well-formed but wrong signature returns false.
func Verify(publicKey, message, signature []byte) (bool, error) {
	if len(publicKey) != PublicKeySize {
		return false, fmt.Errorf("%w: got %d, want %d", ErrInvalidPublicKeySize, len(publicKey), PublicKeySize)
	}
	if len(signature) != SignatureSize {
		return false, fmt.Errorf("%w: got %d, want %d", ErrInvalidSignatureSize, len(signature), SignatureSize)
	}
	pub, err := scheme.UnmarshalBinaryPublicKey(publicKey)
	if err != nil {
		return false, fmt.Errorf("unpack public key: %w", err)
	}
	return scheme.Verify(pub, message, signature, nil), nil
}

// Transaction is a plain transfer description for off-vault signing.
type Transaction struct {
	To    common.Address
	Value *big.Int
	Data  []byte
	Nonce uint64
}

// Encode returns to(20) ‖ value(32) ‖ len(data)(4) ‖ data ‖ nonce(8), all
// big-endian. Values that do not fit in 32 unsigned bytes are rejected.
func (t Transaction) Encode() ([]byte, error) {
	value := t.Value
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() < 0 || value.BitLen() > 256 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, value)
	}
	out := make([]byte, 0, 20+32+4+len(t.Data)+8)
	out = append(out, t.To.Bytes()...)
	out = append(out, common.LeftPadBytes(value.Bytes(), 32)...)
	out = binary.BigEndian.AppendUint32(out, uint32(len(t.Data)))
	out = append(out, t.Data...)
	out = binary.BigEndian.AppendUint64(out, t.Nonce)
	return out, nil
}
