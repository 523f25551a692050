package keys

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

var (
	vaultA = common.HexToAddress("0x1000000000000000000000000000000000000001")
	vaultB = common.HexToAddress("0x2000000000000000000000000000000000000002")
)

func TestAttestationKeyLayout(t *testing.T) {
	owner := common.HexToHash("0x01")
	op := common.HexToHash("0x02")
	sig := common.HexToHash("0x03")

	buf := append([]byte{}, vaultA.Bytes()...)
	buf = append(buf, owner.Bytes()...)
	buf = append(buf, op.Bytes()...)
	buf = append(buf, sig.Bytes()...)
	assert.Len(t, buf, 116)

	assert.Equal(t, crypto.Keccak256Hash(buf), AttestationKey(vaultA, owner, op, sig))
}

func TestAttestationKeyDeterministic(t *testing.T) {
	owner := OwnerKeyHash(make([]byte, 1312))
	sig := SignatureDigest(make([]byte, 2420))
	op := common.HexToHash("0xbeef")
	assert.Equal(t, AttestationKey(vaultA, owner, op, sig), AttestationKey(vaultA, owner, op, sig))
}

func TestOperationHashDomainSeparation(t *testing.T) {
	base := Operation{
		Vault:   vaultA,
		Target:  common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f8b2E1"),
		Value:   big.NewInt(1_000_000_000_000_000_000),
		Payload: []byte{0xde, 0xad},
		Nonce:   1,
		ChainID: 11155111,
	}
	h := OperationHash(base)

	variants := map[string]func(o *Operation){
		"vault":   func(o *Operation) { o.Vault = vaultB },
		"target":  func(o *Operation) { o.Target = vaultB },
		"value":   func(o *Operation) { o.Value = big.NewInt(1) },
		"payload": func(o *Operation) { o.Payload = []byte{0xde, 0xae} },
		"nonce":   func(o *Operation) { o.Nonce = 2 },
		"chain":   func(o *Operation) { o.ChainID = 1 },
	}
	for name, mutate := range variants {
		t.Run(name, func(t *testing.T) {
			o := base
			mutate(&o)
			assert.NotEqual(t, h, OperationHash(o))
		})
	}

	t.Run("nil value hashes as zero", func(t *testing.T) {
		o := base
		o.Value = nil
		z := base
		z.Value = new(big.Int)
		assert.Equal(t, OperationHash(z), OperationHash(o))
	})
}

func genHash() gopter.Gen {
	return gen.SliceOfN(32, gen.UInt8()).Map(func(b []uint8) common.Hash {
		return common.BytesToHash(b)
	})
}

func genAddress() gopter.Gen {
	return gen.SliceOfN(20, gen.UInt8()).Map(func(b []uint8) common.Address {
		return common.BytesToAddress(b)
	})
}

// Changing any single input changes the derived key.
func TestAttestationKeyInjectiveProperty(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 200
	properties := gopter.NewProperties(params)

	properties.Property("vault", prop.ForAll(
		func(a, b common.Address, owner, op, sig common.Hash) bool {
			return a == b || AttestationKey(a, owner, op, sig) != AttestationKey(b, owner, op, sig)
		},
		genAddress(), genAddress(), genHash(), genHash(), genHash(),
	))
	properties.Property("owner", prop.ForAll(
		func(v common.Address, o1, o2, op, sig common.Hash) bool {
			return o1 == o2 || AttestationKey(v, o1, op, sig) != AttestationKey(v, o2, op, sig)
		},
		genAddress(), genHash(), genHash(), genHash(), genHash(),
	))
	properties.Property("operation", prop.ForAll(
		func(v common.Address, owner, op1, op2, sig common.Hash) bool {
			return op1 == op2 || AttestationKey(v, owner, op1, sig) != AttestationKey(v, owner, op2, sig)
		},
		genAddress(), genHash(), genHash(), genHash(), genHash(),
	))
	properties.Property("signature", prop.ForAll(
		func(v common.Address, owner, op, s1, s2 common.Hash) bool {
			return s1 == s2 || AttestationKey(v, owner, op, s1) != AttestationKey(v, owner, op, s2)
		},
		genAddress(), genHash(), genHash(), genHash(), genHash(),
	))
	properties.Property("fields are not interchangeable", prop.ForAll(
		func(v common.Address, a, b common.Hash) bool {
			return a == b || AttestationKey(v, a, b, a) != AttestationKey(v, b, a, b)
		},
		genAddress(), genHash(), genHash(),
	))

	properties.TestingRun(t)
}

func TestOperationHashNonceProperty(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("distinct nonces give distinct hashes", prop.ForAll(
		func(n1, n2 uint64) bool {
			a := Operation{Vault: vaultA, Nonce: n1, ChainID: 1}
			b := Operation{Vault: vaultA, Nonce: n2, ChainID: 1}
			return n1 == n2 || OperationHash(a) != OperationHash(b)
		},
		gen.UInt64(), gen.UInt64(),
	))

	properties.TestingRun(t)
}
