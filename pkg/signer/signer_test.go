package signer

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWalletSizes(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	assert.Len(t, w.PublicKey(), 1312)
	assert.Len(t, w.PublicKeyHex(), 2*1312)
	assert.Equal(t, crypto.Keccak256Hash(w.PublicKey()), w.PublicKeyHash())

	priv, err := w.PrivateKey()
	require.NoError(t, err)
	assert.Len(t, priv, 2560)
	assert.Len(t, w.Sign([]byte("msg")), 2420)
}

func TestSignAndVerify(t *testing.T) {
	w, err := FromSeed(bytes.Repeat([]byte{7}, SeedSize))
	require.NoError(t, err)
	message := []byte("Transfer 100 ETH to Alice")
	sig := w.Sign(message)

	t.Run("valid signature", func(t *testing.T) {
		ok, err := Verify(w.PublicKey(), message, sig)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("corrupted signature is rejected", func(t *testing.T) {
		bad := append([]byte(nil), sig...)
		bad[0] ^= 0xFF
		ok, err := Verify(w.PublicKey(), message, bad)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("wrong message is rejected", func(t *testing.T) {
		ok, err := Verify(w.PublicKey(), []byte("Transfer 100 ETH to Bob"), sig)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("sizes are checked exactly", func(t *testing.T) {
		_, err := Verify(w.PublicKey()[:1311], message, sig)
		assert.ErrorIs(t, err, ErrInvalidPublicKeySize)
		_, err = Verify(w.PublicKey(), message, append(sig, 0))
		assert.ErrorIs(t, err, ErrInvalidSignatureSize)
	})
}

func TestDeterministicKeys(t *testing.T) {
	seed := bytes.Repeat([]byte{1}, SeedSize)
	a, err := FromSeed(seed)
	require.NoError(t, err)
	b, err := FromSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, a.PublicKey(), b.PublicKey())

	_, err = FromSeed(seed[:31])
	assert.ErrorIs(t, err, ErrInvalidSeedSize)
}

func TestFromPrivateKeyRoundTrip(t *testing.T) {
	w, err := New()
	require.NoError(t, err)
	priv, err := w.PrivateKey()
	require.NoError(t, err)

	restored, err := FromPrivateKey(priv)
	require.NoError(t, err)
	assert.Equal(t, w.PublicKey(), restored.PublicKey())

	opHash := common.HexToHash("0x4831")
	ok, err := Verify(w.PublicKey(), opHash.Bytes(), restored.SignOperation(opHash))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTransactionEncode(t *testing.T) {
	tx := Transaction{
		To:    common.HexToAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f8b2E1"),
		Value: big.NewInt(1_000_000_000_000_000_000),
		Data:  []byte{0xca, 0xfe},
		Nonce: 1,
	}
	enc, err := tx.Encode()
	require.NoError(t, err)
	require.Len(t, enc, 20+32+4+2+8)
	assert.Equal(t, tx.To.Bytes(), enc[:20])
	assert.Equal(t, []byte{0, 0, 0, 2}, enc[52:56])
	assert.Equal(t, []byte{0xca, 0xfe}, enc[56:58])
	assert.Equal(t, byte(1), enc[len(enc)-1])

	other := tx
	other.Data = []byte{0xca}
	otherEnc, err := other.Encode()
	require.NoError(t, err)
	assert.NotEqual(t, enc, otherEnc)

	maxValue := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
	tx.Value = maxValue
	enc, err = tx.Encode()
	require.NoError(t, err)
	assert.Equal(t, maxValue.Bytes(), enc[20:52])

	for _, v := range []*big.Int{big.NewInt(-1), new(big.Int).Lsh(big.NewInt(1), 256)} {
		tx.Value = v
		_, err := tx.Encode()
		assert.ErrorIs(t, err, ErrInvalidValue, "value=%s", v)
	}
}
