package service

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/suite"

	"sanctuary/internal/vault/models"
	vaultservice "sanctuary/internal/vault/service"
	attestationstore "sanctuary/internal/vault/store/attestation"
	vaultstore "sanctuary/internal/vault/store/vault"
	dErrors "sanctuary/pkg/domain-errors"
	"sanctuary/pkg/requestcontext"
	"sanctuary/pkg/signer"
)

var (
	vaultAddr  = common.HexToAddress("0xa000000000000000000000000000000000000001")
	oracleAddr = common.HexToAddress("0x0c00000000000000000000000000000000000003")
	now        = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
)

type OracleServiceSuite struct {
	suite.Suite
	vaults *vaultservice.Service
	oracle *Service
	owner  *signer.Wallet
	ctx    context.Context
}

func TestOracleServiceSuite(t *testing.T) {
	suite.Run(t, new(OracleServiceSuite))
}

func (s *OracleServiceSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.ctx = requestcontext.WithTime(context.Background(), now)

	owner, err := signer.FromSeed(bytes.Repeat([]byte{9}, signer.SeedSize))
	s.Require().NoError(err)
	s.owner = owner

	s.vaults = vaultservice.New(vaultstore.NewInMemory(), attestationstore.NewInMemoryStore(), vaultservice.WithLogger(logger))
	_, err = s.vaults.Setup(s.ctx, vaultservice.SetupCommand{
		Address:        vaultAddr,
		OwnerPublicKey: owner.PublicKey(),
		Oracle:         oracleAddr,
		ValidityWindow: 5 * time.Minute,
	})
	s.Require().NoError(err)

	s.oracle = New(s.vaults, oracleAddr, WithLogger(logger), WithConcurrency(4))
}

func (s *OracleServiceSuite) submission(opHash common.Hash) Submission {
	return Submission{
		Vault:          vaultAddr,
		OwnerPublicKey: s.owner.PublicKey(),
		OperationHash:  opHash,
		Signature:      s.owner.SignOperation(opHash),
	}
}

func (s *OracleServiceSuite) TestSubmitAttestsVerifiedSignature() {
	opHash := common.HexToHash("0x4831")
	sub := s.submission(opHash)

	res, err := s.oracle.Submit(s.ctx, sub)
	s.Require().NoError(err)
	s.False(res.Reissued)

	code, err := s.vaults.Validate(s.ctx, vaultAddr, opHash, sub.Signature)
	s.Require().NoError(err)
	s.Equal(models.ValidationOK, code)
}

func (s *OracleServiceSuite) TestSubmitRejections() {
	opHash := common.HexToHash("0x4832")

	s.Run("tampered signature", func() {
		sub := s.submission(opHash)
		sub.Signature[10] ^= 0x01
		_, err := s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})

	s.Run("signature over a different operation", func() {
		sub := s.submission(opHash)
		sub.OperationHash = common.HexToHash("0x4833")
		_, err := s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})

	s.Run("key that is not the vault owner", func() {
		stranger, err := signer.FromSeed(bytes.Repeat([]byte{3}, signer.SeedSize))
		s.Require().NoError(err)
		sub := Submission{
			Vault:          vaultAddr,
			OwnerPublicKey: stranger.PublicKey(),
			OperationHash:  opHash,
			Signature:      stranger.SignOperation(opHash),
		}
		_, err = s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignature))
	})

	s.Run("wrong sizes", func() {
		sub := s.submission(opHash)
		sub.Signature = sub.Signature[:100]
		_, err := s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidSignatureSize))

		sub = s.submission(opHash)
		sub.OwnerPublicKey = sub.OwnerPublicKey[:100]
		_, err = s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidPublicKeySize))
	})

	s.Run("unknown vault", func() {
		sub := s.submission(opHash)
		sub.Vault = common.HexToAddress("0xb000000000000000000000000000000000000002")
		_, err := s.oracle.Submit(s.ctx, sub)
		s.True(dErrors.HasCode(err, dErrors.CodeNotInitialized))
	})

	s.Run("verifier not configured as the oracle", func() {
		rogue := New(s.vaults, common.HexToAddress("0x0d00000000000000000000000000000000000006"))
		_, err := rogue.Submit(s.ctx, s.submission(opHash))
		s.True(dErrors.HasCode(err, dErrors.CodeNotOracle))
	})
}

func (s *OracleServiceSuite) TestSubmitBatch() {
	good := s.submission(common.HexToHash("0x01"))
	bad := s.submission(common.HexToHash("0x02"))
	bad.Signature[0] ^= 0xff
	alsoGood := s.submission(common.HexToHash("0x03"))

	results, err := s.oracle.SubmitBatch(s.ctx, []Submission{good, bad, alsoGood})
	s.Require().NoError(err)
	s.Require().Len(results, 3)
	s.NoError(results[0].Err)
	s.NotNil(results[0].Attestation)
	s.True(dErrors.HasCode(results[1].Err, dErrors.CodeInvalidSignature))
	s.NoError(results[2].Err)

	s.Run("empty and oversized batches are rejected", func() {
		_, err := s.oracle.SubmitBatch(s.ctx, nil)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))

		_, err = s.oracle.SubmitBatch(s.ctx, make([]Submission, MaxBatchSize+1))
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})
}
