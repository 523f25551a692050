// Package service is the oracle verifier: it checks an owner's ML-DSA-44
// signature off-path and, only when it verifies, attests through the vault
// gateway as the configured oracle principal.
package service

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"

	"sanctuary/internal/oracle/metrics"
	"sanctuary/internal/platform/tracing"
	"sanctuary/internal/vault/models"
	vaultservice "sanctuary/internal/vault/service"
	dErrors "sanctuary/pkg/domain-errors"
	"sanctuary/pkg/requestcontext"
	"sanctuary/pkg/signer"
)

const (
	defaultConcurrency = 8
	MaxBatchSize       = 64
)

// Gateway is the vault side the verifier attests through.
type Gateway interface {
	Vault(ctx context.Context, address common.Address) (*models.Vault, error)
	Attest(ctx context.Context, vault common.Address, operationHash, signatureDigest common.Hash) (*vaultservice.AttestResult, error)
}

// Submission is one owner-signed operation awaiting attestation.
type Submission struct {
	Vault          common.Address
	OwnerPublicKey []byte
	OperationHash  common.Hash
	Signature      []byte
}

// Result pairs a submission outcome with its error, in input order.
type Result struct {
	Attestation *vaultservice.AttestResult
	Err         error
}

type Service struct {
	gateway     Gateway
	principal   common.Address
	logger      *slog.Logger
	metrics     *metrics.Metrics
	concurrency int
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithConcurrency bounds parallel verifications within a batch.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// New creates a verifier that attests as principal.
func New(gateway Gateway, principal common.Address, opts ...Option) *Service {
	s := &Service{
		gateway:     gateway,
		principal:   principal,
		logger:      slog.Default(),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

// Submit verifies one submission and attests it.
func (s *Service) Submit(ctx context.Context, sub Submission) (_ *vaultservice.AttestResult, err error) {
	ctx, finish := tracing.TraceOp(ctx, "oracle.submit", attribute.String("vault", sub.Vault.Hex()))
	defer func() { finish(err) }()

	if err := s.verify(ctx, sub); err != nil {
		s.metrics.IncrementVerification(string(dErrors.CodeOf(err)))
		s.logger.WarnContext(ctx, "oracle verification failed",
			"vault", sub.Vault.Hex(),
			"operation_hash", sub.OperationHash.Hex(),
			"reason", dErrors.CodeOf(err),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, err
	}
	s.metrics.IncrementVerification("verified")

	attestCtx := requestcontext.WithPrincipal(ctx, s.principal)
	return s.gateway.Attest(attestCtx, sub.Vault, sub.OperationHash, crypto.Keccak256Hash(sub.Signature))
}

func (s *Service) verify(ctx context.Context, sub Submission) error {
	if len(sub.OwnerPublicKey) != signer.PublicKeySize {
		return dErrors.New(dErrors.CodeInvalidPublicKeySize, "owner public key must be 1312 bytes")
	}
	if len(sub.Signature) != signer.SignatureSize {
		return dErrors.New(dErrors.CodeInvalidSignatureSize, "signature must be 2420 bytes")
	}

	v, err := s.gateway.Vault(ctx, sub.Vault)
	if err != nil {
		return err
	}
	if crypto.Keccak256Hash(sub.OwnerPublicKey) != v.OwnerKeyHash {
		return dErrors.New(dErrors.CodeInvalidSignature, "public key is not the vault owner")
	}

	ok, err := signer.Verify(sub.OwnerPublicKey, sub.OperationHash.Bytes(), sub.Signature)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidSignature, "signature could not be verified")
	}
	if !ok {
		return dErrors.New(dErrors.CodeInvalidSignature, "signature does not verify")
	}
	return nil
}

// SubmitBatch verifies submissions concurrently. One failure does not stop
// the others; results come back in input order.
func (s *Service) SubmitBatch(ctx context.Context, subs []Submission) ([]Result, error) {
	if len(subs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one submission is required")
	}
	if len(subs) > MaxBatchSize {
		return nil, dErrors.New(dErrors.CodeValidation, "too many submissions in one batch")
	}
	s.metrics.ObserveBatch(len(subs))

	results := make([]Result, len(subs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, sub := range subs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = Result{Err: err}
				return err
			}
			att, err := s.Submit(gctx, sub)
			results[i] = Result{Attestation: att, Err: err}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, dErrors.Wrap(err, dErrors.CodeTimeout, "batch cancelled")
	}
	return results, nil
}
