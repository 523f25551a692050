package service

import (
	"context"
	"errors"
	"time"

	"sanctuary/internal/platform/tracing"
	"sanctuary/internal/vault/keys"
	"sanctuary/internal/vault/models"
	dErrors "sanctuary/pkg/domain-errors"
	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/platform/sentinel"
	"sanctuary/pkg/requestcontext"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel/attribute"
)

// SetupCommand carries the one-time setup inputs. A zero ValidityWindow
// selects the service default.
type SetupCommand struct {
	Address        common.Address
	OwnerPublicKey []byte
	Oracle         common.Address
	ValidityWindow time.Duration
}

// Setup binds the owner identity and initial oracle to a new vault. It
// succeeds once per address; every later call fails with AlreadyInitialized.
func (s *Service) Setup(ctx context.Context, cmd SetupCommand) (_ *models.Vault, err error) {
	ctx, finish := tracing.TraceOp(ctx, "vault.setup", attribute.String("vault", cmd.Address.Hex()))
	defer func() { finish(err) }()

	window := cmd.ValidityWindow
	if window == 0 {
		window = s.defaultWindow
	}
	now := requestcontext.Now(ctx)

	v, err := models.NewVault(cmd.Address, cmd.OwnerPublicKey, keys.OwnerKeyHash(cmd.OwnerPublicKey), cmd.Oracle, s.chainID, window, now)
	if err != nil {
		s.metrics.IncrementRejection("setup", kindLabel(err))
		return nil, err
	}

	err = s.tx.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.vaults.Create(ctx, v); err != nil {
			return err
		}
		s.emitAudit(ctx, audit.Event{
			Vault:  v.Address,
			Kind:   audit.EventVaultInitialized,
			Actor:  requestcontext.Principal(ctx),
			Detail: "oracle=" + v.Oracle.Hex() + " window=" + v.ValidityWindow.String(),
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.IncrementRejection("setup", string(models.KindLifecycleViolation))
			s.logger.WarnContext(ctx, "vault setup rejected",
				"vault", cmd.Address.Hex(),
				"reason", "already_initialized",
				"request_id", requestcontext.RequestID(ctx),
			)
			return nil, dErrors.New(dErrors.CodeAlreadyInitialized, "vault already initialized")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create vault")
	}

	s.metrics.IncrementVaultInitialized()
	s.logger.InfoContext(ctx, "vault initialized",
		"vault", v.Address.Hex(),
		"owner_key_hash", v.OwnerKeyHash.Hex(),
		"oracle", v.Oracle.Hex(),
		"validity_window", v.ValidityWindow.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return v, nil
}
