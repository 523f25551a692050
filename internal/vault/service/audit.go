package service

import (
	"context"

	audit "sanctuary/pkg/platform/audit"
	"sanctuary/pkg/requestcontext"
)

// emitAudit appends an event to the vault's trail. Audit failures are logged
// and never fail the operation that produced them.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if event.RequestID == "" {
		event.RequestID = requestcontext.RequestID(ctx)
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = requestcontext.Now(ctx)
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "failed to emit audit event",
			"kind", event.Kind,
			"vault", event.Vault.Hex(),
			"request_id", event.RequestID,
			"error", err,
		)
	}
}
