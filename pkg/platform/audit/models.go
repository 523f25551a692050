package audit

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// EventCategory classifies audit events by their primary purpose so sinks can
// route and retain them differently.
type EventCategory string

const (
	// CategoryLifecycle covers vault setup and configuration changes.
	CategoryLifecycle EventCategory = "lifecycle"

	// CategorySecurity covers rejected paths that off-path monitoring watches
	// for replay attempts and oracle outages.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers the routine attest/consume/execute flow.
	CategoryOperations EventCategory = "operations"
)

type EventKind string

const (
	EventVaultInitialized    EventKind = "vault_initialized"
	EventVaultFunded         EventKind = "vault_funded"
	EventAttestationIssued   EventKind = "attestation_issued"
	EventAttestationReissued EventKind = "attestation_reissued"
	EventAttestDenied        EventKind = "attest_denied"
	EventAttestationConsumed EventKind = "attestation_consumed"
	EventValidationRejected  EventKind = "validation_rejected"
	EventOracleRotated       EventKind = "oracle_rotated"
	EventOperationExecuted   EventKind = "operation_executed"
	EventExecutionFailed     EventKind = "execution_failed"
)

var eventCategories = map[EventKind]EventCategory{
	EventVaultInitialized: CategoryLifecycle,
	EventOracleRotated:    CategoryLifecycle,

	EventAttestDenied:       CategorySecurity,
	EventValidationRejected: CategorySecurity,
	EventExecutionFailed:    CategorySecurity,

	EventAttestationIssued:   CategoryOperations,
	EventAttestationReissued: CategoryOperations,
	EventAttestationConsumed: CategoryOperations,
	EventOperationExecuted:   CategoryOperations,
	EventVaultFunded:         CategoryOperations,
}

// Category returns the EventCategory for this kind.
// Unknown kinds default to CategoryOperations.
func (k EventKind) Category() EventCategory {
	if cat, ok := eventCategories[k]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is one append-only audit record. Stores assign ID and Sequence;
// Sequence is strictly increasing per vault starting at 1.
type Event struct {
	ID             uuid.UUID
	Sequence       uint64
	Vault          common.Address
	Kind           EventKind
	Category       EventCategory
	Timestamp      time.Time
	Actor          common.Address
	AttestationKey common.Hash
	OperationHash  common.Hash
	// Nonce is the execution counter value the event refers to, when any.
	Nonce     uint64
	Reason    string
	Detail    string
	RequestID string
}

// Store persists audit events. Append fills in ID, Sequence and Category.
type Store interface {
	Append(ctx context.Context, event *Event) error
	ListByVault(ctx context.Context, vault common.Address) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}

// Sink receives events after they are persisted (e.g. a broker topic).
type Sink interface {
	Publish(ctx context.Context, event Event) error
}
