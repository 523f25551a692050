package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Attestation records that the oracle verified a signature off-path.
// Attestations are never deleted; Consumed flips to true at most once.
type Attestation struct {
	Key        common.Hash    `json:"key"`
	Vault      common.Address `json:"vault"`
	IssuedAt   time.Time      `json:"issued_at"`
	Consumed   bool           `json:"consumed"`
	ConsumedAt time.Time      `json:"consumed_at,omitzero"`
}

func (a *Attestation) ExpiresAt(window time.Duration) time.Time {
	return a.IssuedAt.Add(window)
}

// IsExpired is inclusive of the boundary: at exactly IssuedAt+window the
// attestation is still fresh.
func (a *Attestation) IsExpired(now time.Time, window time.Duration) bool {
	return now.After(a.ExpiresAt(window))
}

func (a *Attestation) IsValid(now time.Time, window time.Duration) bool {
	return !a.Consumed && !a.IsExpired(now, window)
}

func (a *Attestation) ApplyConsume(now time.Time) {
	a.Consumed = true
	a.ConsumedAt = now
}

// ApplyReissue refreshes the clock of an unconsumed attestation.
func (a *Attestation) ApplyReissue(now time.Time) {
	a.IssuedAt = now
}

// Status is the read-only view of an attestation. ExpiresAt is zero when
// Valid is false.
type Status struct {
	Valid     bool      `json:"valid"`
	ExpiresAt time.Time `json:"expires_at"`
}

func StatusOf(a *Attestation, now time.Time, window time.Duration) Status {
	if a == nil || !a.IsValid(now, window) {
		return Status{}
	}
	return Status{Valid: true, ExpiresAt: a.ExpiresAt(window)}
}
