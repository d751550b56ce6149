package mfa

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-mfa/pkg/errors"
)

// VerificationKey identifies the single pending verification slot a user has.
type VerificationKey struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
}

// PendingVerification is the ephemeral record tracking an in-progress
// enrollment awaiting code confirmation. At most one exists per key; a new
// submission overwrites any prior record.
type PendingVerification struct {
	ProviderType ProviderType  `json:"provider_type"`
	Code         string        `json:"code,omitempty"`
	Config       AccountConfig `json:"config"`
	ExpiresAt    time.Time     `json:"expires_at"`
	Failures     int           `json:"failures"`
}

// VerificationLedger tracks in-flight verification attempts. Expiry is
// evaluated lazily on read; no background sweep is required for correctness.
type VerificationLedger interface {
	// Put unconditionally overwrites the record for the key, enforcing the
	// at-most-one-pending-per-user invariant.
	Put(ctx context.Context, key VerificationKey, pending PendingVerification) error
	// Get returns the live record, or ok=false when absent or expired.
	Get(ctx context.Context, key VerificationKey, now time.Time) (PendingVerification, bool, error)
	// RecordFailure atomically increments the failure count of an existing
	// record and returns the new count. Returns a NO_PENDING_VERIFICATION
	// error when the record is gone.
	RecordFailure(ctx context.Context, key VerificationKey) (int, error)
	// Remove deletes the record. Removing an absent record is not an error.
	Remove(ctx context.Context, key VerificationKey) error
}

// InMemoryVerificationLedger implements VerificationLedger with a mutex-held
// map. Expired records are reaped lazily on Get.
type InMemoryVerificationLedger struct {
	mutex   sync.Mutex
	pending map[VerificationKey]PendingVerification
}

// NewInMemoryVerificationLedger creates an empty in-memory ledger.
func NewInMemoryVerificationLedger() *InMemoryVerificationLedger {
	return &InMemoryVerificationLedger{
		pending: make(map[VerificationKey]PendingVerification),
	}
}

func (l *InMemoryVerificationLedger) Put(ctx context.Context, key VerificationKey, pending PendingVerification) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	l.pending[key] = pending
	return nil
}

func (l *InMemoryVerificationLedger) Get(ctx context.Context, key VerificationKey, now time.Time) (PendingVerification, bool, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	pending, ok := l.pending[key]
	if !ok {
		return PendingVerification{}, false, nil
	}
	if !pending.ExpiresAt.After(now) {
		delete(l.pending, key)
		return PendingVerification{}, false, nil
	}
	return pending, true, nil
}

func (l *InMemoryVerificationLedger) RecordFailure(ctx context.Context, key VerificationKey) (int, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	pending, ok := l.pending[key]
	if !ok {
		return 0, errors.New(errors.ErrCodeNoPendingVerification, "no pending verification to record failure for")
	}
	pending.Failures++
	l.pending[key] = pending
	return pending.Failures, nil
}

func (l *InMemoryVerificationLedger) Remove(ctx context.Context, key VerificationKey) error {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	delete(l.pending, key)
	return nil
}
