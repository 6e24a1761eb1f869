package port

import (
	"context"
	"time"

	"github.com/safedrive/phone-verify/internal/core/domain"
)

// VerificationStore exposes persistence behavior for verification records.
// Mutations are single atomic remote operations; callers never hold a record
// exclusively across calls.
type VerificationStore interface {
	// Create persists a new record. The record id must be unique.
	Create(ctx context.Context, record domain.VerificationRecord) error

	// Get retrieves a record by id, returning repository.ErrNotFound when absent.
	Get(ctx context.Context, id string) (*domain.VerificationRecord, error)

	// TransitionStatus atomically moves the record from one status to another.
	// It reports false when the record was not in the expected status, which
	// is how concurrent confirm calls decide a single winner.
	TransitionStatus(ctx context.Context, id string, from, to domain.VerificationStatus) (bool, error)

	// IncrementAttempts atomically bumps the attempt counter while the record
	// is still pending and below its attempt budget. It returns the new
	// counter value and whether the increment was applied.
	IncrementAttempts(ctx context.Context, id string) (int, bool, error)

	// SetDeliveryStatus records the SMS delivery outcome and provider message
	// id, independent of the verification status.
	SetDeliveryStatus(ctx context.Context, id string, status domain.DeliveryStatus, providerMessageID string) error

	// DeleteExpiredBatch removes up to limit records whose expiry precedes
	// the given instant, returning the number deleted.
	DeleteExpiredBatch(ctx context.Context, before time.Time, limit int) (int, error)
}
