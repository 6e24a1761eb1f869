package port

import (
	"context"
	"time"

	"github.com/safedrive/phone-verify/internal/core/domain"
)

// IdentityRepository maps verified phone numbers to durable user accounts.
type IdentityRepository interface {
	// FindByPhone looks up an identity by canonical phone number, returning
	// repository.ErrNotFound when no account exists yet.
	FindByPhone(ctx context.Context, phoneNumber string) (*domain.Identity, error)

	// Create provisions a new identity with default profile scaffolding.
	Create(ctx context.Context, identity domain.Identity) error

	// MarkPhoneVerified sets the phone-verified flag and refreshes the last
	// login timestamp on an existing identity.
	MarkPhoneVerified(ctx context.Context, id string, lastLogin time.Time) error
}
