package port

import (
	"context"

	"github.com/safedrive/phone-verify/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishOtpRequested(ctx context.Context, event domain.OtpRequestedEvent) error
	PublishPhoneVerified(ctx context.Context, event domain.PhoneVerifiedEvent) error
}
