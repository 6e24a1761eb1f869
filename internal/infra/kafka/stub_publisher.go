package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishOtpRequested logs verify.otp.requested events.
func (p *StubPublisher) PublishOtpRequested(_ context.Context, event domain.OtpRequestedEvent) error {
	payload := map[string]any{
		"verification_id": event.VerificationID,
		"masked_phone":    event.MaskedPhone,
		"delivery_status": event.DeliveryStatus,
		"expires_at":      event.ExpiresAt,
		"requested_at":    event.RequestedAt,
	}
	p.logEvent("verify.otp.requested", "", event.RequestedAt, payload)
	return nil
}

// PublishPhoneVerified logs verify.phone.verified events.
func (p *StubPublisher) PublishPhoneVerified(_ context.Context, event domain.PhoneVerifiedEvent) error {
	payload := map[string]any{
		"verification_id": event.VerificationID,
		"user_id":         event.UserID,
		"masked_phone":    event.MaskedPhone,
		"new_user":        event.NewUser,
		"verified_at":     event.VerifiedAt,
	}
	p.logEvent("verify.phone.verified", event.UserID, event.VerifiedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
