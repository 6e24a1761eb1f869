package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/infra/config"
	"github.com/safedrive/phone-verify/internal/infra/logger"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if requestID, ok := ctx.Value(logger.RequestIDKey{}).(string); ok && requestID != "" {
		metadata["request_id"] = requestID
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishOtpRequested publishes verify.otp.requested events.
func (p *EventPublisher) PublishOtpRequested(ctx context.Context, event domain.OtpRequestedEvent) error {
	payload := struct {
		VerificationID string    `json:"verification_id"`
		MaskedPhone    string    `json:"masked_phone"`
		DeliveryStatus string    `json:"delivery_status"`
		ExpiresAt      time.Time `json:"expires_at"`
		RequestedAt    time.Time `json:"requested_at"`
	}{
		VerificationID: event.VerificationID,
		MaskedPhone:    event.MaskedPhone,
		DeliveryStatus: event.DeliveryStatus,
		ExpiresAt:      event.ExpiresAt.UTC(),
		RequestedAt:    event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "verify.otp.requested", "", event.RequestedAt, payload)
}

// PublishPhoneVerified publishes verify.phone.verified events.
func (p *EventPublisher) PublishPhoneVerified(ctx context.Context, event domain.PhoneVerifiedEvent) error {
	payload := struct {
		VerificationID string    `json:"verification_id"`
		UserID         string    `json:"user_id"`
		MaskedPhone    string    `json:"masked_phone"`
		NewUser        bool      `json:"new_user"`
		VerifiedAt     time.Time `json:"verified_at"`
	}{
		VerificationID: event.VerificationID,
		UserID:         event.UserID,
		MaskedPhone:    event.MaskedPhone,
		NewUser:        event.NewUser,
		VerifiedAt:     event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "verify.phone.verified", event.UserID, event.VerifiedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
