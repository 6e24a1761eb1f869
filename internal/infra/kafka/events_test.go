package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap/zaptest"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer *fakeAsyncProducer) *EventPublisher {
	t.Helper()

	producer := &Producer{
		producer: asyncProducer,
		logger:   zaptest.NewLogger(t),
		cfg: config.KafkaSettings{
			TopicPrefix: "safedrive",
		},
		errChan: make(chan error, 1),
		done:    make(chan struct{}),
	}

	return NewEventPublisher(producer, config.AppSettings{
		Name: "phone-verify",
		Env:  "test",
	}, zaptest.NewLogger(t))
}

func TestPublishOtpRequested(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	requestedAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	event := domain.OtpRequestedEvent{
		EventID:        "evt-001",
		VerificationID: "ver-123",
		MaskedPhone:    "+947***4567",
		DeliveryStatus: "sent",
		ExpiresAt:      requestedAt.Add(10 * time.Minute),
		RequestedAt:    requestedAt,
	}

	if err := publisher.PublishOtpRequested(context.Background(), event); err != nil {
		t.Fatalf("PublishOtpRequested returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "safedrive.verify.otp.requested" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "verify.otp.requested" {
			t.Fatalf("unexpected event_type: %v", got)
		}

		if got := envelope["event_id"]; got != event.EventID {
			t.Fatalf("unexpected event_id: %v", got)
		}

		timestamp, ok := envelope["timestamp"].(string)
		if !ok {
			t.Fatalf("timestamp not a string: %T", envelope["timestamp"])
		}
		if timestamp != requestedAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %s", timestamp)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["verification_id"]; got != event.VerificationID {
			t.Fatalf("unexpected verification_id: %v", got)
		}

		if got := payload["masked_phone"]; got != event.MaskedPhone {
			t.Fatalf("unexpected masked_phone: %v", got)
		}

		if got := payload["delivery_status"]; got != "sent" {
			t.Fatalf("unexpected delivery_status: %v", got)
		}

		envelopeMetadata, ok := envelope["metadata"].(map[string]any)
		if !ok {
			t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
		}

		if envelopeMetadata["service"] != "phone-verify" {
			t.Fatalf("unexpected metadata service: %v", envelopeMetadata["service"])
		}

		if envelopeMetadata["environment"] != "test" {
			t.Fatalf("unexpected metadata environment: %v", envelopeMetadata["environment"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestPublishPhoneVerified(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher := newTestPublisher(t, asyncProducer)

	verifiedAt := time.Date(2026, 3, 14, 9, 35, 0, 0, time.UTC)
	event := domain.PhoneVerifiedEvent{
		EventID:        "evt-002",
		VerificationID: "ver-123",
		UserID:         "user-789",
		MaskedPhone:    "+947***4567",
		NewUser:        true,
		VerifiedAt:     verifiedAt,
	}

	if err := publisher.PublishPhoneVerified(context.Background(), event); err != nil {
		t.Fatalf("PublishPhoneVerified returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "safedrive.verify.phone.verified" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_type"]; got != "verify.phone.verified" {
			t.Fatalf("unexpected event_type: %v", got)
		}

		if got := envelope["user_id"]; got != event.UserID {
			t.Fatalf("unexpected user_id: %v", got)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}

		if got := payload["verification_id"]; got != event.VerificationID {
			t.Fatalf("unexpected verification_id: %v", got)
		}

		newUser, ok := payload["new_user"].(bool)
		if !ok || !newUser {
			t.Fatalf("unexpected new_user: %v", payload["new_user"])
		}

		verifiedAtValue, ok := payload["verified_at"].(string)
		if !ok {
			t.Fatalf("verified_at not a string: %T", payload["verified_at"])
		}
		if verifiedAtValue != verifiedAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected verified_at: %s", verifiedAtValue)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}
