package port

import "context"

// SmsResult reports whether the provider accepted the message for delivery.
type SmsResult struct {
	Accepted          bool
	ProviderMessageID string
}

// SmsSender delivers a text message to a canonical phone number. The sender
// may fail independently of record persistence; callers bound the call with
// a context deadline.
type SmsSender interface {
	Send(ctx context.Context, phoneNumber, message string) (SmsResult, error)
}
