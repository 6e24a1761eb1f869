package domain

import "time"

// OtpRequestedEvent is emitted after an OTP issuance attempt, whether or not
// delivery succeeded. Phone numbers are masked before the event leaves the
// service.
type OtpRequestedEvent struct {
	EventID        string
	VerificationID string
	MaskedPhone    string
	DeliveryStatus string
	ExpiresAt      time.Time
	RequestedAt    time.Time
}

// PhoneVerifiedEvent is emitted once a verification record transitions to
// verified and an identity has been resolved.
type PhoneVerifiedEvent struct {
	EventID        string
	VerificationID string
	UserID         string
	MaskedPhone    string
	NewUser        bool
	VerifiedAt     time.Time
}
