package domain

import "time"

// VerificationStatus enumerates the lifecycle states of an OTP verification.
type VerificationStatus string

const (
	VerificationStatusPending  VerificationStatus = "pending"
	VerificationStatusVerified VerificationStatus = "verified"
	VerificationStatusExpired  VerificationStatus = "expired"
	VerificationStatusFailed   VerificationStatus = "failed"
)

// DeliveryStatus records the outcome of the SMS delivery attempt, independent
// of the verification outcome.
type DeliveryStatus string

const (
	DeliveryStatusSent   DeliveryStatus = "sent"
	DeliveryStatusFailed DeliveryStatus = "failed"
)

// VerificationRecord mirrors the persisted representation in the
// verifications table. One record exists per OTP issuance.
type VerificationRecord struct {
	ID                string
	PhoneNumber       string
	SecretDigest      string
	Attempts          int
	MaxAttempts       int
	Status            VerificationStatus
	DeliveryStatus    *DeliveryStatus
	ProviderMessageID *string
	CreatedAt         time.Time
	ExpiresAt         time.Time
	VerifiedAt        *time.Time
}

// ExpiredAt reports whether the record is past its expiry at the given instant.
func (r VerificationRecord) ExpiredAt(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// AttemptsExhausted reports whether the record has consumed its attempt budget.
func (r VerificationRecord) AttemptsExhausted() bool {
	return r.Attempts >= r.MaxAttempts
}
