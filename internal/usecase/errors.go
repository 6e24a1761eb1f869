package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidPhone indicates the supplied phone number cannot be normalized
	// to a Sri Lankan mobile number.
	ErrInvalidPhone = errors.New("invalid phone number")
	// ErrInvalidArgument indicates a missing or malformed request field.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrVerificationNotFound indicates no verification exists for the id.
	ErrVerificationNotFound = errors.New("verification not found")
	// ErrAlreadyVerified indicates the verification already succeeded.
	ErrAlreadyVerified = errors.New("phone already verified")
	// ErrOTPExpired indicates the code lifetime has elapsed.
	ErrOTPExpired = errors.New("verification code expired")
	// ErrAttemptsExhausted indicates the attempt budget is spent.
	ErrAttemptsExhausted = errors.New("verification attempts exhausted")
	// ErrInvalidOTP indicates the submitted code does not match.
	ErrInvalidOTP = errors.New("invalid verification code")
	// ErrDeliveryFailed indicates the SMS gateway did not accept the message.
	ErrDeliveryFailed = errors.New("sms delivery failed")
)

// RateLimitExceededError reports which admission scope rejected the request
// and when a retry becomes admissible.
type RateLimitExceededError struct {
	Scope      string
	RetryAfter time.Duration
}

func (e *RateLimitExceededError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limit exceeded for %s, retry after %s", e.Scope, e.RetryAfter)
	}
	return fmt.Sprintf("rate limit exceeded for %s", e.Scope)
}
