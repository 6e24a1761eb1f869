package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents a generic error payload with trace ID for debugging.
type ErrorResponse struct {
	Error   string `json:"error"`
	TraceID string `json:"trace_id,omitempty"`
}

// NewErrorResponse creates an error response with trace ID from context
func NewErrorResponse(c *gin.Context, errorMsg string) ErrorResponse {
	traceID, _ := c.Get("trace_id")
	traceIDStr, _ := traceID.(string)

	return ErrorResponse{
		Error:   errorMsg,
		TraceID: traceIDStr,
	}
}

// MessageResponse represents a simple message payload.
type MessageResponse struct {
	Message string `json:"message"`
}

// OtpRequestRequest defines the payload for requesting a verification code.
type OtpRequestRequest struct {
	PhoneNumber string `json:"phone_number" binding:"required"`
}

// OtpRequestResponse describes the verification created for the caller.
type OtpRequestResponse struct {
	VerificationID string    `json:"verification_id"`
	PhoneNumber    string    `json:"phone_number"`
	ExpiresAt      time.Time `json:"expires_at"`
	DeliveryStatus string    `json:"delivery_status"`
}

// OtpConfirmRequest defines the payload for submitting a verification code.
type OtpConfirmRequest struct {
	VerificationID string `json:"verification_id" binding:"required"`
	Code           string `json:"code" binding:"required"`
	PhoneNumber    string `json:"phone_number" binding:"required"`
}

// OtpConfirmResponse is returned after a successful confirmation.
type OtpConfirmResponse struct {
	Message     string    `json:"message"`
	UserID      string    `json:"user_id"`
	NewUser     bool      `json:"new_user"`
	PhoneNumber string    `json:"phone_number"`
	Proof       string    `json:"proof,omitempty"`
	VerifiedAt  time.Time `json:"verified_at"`
}

// HealthResponse describes the service health payload.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"started_at"`
	Timestamp time.Time `json:"timestamp"`
}

// ReadyResponse describes readiness probe results with dependency checks.
type ReadyResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}
