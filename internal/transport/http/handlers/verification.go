package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/safedrive/phone-verify/internal/transport/http/middleware"
	"github.com/safedrive/phone-verify/internal/usecase"
)

const (
	otpRateLimitProblemType  = "https://verify.safedrive.example.com/errors/otp-rate-limit-exceeded"
	otpRateLimitProblemTitle = "Too Many Verification Attempts"
)

// VerificationHandler exposes the OTP request and confirmation endpoints.
type VerificationHandler struct {
	verifications *usecase.VerificationService
}

// NewVerificationHandler constructs a VerificationHandler.
func NewVerificationHandler(verifications *usecase.VerificationService) *VerificationHandler {
	return &VerificationHandler{verifications: verifications}
}

// RegisterRoutes attaches verification endpoints to the provided group.
func (h *VerificationHandler) RegisterRoutes(group *gin.RouterGroup, middlewares ...gin.HandlerFunc) {
	requestHandlers := append([]gin.HandlerFunc{}, middlewares...)
	requestHandlers = append(requestHandlers, h.RequestOtp)
	group.POST("/request", requestHandlers...)

	confirmHandlers := append([]gin.HandlerFunc{}, middlewares...)
	confirmHandlers = append(confirmHandlers, h.ConfirmOtp)
	group.POST("/confirm", confirmHandlers...)
}

// RequestOtp handles POST /verification/request.
func (h *VerificationHandler) RequestOtp(c *gin.Context) {
	var req OtpRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "phone_number is required"))
		return
	}

	result, err := h.verifications.RequestOtp(c.Request.Context(), usecase.RequestOtpInput{
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		h.respondRequestError(c, err)
		return
	}

	c.JSON(http.StatusCreated, OtpRequestResponse{
		VerificationID: result.VerificationID,
		PhoneNumber:    result.MaskedPhone,
		ExpiresAt:      result.ExpiresAt,
		DeliveryStatus: string(result.DeliveryStatus),
	})
}

// ConfirmOtp handles POST /verification/confirm.
func (h *VerificationHandler) ConfirmOtp(c *gin.Context) {
	var req OtpConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, NewErrorResponse(c, "verification_id, code and phone_number are required"))
		return
	}

	result, err := h.verifications.ConfirmOtp(c.Request.Context(), usecase.ConfirmOtpInput{
		VerificationID: req.VerificationID,
		Code:           req.Code,
		PhoneNumber:    req.PhoneNumber,
	})
	if err != nil {
		h.respondConfirmError(c, err)
		return
	}

	c.JSON(http.StatusOK, OtpConfirmResponse{
		Message:     "phone number verified",
		UserID:      result.UserID,
		NewUser:     result.NewUser,
		PhoneNumber: result.MaskedPhone,
		Proof:       result.Proof,
		VerifiedAt:  result.VerifiedAt,
	})
}

func (h *VerificationHandler) respondRequestError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr)
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "invalid phone number"},
		{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid request"},
		{Err: usecase.ErrDeliveryFailed, Status: http.StatusBadGateway, Message: "sms delivery failed"},
	}, http.StatusInternalServerError, "verification request failed")
}

func (h *VerificationHandler) respondConfirmError(c *gin.Context, err error) {
	var rateErr *usecase.RateLimitExceededError
	if errors.As(err, &rateErr) {
		respondRateLimitExceeded(c, rateErr)
		return
	}

	RespondWithMappedError(c, err, []ErrorCase{
		{Err: usecase.ErrInvalidPhone, Status: http.StatusBadRequest, Message: "invalid phone number"},
		{Err: usecase.ErrInvalidArgument, Status: http.StatusBadRequest, Message: "invalid request"},
		{Err: usecase.ErrVerificationNotFound, Status: http.StatusNotFound, Message: "verification not found"},
		{Err: usecase.ErrAlreadyVerified, Status: http.StatusConflict, Message: "phone already verified"},
		{Err: usecase.ErrOTPExpired, Status: http.StatusGone, Message: "verification code expired"},
		{Err: usecase.ErrAttemptsExhausted, Status: http.StatusTooManyRequests, Message: "verification attempts exhausted"},
		{Err: usecase.ErrInvalidOTP, Status: http.StatusUnauthorized, Message: "invalid verification code"},
	}, http.StatusInternalServerError, "verification failed")
}

func respondRateLimitExceeded(c *gin.Context, rateErr *usecase.RateLimitExceededError) {
	retryAfter := int(rateErr.RetryAfter / time.Second)
	if rateErr.RetryAfter%time.Second != 0 {
		retryAfter++
	}
	if retryAfter < 0 {
		retryAfter = 0
	}

	detail := "Too many verification attempts. Try again later."
	if rateErr.RetryAfter > 0 {
		detail = fmt.Sprintf("Too many verification attempts. Try again in %d seconds.", retryAfter)
	}

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	problem := middleware.ProblemDetails{
		Type:       otpRateLimitProblemType,
		Title:      otpRateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     detail,
		Instance:   instance,
		RetryAfter: retryAfter,
		TraceID:    middleware.GetTraceID(c),
	}

	if retryAfter > 0 {
		c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
	}

	c.JSON(http.StatusTooManyRequests, problem)
}
