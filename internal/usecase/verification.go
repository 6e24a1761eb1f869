package usecase

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/core/domain"
	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/infra/config"
	"github.com/safedrive/phone-verify/internal/infra/logger"
	"github.com/safedrive/phone-verify/internal/infra/security"
	"github.com/safedrive/phone-verify/internal/infra/telemetry"
	"github.com/safedrive/phone-verify/internal/repository"
)

const (
	otpRequestRateLimitScope = "otp_request"
	otpConfirmRateLimitScope = "otp_confirm"

	defaultOtpLength   = 6
	defaultOtpExpiry   = 10 * time.Minute
	defaultMaxAttempts = 3

	defaultSmsTemplate = "Your {app} verification code is {code}. Valid for {minutes} minutes."
)

// ErrVerificationUnavailable indicates the service is missing a required dependency.
var ErrVerificationUnavailable = errors.New("verification service unavailable")

// VerificationService coordinates the OTP issuance and confirmation lifecycle.
type VerificationService struct {
	cfg        *config.AppConfig
	store      port.VerificationStore
	identities port.IdentityRepository
	sms        port.SmsSender
	rateLimits port.RateLimitStore
	events     port.EventPublisher
	proof      port.ProofIssuer
	metrics    *telemetry.Provider
	logger     *zap.Logger
	now        func() time.Time
}

// RequestOtpInput carries the payload for starting a verification.
type RequestOtpInput struct {
	PhoneNumber string
}

// RequestOtpResult describes the issued verification handed back to the caller.
type RequestOtpResult struct {
	VerificationID string
	MaskedPhone    string
	ExpiresAt      time.Time
	DeliveryStatus domain.DeliveryStatus
}

// ConfirmOtpInput carries the payload for completing a verification.
type ConfirmOtpInput struct {
	VerificationID string
	Code           string
	PhoneNumber    string
}

// ConfirmOtpResult describes a successful confirmation.
type ConfirmOtpResult struct {
	UserID      string
	NewUser     bool
	Proof       string
	MaskedPhone string
	VerifiedAt  time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(cfg *config.AppConfig, store port.VerificationStore, identities port.IdentityRepository, sms port.SmsSender, rateLimits port.RateLimitStore, events port.EventPublisher, proof port.ProofIssuer, metrics *telemetry.Provider, log *zap.Logger) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}

	return &VerificationService{
		cfg:        cfg,
		store:      store,
		identities: identities,
		sms:        sms,
		rateLimits: rateLimits,
		events:     events,
		proof:      proof,
		metrics:    metrics,
		logger:     log,
		now:        time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *VerificationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// RequestOtp normalizes the phone number, issues a fresh code, persists the
// verification record, and dispatches the SMS. Each request creates an
// independent record; earlier pending codes for the same phone stay valid
// until they expire on their own.
func (s *VerificationService) RequestOtp(ctx context.Context, input RequestOtpInput) (*RequestOtpResult, error) {
	if s.store == nil || s.sms == nil {
		return nil, ErrVerificationUnavailable
	}

	raw := strings.TrimSpace(input.PhoneNumber)
	if raw == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalidArgument)
	}

	phone, ok := domain.NormalizePhone(raw)
	if !ok {
		return nil, ErrInvalidPhone
	}

	now := s.now().UTC()
	if err := s.checkRateLimit(ctx, otpRequestRateLimitScope, phone, s.requestPolicy(), now); err != nil {
		return nil, err
	}

	code, err := security.GenerateOTP(s.otpLength())
	if err != nil {
		return nil, fmt.Errorf("generate otp: %w", err)
	}

	expiry := s.otpExpiry()
	record := domain.VerificationRecord{
		ID:           uuid.NewString(),
		PhoneNumber:  phone,
		SecretDigest: security.DigestOTP(code),
		Attempts:     0,
		MaxAttempts:  s.maxAttempts(),
		Status:       domain.VerificationStatusPending,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiry),
	}

	if err := s.store.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("create verification: %w", err)
	}

	masked := logger.MaskPhone(phone)
	message := s.renderMessage(code, expiry)

	sendResult, sendErr := s.sms.Send(ctx, phone, message)
	if sendErr != nil || !sendResult.Accepted {
		s.recordDelivery(ctx, record.ID, domain.DeliveryStatusFailed, "")
		s.metrics.SmsDelivery("failed")
		s.publishOtpRequested(ctx, record, masked, domain.DeliveryStatusFailed)

		s.logger.Warn("otp sms delivery failed",
			zap.String("verification_id", record.ID),
			zap.String("phone", masked),
			zap.Error(sendErr),
		)

		if sendErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrDeliveryFailed, sendErr)
		}
		return nil, ErrDeliveryFailed
	}

	s.recordDelivery(ctx, record.ID, domain.DeliveryStatusSent, sendResult.ProviderMessageID)
	s.metrics.SmsDelivery("sent")
	s.metrics.OtpIssued()
	s.publishOtpRequested(ctx, record, masked, domain.DeliveryStatusSent)

	s.logger.Info("otp issued",
		zap.String("verification_id", record.ID),
		zap.String("phone", masked),
		zap.Time("expires_at", record.ExpiresAt),
	)

	return &RequestOtpResult{
		VerificationID: record.ID,
		MaskedPhone:    masked,
		ExpiresAt:      record.ExpiresAt,
		DeliveryStatus: domain.DeliveryStatusSent,
	}, nil
}

// ConfirmOtp validates the submitted code against the stored digest and, on
// success, binds the phone number to an identity and mints a proof token.
// All state transitions go through conditional store updates so concurrent
// confirmations for the same record settle on exactly one winner.
func (s *VerificationService) ConfirmOtp(ctx context.Context, input ConfirmOtpInput) (*ConfirmOtpResult, error) {
	if s.store == nil || s.identities == nil {
		return nil, ErrVerificationUnavailable
	}

	id := strings.TrimSpace(input.VerificationID)
	if id == "" {
		return nil, fmt.Errorf("%w: verification id is required", ErrInvalidArgument)
	}

	code := strings.TrimSpace(input.Code)
	if code == "" {
		return nil, fmt.Errorf("%w: verification code is required", ErrInvalidArgument)
	}

	rawPhone := strings.TrimSpace(input.PhoneNumber)
	if rawPhone == "" {
		return nil, fmt.Errorf("%w: phone number is required", ErrInvalidArgument)
	}

	phone, ok := domain.NormalizePhone(rawPhone)
	if !ok {
		return nil, ErrInvalidPhone
	}

	// The confirm budget is consumed up front, keyed by the submitted phone,
	// so spraying verification ids never produces a free guess.
	now := s.now().UTC()
	if err := s.checkRateLimit(ctx, otpConfirmRateLimitScope, phone, s.confirmPolicy(), now); err != nil {
		return nil, err
	}

	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationNotFound
		}
		return nil, fmt.Errorf("load verification: %w", err)
	}

	// Lookup is by id; a submitted phone that disagrees with the record is
	// suspicious but not fatal.
	if record.PhoneNumber != phone {
		s.logger.Warn("confirm phone mismatch",
			zap.String("verification_id", record.ID),
			zap.String("submitted_phone", logger.MaskPhone(phone)),
			zap.String("record_phone", logger.MaskPhone(record.PhoneNumber)),
		)
	}

	if err := s.rejectSettled(record); err != nil {
		return nil, err
	}

	// Expiry is checked before the digest: a correct code submitted after
	// the deadline still fails.
	if record.ExpiredAt(now) {
		if _, err := s.store.TransitionStatus(ctx, record.ID, domain.VerificationStatusPending, domain.VerificationStatusExpired); err != nil {
			s.logger.Warn("mark verification expired failed", zap.String("verification_id", record.ID), zap.Error(err))
		}
		s.metrics.ConfirmFailed("expired")
		return nil, ErrOTPExpired
	}

	// A pending record whose attempt budget is already spent must never
	// verify, even against the correct code.
	if record.AttemptsExhausted() {
		if _, err := s.store.TransitionStatus(ctx, record.ID, domain.VerificationStatusPending, domain.VerificationStatusFailed); err != nil {
			s.logger.Warn("mark verification failed errored", zap.String("verification_id", record.ID), zap.Error(err))
		}
		s.metrics.ConfirmFailed("attempts_exhausted")
		return nil, ErrAttemptsExhausted
	}

	if !security.DigestEqual(record.SecretDigest, security.DigestOTP(code)) {
		return nil, s.registerFailedAttempt(ctx, record)
	}

	won, err := s.store.TransitionStatus(ctx, record.ID, domain.VerificationStatusPending, domain.VerificationStatusVerified)
	if err != nil {
		return nil, fmt.Errorf("transition verification: %w", err)
	}
	if !won {
		return nil, s.settledOutcome(ctx, record.ID)
	}

	identity, newUser, err := s.bindIdentity(ctx, record.PhoneNumber, now)
	if err != nil {
		return nil, err
	}

	masked := logger.MaskPhone(record.PhoneNumber)

	proofToken := ""
	if s.proof != nil {
		proofToken, err = s.proof.IssueVerificationProof(identity.ID, record.ID, newUser)
		if err != nil {
			return nil, fmt.Errorf("issue verification proof: %w", err)
		}
	}

	s.metrics.OtpVerified()
	s.publishPhoneVerified(ctx, record.ID, identity.ID, masked, newUser, now)

	s.logger.Info("phone verified",
		zap.String("verification_id", record.ID),
		zap.String("user_id", identity.ID),
		zap.String("phone", masked),
		zap.Bool("new_user", newUser),
	)

	return &ConfirmOtpResult{
		UserID:      identity.ID,
		NewUser:     newUser,
		Proof:       proofToken,
		MaskedPhone: masked,
		VerifiedAt:  now,
	}, nil
}

// RunExpirySweep deletes expired verification records in batches until the
// backlog is drained, returning the total removed.
func (s *VerificationService) RunExpirySweep(ctx context.Context) (int, error) {
	if s.store == nil {
		return 0, ErrVerificationUnavailable
	}

	batchSize := s.sweepBatchSize()
	now := s.now().UTC()
	total := 0

	for {
		deleted, err := s.store.DeleteExpiredBatch(ctx, now, batchSize)
		if err != nil {
			return total, fmt.Errorf("delete expired verifications: %w", err)
		}

		total += deleted
		if deleted < batchSize {
			break
		}

		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}
	}

	s.metrics.SweepDeleted(total)
	if total > 0 {
		s.logger.Info("expired verifications removed", zap.Int("count", total))
	}

	return total, nil
}

// rejectSettled maps already-final record statuses to their terminal errors.
func (s *VerificationService) rejectSettled(record *domain.VerificationRecord) error {
	switch record.Status {
	case domain.VerificationStatusVerified:
		return ErrAlreadyVerified
	case domain.VerificationStatusExpired:
		return ErrOTPExpired
	case domain.VerificationStatusFailed:
		return ErrAttemptsExhausted
	default:
		return nil
	}
}

// settledOutcome reloads a record after a lost status race and reports the
// error matching whatever state the winner left behind.
func (s *VerificationService) settledOutcome(ctx context.Context, id string) error {
	record, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrVerificationNotFound
		}
		return fmt.Errorf("reload verification: %w", err)
	}

	if err := s.rejectSettled(record); err != nil {
		return err
	}

	// Still pending means another mutation slipped in between; treat the
	// submission as spent.
	return ErrInvalidOTP
}

func (s *VerificationService) registerFailedAttempt(ctx context.Context, record *domain.VerificationRecord) error {
	attempts, applied, err := s.store.IncrementAttempts(ctx, record.ID)
	if err != nil {
		return fmt.Errorf("increment attempts: %w", err)
	}

	if !applied {
		// Budget already spent or the record settled concurrently.
		fresh, err := s.store.Get(ctx, record.ID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrVerificationNotFound
			}
			return fmt.Errorf("reload verification: %w", err)
		}

		if err := s.rejectSettled(fresh); err != nil {
			return err
		}

		// Pending with a spent budget: settle the record.
		if _, err := s.store.TransitionStatus(ctx, fresh.ID, domain.VerificationStatusPending, domain.VerificationStatusFailed); err != nil {
			s.logger.Warn("mark verification failed errored", zap.String("verification_id", fresh.ID), zap.Error(err))
		}
		s.metrics.ConfirmFailed("attempts_exhausted")
		return ErrAttemptsExhausted
	}

	if attempts >= record.MaxAttempts {
		if _, err := s.store.TransitionStatus(ctx, record.ID, domain.VerificationStatusPending, domain.VerificationStatusFailed); err != nil {
			s.logger.Warn("mark verification failed errored", zap.String("verification_id", record.ID), zap.Error(err))
		}
		s.metrics.ConfirmFailed("attempts_exhausted")
		return ErrAttemptsExhausted
	}

	s.metrics.ConfirmFailed("invalid_code")
	return ErrInvalidOTP
}

// bindIdentity resolves the verified phone number to an account, creating a
// fresh identity with default profile scaffolding when none exists.
func (s *VerificationService) bindIdentity(ctx context.Context, phone string, now time.Time) (*domain.Identity, bool, error) {
	existing, err := s.identities.FindByPhone(ctx, phone)
	if err == nil {
		if err := s.identities.MarkPhoneVerified(ctx, existing.ID, now); err != nil {
			return nil, false, fmt.Errorf("mark phone verified: %w", err)
		}
		existing.PhoneVerified = true
		return existing, false, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return nil, false, fmt.Errorf("lookup identity: %w", err)
	}

	identity := domain.Identity{
		ID:            uuid.NewString(),
		PhoneNumber:   phone,
		PhoneVerified: true,
		IsActive:      true,
		AuthMethod:    domain.AuthMethodPhone,
		Preferences:   domain.DefaultPreferences(),
		Stats:         domain.DefaultStats(),
		CreatedAt:     now,
		UpdatedAt:     now,
		LastLogin:     &now,
	}

	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, false, fmt.Errorf("create identity: %w", err)
	}

	return &identity, true, nil
}

// checkRateLimit enforces a sliding-window budget keyed by phone number.
// Store failures degrade to admission rather than blocking verification.
func (s *VerificationService) checkRateLimit(ctx context.Context, scope, key string, policy config.RateLimitPolicy, now time.Time) error {
	if s.rateLimits == nil || policy.MaxAttempts <= 0 {
		return nil
	}

	window := policy.Window
	if window <= 0 {
		window = time.Hour
	}

	storageKey := fmt.Sprintf("%s:%s", scope, key)

	if err := s.rateLimits.TrimWindow(ctx, storageKey, window, now); err != nil {
		s.logger.Warn("rate limit trim failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, storageKey, window, now)
	if err != nil {
		s.logger.Warn("rate limit count failed", zap.String("scope", scope), zap.Error(err))
		return nil
	}

	if count >= policy.MaxAttempts {
		retryAfter := time.Duration(0)
		if oldest, ok, err := s.rateLimits.OldestAttempt(ctx, storageKey, window, now); err == nil && ok {
			reset := oldest.Add(window)
			if reset.After(now) {
				retryAfter = reset.Sub(now)
			}
		} else if err != nil {
			s.logger.Warn("rate limit oldest lookup failed", zap.String("scope", scope), zap.Error(err))
		}
		return &RateLimitExceededError{Scope: scope, RetryAfter: retryAfter}
	}

	if err := s.rateLimits.RecordAttempt(ctx, storageKey, now); err != nil {
		s.logger.Warn("rate limit record failed", zap.String("scope", scope), zap.Error(err))
	}

	return nil
}

func (s *VerificationService) recordDelivery(ctx context.Context, id string, status domain.DeliveryStatus, providerMessageID string) {
	if err := s.store.SetDeliveryStatus(ctx, id, status, providerMessageID); err != nil {
		s.logger.Warn("record delivery status failed",
			zap.String("verification_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
	}
}

func (s *VerificationService) publishOtpRequested(ctx context.Context, record domain.VerificationRecord, masked string, delivery domain.DeliveryStatus) {
	if s.events == nil {
		return
	}

	event := domain.OtpRequestedEvent{
		EventID:        uuid.NewString(),
		VerificationID: record.ID,
		MaskedPhone:    masked,
		DeliveryStatus: string(delivery),
		ExpiresAt:      record.ExpiresAt,
		RequestedAt:    record.CreatedAt,
	}

	if err := s.events.PublishOtpRequested(ctx, event); err != nil {
		s.logger.Warn("publish otp requested failed", zap.String("verification_id", record.ID), zap.Error(err))
	}
}

func (s *VerificationService) publishPhoneVerified(ctx context.Context, verificationID, userID, masked string, newUser bool, verifiedAt time.Time) {
	if s.events == nil {
		return
	}

	event := domain.PhoneVerifiedEvent{
		EventID:        uuid.NewString(),
		VerificationID: verificationID,
		UserID:         userID,
		MaskedPhone:    masked,
		NewUser:        newUser,
		VerifiedAt:     verifiedAt,
	}

	if err := s.events.PublishPhoneVerified(ctx, event); err != nil {
		s.logger.Warn("publish phone verified failed", zap.String("verification_id", verificationID), zap.Error(err))
	}
}

func (s *VerificationService) renderMessage(code string, expiry time.Duration) string {
	template := defaultSmsTemplate
	appName := "SafeDrive"

	if s.cfg != nil {
		if strings.TrimSpace(s.cfg.SMS.Template) != "" {
			template = s.cfg.SMS.Template
		}
		if strings.TrimSpace(s.cfg.App.Name) != "" {
			appName = s.cfg.App.Name
		}
	}

	minutes := int(expiry.Minutes())
	if minutes < 1 {
		minutes = 1
	}

	replacer := strings.NewReplacer(
		"{app}", appName,
		"{code}", code,
		"{minutes}", strconv.Itoa(minutes),
	)

	return replacer.Replace(template)
}

func (s *VerificationService) otpLength() int {
	if s.cfg != nil && s.cfg.OTP.Length > 0 {
		return s.cfg.OTP.Length
	}
	return defaultOtpLength
}

func (s *VerificationService) otpExpiry() time.Duration {
	if s.cfg != nil && s.cfg.OTP.Expiry > 0 {
		return s.cfg.OTP.Expiry
	}
	return defaultOtpExpiry
}

func (s *VerificationService) maxAttempts() int {
	if s.cfg != nil && s.cfg.OTP.MaxAttempts > 0 {
		return s.cfg.OTP.MaxAttempts
	}
	return defaultMaxAttempts
}

func (s *VerificationService) requestPolicy() config.RateLimitPolicy {
	if s.cfg != nil {
		return s.cfg.RateLimit.Request
	}
	return config.RateLimitPolicy{MaxAttempts: 3, Window: time.Hour}
}

func (s *VerificationService) confirmPolicy() config.RateLimitPolicy {
	if s.cfg != nil {
		return s.cfg.RateLimit.Confirm
	}
	return config.RateLimitPolicy{MaxAttempts: 5, Window: 5 * time.Minute}
}

func (s *VerificationService) sweepBatchSize() int {
	if s.cfg != nil && s.cfg.Sweep.BatchSize > 0 {
		return s.cfg.Sweep.BatchSize
	}
	return 100
}
