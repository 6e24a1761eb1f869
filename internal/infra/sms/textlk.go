package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/core/port"
	"github.com/safedrive/phone-verify/internal/infra/config"
	"github.com/safedrive/phone-verify/internal/infra/logger"
)

// TextLKSender delivers SMS messages through the Text.lk HTTP gateway.
type TextLKSender struct {
	cfg    config.SMSSettings
	client *http.Client
	log    *zap.Logger
}

// NewTextLKSender builds a Text.lk gateway client. Credentials are validated
// up front unless dry run is enabled.
func NewTextLKSender(cfg config.SMSSettings, log *zap.Logger) (*TextLKSender, error) {
	if !cfg.DryRun {
		if strings.TrimSpace(cfg.APIURL) == "" {
			return nil, fmt.Errorf("sms api url is required")
		}
		if strings.TrimSpace(cfg.UserID) == "" || strings.TrimSpace(cfg.APIKey) == "" {
			return nil, fmt.Errorf("sms gateway credentials are required")
		}
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &TextLKSender{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		log:    log,
	}, nil
}

type gatewayRequest struct {
	UserID   string `json:"user_id"`
	APIKey   string `json:"api_key"`
	SenderID string `json:"sender_id"`
	To       string `json:"to"`
	Message  string `json:"message"`
}

type gatewayResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"message_id"`
	} `json:"data"`
}

// Send submits the message to the gateway. The recipient is passed without
// the leading plus sign, as the gateway expects.
func (s *TextLKSender) Send(ctx context.Context, phoneNumber, message string) (port.SmsResult, error) {
	if s.cfg.DryRun {
		s.log.Info("sms dry run, message not sent",
			zap.String("phone", logger.MaskPhone(phoneNumber)),
		)
		return port.SmsResult{Accepted: true}, nil
	}

	payload := gatewayRequest{
		UserID:   s.cfg.UserID,
		APIKey:   s.cfg.APIKey,
		SenderID: s.cfg.SenderID,
		To:       strings.TrimPrefix(phoneNumber, "+"),
		Message:  message,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return port.SmsResult{}, fmt.Errorf("marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.APIURL, bytes.NewReader(body))
	if err != nil {
		return port.SmsResult{}, fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return port.SmsResult{}, fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return port.SmsResult{}, fmt.Errorf("read sms response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return port.SmsResult{}, fmt.Errorf("sms gateway returned status %d", resp.StatusCode)
	}

	var parsed gatewayResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return port.SmsResult{}, fmt.Errorf("decode sms response: %w", err)
	}

	if !strings.EqualFold(parsed.Status, "success") {
		return port.SmsResult{}, fmt.Errorf("sms gateway rejected message: %s", parsed.Message)
	}

	s.log.Info("sms accepted by gateway",
		zap.String("phone", logger.MaskPhone(phoneNumber)),
		zap.String("provider_message_id", parsed.Data.MessageID),
	)

	return port.SmsResult{
		Accepted:          true,
		ProviderMessageID: parsed.Data.MessageID,
	}, nil
}

var _ port.SmsSender = (*TextLKSender)(nil)
