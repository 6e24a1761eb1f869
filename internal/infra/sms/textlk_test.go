package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/safedrive/phone-verify/internal/infra/config"
)

func senderConfig(url string) config.SMSSettings {
	return config.SMSSettings{
		APIURL:   url,
		UserID:   "user-1",
		APIKey:   "key-1",
		SenderID: "SafeDrive",
		Timeout:  2 * time.Second,
	}
}

func TestTextLKSender_Send(t *testing.T) {
	var captured map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"success","data":{"message_id":"msg-42"}}`))
	}))
	defer server.Close()

	sender, err := NewTextLKSender(senderConfig(server.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewTextLKSender: %v", err)
	}

	result, err := sender.Send(context.Background(), "+94771234567", "Your code is 123456")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("expected message to be accepted")
	}
	if result.ProviderMessageID != "msg-42" {
		t.Fatalf("unexpected provider message id %q", result.ProviderMessageID)
	}

	if captured["to"] != "94771234567" {
		t.Errorf("recipient should be sent without plus, got %q", captured["to"])
	}
	if captured["user_id"] != "user-1" || captured["api_key"] != "key-1" {
		t.Errorf("credentials not forwarded: %v", captured)
	}
	if captured["message"] != "Your code is 123456" {
		t.Errorf("unexpected message body %q", captured["message"])
	}
}

func TestTextLKSender_GatewayRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"error","message":"invalid api key"}`))
	}))
	defer server.Close()

	sender, err := NewTextLKSender(senderConfig(server.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewTextLKSender: %v", err)
	}

	if _, err := sender.Send(context.Background(), "+94771234567", "code"); err == nil {
		t.Fatalf("expected error for rejected message")
	}
}

func TestTextLKSender_GatewayStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusBadGateway)
	}))
	defer server.Close()

	sender, err := NewTextLKSender(senderConfig(server.URL), zap.NewNop())
	if err != nil {
		t.Fatalf("NewTextLKSender: %v", err)
	}

	if _, err := sender.Send(context.Background(), "+94771234567", "code"); err == nil {
		t.Fatalf("expected error for non-2xx response")
	}
}

func TestTextLKSender_DryRun(t *testing.T) {
	sender, err := NewTextLKSender(config.SMSSettings{DryRun: true}, zap.NewNop())
	if err != nil {
		t.Fatalf("NewTextLKSender: %v", err)
	}

	result, err := sender.Send(context.Background(), "+94771234567", "code")
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if !result.Accepted {
		t.Fatalf("dry run should report acceptance")
	}
	if result.ProviderMessageID != "" {
		t.Fatalf("dry run should not produce a provider message id")
	}
}

func TestNewTextLKSender_RequiresCredentials(t *testing.T) {
	if _, err := NewTextLKSender(config.SMSSettings{APIURL: "https://app.text.lk/api/v3/sms/send"}, zap.NewNop()); err == nil {
		t.Fatalf("expected error for missing credentials")
	}
}
