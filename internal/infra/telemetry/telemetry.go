package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/safedrive/phone-verify/internal/infra/config"
)

// Provider represents a telemetry provider handle.
type Provider struct {
	requestCounter prometheus.Counter
	otpsIssued     prometheus.Counter
	otpsVerified   prometheus.Counter
	confirmFailed  *prometheus.CounterVec
	smsDeliveries  *prometheus.CounterVec
	sweepDeleted   prometheus.Counter
}

// Attach configures telemetry exporters and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		requestCounter: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}),
		otpsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "otps_issued_total",
			Help:      "Total number of OTPs issued",
		}),
		otpsVerified: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "otps_verified_total",
			Help:      "Total number of successful phone verifications",
		}),
		confirmFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "confirm_failures_total",
			Help:      "Total number of rejected confirmation attempts by reason",
		}, []string{"reason"}),
		smsDeliveries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "sms_deliveries_total",
			Help:      "Total number of SMS delivery attempts by result",
		}, []string{"result"}),
		sweepDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "verify",
			Name:      "expired_verifications_deleted_total",
			Help:      "Total number of expired verification records removed by the sweep",
		}),
	}, nil
}

// RequestCounter exposes the HTTP request metric.
func (p *Provider) RequestCounter() prometheus.Counter {
	if p == nil {
		return prometheus.NewCounter(prometheus.CounterOpts{})
	}
	return p.requestCounter
}

// OtpIssued records a successfully created verification.
func (p *Provider) OtpIssued() {
	if p == nil {
		return
	}
	p.otpsIssued.Inc()
}

// OtpVerified records a successful confirmation.
func (p *Provider) OtpVerified() {
	if p == nil {
		return
	}
	p.otpsVerified.Inc()
}

// ConfirmFailed records a rejected confirmation attempt.
func (p *Provider) ConfirmFailed(reason string) {
	if p == nil {
		return
	}
	p.confirmFailed.WithLabelValues(reason).Inc()
}

// SmsDelivery records an SMS delivery outcome.
func (p *Provider) SmsDelivery(result string) {
	if p == nil {
		return
	}
	p.smsDeliveries.WithLabelValues(result).Inc()
}

// SweepDeleted records how many expired records a sweep pass removed.
func (p *Provider) SweepDeleted(count int) {
	if p == nil || count <= 0 {
		return
	}
	p.sweepDeleted.Add(float64(count))
}
