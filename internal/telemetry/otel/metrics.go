package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "storyloom/otp"

// OTPMetrics counts passcode issuance and verification outcomes.
type OTPMetrics struct {
	issued   metric.Int64Counter
	verified metric.Int64Counter
	failures metric.Int64Counter
}

// NewOTPMetrics registers the OTP counters on mp.
func NewOTPMetrics(mp metric.MeterProvider) (*OTPMetrics, error) {
	m := mp.Meter(meterName)
	issued, err := m.Int64Counter("otp.issued", metric.WithDescription("Passcodes issued and dispatched"))
	if err != nil {
		return nil, err
	}
	verified, err := m.Int64Counter("otp.verified", metric.WithDescription("Passcodes successfully verified"))
	if err != nil {
		return nil, err
	}
	failures, err := m.Int64Counter("otp.verify_failures", metric.WithDescription("Rejected passcode submissions"))
	if err != nil {
		return nil, err
	}
	return &OTPMetrics{issued: issued, verified: verified, failures: failures}, nil
}

// Issued records one dispatched passcode for purpose.
func (m *OTPMetrics) Issued(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.issued.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// Verified records one successful verification for purpose.
func (m *OTPMetrics) Verified(ctx context.Context, purpose string) {
	if m == nil {
		return
	}
	m.verified.Add(ctx, 1, metric.WithAttributes(attribute.String("purpose", purpose)))
}

// VerifyFailed records one rejected verification with its reason (not_found, expired, invalid, attempts_exceeded).
func (m *OTPMetrics) VerifyFailed(ctx context.Context, purpose, reason string) {
	if m == nil {
		return
	}
	m.failures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("purpose", purpose),
		attribute.String("reason", reason),
	))
}
