package mail

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storyloom/backend/internal/devotp"
)

// CaptureTransport stores codes in a devotp.Store instead of sending them. Dev mode only.
type CaptureTransport struct {
	store  devotp.Store
	logger *zap.Logger
	now    func() time.Time
}

// NewCaptureTransport returns a transport that captures codes into store.
func NewCaptureTransport(store devotp.Store, logger *zap.Logger) *CaptureTransport {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CaptureTransport{store: store, logger: logger, now: time.Now}
}

// SendOTP records msg.Code for GET /dev/otp.
func (t *CaptureTransport) SendOTP(ctx context.Context, msg OTPMessage) error {
	t.store.Put(ctx, msg.To, msg.Purpose, msg.Code, t.now().UTC().Add(msg.TTL))
	t.logger.Info("dev otp captured", zap.String("email", msg.To), zap.String("purpose", msg.Purpose))
	return nil
}
