// Package audit records security-relevant auth events.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"storyloom/backend/internal/audit/domain"
	auditrepo "storyloom/backend/internal/audit/repository"
	"storyloom/backend/internal/telemetry"
)

// Actions written by the auth workflow.
const (
	ActionOTPRequested    = domain.ActionOTPRequested
	ActionSignupCompleted = domain.ActionSignupCompleted
	ActionLoginSuccess    = domain.ActionLoginSuccess
	ActionLoginFailure    = domain.ActionLoginFailure
	ActionPasswordReset   = domain.ActionPasswordReset
	ActionLogout          = domain.ActionLogout
)

// IPExtractor returns the client IP from the request context.
type IPExtractor func(context.Context) string

// AuditLogger writes a single audit event with explicit action/resource.
// LogEvent is best-effort: failures are logged and do not affect the caller.
type AuditLogger interface {
	LogEvent(ctx context.Context, userID string, action domain.Action, resource, metadata string)
}

// Logger implements AuditLogger using the audit repository, and mirrors each event to an
// EventEmitter when one is set.
type Logger struct {
	repo        auditrepo.Repository
	ipExtractor IPExtractor
	emitter     telemetry.EventEmitter
	logger      *zap.Logger
}

// NewLogger returns an AuditLogger that persists to repo and uses ipExtractor for client IP.
// ipExtractor and emitter may be nil; then IP is recorded as "unknown" and nothing is emitted.
func NewLogger(repo auditrepo.Repository, ipExtractor IPExtractor, emitter telemetry.EventEmitter, logger *zap.Logger) *Logger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Logger{repo: repo, ipExtractor: ipExtractor, emitter: emitter, logger: logger}
}

// LogEvent writes one audit log entry. Best-effort: errors are logged and not returned.
func (l *Logger) LogEvent(ctx context.Context, userID string, action domain.Action, resource, metadata string) {
	if l == nil || l.repo == nil {
		return
	}
	ip := "unknown"
	if l.ipExtractor != nil {
		if v := l.ipExtractor(ctx); v != "" {
			ip = v
		}
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    userID,
		Action:    action,
		Resource:  resource,
		IP:        ip,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		l.logger.Warn("audit: failed to log event",
			zap.String("action", string(action)),
			zap.String("resource", resource),
			zap.Error(err),
		)
	}
	telemetry.EmitAsync(l.emitter, l.logger, &telemetry.Event{
		UserID:    userID,
		EventType: string(action),
		Source:    resource,
		IP:        ip,
		Metadata:  []byte(metadata),
		CreatedAt: entry.CreatedAt,
	})
}
