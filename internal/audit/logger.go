// Package audit records protocol events (enrollments, verifications, login
// resolutions) for later inspection.
package audit

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"zt-totp/backend/internal/audit/domain"
	auditrepo "zt-totp/backend/internal/audit/repository"
)

type ctxKey int

const clientIPKey ctxKey = 0

// WithClientIP stores the request's client IP on the context for extraction
// at log time.
func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPKey, ip)
}

// ClientIPFromContext returns the client IP stored by WithClientIP, or
// "unknown" when absent.
func ClientIPFromContext(ctx context.Context) string {
	if ip, ok := ctx.Value(clientIPKey).(string); ok && ip != "" {
		return ip
	}
	return "unknown"
}

// Event is one audit record to write. UserID and DeviceID may be empty when
// the event has no resolved identity (e.g. user_not_found denials).
type Event struct {
	UserID   string
	DeviceID string
	RPID     string
	Action   string
	Outcome  string
	Metadata string
}

// AuditLogger writes a single audit event. Record is best-effort: failures
// are logged and do not affect the caller.
type AuditLogger interface {
	Record(ctx context.Context, e Event)
}

// Logger implements AuditLogger on top of the audit repository, pulling the
// client IP off the request context.
type Logger struct {
	repo auditrepo.Repository
}

// NewLogger returns an AuditLogger that persists to repo.
func NewLogger(repo auditrepo.Repository) *Logger {
	return &Logger{repo: repo}
}

// Record writes one audit log entry. Best-effort: errors are logged and not
// returned.
func (l *Logger) Record(ctx context.Context, e Event) {
	if l.repo == nil {
		return
	}
	entry := &domain.AuditLog{
		ID:        uuid.New().String(),
		UserID:    e.UserID,
		DeviceID:  e.DeviceID,
		RPID:      e.RPID,
		Action:    e.Action,
		Outcome:   e.Outcome,
		IP:        ClientIPFromContext(ctx),
		Metadata:  e.Metadata,
		CreatedAt: time.Now().UTC(),
	}
	if err := l.repo.Create(ctx, entry); err != nil {
		log.Printf("audit: failed to record %s/%s: %v", e.Action, e.Outcome, err)
	}
}

// Nop is an AuditLogger that discards events. Used in tests and tooling.
type Nop struct{}

func (Nop) Record(context.Context, Event) {}
