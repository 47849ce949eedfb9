// Package telemetry emits protocol events to an event stream for offline
// analysis. Emission is always best-effort; callers log and ignore errors.
package telemetry

import (
	"context"

	"zt-totp/backend/internal/telemetry/domain"
)

// EventEmitter emits telemetry events. Best-effort; callers log and ignore
// errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *domain.Event) error
}
