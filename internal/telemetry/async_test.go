package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"zt-totp/backend/internal/telemetry/domain"
)

type mockEventEmitter struct {
	mu      sync.Mutex
	events  []*domain.Event
	emitErr error
}

func (m *mockEventEmitter) Emit(ctx context.Context, event *domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return m.emitErr
}

func (m *mockEventEmitter) getEvents() []*domain.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events
}

func TestEmitAsync_NilEmitter(t *testing.T) {
	// Must not panic.
	EmitAsync(nil, &domain.Event{EventType: "test"})
}

func TestEmitAsync_NilEvent(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, nil)
	time.Sleep(10 * time.Millisecond)
	if got := emitter.getEvents(); len(got) != 0 {
		t.Errorf("expected 0 events, got %d", len(got))
	}
}

func TestEmitAsync_SuccessfulEmit(t *testing.T) {
	emitter := &mockEventEmitter{}
	EmitAsync(emitter, &domain.Event{
		EventType: "zt_verify",
		UserID:    "user-1",
		RPID:      "acme",
		Outcome:   "ok",
		Source:    "api",
	})

	time.Sleep(100 * time.Millisecond)

	events := emitter.getEvents()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].EventType != "zt_verify" {
		t.Errorf("event type = %q, want zt_verify", events[0].EventType)
	}
	if events[0].UserID != "user-1" {
		t.Errorf("user id = %q, want user-1", events[0].UserID)
	}
}

func TestEmitAsync_ErrorDoesNotAffectCaller(t *testing.T) {
	emitter := &mockEventEmitter{emitErr: errors.New("broker down")}
	// Must not panic; the error is only logged.
	EmitAsync(emitter, &domain.Event{EventType: "test"})
	time.Sleep(100 * time.Millisecond)
}

func TestEmitAsync_ConcurrentAccess(t *testing.T) {
	emitter := &mockEventEmitter{}
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			EmitAsync(emitter, &domain.Event{EventType: "test"})
		}()
	}
	wg.Wait()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(emitter.getEvents()) == 10 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("expected 10 events, got %d", len(emitter.getEvents()))
}
