package errors

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/noteboard/realtime/internal/eventbus"
)

type recordingBus struct {
	*eventbus.InMemoryBus
	mu   sync.Mutex
	seen []eventbus.EventType
}

func newRecordingBus() *recordingBus {
	b := &recordingBus{InMemoryBus: eventbus.NewInMemoryBus(16)}
	b.SubscribeAll(func(e *eventbus.Event) {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.seen = append(b.seen, e.Type)
	})
	return b
}

func (b *recordingBus) count(want eventbus.EventType) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, t := range b.seen {
		if t == want {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultHandlerPublishesErrorEventForStructuredError(t *testing.T) {
	bus := newRecordingBus()
	h := NewDefaultHandler(discardLogger(), bus)

	h.Handle(context.Background(), New(ErrorTypeMalformedFrame, "BAD_FRAME", "could not decode frame"))

	if got := bus.count(eventbus.EventError); got != 1 {
		t.Fatalf("EventError published %d times, want 1", got)
	}
}

func TestDefaultHandlerPublishesErrorEventForPlainError(t *testing.T) {
	bus := newRecordingBus()
	h := NewDefaultHandler(discardLogger(), bus)

	h.Handle(context.Background(), io.ErrUnexpectedEOF)

	if got := bus.count(eventbus.EventError); got != 1 {
		t.Fatalf("EventError published %d times, want 1", got)
	}
}

func TestDefaultHandlerNilErrorPublishesNothing(t *testing.T) {
	bus := newRecordingBus()
	h := NewDefaultHandler(discardLogger(), bus)

	h.Handle(context.Background(), nil)

	if got := bus.count(eventbus.EventError); got != 0 {
		t.Fatalf("EventError published %d times for a nil error, want 0", got)
	}
}

func TestDefaultHandlerWithNilBusDoesNotPanic(t *testing.T) {
	h := NewDefaultHandler(discardLogger(), nil)
	h.Handle(context.Background(), New(ErrorTypeInternal, "X", "y"))
}
