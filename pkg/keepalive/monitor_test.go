package keepalive

import (
	"sync"
	"testing"
	"time"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/transport"
)

func testLogger() *logging.Logger {
	return logging.New(logging.Config{Level: "error", Format: "text"})
}

// recordingBus captures every published event type synchronously.
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

func (b *recordingBus) contains(want eventbus.EventType) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, t := range b.seen {
		if t == want {
			return true
		}
	}
	return false
}

func TestMonitorSendsInitialPingOnStart(t *testing.T) {
	ft := transport.NewFake()
	m := New(ft, time.Hour, testLogger(), nil, nil)
	m.Start()
	defer m.Stop()

	deadline := time.Now().Add(time.Second)
	for ft.Pings() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if ft.Pings() != 1 {
		t.Fatalf("Pings() = %d, want 1", ft.Pings())
	}
	if m.State() != WaitingPong {
		t.Fatalf("State() = %v, want WaitingPong", m.State())
	}
}

func TestMonitorStaysAliveWhenPongsKeepArriving(t *testing.T) {
	ft := transport.NewFake()
	dead := make(chan struct{})
	m := New(ft, 20*time.Millisecond, testLogger(), nil, func() { close(dead) })
	m.Start()
	defer m.Stop()

	for i := 0; i < 5; i++ {
		ft.DeliverPong()
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-dead:
		t.Fatal("monitor declared connection dead despite regular pongs")
	default:
	}
	if ft.State() != transport.StateOpen {
		t.Fatal("transport was closed despite regular pongs")
	}
}

func TestMonitorClosesAfterExactlyOneMissedInterval(t *testing.T) {
	ft := transport.NewFake()
	dead := make(chan struct{})
	m := New(ft, 20*time.Millisecond, testLogger(), nil, func() { close(dead) })
	m.Start()
	defer m.Stop()

	select {
	case <-dead:
	case <-time.After(time.Second):
		t.Fatal("monitor never declared the connection dead")
	}

	if ft.State() != transport.StateClosed {
		t.Fatal("transport was not closed after keepalive timeout")
	}
}

func TestMonitorTimeoutPublishesKeepAliveTimeoutEvent(t *testing.T) {
	ft := transport.NewFake()
	bus := newRecordingBus()
	dead := make(chan struct{})
	m := New(ft, 20*time.Millisecond, testLogger(), bus, func() { close(dead) })
	m.Start()
	defer m.Stop()

	select {
	case <-dead:
	case <-time.After(time.Second):
		t.Fatal("monitor never declared the connection dead")
	}

	if !bus.contains(eventbus.EventKeepAliveTimeout) {
		t.Fatal("no EventKeepAliveTimeout was published after a missed interval")
	}
}

func TestMonitorInitialPingFailureDoesNotPublishTimeoutEvent(t *testing.T) {
	ft := transport.NewFake()
	ft.Close() // Ping on a closed transport fails, but it's an I/O failure, not a timeout.
	bus := newRecordingBus()
	dead := make(chan struct{})
	m := New(ft, time.Hour, testLogger(), bus, func() { close(dead) })
	m.Start()
	defer m.Stop()

	select {
	case <-dead:
	case <-time.After(time.Second):
		t.Fatal("monitor never declared the connection dead")
	}

	if bus.contains(eventbus.EventKeepAliveTimeout) {
		t.Fatal("a ping I/O failure published EventKeepAliveTimeout, want only genuine no-pong timeouts to")
	}
}
