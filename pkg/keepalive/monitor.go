// Package keepalive implements the per-connection liveness state machine
// described in spec §4.3, factored out of the transport's write pump (the
// teacher inlines the ticker and pong tracking directly in its websocket
// client) into its own component so it can be driven against any Transport.
package keepalive

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	apperrors "github.com/noteboard/realtime/pkg/errors"
	"github.com/noteboard/realtime/pkg/transport"
)

// State is one of the two states the monitor cycles between.
type State int

const (
	// Healthy means a pong has been observed since the last ping.
	Healthy State = iota
	// WaitingPong means a ping was sent and no pong has arrived yet.
	WaitingPong
)

// DefaultInterval is the default period between pings.
const DefaultInterval = 30 * time.Second

// Monitor pings a transport on a fixed interval and closes it the first
// time a full interval elapses without an intervening pong.
type Monitor struct {
	transport  transport.Transport
	interval   time.Duration
	logger     *logging.Logger
	errHandler apperrors.Handler
	events     eventbus.Bus
	onDead     func()

	state      atomic.Int32
	gotPong    atomic.Bool
	stop       chan struct{}
	stoppedSig chan struct{}
}

// New creates a monitor for transport, calling onDead exactly once if the
// peer ever misses a ping. It does not start ticking until Start is
// called. events may be nil.
func New(t transport.Transport, interval time.Duration, logger *logging.Logger, events eventbus.Bus, onDead func()) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	m := &Monitor{
		transport:  t,
		interval:   interval,
		logger:     logger,
		errHandler: apperrors.NewDefaultHandler(logger.Logger, events),
		events:     events,
		onDead:     onDead,
		stop:       make(chan struct{}),
		stoppedSig: make(chan struct{}),
	}
	m.state.Store(int32(Healthy))
	t.SetPongHandler(m.onPong)
	return m
}

// onPong marks that a pong was observed since the last tick.
func (m *Monitor) onPong() {
	m.gotPong.Store(true)
	m.state.Store(int32(Healthy))
}

// State reports the monitor's current liveness state.
func (m *Monitor) State() State {
	return State(m.state.Load())
}

// Start begins the ping ticker in the background. Cancel with Stop.
func (m *Monitor) Start() {
	go m.run()
}

// Stop cancels the timer. Idempotent.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
	default:
		close(m.stop)
	}
	<-m.stoppedSig
}

func (m *Monitor) run() {
	defer close(m.stoppedSig)

	// Send the first ping immediately, so a healthy peer that never
	// misses a beat is only ever one interval away from its next ping,
	// matching the "closed after exactly one missed interval" contract.
	if err := m.transport.Ping(); err != nil {
		m.declareDead(apperrors.Wrap(err, apperrors.ErrorTypeTransport, "KEEPALIVE_INITIAL_PING_FAILED", "keepalive initial ping failed"))
		return
	}
	m.state.Store(int32(WaitingPong))

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			if m.tick() {
				return
			}
		}
	}
}

// tick runs one liveness check and reports whether the connection was
// declared dead.
func (m *Monitor) tick() (dead bool) {
	if !m.gotPong.Swap(false) {
		m.declareDead(apperrors.New(apperrors.ErrorTypeTimeout, "KEEPALIVE_TIMEOUT", "keepalive timeout: no pong within interval"))
		return true
	}

	m.state.Store(int32(Healthy))
	if err := m.transport.Ping(); err != nil {
		m.declareDead(apperrors.Wrap(err, apperrors.ErrorTypeTransport, "KEEPALIVE_PING_FAILED", "keepalive ping failed"))
		return true
	}
	m.state.Store(int32(WaitingPong))
	return false
}

// declareDead routes err through the shared error handler, closes the
// transport, and calls onDead. Only a genuine no-pong timeout — not a ping
// I/O failure, which is its own distinct transport error — publishes
// EventKeepAliveTimeout, so subscribers can tell "peer stopped responding"
// apart from "the write failed".
func (m *Monitor) declareDead(err *apperrors.Error) {
	m.errHandler.Handle(context.Background(), err)
	if m.events != nil && err.Type == apperrors.ErrorTypeTimeout {
		m.events.Publish(eventbus.NewEvent(eventbus.EventKeepAliveTimeout, "keepalive", map[string]string{
			"code": err.Code,
		}))
	}

	m.transport.Close()
	if m.onDead != nil {
		// run() has not returned yet (the caller is tick(), called from
		// run() itself); invoking onDead synchronously here would let a
		// callback that calls Stop() deadlock waiting for run() to exit.
		go m.onDead()
	}
}
