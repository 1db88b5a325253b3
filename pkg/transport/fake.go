package transport

import "sync"

// Fake is an in-memory Transport double for exercising Connection, Hub, and
// Registry without a real network socket. Sent frames land in Outbox in
// call order; inbound frames are injected with Inject and drained by
// ReadMessage the same way a real socket would deliver them.
type Fake struct {
	mu      sync.Mutex
	state   State
	Outbox  [][]byte
	inbound chan []byte
	pongFn  func()
	pings   int
}

// NewFake returns an open fake transport.
func NewFake() *Fake {
	return &Fake{
		state:   StateOpen,
		inbound: make(chan []byte, 64),
	}
}

// Inject makes frame available to a future ReadMessage call, as if it had
// arrived over the wire.
func (f *Fake) Inject(frame []byte) {
	f.inbound <- frame
}

// Send implements Transport.
func (f *Fake) Send(frame []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateClosed {
		return ErrClosed
	}
	f.Outbox = append(f.Outbox, frame)
	return nil
}

// Ping implements Transport.
func (f *Fake) Ping() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateClosed {
		return ErrClosed
	}
	f.pings++
	return nil
}

// Pings reports how many times Ping has been called.
func (f *Fake) Pings() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

// DeliverPong invokes the handler installed by SetPongHandler, simulating
// an inbound pong frame.
func (f *Fake) DeliverPong() {
	f.mu.Lock()
	fn := f.pongFn
	f.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ReadMessage implements Transport. It blocks until a frame is injected or
// the transport closes.
func (f *Fake) ReadMessage() ([]byte, error) {
	frame, ok := <-f.inbound
	if !ok {
		return nil, ErrClosed
	}
	return frame, nil
}

// Close implements Transport.
func (f *Fake) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state == StateClosed {
		return nil
	}
	f.state = StateClosed
	close(f.inbound)
	return nil
}

// State implements Transport.
func (f *Fake) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// SetPongHandler implements Transport.
func (f *Fake) SetPongHandler(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pongFn = fn
}
