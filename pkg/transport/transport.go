// Package transport abstracts the upgraded byte-framed connection handed to
// the core by the HTTP layer (out of scope per the note-editing subsystem's
// purpose). The core depends only on the Transport interface; Websocket is
// the one concrete binding.
package transport

import "errors"

// State is the lifecycle state of a Transport.
type State int

const (
	StateOpen State = iota
	StateClosed
)

// ErrClosed is returned by Send/Ping when the transport is no longer open.
var ErrClosed = errors.New("transport: closed")

// Transport is a binary, full-duplex, message-oriented connection. The
// Connection in pkg/connection owns exactly one of these; the Keep-Alive
// Monitor in pkg/keepalive drives Ping against it on a schedule.
type Transport interface {
	// Send enqueues a binary message for the write pump. It no-ops (but
	// returns ErrClosed) if the transport is not open.
	Send(frame []byte) error

	// Ping writes a transport-level ping immediately, bypassing the send
	// queue. Write failures are fatal and close the transport.
	Ping() error

	// ReadMessage blocks for the next inbound binary message. It returns
	// an error once the transport is closed or the peer hangs up.
	ReadMessage() ([]byte, error)

	// Close idempotently tears down the transport.
	Close() error

	// State reports whether the transport is still open.
	State() State

	// SetPongHandler installs a callback invoked whenever a pong is
	// received, the signal the Keep-Alive Monitor uses to know the peer
	// is alive.
	SetPongHandler(func())
}
