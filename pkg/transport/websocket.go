package transport

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrSendBufferFull is returned by Send when the write queue cannot absorb
// another frame without blocking.
var ErrSendBufferFull = errors.New("transport: send buffer is full")

// Websocket is the gorilla/websocket binding for Transport. It owns the
// write side as a background pump draining a buffered channel, mirroring
// the split used throughout this codebase: callers enqueue with Send and
// never block on the network themselves, while ReadMessage is a direct,
// blocking call the owner drives from its own read loop.
type Websocket struct {
	conn     *websocket.Conn
	opts     Options
	sendChan chan []byte
	closed   atomic.Bool
	closeMu  sync.Once
}

// NewWebsocket wraps an already-upgraded gorilla connection and starts its
// write pump.
func NewWebsocket(conn *websocket.Conn, opts Options) *Websocket {
	w := &Websocket{
		conn:     conn,
		opts:     opts,
		sendChan: make(chan []byte, opts.SendQueueSize),
	}

	conn.SetReadLimit(opts.MaxMessageSize)
	conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(opts.ReadTimeout))
		return nil
	})

	go w.writePump()
	return w
}

// SetPongHandler installs a pong handler that renews the read deadline and
// then calls fn, so the Keep-Alive Monitor learns about pongs without
// taking over deadline management from the transport itself.
func (w *Websocket) SetPongHandler(fn func()) {
	w.conn.SetPongHandler(func(string) error {
		w.conn.SetReadDeadline(time.Now().Add(w.opts.ReadTimeout))
		fn()
		return nil
	})
}

// Send implements Transport.
func (w *Websocket) Send(frame []byte) error {
	if w.closed.Load() {
		return ErrClosed
	}
	select {
	case w.sendChan <- frame:
		return nil
	default:
		return ErrSendBufferFull
	}
}

// Ping implements Transport.
func (w *Websocket) Ping() error {
	if w.closed.Load() {
		return ErrClosed
	}
	w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
	if err := w.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		w.Close()
		return err
	}
	return nil
}

// ReadMessage implements Transport.
func (w *Websocket) ReadMessage() ([]byte, error) {
	for {
		mt, data, err := w.conn.ReadMessage()
		if err != nil {
			w.Close()
			return nil, err
		}
		if mt != websocket.BinaryMessage {
			continue
		}
		return data, nil
	}
}

// Close implements Transport.
func (w *Websocket) Close() error {
	var err error
	w.closeMu.Do(func() {
		w.closed.Store(true)
		close(w.sendChan)
		err = w.conn.Close()
	})
	return err
}

// State implements Transport.
func (w *Websocket) State() State {
	if w.closed.Load() {
		return StateClosed
	}
	return StateOpen
}

func (w *Websocket) writePump() {
	for frame := range w.sendChan {
		w.conn.SetWriteDeadline(time.Now().Add(w.opts.WriteTimeout))
		if err := w.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			w.Close()
			return
		}
	}
}
