// Package connection implements the per-client side of the protocol: one
// transport endpoint, its sync handshake, and the dispatch of inbound
// frames to the owning hub.
package connection

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/xid"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/domain"
	apperrors "github.com/noteboard/realtime/pkg/errors"
	"github.com/noteboard/realtime/pkg/hub"
	"github.com/noteboard/realtime/pkg/keepalive"
	"github.com/noteboard/realtime/pkg/transport"
	"github.com/noteboard/realtime/pkg/wire"
)

// Connection owns one transport endpoint end to end: it runs the sync
// handshake on connect, serializes its own inbound processing, and
// forwards disconnects to its parent hub.
type Connection struct {
	id         string
	transport  transport.Transport
	user       *domain.User
	hub        *hub.Hub
	keepalive  *keepalive.Monitor
	logger     *logging.Logger
	events     eventbus.Bus
	errHandler apperrors.Handler

	clientID  domain.ClientId
	synced    atomic.Bool
	closeOnce sync.Once
}

// New builds a connection around an already-upgraded transport. Call
// Start to run the handshake and begin reading.
func New(t transport.Transport, user *domain.User, h *hub.Hub, keepAliveInterval time.Duration, logger *logging.Logger, events eventbus.Bus) *Connection {
	id := xid.New().String()
	connLogger := logger.WithFields(map[string]any{"connection_id": id, "username": user.Username})
	c := &Connection{
		id:         id,
		transport:  t,
		user:       user,
		hub:        h,
		logger:     connLogger,
		events:     events,
		errHandler: apperrors.NewDefaultHandler(connLogger.Logger, events),
	}
	c.keepalive = keepalive.New(t, keepAliveInterval, logger, events, c.disconnect)
	return c
}

// ID returns the connection's generated identifier, used for log
// correlation only — it plays no role in the CRDT origin (the connection
// value itself) or the awareness client id (assigned by the hub).
func (c *Connection) ID() string {
	return c.id
}

// User returns the read-only identity resolved by the admitter.
func (c *Connection) User() *domain.User {
	return c.user
}

// IsSynced reports whether the connection has completed its initial sync
// handshake. Monotonic: once true, it is never reset to false.
func (c *Connection) IsSynced() bool {
	return c.synced.Load()
}

// Start registers the connection with its hub, sends the initial
// SYNC-STEP1 and awareness snapshot, starts the keep-alive monitor, and
// begins the read loop. It does not block.
func (c *Connection) Start() error {
	clientID, err := c.hub.Connect(c)
	if err != nil {
		return err
	}
	c.clientID = clientID

	syncFrame, awarenessFrame, err := c.hub.InitialFrames(c)
	if err != nil {
		c.hub.Remove(c)
		return err
	}
	if syncFrame != nil {
		c.Send(syncFrame)
	}
	c.Send(awarenessFrame)

	c.keepalive.Start()
	if c.events != nil {
		c.events.Publish(eventbus.NewEvent(eventbus.EventConnectionOpened, "connection", map[string]string{
			"connection_id": c.id,
			"username":      c.user.Username,
		}))
	}

	go c.readLoop()
	return nil
}

// Send implements hub.Peer: it no-ops if the transport is not open, and on
// write error closes the connection without propagating the error to the
// caller (the hub's broadcast loop must not be derailed by one dead peer).
func (c *Connection) Send(frame []byte) error {
	if c.transport.State() != transport.StateOpen {
		return domain.ErrConnectionClosed
	}
	if err := c.transport.Send(frame); err != nil {
		c.logger.Warn("transport send failed, disconnecting", "error", err)
		c.disconnect()
		return nil
	}
	return nil
}

// Close implements hub.Peer, used by Hub.Destroy to force every remaining
// connection closed.
func (c *Connection) Close() error {
	c.disconnect()
	return nil
}

// Disconnect idempotently closes the connection from the outside (e.g. the
// admitter aborting a half-constructed connection).
func (c *Connection) Disconnect() {
	c.disconnect()
}

func (c *Connection) readLoop() {
	defer c.disconnect()
	for {
		raw, err := c.transport.ReadMessage()
		if err != nil {
			return
		}
		c.handleFrame(raw)
	}
}

// handleFrame decodes and dispatches one inbound frame. Decode and handler
// errors are logged with context and do not close the connection — only a
// transport-level failure (observed via readLoop's own ReadMessage error)
// does that.
func (c *Connection) handleFrame(raw []byte) {
	msgType, dec, err := wire.Decode(raw)
	if err != nil {
		c.errHandler.HandleWithLogger(context.Background(), apperrors.Wrap(err, apperrors.ErrorTypeMalformedFrame, "MALFORMED_FRAME", "dropping malformed frame"), c.logger.Logger)
		return
	}

	becameSynced, err := c.hub.HandleIncoming(msgType, dec, c)
	if err != nil {
		wrapped := apperrors.Wrap(err, apperrors.ErrorTypeHandlerFault, "HUB_HANDLER_FAULT", "hub handler fault").
			WithDetails(msgType.String())
		c.errHandler.HandleWithLogger(context.Background(), wrapped, c.logger.Logger)
		return
	}
	if becameSynced {
		c.synced.Store(true)
		if c.events != nil {
			c.events.Publish(eventbus.NewEvent(eventbus.EventConnectionSynced, "connection", map[string]string{
				"connection_id": c.id,
			}))
		}
	}
}

func (c *Connection) disconnect() {
	c.closeOnce.Do(func() {
		c.keepalive.Stop()
		c.transport.Close()
		c.hub.Remove(c)
		if c.events != nil {
			c.events.Publish(eventbus.NewEvent(eventbus.EventConnectionClosed, "connection", map[string]string{
				"connection_id": c.id,
				"username":      c.user.Username,
			}))
		}
	})
}
