// Package hub implements the per-note rendezvous that owns a note's CRDT
// replica and presence register, fans out changes to every connected peer,
// and tears itself down once its last peer leaves.
package hub

import (
	"sync"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/crdt"
	"github.com/noteboard/realtime/pkg/domain"
	"github.com/noteboard/realtime/pkg/wire"
)

// Peer is the hub's view of a connected participant. *connection.Connection
// is the only production implementation; pkg/connection depends on this
// package rather than the other way around, so the two never import each
// other.
type Peer interface {
	// Send enqueues an already-framed outbound message. Implementations
	// must no-op (return an error, never panic) once the peer is closed.
	Send(frame []byte) error
	// IsSynced reports whether the peer has completed its initial sync
	// handshake and may receive incremental updates.
	IsSynced() bool
	// Close forcibly disconnects the peer, used by Destroy.
	Close() error
}

// Hub owns one note's live CRDT replica and the set of peers editing it.
type Hub struct {
	noteID    domain.NoteId
	doc       *crdt.Doc
	awareness *crdt.Awareness
	logger    *logging.Logger
	events    eventbus.Bus
	onDestroy func()

	mu            sync.RWMutex
	connections   map[Peer]struct{}
	handshakeDone map[Peer]bool
	clientIDs     map[Peer]domain.ClientId
	closing       bool
	destroyOnce   sync.Once
}

// New constructs a hub seeded with the note's saved content. onDestroy is
// called exactly once, after teardown, so the registry can deregister this
// hub's note id. events may be nil.
func New(noteID domain.NoteId, initialContent string, logger *logging.Logger, events eventbus.Bus, onDestroy func()) (*Hub, error) {
	doc, err := crdt.New(initialContent)
	if err != nil {
		return nil, err
	}
	h := &Hub{
		noteID:        noteID,
		doc:           doc,
		awareness:     crdt.NewAwareness(),
		logger:        logger.WithFields(map[string]any{"note_id": string(noteID)}),
		events:        events,
		onDestroy:     onDestroy,
		connections:   make(map[Peer]struct{}),
		handshakeDone: make(map[Peer]bool),
		clientIDs:     make(map[Peer]domain.ClientId),
	}
	if events != nil {
		events.Publish(eventbus.NewEvent(eventbus.EventHubCreated, "hub", map[string]string{
			"note_id": string(noteID),
		}))
	}
	return h, nil
}

// NoteID returns the id of the note this hub owns.
func (h *Hub) NoteID() domain.NoteId {
	return h.noteID
}

// Connect admits a peer into the hub's connection set and assigns it a
// fresh awareness client id. It fails with domain.ErrHubClosing if the hub
// has already begun tearing down (invariant I2).
func (h *Hub) Connect(p Peer) (domain.ClientId, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return 0, domain.ErrHubClosing
	}
	id := h.awareness.NextClientId()
	h.connections[p] = struct{}{}
	h.clientIDs[p] = id
	return id, nil
}

// Remove drops p from the connection set and clears its awareness entry.
// If that empties the set and the hub is not already closing, Destroy
// runs (invariant I5).
func (h *Hub) Remove(p Peer) {
	h.mu.Lock()
	_, present := h.connections[p]
	var clientID domain.ClientId
	if present {
		delete(h.connections, p)
		delete(h.handshakeDone, p)
		clientID = h.clientIDs[p]
		delete(h.clientIDs, p)
	}
	empty := present && len(h.connections) == 0 && !h.closing
	h.mu.Unlock()

	if present {
		h.doc.DropSyncState(p)
		if h.awareness.Remove(clientID) {
			h.broadcastAwareness([]domain.ClientId{clientID})
		}
	}
	if empty {
		h.Destroy()
	}
}

// DestroyIfEmpty destroys the hub only if it currently has no connections.
// It exists for callers that created (or reused) a hub via the registry but
// then failed before ever calling Connect — without it, a hub whose first
// connection attempt never completes would never reach Destroy through
// Remove, since Remove only fires on a connection that was actually added.
func (h *Hub) DestroyIfEmpty() {
	h.mu.RLock()
	empty := len(h.connections) == 0 && !h.closing
	h.mu.RUnlock()
	if empty {
		h.Destroy()
	}
}

// InitialFrames builds the two messages sent immediately on connect: a
// SYNC-STEP1 carrying the document's state for this peer's fresh sync
// state, and a full awareness snapshot.
func (h *Hub) InitialFrames(p Peer) (syncFrame, awarenessFrame []byte, err error) {
	if msg, _ := h.doc.GenerateMessage(p); msg != nil {
		syncFrame = wire.EncodeInitialSyncRequest(msg)
	}
	payload, err := h.awareness.Encode()
	if err != nil {
		return nil, nil, err
	}
	return syncFrame, wire.EncodeAwareness(payload), nil
}

// HandleIncoming routes one decoded frame to the CRDT document or the
// awareness register and reports whether this call caused the peer to
// become synced. Unknown message types (and the reserved HEDGEDOC tag)
// are logged and ignored.
func (h *Hub) HandleIncoming(msgType domain.MessageType, dec *wire.Decoder, origin Peer) (becameSynced bool, err error) {
	switch msgType {
	case domain.MessageTypeSync:
		return h.handleSync(dec, origin)
	case domain.MessageTypeAwareness:
		return false, h.handleAwareness(dec, origin)
	case domain.MessageTypeHedgedoc:
		h.logger.Debug("ignoring hedgedoc frame")
		return false, nil
	default:
		h.logger.Debug("ignoring unknown frame type", "type", msgType)
		return false, nil
	}
}

func (h *Hub) handleSync(dec *wire.Decoder, origin Peer) (becameSynced bool, err error) {
	// The leading sub-tag (STEP1/STEP2/UPDATE) is a presentation-layer
	// label this codec applies on the way out; automerge's own sync
	// message format is self-describing, so ReceiveMessage does not need
	// it. It is read here only to keep the decoder positioned correctly.
	if _, err := dec.Uvarint(); err != nil {
		return false, err
	}
	msgBytes, err := dec.Bytes()
	if err != nil {
		return false, err
	}

	changed, err := h.doc.ReceiveAndApply(origin, msgBytes)
	if err != nil {
		return false, err
	}

	sentAny := false
	for {
		resp, more := h.doc.GenerateMessage(origin)
		if resp == nil {
			break
		}
		if err := origin.Send(h.frameForOrigin(origin, resp)); err != nil {
			return false, err
		}
		sentAny = true
		if !more {
			break
		}
	}

	if changed {
		h.broadcastUpdate(origin)
	}

	return !sentAny, nil
}

// frameForOrigin labels the first synchronous reply ever sent to origin as
// STEP2 and every later one as UPDATE, the adaptation this binding uses in
// place of automerge's own (tagless) sync message format — see the CRDT
// Adapter design notes.
func (h *Hub) frameForOrigin(origin Peer, payload []byte) []byte {
	h.mu.Lock()
	first := !h.handshakeDone[origin]
	h.handshakeDone[origin] = true
	h.mu.Unlock()
	if first {
		return wire.EncodeSyncStep2(payload)
	}
	return wire.EncodeUpdate(payload)
}

// broadcastUpdate sends every other synced peer a freshly generated sync
// message for their own per-peer sync state. Automerge's sync protocol is
// point-to-point, so this is not "the same bytes to everyone" the way a
// single-diff broadcast would be — each peer's message reflects exactly
// what that peer is still missing.
func (h *Hub) broadcastUpdate(origin Peer) {
	for _, p := range h.snapshotConnections() {
		if p == origin || !p.IsSynced() {
			continue
		}
		for {
			resp, more := h.doc.GenerateMessage(p)
			if resp == nil {
				break
			}
			if err := p.Send(wire.EncodeUpdate(resp)); err != nil {
				h.logger.Warn("broadcast update failed", "error", err)
				break
			}
			if !more {
				break
			}
		}
	}
}

func (h *Hub) handleAwareness(dec *wire.Decoder, origin Peer) error {
	update, err := crdt.DecodeUpdate(dec.Rest())
	if err != nil {
		return err
	}
	added, updated, removed := h.awareness.Apply(update)
	ids := make([]domain.ClientId, 0, len(added)+len(updated)+len(removed))
	ids = append(ids, added...)
	ids = append(ids, updated...)
	ids = append(ids, removed...)
	if len(ids) == 0 {
		return nil
	}
	h.broadcastAwareness(ids)
	return nil
}

// broadcastAwareness sends every connection (including origin — echoing is
// harmless and simplifies client code) the current presence state for the
// ids that changed.
func (h *Hub) broadcastAwareness(ids []domain.ClientId) {
	payload, err := h.awareness.Encode(ids...)
	if err != nil {
		h.logger.Error("encode awareness broadcast failed", "error", err)
		return
	}
	frame := wire.EncodeAwareness(payload)
	for _, p := range h.snapshotConnections() {
		if err := p.Send(frame); err != nil {
			h.logger.Warn("broadcast awareness failed", "error", err)
		}
	}
}

// snapshotConnections copies the current connection set so broadcast can
// iterate without holding the lock across peer sends.
func (h *Hub) snapshotConnections() []Peer {
	h.mu.RLock()
	defer h.mu.RUnlock()
	peers := make([]Peer, 0, len(h.connections))
	for p := range h.connections {
		peers = append(peers, p)
	}
	return peers
}

// SnapshotText returns the note's current flattened text.
func (h *Hub) SnapshotText() (string, error) {
	return h.doc.SnapshotText()
}

// Destroy tears the hub down exactly once (invariant I3): it marks the hub
// closing, releases the CRDT document, closes every remaining connection,
// and finally invokes onDestroy so the registry can forget this note id.
// The awareness register is not cleared; its entries stay in place until
// the hub itself is no longer referenced.
func (h *Hub) Destroy() {
	h.destroyOnce.Do(func() {
		h.mu.Lock()
		h.closing = true
		peers := make([]Peer, 0, len(h.connections))
		for p := range h.connections {
			peers = append(peers, p)
		}
		h.connections = nil
		h.handshakeDone = nil
		h.mu.Unlock()

		h.doc.Destroy()

		for _, p := range peers {
			p.Close()
		}

		if h.events != nil {
			h.events.Publish(eventbus.NewEvent(eventbus.EventHubDestroyed, "hub", map[string]string{
				"note_id": string(h.noteID),
			}))
		}

		if h.onDestroy != nil {
			h.onDestroy()
		}
	})
}
