// Package crdt adapts a shared markdown document and its presence state to
// the note hub. The document itself is bound to automerge-go; presence
// ("awareness") has no automerge equivalent and is implemented locally in
// awareness.go.
package crdt

import (
	"fmt"
	"sync"

	"github.com/automerge/automerge-go"
)

// TextChannel is the fixed field name under which the note's shared text
// lives in the document, mirrored on every replica.
const TextChannel = "codemirror"

// Doc wraps one automerge document plus the set of per-origin sync states
// needed to drive the two-step sync handshake with each connected peer.
// Automerge's sync protocol is inherently point-to-point — a SyncState
// tracks what one specific peer has seen — so unlike a single shared diff,
// every peer gets its own sync state, created on first contact and
// discarded when that peer disconnects.
type Doc struct {
	mu     sync.Mutex
	doc    *automerge.Doc
	states map[any]*automerge.SyncState
	once   sync.Once
	closed bool
}

// New creates a document seeded with the note's current saved content
// inserted at position 0 of the shared text field.
func New(initialContent string) (*Doc, error) {
	doc := automerge.New()
	if err := doc.Path(TextChannel).Set(automerge.NewText(initialContent)); err != nil {
		return nil, fmt.Errorf("crdt: seed initial content: %w", err)
	}
	if _, err := doc.Commit("seed"); err != nil {
		return nil, fmt.Errorf("crdt: commit seed: %w", err)
	}
	return &Doc{
		doc:    doc,
		states: make(map[any]*automerge.SyncState),
	}, nil
}

func (d *Doc) syncState(origin any) *automerge.SyncState {
	if ss, ok := d.states[origin]; ok {
		return ss
	}
	ss := automerge.NewSyncState(d.doc)
	d.states[origin] = ss
	return ss
}

// DropSyncState discards the per-peer sync state for origin. Called when a
// connection disconnects; without it the states map would leak one entry
// per connection that ever synced.
func (d *Doc) DropSyncState(origin any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.states, origin)
}

// ReceiveAndApply feeds an inbound automerge sync message into the sync
// state for origin and reports whether it advanced the document's heads —
// the signal the hub uses to decide whether other peers need a fresh
// update message.
func (d *Doc) ReceiveAndApply(origin any, msg []byte) (changed bool, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return false, fmt.Errorf("crdt: document destroyed")
	}

	before := d.doc.Heads()
	ss := d.syncState(origin)
	if _, err := ss.ReceiveMessage(msg); err != nil {
		return false, fmt.Errorf("crdt: receive sync message: %w", err)
	}
	after := d.doc.Heads()
	return !HeadsEqual(before, after), nil
}

// GenerateMessage asks the sync state for origin to produce its next
// outbound message, the way cmd/four/pkg.generateAndWriteMessage does for
// a single peer. It returns (nil, false) once that peer is caught up.
func (d *Doc) GenerateMessage(origin any) (msg []byte, more bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, false
	}
	ss := d.syncState(origin)
	m, valid := ss.GenerateMessage()
	if m == nil {
		return nil, false
	}
	return m.Bytes(), valid
}

// Heads returns the document's current change hashes, the same doc.Heads()
// cmd/two and cmd/four read to detect whether a peer's replica has
// advanced.
func (d *Doc) Heads() []automerge.ChangeHash {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	return d.doc.Heads()
}

// Fork returns an independent replica sharing this document's full change
// history, the same doc.Fork() cmd/four's server uses to hand a client a
// private copy. The fork keeps its own sync states, separate from d's.
func (d *Doc) Fork() (*Doc, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("crdt: document destroyed")
	}
	forked, err := d.doc.Fork()
	if err != nil {
		return nil, fmt.Errorf("crdt: fork: %w", err)
	}
	return &Doc{
		doc:    forked,
		states: make(map[any]*automerge.SyncState),
	}, nil
}

// Set assigns value at the named top-level path and commits the change,
// the same doc.Path(name).Set(value) call cmd/one and cmd/two drive
// directly against automerge.Doc. Production edits always arrive
// pre-encoded from a client's own sync message; this exists so tests and
// tools can produce a real, independently-committed change to sync out.
func (d *Doc) Set(path string, value any) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("crdt: document destroyed")
	}
	if err := d.doc.Path(path).Set(value); err != nil {
		return fmt.Errorf("crdt: set %q: %w", path, err)
	}
	if _, err := d.doc.Commit("set " + path); err != nil {
		return fmt.Errorf("crdt: commit set %q: %w", path, err)
	}
	return nil
}

// SnapshotText returns the current flattened text of the shared text
// field.
func (d *Doc) SnapshotText() (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return "", fmt.Errorf("crdt: document destroyed")
	}
	text, err := d.doc.Path(TextChannel).Text().Get()
	if err != nil {
		return "", fmt.Errorf("crdt: read text snapshot: %w", err)
	}
	return text, nil
}

// Destroy releases the document and every outstanding sync state.
// Idempotent: calling it more than once has the same effect as calling it
// once (property R3).
func (d *Doc) Destroy() {
	d.once.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		d.closed = true
		d.states = nil
		d.doc = nil
	})
}

// HeadsEqual reports whether two change-hash sets describe the same
// document state, the comparison cmd/four's server uses to decide whether
// a cached fork is still current.
func HeadsEqual(a, b []automerge.ChangeHash) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
