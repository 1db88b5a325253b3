package crdt

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/noteboard/realtime/pkg/domain"
)

// Awareness is a last-write-wins presence register keyed by client id.
// Automerge has no ephemeral-presence concept, so this is a small register
// maintained entirely on the server side, diffed on every Apply to produce
// the (added, updated, removed) triples the note hub broadcasts.
type Awareness struct {
	mu      sync.Mutex
	entries map[domain.ClientId]json.RawMessage
	nextID  atomic.Uint64
}

// NewAwareness returns an empty presence register.
func NewAwareness() *Awareness {
	return &Awareness{
		entries: make(map[domain.ClientId]json.RawMessage),
	}
}

// NextClientId assigns the next numeric client id, the id the CRDT layer
// hands out to a newly connected participant (spec §3).
func (a *Awareness) NextClientId() domain.ClientId {
	return domain.ClientId(a.nextID.Add(1))
}

// Apply merges a decoded awareness update (one client id to presence state,
// or to nil to remove that entry) into the register and reports which ids
// were newly added, which changed, and which were removed.
func (a *Awareness) Apply(update map[domain.ClientId]json.RawMessage) (added, updated, removed []domain.ClientId) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for id, state := range update {
		_, existed := a.entries[id]
		switch {
		case state == nil && existed:
			delete(a.entries, id)
			removed = append(removed, id)
		case state == nil:
			// removing an id that was never present: not a change.
		case existed:
			a.entries[id] = state
			updated = append(updated, id)
		default:
			a.entries[id] = state
			added = append(added, id)
		}
	}
	return added, updated, removed
}

// Remove drops a single client id, used when its connection disconnects
// without having sent an explicit removal.
func (a *Awareness) Remove(id domain.ClientId) (removed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.entries[id]; !ok {
		return false
	}
	delete(a.entries, id)
	return true
}

// Encode produces the wire payload for the given client ids, defaulting to
// every known client when ids is empty — the shape encodeAwareness needs.
// The wire encoding is plain JSON: no codec in the reference pack speaks
// automerge-style awareness, and the register's state is opaque presence
// data (cursor, color) that every client already round-trips as JSON.
func (a *Awareness) Encode(ids ...domain.ClientId) ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	snapshot := make(map[domain.ClientId]json.RawMessage)
	if len(ids) == 0 {
		for id, state := range a.entries {
			snapshot[id] = state
		}
	} else {
		for _, id := range ids {
			if state, ok := a.entries[id]; ok {
				snapshot[id] = state
			} else {
				snapshot[id] = nil
			}
		}
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("crdt: encode awareness: %w", err)
	}
	return payload, nil
}

// DecodeUpdate parses an AWARENESS frame payload back into the id->state
// map Apply expects.
func DecodeUpdate(payload []byte) (map[domain.ClientId]json.RawMessage, error) {
	var update map[domain.ClientId]json.RawMessage
	if err := json.Unmarshal(payload, &update); err != nil {
		return nil, fmt.Errorf("crdt: decode awareness update: %w", err)
	}
	for id, state := range update {
		if string(state) == "null" {
			update[id] = nil
		}
	}
	return update, nil
}
