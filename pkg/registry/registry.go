// Package registry implements the process-wide note-id to hub mapping,
// creating hubs on demand and coalescing concurrent creators of the same
// note the way golang.org/x/sync/singleflight is designed for.
package registry

import (
	"fmt"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/noteboard/realtime/internal/eventbus"
	"github.com/noteboard/realtime/internal/logging"
	"github.com/noteboard/realtime/pkg/domain"
	"github.com/noteboard/realtime/pkg/hub"
)

// Registry maps note id to the single live hub for that note.
type Registry struct {
	logger *logging.Logger
	events eventbus.Bus
	group  singleflight.Group

	mu   sync.RWMutex
	hubs map[domain.NoteId]*hub.Hub
}

// New returns an empty registry. events may be nil.
func New(logger *logging.Logger, events eventbus.Bus) *Registry {
	return &Registry{
		logger: logger,
		events: events,
		hubs:   make(map[domain.NoteId]*hub.Hub),
	}
}

// Get is a non-creating lookup.
func (r *Registry) Get(noteID domain.NoteId) (*hub.Hub, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.hubs[noteID]
	return h, ok
}

// GetOrCreate returns the live hub for noteID, creating one if none
// exists. loadInitialContent is invoked exactly once per distinct hub
// lifetime, even under concurrent callers for the same note id: the
// singleflight group ensures only one goroutine runs the closure below
// while every other concurrent caller for the same key blocks on its
// result, matching property P5. A creation failure is returned to every
// waiter and leaves the map clean — no half-constructed hub survives.
func (r *Registry) GetOrCreate(noteID domain.NoteId, loadInitialContent func() (string, error)) (*hub.Hub, error) {
	if h, ok := r.Get(noteID); ok {
		return h, nil
	}

	key := string(noteID)
	v, err, _ := r.group.Do(key, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// finished creating the hub between our Get above and entering
		// the critical section here.
		if h, ok := r.Get(noteID); ok {
			return h, nil
		}

		content, err := loadInitialContent()
		if err != nil {
			return nil, fmt.Errorf("registry: load initial content for %q: %w", noteID, err)
		}

		h, err := hub.New(noteID, content, r.logger, r.events, func() { r.remove(noteID) })
		if err != nil {
			return nil, fmt.Errorf("registry: create hub for %q: %w", noteID, err)
		}

		r.mu.Lock()
		r.hubs[noteID] = h
		r.mu.Unlock()

		return h, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*hub.Hub), nil
}

// remove is the on-destroy callback every hub is constructed with; it
// deregisters the hub exactly once the hub has torn itself down.
func (r *Registry) remove(noteID domain.NoteId) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.hubs, noteID)
}

// Remove destroys the hub for noteID if it currently has no connections,
// letting a caller that obtained a hub via GetOrCreate but then failed
// before admitting any connection clean it up immediately rather than
// leaving it registered forever (invariant I5 applies just as much to a
// hub that never got its first connection as to one that lost its last).
// It is a no-op if no hub is registered for noteID.
func (r *Registry) Remove(noteID domain.NoteId) {
	h, ok := r.Get(noteID)
	if !ok {
		return
	}
	h.DestroyIfEmpty()
}

// Len reports how many hubs are currently registered, for tests and
// diagnostics.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.hubs)
}
