package crdt

import (
	"encoding/json"
	"testing"

	"github.com/noteboard/realtime/pkg/domain"
)

func raw(t *testing.T, v string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func TestAwarenessApplyAddsNewEntry(t *testing.T) {
	a := NewAwareness()
	added, updated, removed := a.Apply(map[domain.ClientId]json.RawMessage{
		1: raw(t, "cursor-at-0"),
	})
	if len(added) != 1 || added[0] != 1 {
		t.Fatalf("added = %v, want [1]", added)
	}
	if len(updated) != 0 || len(removed) != 0 {
		t.Fatalf("unexpected updated=%v removed=%v", updated, removed)
	}
}

func TestAwarenessApplyUpdatesExistingEntry(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[domain.ClientId]json.RawMessage{1: raw(t, "a")})

	added, updated, removed := a.Apply(map[domain.ClientId]json.RawMessage{1: raw(t, "b")})
	if len(added) != 0 || len(removed) != 0 {
		t.Fatalf("unexpected added=%v removed=%v", added, removed)
	}
	if len(updated) != 1 || updated[0] != 1 {
		t.Fatalf("updated = %v, want [1]", updated)
	}
}

func TestAwarenessApplyNullStateRemoves(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[domain.ClientId]json.RawMessage{1: raw(t, "a")})

	_, _, removed := a.Apply(map[domain.ClientId]json.RawMessage{1: nil})
	if len(removed) != 1 || removed[0] != 1 {
		t.Fatalf("removed = %v, want [1]", removed)
	}

	payload, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if string(payload) != "{}" {
		t.Fatalf("encode after removal = %s, want {}", payload)
	}
}

func TestAwarenessRemoveUnknownIsNoop(t *testing.T) {
	a := NewAwareness()
	if removed := a.Remove(42); removed {
		t.Fatal("Remove(unknown) reported removed")
	}
}

func TestAwarenessEncodeDefaultsToAllKnownClients(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[domain.ClientId]json.RawMessage{1: raw(t, "a"), 2: raw(t, "b")})

	payload, err := a.Encode()
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeUpdate(payload)
	if err != nil {
		t.Fatal(err)
	}
	if len(decoded) != 2 {
		t.Fatalf("decoded = %v, want 2 entries", decoded)
	}
}

func TestAwarenessNextClientIdIsMonotonicAndUnique(t *testing.T) {
	a := NewAwareness()
	seen := make(map[domain.ClientId]bool)
	for i := 0; i < 100; i++ {
		id := a.NextClientId()
		if seen[id] {
			t.Fatalf("duplicate client id %d", id)
		}
		seen[id] = true
	}
}

func TestAwarenessEncodeDecodeRoundTrip(t *testing.T) {
	a := NewAwareness()
	a.Apply(map[domain.ClientId]json.RawMessage{7: raw(t, "x")})

	payload, err := a.Encode(7)
	if err != nil {
		t.Fatal(err)
	}
	decoded, err := DecodeUpdate(payload)
	if err != nil {
		t.Fatal(err)
	}
	if string(decoded[7]) != `"x"` {
		t.Fatalf("decoded[7] = %s, want \"x\"", decoded[7])
	}
}
