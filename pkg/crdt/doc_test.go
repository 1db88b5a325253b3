package crdt

import "testing"

// pump drives the two-document sync loop the same way cmd/two/main.go does,
// but through the Doc wrapper's per-origin sync states instead of calling
// automerge-go directly.
func pump(t *testing.T, a, b *Doc, originOfA, originOfB any) {
	t.Helper()
	for {
		progressed := false

		for {
			msg, more := a.GenerateMessage(originOfB)
			if msg == nil {
				break
			}
			changed, err := b.ReceiveAndApply(originOfA, msg)
			if err != nil {
				t.Fatalf("b.ReceiveAndApply: %v", err)
			}
			_ = changed
			progressed = true
			if !more {
				break
			}
		}

		for {
			msg, more := b.GenerateMessage(originOfA)
			if msg == nil {
				break
			}
			_, err := a.ReceiveAndApply(originOfB, msg)
			if err != nil {
				t.Fatalf("a.ReceiveAndApply: %v", err)
			}
			progressed = true
			if !more {
				break
			}
		}

		if !progressed {
			return
		}
	}
}

func TestDocSnapshotTextReflectsSeed(t *testing.T) {
	d, err := New("hello")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	text, err := d.SnapshotText()
	if err != nil {
		t.Fatalf("SnapshotText: %v", err)
	}
	if text != "hello" {
		t.Fatalf("SnapshotText = %q, want %q", text, "hello")
	}
}

func TestDocSyncConvergesTwoReplicas(t *testing.T) {
	a, err := New("shared")
	if err != nil {
		t.Fatalf("New a: %v", err)
	}
	b, err := New("")
	if err != nil {
		t.Fatalf("New b: %v", err)
	}

	pump(t, a, b, "origin-a", "origin-b")

	textA, _ := a.SnapshotText()
	textB, _ := b.SnapshotText()
	if textA != textB {
		t.Fatalf("documents did not converge: a=%q b=%q", textA, textB)
	}
}

func TestDocReceiveAndApplyIsNoOpWhenAlreadyCurrent(t *testing.T) {
	a, err := New("x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	pump(t, a, b, "a", "b")

	before, _ := b.SnapshotText()
	pump(t, a, b, "a", "b")
	after, _ := b.SnapshotText()
	if before != after {
		t.Fatalf("text changed on a no-op sync: %q -> %q", before, after)
	}
}

func TestDocDestroyIsIdempotent(t *testing.T) {
	d, err := New("x")
	if err != nil {
		t.Fatal(err)
	}
	d.Destroy()
	d.Destroy()

	if _, err := d.SnapshotText(); err == nil {
		t.Fatal("SnapshotText after Destroy succeeded, want error")
	}
}

func TestDocDropSyncStateRemovesPeerState(t *testing.T) {
	a, err := New("x")
	if err != nil {
		t.Fatal(err)
	}
	b, err := New("")
	if err != nil {
		t.Fatal(err)
	}
	pump(t, a, b, "a", "b")

	a.DropSyncState("b")
	if len(a.states) != 0 {
		t.Fatalf("states = %v, want empty after drop", a.states)
	}
}
