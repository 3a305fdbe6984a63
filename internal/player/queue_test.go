/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"errors"
	"testing"
)

func trackIDs(q *Queue) []string {
	snap := q.Snapshot()
	ids := make([]string, len(snap))
	for i, ref := range snap {
		ids[i] = ref.TrackID
	}
	return ids
}

func equalIDs(a, b []string) bool {
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

func TestEnqueueReturnsPosition(t *testing.T) {
	q := NewQueue()
	for i, id := range []string{"a", "b", "c"} {
		if pos := q.Enqueue(id); pos != i {
			t.Errorf("Enqueue(%q) = %d, want %d", id, pos, i)
		}
	}
	if q.Len() != 3 {
		t.Errorf("Len = %d, want 3", q.Len())
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex = %d, want -1 before play", q.CurrentIndex())
	}
}

func TestInsertAtBounds(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")

	if err := q.InsertAt(2, "b"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("InsertAt(2) err = %v, want ErrOutOfRange", err)
	}
	if err := q.InsertAt(-1, "b"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("InsertAt(-1) err = %v, want ErrOutOfRange", err)
	}
	if err := q.InsertAt(1, "b"); err != nil {
		t.Fatalf("InsertAt(1) append: %v", err)
	}
	if err := q.InsertAt(0, "c"); err != nil {
		t.Fatalf("InsertAt(0): %v", err)
	}
	if got := trackIDs(q); !equalIDs(got, []string{"c", "a", "b"}) {
		t.Errorf("order = %v, want [c a b]", got)
	}
}

func TestInsertBeforeCurrentShiftsPointer(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.setCurrent(1)

	if err := q.InsertAt(0, "x"); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}
	if q.CurrentIndex() != 2 {
		t.Errorf("CurrentIndex = %d, want 2", q.CurrentIndex())
	}
	if ref, _ := q.CurrentTrack(); ref.TrackID != "b" {
		t.Errorf("current track = %q, want b", ref.TrackID)
	}

	// inserting exactly at the current index also shifts
	if err := q.InsertAt(2, "y"); err != nil {
		t.Fatalf("InsertAt: %v", err)
	}
	if ref, _ := q.CurrentTrack(); ref.TrackID != "b" {
		t.Errorf("current track after insert-at-current = %q, want b", ref.TrackID)
	}
}

func TestRemoveAt(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")
	q.setCurrent(1)

	if _, err := q.RemoveAt(3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("RemoveAt(3) err = %v, want ErrOutOfRange", err)
	}

	// removing before the current entry shifts the pointer down
	changed, err := q.RemoveAt(0)
	if err != nil || changed {
		t.Fatalf("RemoveAt(0) = (%v, %v), want (false, nil)", changed, err)
	}
	if q.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex = %d, want 0", q.CurrentIndex())
	}

	// removing the current entry keeps the index, now pointing at the next track
	changed, err = q.RemoveAt(0)
	if err != nil || !changed {
		t.Fatalf("RemoveAt(current) = (%v, %v), want (true, nil)", changed, err)
	}
	if ref, _ := q.CurrentTrack(); ref.TrackID != "c" {
		t.Errorf("current track = %q, want c", ref.TrackID)
	}

	// removing the last remaining entry empties the pointer
	changed, err = q.RemoveAt(0)
	if err != nil || !changed {
		t.Fatalf("RemoveAt(last) = (%v, %v), want (true, nil)", changed, err)
	}
	if q.CurrentIndex() != -1 {
		t.Errorf("CurrentIndex = %d, want -1 on empty queue", q.CurrentIndex())
	}
}

func TestRemoveAtTailClampsPointer(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.Enqueue("b")
	q.setCurrent(1)

	changed, err := q.RemoveAt(1)
	if err != nil || !changed {
		t.Fatalf("RemoveAt(1) = (%v, %v), want (true, nil)", changed, err)
	}
	if q.CurrentIndex() != 0 {
		t.Errorf("CurrentIndex = %d, want clamp to 0", q.CurrentIndex())
	}
}

func TestRemoveInsertRoundTrip(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(id)
	}
	original := trackIDs(q)

	for pos := 0; pos < len(original); pos++ {
		removed := original[pos]
		if _, err := q.RemoveAt(pos); err != nil {
			t.Fatalf("RemoveAt(%d): %v", pos, err)
		}
		if err := q.InsertAt(pos, removed); err != nil {
			t.Fatalf("InsertAt(%d): %v", pos, err)
		}
		if got := trackIDs(q); !equalIDs(got, original) {
			t.Fatalf("round trip at %d gave %v, want %v", pos, got, original)
		}
	}
}

func TestReorder(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "c", "d"} {
		q.Enqueue(id)
	}
	q.setCurrent(1) // b

	if err := q.Reorder(0, 4); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Reorder(0,4) err = %v, want ErrOutOfRange", err)
	}

	// moving the current entry follows it
	if err := q.Reorder(1, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if got := trackIDs(q); !equalIDs(got, []string{"a", "c", "d", "b"}) {
		t.Fatalf("order = %v, want [a c d b]", got)
	}
	if q.CurrentIndex() != 3 {
		t.Errorf("CurrentIndex = %d, want 3", q.CurrentIndex())
	}

	// moving another entry across the current one adjusts the pointer
	if err := q.Reorder(0, 3); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if ref, _ := q.CurrentTrack(); ref.TrackID != "b" {
		t.Errorf("current track = %q, want b", ref.TrackID)
	}
	if err := q.Reorder(3, 0); err != nil {
		t.Fatalf("Reorder: %v", err)
	}
	if ref, _ := q.CurrentTrack(); ref.TrackID != "b" {
		t.Errorf("current track = %q, want b", ref.TrackID)
	}
}

func TestClear(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	q.setCurrent(0)
	q.Clear()
	if q.Len() != 0 || q.CurrentIndex() != -1 {
		t.Errorf("after Clear: len=%d current=%d", q.Len(), q.CurrentIndex())
	}
}

func TestSnapshotIsACopy(t *testing.T) {
	q := NewQueue()
	q.Enqueue("a")
	snap := q.Snapshot()
	snap[0].TrackID = "mutated"
	if ref := q.Snapshot()[0]; ref.TrackID != "a" {
		t.Errorf("queue entry = %q, snapshot mutation leaked", ref.TrackID)
	}
}

func TestLocatePrefersAtOrAfterCurrent(t *testing.T) {
	q := NewQueue()
	for _, id := range []string{"a", "b", "a", "c"} {
		q.Enqueue(id)
	}
	q.setCurrent(1)

	if got := q.Locate("a"); got != 2 {
		t.Errorf("Locate(a) = %d, want first match after current (2)", got)
	}
	if got := q.Locate("b"); got != 1 {
		t.Errorf("Locate(b) = %d, want 1", got)
	}
	if got := q.Locate("zz"); got != -1 {
		t.Errorf("Locate(zz) = %d, want -1", got)
	}

	q.setCurrent(3)
	if got := q.Locate("a"); got != 0 {
		t.Errorf("Locate(a) from tail = %d, want wrap to 0", got)
	}
}
