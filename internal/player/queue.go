/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import "time"

// TrackRef is an immutable pointer to a catalog track. The queue never
// stores track metadata; display data is resolved at render time.
type TrackRef struct {
	TrackID string    `json:"track_id"`
	AddedAt time.Time `json:"added_at"`
}

// Queue is the ordered list of track references for one session, together
// with the current-track pointer. Positions are 0-based and contiguous.
// Duplicate track IDs are allowed. Not safe for concurrent use; the owning
// Session serializes access.
type Queue struct {
	entries []TrackRef
	current int // index into entries, -1 when no current track
}

// NewQueue returns an empty queue with no current track.
func NewQueue() *Queue {
	return &Queue{current: -1}
}

// Len returns the number of queued tracks.
func (q *Queue) Len() int { return len(q.entries) }

// CurrentIndex returns the current-track position, or -1 when none.
func (q *Queue) CurrentIndex() int { return q.current }

// CurrentTrack returns the track at the current position.
func (q *Queue) CurrentTrack() (TrackRef, bool) {
	if q.current < 0 || q.current >= len(q.entries) {
		return TrackRef{}, false
	}
	return q.entries[q.current], true
}

func (q *Queue) setCurrent(i int) { q.current = i }

// Enqueue appends a track reference and returns its position.
func (q *Queue) Enqueue(trackID string) int {
	q.entries = append(q.entries, TrackRef{TrackID: trackID, AddedAt: time.Now()})
	return len(q.entries) - 1
}

// InsertAt inserts a track at position, shifting subsequent entries. A
// position equal to the length appends. Inserting at or before the current
// index advances the pointer so it keeps referring to the same track.
func (q *Queue) InsertAt(position int, trackID string) error {
	if position < 0 || position > len(q.entries) {
		return ErrOutOfRange
	}
	ref := TrackRef{TrackID: trackID, AddedAt: time.Now()}
	q.entries = append(q.entries, TrackRef{})
	copy(q.entries[position+1:], q.entries[position:])
	q.entries[position] = ref
	if q.current >= 0 && position <= q.current {
		q.current++
	}
	return nil
}

// RemoveAt removes the entry at position. The returned flag reports whether
// the current track changed: removing the current entry shifts the pointer
// onto the next track, clamping to the new tail, and empties the pointer
// when the queue runs out.
func (q *Queue) RemoveAt(position int) (currentChanged bool, err error) {
	if position < 0 || position >= len(q.entries) {
		return false, ErrOutOfRange
	}
	q.entries = append(q.entries[:position], q.entries[position+1:]...)

	switch {
	case q.current < 0:
		// nothing current, pointer untouched
	case position < q.current:
		q.current--
	case position == q.current:
		currentChanged = true
		if len(q.entries) == 0 {
			q.current = -1
		} else if q.current > len(q.entries)-1 {
			q.current = len(q.entries) - 1
		}
	}
	return currentChanged, nil
}

// Reorder moves the entry at fromPosition to toPosition, preserving the
// relative order of everything else. The current pointer follows the track
// it referred to before the move.
func (q *Queue) Reorder(fromPosition, toPosition int) error {
	n := len(q.entries)
	if fromPosition < 0 || fromPosition >= n || toPosition < 0 || toPosition >= n {
		return ErrOutOfRange
	}
	if fromPosition == toPosition {
		return nil
	}

	moved := q.entries[fromPosition]
	q.entries = append(q.entries[:fromPosition], q.entries[fromPosition+1:]...)
	q.entries = append(q.entries, TrackRef{})
	copy(q.entries[toPosition+1:], q.entries[toPosition:])
	q.entries[toPosition] = moved

	switch {
	case q.current == fromPosition:
		q.current = toPosition
	case fromPosition < q.current && toPosition >= q.current:
		q.current--
	case fromPosition > q.current && toPosition <= q.current && q.current >= 0:
		q.current++
	}
	return nil
}

// Clear empties the queue and discards the current pointer.
func (q *Queue) Clear() {
	q.entries = nil
	q.current = -1
}

// Snapshot returns a copy of the queued track references.
func (q *Queue) Snapshot() []TrackRef {
	out := make([]TrackRef, len(q.entries))
	copy(out, q.entries)
	return out
}

// Locate finds the position to play for a requested track: the first match
// at or after the current index, falling back to the first occurrence
// anywhere. Returns -1 when the track is not queued.
func (q *Queue) Locate(trackID string) int {
	start := q.current
	if start < 0 {
		start = 0
	}
	for i := start; i < len(q.entries); i++ {
		if q.entries[i].TrackID == trackID {
			return i
		}
	}
	for i := 0; i < start && i < len(q.entries); i++ {
		if q.entries[i].TrackID == trackID {
			return i
		}
	}
	return -1
}
