/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"math/rand"
	"time"
)

// Status is the transport state of a session.
type Status int

const (
	StatusStopped Status = iota
	StatusPlaying
	StatusPaused
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	default:
		return "stopped"
	}
}

// RepeatMode selects what happens at track and queue boundaries.
type RepeatMode string

const (
	RepeatOff   RepeatMode = "off"
	RepeatTrack RepeatMode = "track"
	RepeatQueue RepeatMode = "queue"
)

// Valid reports whether the mode is a member of the closed set.
func (m RepeatMode) Valid() bool {
	switch m {
	case RepeatOff, RepeatTrack, RepeatQueue:
		return true
	}
	return false
}

// ParseRepeatMode converts user input to a RepeatMode.
func ParseRepeatMode(s string) (RepeatMode, error) {
	m := RepeatMode(s)
	if !m.Valid() {
		return "", ErrInvalidArgument
	}
	return m, nil
}

// State holds the transport and mode state for one session. Not safe for
// concurrent use; the owning Session serializes access.
type State struct {
	Status   Status
	Position time.Duration
	Volume   int
	Shuffle  bool
	Repeat   RepeatMode

	// order is a permutation of queue positions driving skip order while
	// shuffle is on. Regenerated whenever the queue length changes.
	order []int
	rng   *rand.Rand
}

// NewState returns a stopped state at full volume with repeat off.
func NewState() *State {
	return &State{
		Status: StatusStopped,
		Volume: 100,
		Repeat: RepeatOff,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (st *State) regenOrder(n int) {
	if n == 0 {
		st.order = nil
		return
	}
	st.order = st.rng.Perm(n)
}

// syncOrder regenerates the shuffle permutation when the queue length no
// longer matches it. No-op while shuffle is off.
func (st *State) syncOrder(n int) {
	if !st.Shuffle {
		st.order = nil
		return
	}
	if len(st.order) != n {
		st.regenOrder(n)
	}
}

// orderPos returns the position of queue index i within the shuffle order.
func (st *State) orderPos(i int) int {
	for pos, idx := range st.order {
		if idx == i {
			return pos
		}
	}
	return -1
}
