/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"sync"
	"sync/atomic"
	"time"
)

// Session owns one Queue and one State for a single listener. It is the
// unit of concurrency control: mutations are exclusive, snapshots run
// concurrently with each other but never interleave with a mutation.
type Session struct {
	key   string
	mu    sync.RWMutex
	queue *Queue
	state *State

	// unix nanos of the last command, updated on reads too so that
	// snapshot polling keeps a session alive
	lastActivity atomic.Int64

	restartThreshold time.Duration
}

// NewSession creates a fresh session for the given key.
func NewSession(key string, restartThreshold time.Duration) *Session {
	s := &Session{
		key:              key,
		queue:            NewQueue(),
		state:            NewState(),
		restartThreshold: restartThreshold,
	}
	s.touch()
	return s
}

// Key returns the session key.
func (s *Session) Key() string { return s.key }

// LastActivity returns the time of the most recent command.
func (s *Session) LastActivity() time.Time {
	return time.Unix(0, s.lastActivity.Load())
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixNano())
}

// Enqueue appends a track and returns its queue position.
func (s *Session) Enqueue(trackID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	pos := s.queue.Enqueue(trackID)
	s.state.syncOrder(s.queue.Len())
	return pos, nil
}

// InsertAt inserts a track at the given position.
func (s *Session) InsertAt(position int, trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if err := s.queue.InsertAt(position, trackID); err != nil {
		return err
	}
	s.state.syncOrder(s.queue.Len())
	return nil
}

// RemoveAt removes the track at the given position. Removing the current
// entry moves playback onto the next track; emptying the queue stops it.
func (s *Session) RemoveAt(position int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	currentChanged, err := s.queue.RemoveAt(position)
	if err != nil {
		return err
	}
	s.state.syncOrder(s.queue.Len())
	if currentChanged {
		s.state.Position = 0
		if s.queue.Len() == 0 {
			s.state.Status = StatusStopped
		}
	}
	return nil
}

// Reorder moves a queue entry; the current pointer follows its track.
func (s *Session) Reorder(fromPosition, toPosition int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	return s.queue.Reorder(fromPosition, toPosition)
}

// Clear empties the queue and stops playback.
func (s *Session) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.queue.Clear()
	s.state.syncOrder(0)
	s.state.Status = StatusStopped
	s.state.Position = 0
	return nil
}

// Play starts playback. With a track ID it locates that track in the queue,
// preferring the first match at or after the current position, and restarts
// it from zero. Without one it resumes the current track, or starts at the
// head of the queue when nothing was current yet.
func (s *Session) Play(trackID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if trackID != "" {
		idx := s.queue.Locate(trackID)
		if idx < 0 {
			return ErrTrackNotInQueue
		}
		s.queue.setCurrent(idx)
		s.state.Position = 0
	} else {
		if s.queue.Len() == 0 {
			return ErrEmptyQueue
		}
		if s.queue.CurrentIndex() < 0 {
			s.queue.setCurrent(0)
			s.state.Position = 0
		}
	}
	s.state.Status = StatusPlaying
	return nil
}

// Pause suspends playback, preserving the position. Pausing an already
// paused session is a no-op; pausing a stopped one is an error.
func (s *Session) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.state.Status {
	case StatusPlaying:
		s.state.Status = StatusPaused
		return nil
	case StatusPaused:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Resume continues playback from a pause. Resuming while already playing is
// a no-op; resuming a stopped session is an error.
func (s *Session) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	switch s.state.Status {
	case StatusPaused:
		s.state.Status = StatusPlaying
		return nil
	case StatusPlaying:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// Stop halts playback from any state and rewinds to zero. The current-track
// pointer is retained so a later bare Play picks up the same track.
func (s *Session) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	s.state.Status = StatusStopped
	s.state.Position = 0
	return nil
}

// Seek moves the playback position. Only valid while playing or paused.
func (s *Session) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if position < 0 {
		return ErrInvalidArgument
	}
	if s.state.Status == StatusStopped {
		return ErrInvalidTransition
	}
	s.state.Position = position
	return nil
}

// SetVolume sets the volume in the 0-100 range.
func (s *Session) SetVolume(volume int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if volume < 0 || volume > 100 {
		return ErrInvalidArgument
	}
	s.state.Volume = volume
	return nil
}

// SetShuffle enables or disables shuffle. Enabling generates a fresh random
// permutation of queue positions; the current track keeps playing and is not
// forced to the front. Disabling reverts skips to linear order.
func (s *Session) SetShuffle(enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if enabled == s.state.Shuffle {
		return nil
	}
	s.state.Shuffle = enabled
	if enabled {
		s.state.regenOrder(s.queue.Len())
	} else {
		s.state.order = nil
	}
	return nil
}

// SetRepeatMode selects the repeat mode.
func (s *Session) SetRepeatMode(mode RepeatMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	if !mode.Valid() {
		return ErrInvalidArgument
	}
	s.state.Repeat = mode
	return nil
}

// SkipNext advances to the next track per the active repeat and shuffle
// modes. With repeat-track it replays the current track. Past the end it
// wraps under repeat-queue and stops otherwise, leaving the pointer on the
// last track played.
func (s *Session) SkipNext() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	n := s.queue.Len()
	if n == 0 {
		return ErrEmptyQueue
	}
	cur := s.queue.CurrentIndex()
	if cur < 0 {
		s.startAtHead()
		return nil
	}

	switch s.state.Repeat {
	case RepeatTrack:
		s.state.Position = 0
		return nil
	case RepeatQueue, RepeatOff:
	}

	if !s.state.Shuffle {
		next := cur + 1
		if next > n-1 {
			if s.state.Repeat == RepeatQueue {
				next = 0
			} else {
				s.state.Status = StatusStopped
				s.state.Position = 0
				return nil
			}
		}
		s.queue.setCurrent(next)
		s.state.Position = 0
		return nil
	}

	s.state.syncOrder(n)
	pos := s.state.orderPos(cur)
	if pos < 0 || pos == len(s.state.order)-1 {
		if s.state.Repeat == RepeatQueue {
			s.state.regenOrder(n)
			s.queue.setCurrent(s.state.order[0])
			s.state.Position = 0
			return nil
		}
		s.state.Status = StatusStopped
		s.state.Position = 0
		return nil
	}
	s.queue.setCurrent(s.state.order[pos+1])
	s.state.Position = 0
	return nil
}

// SkipPrevious restarts the current track when playback is past the restart
// threshold, and steps back otherwise. At the head of the order it wraps
// under repeat-queue and restarts the current track otherwise.
func (s *Session) SkipPrevious() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	n := s.queue.Len()
	if n == 0 {
		return ErrEmptyQueue
	}
	cur := s.queue.CurrentIndex()
	if cur < 0 {
		s.startAtHead()
		return nil
	}

	if s.state.Repeat == RepeatTrack || s.state.Position > s.restartThreshold {
		s.state.Position = 0
		return nil
	}

	if !s.state.Shuffle {
		prev := cur - 1
		if prev < 0 {
			if s.state.Repeat == RepeatQueue {
				prev = n - 1
			} else {
				s.state.Position = 0
				return nil
			}
		}
		s.queue.setCurrent(prev)
		s.state.Position = 0
		return nil
	}

	s.state.syncOrder(n)
	pos := s.state.orderPos(cur)
	if pos <= 0 {
		if s.state.Repeat == RepeatQueue && len(s.state.order) > 0 {
			s.queue.setCurrent(s.state.order[len(s.state.order)-1])
			s.state.Position = 0
			return nil
		}
		s.state.Position = 0
		return nil
	}
	s.queue.setCurrent(s.state.order[pos-1])
	s.state.Position = 0
	return nil
}

// startAtHead points playback at the first track of the effective order
// without changing the transport state. Used when a skip arrives before any
// track was ever current.
func (s *Session) startAtHead() {
	if s.state.Shuffle {
		s.state.syncOrder(s.queue.Len())
		if len(s.state.order) > 0 {
			s.queue.setCurrent(s.state.order[0])
		}
	} else {
		s.queue.setCurrent(0)
	}
	s.state.Position = 0
}

// Snapshot returns a consistent read-only view of the session.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	s.touch()

	snap := Snapshot{
		SessionKey:     s.key,
		CurrentIndex:   s.queue.CurrentIndex(),
		IsPlaying:      s.state.Status == StatusPlaying,
		IsPaused:       s.state.Status == StatusPaused,
		PositionMillis: s.state.Position.Milliseconds(),
		Volume:         s.state.Volume,
		ShuffleEnabled: s.state.Shuffle,
		RepeatMode:     s.state.Repeat,
		Queue:          s.queue.Snapshot(),
	}
	if ref, ok := s.queue.CurrentTrack(); ok {
		snap.CurrentTrackID = ref.TrackID
	}
	return snap
}
