/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"time"

	"github.com/friendsincode/chorus/internal/events"
	"github.com/friendsincode/chorus/internal/telemetry"
	"github.com/rs/zerolog"
)

// Publisher is the event sink the controller announces playback changes to.
// Satisfied by events.Bus and by the distributed buses in internal/eventbus.
type Publisher interface {
	Publish(eventType events.EventType, payload events.Payload)
}

// Controller is the public command surface. It validates payloads before
// touching any lock, resolves the session through the registry, applies the
// transition, and returns a consistent snapshot. Catalog lookups for display
// metadata happen outside this layer.
type Controller struct {
	registry *Registry
	bus      Publisher
	logger   zerolog.Logger
}

// NewController creates a playback controller. bus may be nil to disable
// event publication.
func NewController(registry *Registry, bus Publisher, logger zerolog.Logger) *Controller {
	c := &Controller{
		registry: registry,
		bus:      bus,
		logger:   logger.With().Str("component", "player.controller").Logger(),
	}
	registry.OnEvict(c.publishEvicted)
	return c
}

// Registry exposes the underlying session registry for lifecycle wiring.
func (c *Controller) Registry() *Registry { return c.registry }

// Play starts playback, optionally jumping to the given track.
func (c *Controller) Play(sessionKey, trackID string) (Snapshot, error) {
	return c.dispatch(sessionKey, "play", func(s *Session) error {
		return s.Play(trackID)
	})
}

// Pause suspends playback.
func (c *Controller) Pause(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "pause", (*Session).Pause)
}

// Resume continues playback after a pause.
func (c *Controller) Resume(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "resume", (*Session).Resume)
}

// Stop halts playback.
func (c *Controller) Stop(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "stop", (*Session).Stop)
}

// Seek moves the playback position.
func (c *Controller) Seek(sessionKey string, positionMillis int64) (Snapshot, error) {
	if positionMillis < 0 {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "seek", func(s *Session) error {
		return s.Seek(time.Duration(positionMillis) * time.Millisecond)
	})
}

// SetVolume sets the session volume.
func (c *Controller) SetVolume(sessionKey string, volume int) (Snapshot, error) {
	if volume < 0 || volume > 100 {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "volume", func(s *Session) error {
		return s.SetVolume(volume)
	})
}

// SetShuffle toggles shuffle mode.
func (c *Controller) SetShuffle(sessionKey string, enabled bool) (Snapshot, error) {
	return c.dispatch(sessionKey, "shuffle", func(s *Session) error {
		return s.SetShuffle(enabled)
	})
}

// SetRepeatMode selects the repeat mode from its string form.
func (c *Controller) SetRepeatMode(sessionKey, mode string) (Snapshot, error) {
	parsed, err := ParseRepeatMode(mode)
	if err != nil {
		return Snapshot{}, err
	}
	return c.dispatch(sessionKey, "repeat", func(s *Session) error {
		return s.SetRepeatMode(parsed)
	})
}

// SkipNext advances to the next track.
func (c *Controller) SkipNext(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "next", (*Session).SkipNext)
}

// SkipPrevious steps back or restarts the current track.
func (c *Controller) SkipPrevious(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "previous", (*Session).SkipPrevious)
}

// Enqueue appends a track to the session queue.
func (c *Controller) Enqueue(sessionKey, trackID string) (Snapshot, error) {
	if trackID == "" {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "enqueue", func(s *Session) error {
		_, err := s.Enqueue(trackID)
		return err
	})
}

// InsertAt inserts a track at a queue position.
func (c *Controller) InsertAt(sessionKey string, position int, trackID string) (Snapshot, error) {
	if trackID == "" || position < 0 {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "insert", func(s *Session) error {
		return s.InsertAt(position, trackID)
	})
}

// RemoveAt removes the track at a queue position.
func (c *Controller) RemoveAt(sessionKey string, position int) (Snapshot, error) {
	if position < 0 {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "remove", func(s *Session) error {
		return s.RemoveAt(position)
	})
}

// Reorder moves a track between queue positions.
func (c *Controller) Reorder(sessionKey string, fromPosition, toPosition int) (Snapshot, error) {
	if fromPosition < 0 || toPosition < 0 {
		return Snapshot{}, ErrInvalidArgument
	}
	return c.dispatch(sessionKey, "reorder", func(s *Session) error {
		return s.Reorder(fromPosition, toPosition)
	})
}

// ClearQueue empties the session queue.
func (c *Controller) ClearQueue(sessionKey string) (Snapshot, error) {
	return c.dispatch(sessionKey, "clear", (*Session).Clear)
}

// Snapshot returns the current session view without mutating anything.
func (c *Controller) Snapshot(sessionKey string) Snapshot {
	return c.registry.GetOrCreate(sessionKey).Snapshot()
}

func (c *Controller) dispatch(sessionKey, command string, fn func(*Session) error) (Snapshot, error) {
	sess := c.registry.GetOrCreate(sessionKey)
	before := sess.Snapshot()

	if err := fn(sess); err != nil {
		telemetry.PlaybackCommands.WithLabelValues(command, "error").Inc()
		return Snapshot{}, err
	}
	snap := sess.Snapshot()
	telemetry.PlaybackCommands.WithLabelValues(command, "ok").Inc()
	c.publish(command, before, snap)
	return snap, nil
}

// publish announces what a successful command changed. Queue commands emit a
// queue event, transport changes a state event, and any change of the
// current track a track-change event on top.
func (c *Controller) publish(command string, before, after Snapshot) {
	if c.bus == nil {
		return
	}

	payload := events.Payload{
		"session_key": after.SessionKey,
		"command":     command,
		"snapshot":    after,
	}

	switch command {
	case "enqueue", "insert", "remove", "reorder", "clear":
		c.bus.Publish(events.EventPlaybackQueue, payload)
	default:
		c.bus.Publish(events.EventPlaybackState, payload)
	}

	if before.CurrentTrackID != after.CurrentTrackID || before.CurrentIndex != after.CurrentIndex {
		c.bus.Publish(events.EventPlaybackTrackChange, events.Payload{
			"session_key":       after.SessionKey,
			"command":           command,
			"previous_track_id": before.CurrentTrackID,
			"current_track_id":  after.CurrentTrackID,
			"current_index":     after.CurrentIndex,
		})
	}
}

func (c *Controller) publishEvicted(sessionKey string) {
	if c.bus == nil {
		return
	}
	c.bus.Publish(events.EventSessionEvicted, events.Payload{
		"session_key": sessionKey,
	})
}
