/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"errors"
	"testing"
	"time"

	"github.com/friendsincode/chorus/internal/events"
	"github.com/rs/zerolog"
)

func newTestController(bus Publisher) *Controller {
	reg := NewRegistry(30*time.Minute, 3*time.Second, zerolog.Nop())
	return NewController(reg, bus, zerolog.Nop())
}

func TestControllerValidatesBeforeSessionWork(t *testing.T) {
	c := newTestController(nil)

	cases := []struct {
		name string
		call func() error
	}{
		{"negative seek", func() error { _, err := c.Seek("u", -5); return err }},
		{"volume too high", func() error { _, err := c.SetVolume("u", 150); return err }},
		{"volume negative", func() error { _, err := c.SetVolume("u", -1); return err }},
		{"empty enqueue", func() error { _, err := c.Enqueue("u", ""); return err }},
		{"bad repeat mode", func() error { _, err := c.SetRepeatMode("u", "sometimes"); return err }},
		{"negative insert", func() error { _, err := c.InsertAt("u", -1, "a"); return err }},
		{"negative remove", func() error { _, err := c.RemoveAt("u", -2); return err }},
	}
	for _, tc := range cases {
		if err := tc.call(); !errors.Is(err, ErrInvalidArgument) {
			t.Errorf("%s: err = %v, want ErrInvalidArgument", tc.name, err)
		}
	}
}

func TestControllerCommandFlow(t *testing.T) {
	c := newTestController(nil)

	if _, err := c.Play("u", ""); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("Play on empty queue err = %v, want ErrEmptyQueue", err)
	}

	snap, err := c.Enqueue("u", "track-a")
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if len(snap.Queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(snap.Queue))
	}

	snap, err = c.Play("u", "")
	if err != nil {
		t.Fatalf("Play: %v", err)
	}
	if snap.CurrentTrackID != "track-a" || !snap.IsPlaying {
		t.Errorf("snapshot = %+v, want playing track-a", snap)
	}

	if _, err := c.SetRepeatMode("u", "queue"); err != nil {
		t.Fatalf("SetRepeatMode: %v", err)
	}
	if got := c.Snapshot("u").RepeatMode; got != RepeatQueue {
		t.Errorf("RepeatMode = %q, want queue", got)
	}
}

func TestControllerSessionsAreIndependent(t *testing.T) {
	c := newTestController(nil)

	if _, err := c.Enqueue("alice", "a"); err != nil {
		t.Fatal(err)
	}
	if _, err := c.Play("alice", ""); err != nil {
		t.Fatal(err)
	}

	// bob's error leaves alice untouched
	if _, err := c.Play("bob", ""); !errors.Is(err, ErrEmptyQueue) {
		t.Fatalf("Play for bob err = %v, want ErrEmptyQueue", err)
	}
	if snap := c.Snapshot("alice"); !snap.IsPlaying {
		t.Errorf("alice snapshot = %+v, want still playing", snap)
	}
}

func TestControllerPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	c := newTestController(bus)

	queueCh := bus.Subscribe(events.EventPlaybackQueue)
	stateCh := bus.Subscribe(events.EventPlaybackState)
	trackCh := bus.Subscribe(events.EventPlaybackTrackChange)

	if _, err := c.Enqueue("u", "a"); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-queueCh:
		if p["command"] != "enqueue" {
			t.Errorf("queue event command = %v, want enqueue", p["command"])
		}
	default:
		t.Fatal("no queue event published for enqueue")
	}

	if _, err := c.Play("u", ""); err != nil {
		t.Fatal(err)
	}
	select {
	case p := <-stateCh:
		if p["command"] != "play" {
			t.Errorf("state event command = %v, want play", p["command"])
		}
	default:
		t.Fatal("no state event published for play")
	}
	select {
	case p := <-trackCh:
		if p["current_track_id"] != "a" {
			t.Errorf("track change current = %v, want a", p["current_track_id"])
		}
	default:
		t.Fatal("no track change event published for first play")
	}

	// failed commands publish nothing
	if _, err := c.Play("u", "missing"); !errors.Is(err, ErrTrackNotInQueue) {
		t.Fatalf("err = %v, want ErrTrackNotInQueue", err)
	}
	select {
	case p := <-stateCh:
		t.Errorf("unexpected event after failed command: %v", p)
	default:
	}
}

func TestControllerEvictionEvent(t *testing.T) {
	bus := events.NewBus()
	reg := NewRegistry(time.Millisecond, 3*time.Second, zerolog.Nop())
	_ = NewController(reg, bus, zerolog.Nop())

	evictCh := bus.Subscribe(events.EventSessionEvicted)

	reg.GetOrCreate("u")
	time.Sleep(5 * time.Millisecond)
	if n := reg.EvictIdle(time.Now(), time.Millisecond); n != 1 {
		t.Fatalf("EvictIdle = %d, want 1", n)
	}

	select {
	case p := <-evictCh:
		if p["session_key"] != "u" {
			t.Errorf("evicted key = %v, want u", p["session_key"])
		}
	default:
		t.Fatal("no eviction event published")
	}
}
