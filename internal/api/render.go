/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"time"

	"github.com/friendsincode/chorus/internal/catalog"
	"github.com/friendsincode/chorus/internal/player"
)

// RenderedSnapshot is the wire form of a playback snapshot, with queue
// entries enriched by catalog metadata.
type RenderedSnapshot struct {
	SessionKey     string            `json:"session_key"`
	CurrentTrack   *catalog.TrackInfo `json:"current_track,omitempty"`
	CurrentIndex   int               `json:"current_index"`
	IsPlaying      bool              `json:"is_playing"`
	IsPaused       bool              `json:"is_paused"`
	PositionMillis int64             `json:"position_millis"`
	Volume         int               `json:"volume"`
	ShuffleEnabled bool              `json:"shuffle_enabled"`
	RepeatMode     player.RepeatMode `json:"repeat_mode"`
	Queue          []QueueEntry      `json:"queue"`
}

// QueueEntry is one rendered queue slot.
type QueueEntry struct {
	Position int                `json:"position"`
	Track    *catalog.TrackInfo `json:"track"`
	AddedAt  time.Time          `json:"added_at"`
}

// renderSnapshot enriches a snapshot with catalog metadata. Resolution runs
// at the response boundary, never inside the session lock, and each distinct
// track is looked up once per request.
func (a *API) renderSnapshot(ctx context.Context, snap player.Snapshot) RenderedSnapshot {
	resolved := make(map[string]*catalog.TrackInfo)
	resolve := func(trackID string) *catalog.TrackInfo {
		if info, ok := resolved[trackID]; ok {
			return info
		}
		var info *catalog.TrackInfo
		if a.catalog != nil {
			info = a.catalog.Resolve(ctx, trackID)
		} else {
			info = catalog.Placeholder(trackID)
		}
		resolved[trackID] = info
		return info
	}

	out := RenderedSnapshot{
		SessionKey:     snap.SessionKey,
		CurrentIndex:   snap.CurrentIndex,
		IsPlaying:      snap.IsPlaying,
		IsPaused:       snap.IsPaused,
		PositionMillis: snap.PositionMillis,
		Volume:         snap.Volume,
		ShuffleEnabled: snap.ShuffleEnabled,
		RepeatMode:     snap.RepeatMode,
		Queue:          make([]QueueEntry, 0, len(snap.Queue)),
	}
	for i, ref := range snap.Queue {
		out.Queue = append(out.Queue, QueueEntry{
			Position: i,
			Track:    resolve(ref.TrackID),
			AddedAt:  ref.AddedAt,
		})
	}
	if snap.CurrentTrackID != "" {
		out.CurrentTrack = resolve(snap.CurrentTrackID)
	}
	return out
}
