/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

// Snapshot is an immutable rendering of a session's queue and transport
// state, built atomically with respect to mutations. CurrentTrackID is
// empty when no track is current.
type Snapshot struct {
	SessionKey     string     `json:"session_key"`
	CurrentTrackID string     `json:"current_track_id,omitempty"`
	CurrentIndex   int        `json:"current_index"`
	IsPlaying      bool       `json:"is_playing"`
	IsPaused       bool       `json:"is_paused"`
	PositionMillis int64      `json:"position_millis"`
	Volume         int        `json:"volume"`
	ShuffleEnabled bool       `json:"shuffle_enabled"`
	RepeatMode     RepeatMode `json:"repeat_mode"`
	Queue          []TrackRef `json:"queue"`
}
