/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package models

import "time"

// User represents an authenticated account. Registration, profiles, and the
// social graph live in a separate service; this table only backs token
// issuance and session keying.
type User struct {
	ID          string `gorm:"type:uuid;primaryKey"`
	Email       string `gorm:"uniqueIndex"`
	DisplayName string `gorm:"type:varchar(64)"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// TrackAvailability tracks catalog lifecycle for a track.
type TrackAvailability string

const (
	TrackAvailable   TrackAvailability = "available"
	TrackUnavailable TrackAvailability = "unavailable"
	TrackTakedown    TrackAvailability = "takedown"
)

// Track is a catalog entry. Audio bytes are stored behind the media storage
// layer; StorageKey locates them there.
type Track struct {
	ID           string `gorm:"type:uuid;primaryKey"`
	Title        string `gorm:"index"`
	Artist       string `gorm:"index"`
	Album        string `gorm:"index"`
	Duration     time.Duration
	StorageKey   string
	CoverKey     string
	Genre        string
	Explicit     bool
	Availability TrackAvailability `gorm:"type:varchar(16);default:available"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
