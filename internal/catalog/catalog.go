/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package catalog resolves track metadata for display. The playback core
// stores only track IDs; everything a client renders comes from here, at the
// response boundary, never inside a session lock.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/friendsincode/chorus/internal/cache"
	"github.com/friendsincode/chorus/internal/media"
	"github.com/friendsincode/chorus/internal/models"
	"github.com/friendsincode/chorus/internal/telemetry"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// ErrTrackNotFound indicates the track does not exist in the catalog.
var ErrTrackNotFound = errors.New("track not found")

// TrackInfo is the display metadata for one track.
type TrackInfo struct {
	TrackID        string `json:"track_id"`
	Title          string `json:"title"`
	ArtistName     string `json:"artist_name"`
	Album          string `json:"album,omitempty"`
	DurationMillis int64  `json:"duration_millis"`
	CoverURL       string `json:"cover_url,omitempty"`
	FileURL        string `json:"file_url,omitempty"`
	Available      bool   `json:"available"`
}

// Service looks up tracks with a Redis read-through cache in front of the
// database. Storage resolves audio and cover locators; both cache and
// storage are optional.
type Service struct {
	db      *gorm.DB
	cache   *cache.Cache
	storage media.Storage
	logger  zerolog.Logger
}

// New creates a catalog service.
func New(db *gorm.DB, c *cache.Cache, storage media.Storage, logger zerolog.Logger) *Service {
	return &Service{
		db:      db,
		cache:   c,
		storage: storage,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// Lookup returns track metadata, or ErrTrackNotFound.
func (s *Service) Lookup(ctx context.Context, trackID string) (*TrackInfo, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetTrack(ctx, trackID); ok {
			telemetry.CatalogLookups.WithLabelValues("hit").Inc()
			return s.render(ctx, cached), nil
		}
	}

	var track models.Track
	err := s.db.WithContext(ctx).First(&track, "id = ?", trackID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		telemetry.CatalogLookups.WithLabelValues("miss").Inc()
		return nil, ErrTrackNotFound
	}
	if err != nil {
		telemetry.CatalogLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("query track %s: %w", trackID, err)
	}

	cached := &cache.CachedTrack{
		ID:           track.ID,
		Title:        track.Title,
		Artist:       track.Artist,
		Album:        track.Album,
		Genre:        track.Genre,
		Duration:     int64(track.Duration),
		StorageKey:   track.StorageKey,
		CoverKey:     track.CoverKey,
		Explicit:     track.Explicit,
		Availability: string(track.Availability),
	}
	if s.cache != nil {
		if err := s.cache.SetTrack(ctx, cached); err != nil {
			s.logger.Debug().Err(err).Str("track_id", trackID).Msg("track cache write failed")
		}
	}
	telemetry.CatalogLookups.WithLabelValues("db").Inc()
	return s.render(ctx, cached), nil
}

// Resolve is Lookup with the not-found case folded into a placeholder. A
// track deleted after being queued renders as unavailable; the queue entry
// itself is untouched.
func (s *Service) Resolve(ctx context.Context, trackID string) *TrackInfo {
	info, err := s.Lookup(ctx, trackID)
	if err == nil {
		return info
	}
	if !errors.Is(err, ErrTrackNotFound) {
		s.logger.Warn().Err(err).Str("track_id", trackID).Msg("catalog lookup failed, rendering placeholder")
	}
	return Placeholder(trackID)
}

// Placeholder is the rendering used for tracks the catalog cannot resolve.
func Placeholder(trackID string) *TrackInfo {
	return &TrackInfo{
		TrackID:    trackID,
		Title:      "Track unavailable",
		ArtistName: "Unknown artist",
		Available:  false,
	}
}

// Invalidate drops a track from the read-through cache, for catalog updates
// and takedowns.
func (s *Service) Invalidate(ctx context.Context, trackID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.InvalidateTrack(ctx, trackID)
}

func (s *Service) render(ctx context.Context, t *cache.CachedTrack) *TrackInfo {
	info := &TrackInfo{
		TrackID:        t.ID,
		Title:          t.Title,
		ArtistName:     t.Artist,
		Album:          t.Album,
		DurationMillis: t.Duration / 1e6,
		Available:      t.Availability == "" || t.Availability == string(models.TrackAvailable),
	}
	if !info.Available {
		info.Title = "Track unavailable"
	}
	if s.storage == nil || !info.Available {
		return info
	}
	if t.StorageKey != "" {
		if url, err := s.storage.URL(ctx, t.StorageKey); err == nil {
			info.FileURL = url
		} else {
			s.logger.Debug().Err(err).Str("track_id", t.ID).Msg("resolve file URL failed")
		}
	}
	if t.CoverKey != "" {
		if url, err := s.storage.URL(ctx, t.CoverKey); err == nil {
			info.CoverURL = url
		}
	}
	return info
}
