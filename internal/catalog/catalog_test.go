/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package catalog

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/chorus/internal/media"
	"github.com/friendsincode/chorus/internal/models"
)

func newTestService(t *testing.T, storage media.Storage) (*Service, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared&mode=memory"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&models.Track{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err == nil {
			_ = sqlDB.Close()
		}
	})
	return New(db, nil, storage, zerolog.Nop()), db
}

func seedTrack(t *testing.T, db *gorm.DB, track models.Track) models.Track {
	t.Helper()
	if track.ID == "" {
		track.ID = uuid.NewString()
	}
	if track.Availability == "" {
		track.Availability = models.TrackAvailable
	}
	if err := db.Create(&track).Error; err != nil {
		t.Fatalf("seed track: %v", err)
	}
	return track
}

func TestLookupReturnsMetadata(t *testing.T) {
	svc, db := newTestService(t, nil)
	track := seedTrack(t, db, models.Track{
		Title:    "Golden Hour",
		Artist:   "The Harbor Lights",
		Album:    "Tides",
		Duration: 3*time.Minute + 41*time.Second,
	})

	info, err := svc.Lookup(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Title != "Golden Hour" || info.ArtistName != "The Harbor Lights" {
		t.Errorf("info = %+v", info)
	}
	if info.DurationMillis != (3*60+41)*1000 {
		t.Errorf("DurationMillis = %d", info.DurationMillis)
	}
	if !info.Available {
		t.Error("expected available track")
	}
}

func TestLookupUnknownTrack(t *testing.T) {
	svc, _ := newTestService(t, nil)

	_, err := svc.Lookup(context.Background(), uuid.NewString())
	if !errors.Is(err, ErrTrackNotFound) {
		t.Fatalf("err = %v, want ErrTrackNotFound", err)
	}
}

func TestResolveFoldsNotFoundToPlaceholder(t *testing.T) {
	svc, _ := newTestService(t, nil)

	info := svc.Resolve(context.Background(), "ghost-track")
	if info.Available {
		t.Error("placeholder must not be available")
	}
	if info.TrackID != "ghost-track" {
		t.Errorf("TrackID = %q", info.TrackID)
	}
	if info.Title != "Track unavailable" {
		t.Errorf("Title = %q", info.Title)
	}
}

func TestTakedownRendersUnavailable(t *testing.T) {
	svc, db := newTestService(t, nil)
	track := seedTrack(t, db, models.Track{
		Title:        "Pulled Single",
		Artist:       "Gone",
		Availability: models.TrackTakedown,
	})

	info, err := svc.Lookup(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.Available {
		t.Error("takedown track must render unavailable")
	}
	if info.Title == "Pulled Single" {
		t.Error("takedown track must not expose its title")
	}
}

func TestLookupResolvesStorageURLs(t *testing.T) {
	storage := media.NewFilesystemStorage("/srv/media", "https://cdn.example.com", zerolog.Nop())
	svc, db := newTestService(t, storage)
	track := seedTrack(t, db, models.Track{
		Title:      "With Audio",
		Artist:     "Someone",
		StorageKey: "audio/with-audio.ogg",
		CoverKey:   "covers/with-audio.jpg",
	})

	info, err := svc.Lookup(context.Background(), track.ID)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if info.FileURL == "" || info.CoverURL == "" {
		t.Errorf("expected resolved URLs, got file=%q cover=%q", info.FileURL, info.CoverURL)
	}
}
