/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/friendsincode/chorus/internal/auth"
	"github.com/friendsincode/chorus/internal/events"
	"github.com/friendsincode/chorus/internal/player"
)

var testSecret = []byte("api-test-secret")

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	logger := zerolog.Nop()
	registry := player.NewRegistry(30*time.Minute, 3*time.Second, logger)
	bus := events.NewBus()
	controller := player.NewController(registry, bus, logger)
	a := New(controller, nil, bus, testSecret, logger)

	r := chi.NewRouter()
	a.Routes(r)
	return r
}

func bearerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := auth.Issue(testSecret, auth.Claims{UserID: userID}, time.Hour)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return token
}

func doRequest(t *testing.T, router *chi.Mux, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeSnapshot(t *testing.T, rec *httptest.ResponseRecorder) RenderedSnapshot {
	t.Helper()
	var snap RenderedSnapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode snapshot: %v (body %s)", err, rec.Body.String())
	}
	return snap
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v (body %s)", err, rec.Body.String())
	}
	return body["error"]
}

func TestHealthIsPublic(t *testing.T) {
	router := newTestRouter(t)
	rec := doRequest(t, router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", rec.Code)
	}
}

func TestPlayerRequiresAuth(t *testing.T) {
	router := newTestRouter(t)

	rec := doRequest(t, router, http.MethodPost, "/api/v1/player/play", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: status = %d, want 401", rec.Code)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/player/play", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token: status = %d, want 401", rec.Code)
	}
}

func TestPlaybackFlow(t *testing.T) {
	router := newTestRouter(t)
	token := bearerToken(t, "alice")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/player/queue/", token, map[string]string{"track_id": "track-1"})
	if rec.Code != http.StatusOK {
		t.Fatalf("enqueue status = %d (body %s)", rec.Code, rec.Body.String())
	}
	snap := decodeSnapshot(t, rec)
	if len(snap.Queue) != 1 {
		t.Fatalf("queue length = %d, want 1", len(snap.Queue))
	}
	if snap.IsPlaying {
		t.Error("enqueue should not start playback")
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/player/play", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("play status = %d (body %s)", rec.Code, rec.Body.String())
	}
	snap = decodeSnapshot(t, rec)
	if !snap.IsPlaying {
		t.Error("expected playing after play")
	}
	if snap.CurrentTrack == nil || snap.CurrentTrack.TrackID != "track-1" {
		t.Errorf("current track = %+v, want track-1", snap.CurrentTrack)
	}

	rec = doRequest(t, router, http.MethodPost, "/api/v1/player/pause", token, nil)
	snap = decodeSnapshot(t, rec)
	if !snap.IsPaused {
		t.Error("expected paused after pause")
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/player/", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("snapshot status = %d", rec.Code)
	}
	snap = decodeSnapshot(t, rec)
	if !snap.IsPaused || snap.CurrentIndex != 0 {
		t.Errorf("snapshot = paused %v index %d, want paused at 0", snap.IsPaused, snap.CurrentIndex)
	}
}

func TestSessionsAreIsolatedByUser(t *testing.T) {
	router := newTestRouter(t)
	alice := bearerToken(t, "alice")
	bob := bearerToken(t, "bob")

	doRequest(t, router, http.MethodPost, "/api/v1/player/queue/", alice, map[string]string{"track_id": "track-1"})

	rec := doRequest(t, router, http.MethodGet, "/api/v1/player/", bob, nil)
	snap := decodeSnapshot(t, rec)
	if len(snap.Queue) != 0 {
		t.Errorf("bob's queue length = %d, want 0", len(snap.Queue))
	}
}

func TestErrorMapping(t *testing.T) {
	router := newTestRouter(t)
	token := bearerToken(t, "carol")

	cases := []struct {
		name       string
		method     string
		path       string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"play empty queue", http.MethodPost, "/api/v1/player/play", nil, http.StatusConflict, "empty_queue"},
		{"resume while stopped", http.MethodPost, "/api/v1/player/resume", nil, http.StatusConflict, "invalid_transition"},
		{"negative seek", http.MethodPost, "/api/v1/player/seek", map[string]int{"position_millis": -1}, http.StatusBadRequest, "invalid_argument"},
		{"volume above range", http.MethodPost, "/api/v1/player/volume", map[string]int{"volume": 150}, http.StatusBadRequest, "invalid_argument"},
		{"unknown repeat mode", http.MethodPost, "/api/v1/player/repeat", map[string]string{"mode": "sometimes"}, http.StatusBadRequest, "invalid_argument"},
		{"empty enqueue", http.MethodPost, "/api/v1/player/queue/", map[string]string{"track_id": ""}, http.StatusBadRequest, "invalid_argument"},
		{"insert past end", http.MethodPost, "/api/v1/player/queue/insert", map[string]any{"position": 5, "track_id": "track-1"}, http.StatusUnprocessableEntity, "out_of_range"},
		{"remove out of range", http.MethodDelete, "/api/v1/player/queue/3", nil, http.StatusUnprocessableEntity, "out_of_range"},
		{"remove bad position", http.MethodDelete, "/api/v1/player/queue/abc", nil, http.StatusBadRequest, "invalid_position"},
	}

	for _, tc := range cases {
		rec := doRequest(t, router, tc.method, tc.path, token, tc.body)
		if rec.Code != tc.wantStatus {
			t.Errorf("%s: status = %d, want %d (body %s)", tc.name, rec.Code, tc.wantStatus, rec.Body.String())
		}
		if code := errorCode(t, rec); code != tc.wantCode {
			t.Errorf("%s: error code = %q, want %q", tc.name, code, tc.wantCode)
		}
	}
}

func TestQueueEndpoints(t *testing.T) {
	router := newTestRouter(t)
	token := bearerToken(t, "dave")

	for _, id := range []string{"track-a", "track-b", "track-c"} {
		rec := doRequest(t, router, http.MethodPost, "/api/v1/player/queue/", token, map[string]string{"track_id": id})
		if rec.Code != http.StatusOK {
			t.Fatalf("enqueue %s: status = %d", id, rec.Code)
		}
	}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/player/queue/reorder", token, map[string]int{"from": 2, "to": 0})
	snap := decodeSnapshot(t, rec)
	if snap.Queue[0].Track.TrackID != "track-c" {
		t.Errorf("after reorder, head = %s, want track-c", snap.Queue[0].Track.TrackID)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/player/queue/1", token, nil)
	snap = decodeSnapshot(t, rec)
	if len(snap.Queue) != 2 {
		t.Fatalf("after remove, queue length = %d, want 2", len(snap.Queue))
	}

	rec = doRequest(t, router, http.MethodGet, "/api/v1/player/queue/", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("queue get status = %d", rec.Code)
	}
	var body struct {
		Queue        []QueueEntry `json:"queue"`
		CurrentIndex int          `json:"current_index"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode queue body: %v", err)
	}
	if len(body.Queue) != 2 || body.CurrentIndex != -1 {
		t.Errorf("queue get = %d entries index %d, want 2 entries index -1", len(body.Queue), body.CurrentIndex)
	}

	rec = doRequest(t, router, http.MethodDelete, "/api/v1/player/queue/", token, nil)
	snap = decodeSnapshot(t, rec)
	if len(snap.Queue) != 0 {
		t.Errorf("after clear, queue length = %d, want 0", len(snap.Queue))
	}
}

func TestSnapshotRendersPlaceholderWithoutCatalog(t *testing.T) {
	// The router under test runs without a catalog database, so every queued
	// track renders as the unavailable placeholder.
	router := newTestRouter(t)
	token := bearerToken(t, "erin")

	rec := doRequest(t, router, http.MethodPost, "/api/v1/player/queue/", token, map[string]string{"track_id": "ghost"})
	snap := decodeSnapshot(t, rec)
	if snap.Queue[0].Track == nil || snap.Queue[0].Track.Available {
		t.Errorf("unresolvable track should render unavailable, got %+v", snap.Queue[0].Track)
	}
}
