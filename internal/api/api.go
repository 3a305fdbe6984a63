/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	ws "nhooyr.io/websocket"

	"github.com/friendsincode/chorus/internal/auth"
	"github.com/friendsincode/chorus/internal/catalog"
	"github.com/friendsincode/chorus/internal/events"
	"github.com/friendsincode/chorus/internal/logbuffer"
	"github.com/friendsincode/chorus/internal/player"
)

// EventBus is the pubsub surface the API consumes for the events stream.
type EventBus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
	Publish(eventType events.EventType, payload events.Payload)
}

// API exposes HTTP handlers.
type API struct {
	controller *player.Controller
	catalog    *catalog.Service
	bus        EventBus
	jwtSecret  []byte
	logger     zerolog.Logger
	logBuffer  *logbuffer.Buffer
}

// New creates the API router wrapper.
func New(controller *player.Controller, catalogSvc *catalog.Service, bus EventBus, jwtSecret []byte, logger zerolog.Logger) *API {
	return &API{
		controller: controller,
		catalog:    catalogSvc,
		bus:        bus,
		jwtSecret:  jwtSecret,
		logger:     logger.With().Str("component", "api").Logger(),
	}
}

// SetLogBuffer enables the recent-logs endpoint.
func (a *API) SetLogBuffer(buf *logbuffer.Buffer) {
	a.logBuffer = buf
}

// Routes registers all API routes.
func (a *API) Routes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", a.handleHealth)

		r.Group(func(pr chi.Router) {
			pr.Use(a.authMiddleware())

			pr.Route("/player", func(r chi.Router) {
				r.Get("/", a.handlePlayerGet)
				r.Post("/play", a.handlePlay)
				r.Post("/pause", a.handlePause)
				r.Post("/resume", a.handleResume)
				r.Post("/stop", a.handleStop)
				r.Post("/seek", a.handleSeek)
				r.Post("/volume", a.handleVolume)
				r.Post("/shuffle", a.handleShuffle)
				r.Post("/repeat", a.handleRepeat)
				r.Post("/next", a.handleSkipNext)
				r.Post("/previous", a.handleSkipPrevious)

				r.Route("/queue", func(qr chi.Router) {
					qr.Get("/", a.handleQueueGet)
					qr.Post("/", a.handleEnqueue)
					qr.Post("/insert", a.handleInsert)
					qr.Post("/reorder", a.handleReorder)
					qr.Delete("/{position}", a.handleRemove)
					qr.Delete("/", a.handleClear)
				})
			})

			pr.Get("/tracks/{trackID}", a.handleTrackGet)
			pr.Get("/events", a.handleEvents)
			pr.Get("/logs", a.handleLogs)
		})
	})
}

func (a *API) authMiddleware() func(http.Handler) http.Handler {
	return auth.Middleware(a.jwtSecret)
}

// sessionKey resolves the authenticated user's session key. The identity
// layer has already verified it; this layer only forwards it.
func (a *API) sessionKey(r *http.Request) (string, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.UserID == "" {
		return "", false
	}
	return claims.UserID, true
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Playback transport handlers

type playRequest struct {
	TrackID string `json:"track_id"`
}

func (a *API) handlePlay(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req playRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.Play(key, req.TrackID))
}

func (a *API) handlePause(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.Pause(key))
}

func (a *API) handleResume(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.Resume(key))
}

func (a *API) handleStop(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.Stop(key))
}

type seekRequest struct {
	PositionMillis int64 `json:"position_millis"`
}

func (a *API) handleSeek(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req seekRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.Seek(key, req.PositionMillis))
}

type volumeRequest struct {
	Volume int `json:"volume"`
}

func (a *API) handleVolume(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req volumeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.SetVolume(key, req.Volume))
}

type shuffleRequest struct {
	Enabled bool `json:"enabled"`
}

func (a *API) handleShuffle(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req shuffleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.SetShuffle(key, req.Enabled))
}

type repeatRequest struct {
	Mode string `json:"mode"`
}

func (a *API) handleRepeat(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req repeatRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.SetRepeatMode(key, req.Mode))
}

func (a *API) handleSkipNext(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.SkipNext(key))
}

func (a *API) handleSkipPrevious(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.SkipPrevious(key))
}

func (a *API) handlePlayerGet(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	snap := a.controller.Snapshot(key)
	writeJSON(w, http.StatusOK, a.renderSnapshot(r.Context(), snap))
}

// Queue handlers

type enqueueRequest struct {
	TrackID string `json:"track_id"`
}

func (a *API) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req enqueueRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.Enqueue(key, req.TrackID))
}

type insertRequest struct {
	Position int    `json:"position"`
	TrackID  string `json:"track_id"`
}

func (a *API) handleInsert(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req insertRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.InsertAt(key, req.Position, req.TrackID))
}

type reorderRequest struct {
	From int `json:"from"`
	To   int `json:"to"`
}

func (a *API) handleReorder(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req reorderRequest
	if !decodeBody(w, r, &req) {
		return
	}
	a.respond(w, r)(a.controller.Reorder(key, req.From, req.To))
}

func (a *API) handleRemove(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	position, err := strconv.Atoi(chi.URLParam(r, "position"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_position")
		return
	}
	a.respond(w, r)(a.controller.RemoveAt(key, position))
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	a.respond(w, r)(a.controller.ClearQueue(key))
}

func (a *API) handleQueueGet(w http.ResponseWriter, r *http.Request) {
	key, ok := a.sessionKey(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	snap := a.controller.Snapshot(key)
	rendered := a.renderSnapshot(r.Context(), snap)
	writeJSON(w, http.StatusOK, map[string]any{
		"queue":         rendered.Queue,
		"current_index": rendered.CurrentIndex,
	})
}

// Catalog handlers

func (a *API) handleTrackGet(w http.ResponseWriter, r *http.Request) {
	trackID := chi.URLParam(r, "trackID")
	info, err := a.catalog.Lookup(r.Context(), trackID)
	if err != nil {
		if errors.Is(err, catalog.ErrTrackNotFound) {
			writeError(w, http.StatusNotFound, "track_not_found")
			return
		}
		a.logger.Error().Err(err).Str("track_id", trackID).Msg("track lookup failed")
		writeError(w, http.StatusInternalServerError, "internal_error")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// handleLogs serves recent log entries from the in-memory ring buffer, for
// operators debugging a live instance without log aggregation.
func (a *API) handleLogs(w http.ResponseWriter, r *http.Request) {
	if a.logBuffer == nil {
		writeError(w, http.StatusNotFound, "logs_unavailable")
		return
	}

	params := logbuffer.QueryParams{
		Level:      r.URL.Query().Get("level"),
		Component:  r.URL.Query().Get("component"),
		Search:     r.URL.Query().Get("search"),
		Descending: r.URL.Query().Get("order") != "asc",
		Limit:      200,
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 && limit <= 2000 {
			params.Limit = limit
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": a.logBuffer.Query(params),
		"stats":   a.logBuffer.Stats(),
	})
}

// Events stream

func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	eventTypes := parseEventTypes(r.URL.Query().Get("types"))
	if len(eventTypes) == 0 {
		eventTypes = []events.EventType{
			events.EventPlaybackState,
			events.EventPlaybackTrackChange,
			events.EventPlaybackQueue,
		}
	}

	subscribers := make([]events.Subscriber, 0, len(eventTypes))
	for _, eventType := range eventTypes {
		subscribers = append(subscribers, a.bus.Subscribe(eventType))
	}
	defer func() {
		for i, eventType := range eventTypes {
			a.bus.Unsubscribe(eventType, subscribers[i])
		}
	}()

	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "context cancelled")
			return
		case <-ticker.C:
			if err := conn.Write(ctx, ws.MessageText, []byte(`{"type":"ping"}`)); err != nil {
				a.logger.Error().Err(err).Msg("websocket ping failed")
				conn.Close(ws.StatusInternalError, "write failed")
				return
			}
		default:
			sent := false
			for i, sub := range subscribers {
				select {
				case payload := <-sub:
					if err := a.writeEvent(ctx, conn, eventTypes[i], payload); err != nil {
						a.logger.Error().Err(err).Msg("websocket write failed")
						conn.Close(ws.StatusInternalError, "write failed")
						return
					}
					sent = true
				default:
				}
			}
			if !sent {
				time.Sleep(100 * time.Millisecond)
			}
		}
	}
}

func (a *API) writeEvent(ctx context.Context, conn *ws.Conn, eventType events.EventType, payload events.Payload) error {
	data := map[string]any{
		"type":    eventType,
		"payload": payload,
	}
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, bytes)
}

func parseEventTypes(raw string) []events.EventType {
	parts := strings.Split(raw, ",")
	out := make([]events.EventType, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, events.EventType(part))
	}
	return out
}

// Response helpers

// respond renders the command result: the enriched snapshot on success, the
// mapped error otherwise.
func (a *API) respond(w http.ResponseWriter, r *http.Request) func(player.Snapshot, error) {
	return func(snap player.Snapshot, err error) {
		if err != nil {
			status, code := mapPlayerError(err)
			if status == http.StatusInternalServerError {
				a.logger.Error().Err(err).Msg("playback command failed")
			}
			writeError(w, status, code)
			return
		}
		writeJSON(w, http.StatusOK, a.renderSnapshot(r.Context(), snap))
	}
}

// mapPlayerError translates the playback error taxonomy to HTTP. Malformed
// input is the caller's bug (4xx); domain-state conflicts are retryable 409s.
func mapPlayerError(err error) (int, string) {
	switch {
	case errors.Is(err, player.ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, player.ErrOutOfRange):
		return http.StatusUnprocessableEntity, "out_of_range"
	case errors.Is(err, player.ErrEmptyQueue):
		return http.StatusConflict, "empty_queue"
	case errors.Is(err, player.ErrTrackNotInQueue):
		return http.StatusConflict, "track_not_in_queue"
	case errors.Is(err, player.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

// decodeOptionalBody tolerates an empty body, for commands whose payload is
// entirely optional.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dest any) bool {
	err := json.NewDecoder(r.Body).Decode(dest)
	if err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_json")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}
