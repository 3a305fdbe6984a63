/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package player

import (
	"context"
	"sync"
	"time"

	"github.com/friendsincode/chorus/internal/telemetry"
	"github.com/rs/zerolog"
)

// Registry maps session keys to live sessions. The map has its own lock,
// held only for lookup, insert, and evict, so unrelated sessions never
// serialize behind it.
type Registry struct {
	logger zerolog.Logger
	mu     sync.RWMutex
	sessions map[string]*Session

	idleThreshold    time.Duration
	restartThreshold time.Duration

	onEvict func(sessionKey string)
}

// NewRegistry creates a session registry.
func NewRegistry(idleThreshold, restartThreshold time.Duration, logger zerolog.Logger) *Registry {
	return &Registry{
		logger:           logger.With().Str("component", "player.registry").Logger(),
		sessions:         make(map[string]*Session),
		idleThreshold:    idleThreshold,
		restartThreshold: restartThreshold,
	}
}

// OnEvict registers a hook invoked with the key of every evicted session.
// Must be set before Sweep starts.
func (r *Registry) OnEvict(hook func(sessionKey string)) {
	r.onEvict = hook
}

// GetOrCreate returns the session for key, creating it on first use.
func (r *Registry) GetOrCreate(key string) *Session {
	r.mu.RLock()
	s, ok := r.sessions[key]
	r.mu.RUnlock()
	if ok {
		return s
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[key]; ok {
		return s
	}
	s = NewSession(key, r.restartThreshold)
	r.sessions[key] = s
	telemetry.PlayerActiveSessions.Set(float64(len(r.sessions)))
	r.logger.Debug().Str("session_key", key).Msg("session created")
	return s
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// EvictIdle removes sessions whose last activity is older than threshold.
// Each candidate's own lock is held for the check-and-remove so eviction
// never races an in-flight command. Returns the number evicted.
func (r *Registry) EvictIdle(now time.Time, threshold time.Duration) int {
	var evicted []string

	r.mu.Lock()
	for key, s := range r.sessions {
		s.mu.Lock()
		if now.Sub(s.LastActivity()) >= threshold {
			delete(r.sessions, key)
			evicted = append(evicted, key)
		}
		s.mu.Unlock()
	}
	telemetry.PlayerActiveSessions.Set(float64(len(r.sessions)))
	r.mu.Unlock()

	for _, key := range evicted {
		r.logger.Info().Str("session_key", key).Msg("idle session evicted")
		if r.onEvict != nil {
			r.onEvict(key)
		}
	}
	return len(evicted)
}

// Sweep runs the idle-eviction loop until ctx is cancelled.
func (r *Registry) Sweep(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", interval).
		Dur("idle_threshold", r.idleThreshold).
		Msg("session sweep started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("session sweep stopped")
			return
		case now := <-ticker.C:
			if n := r.EvictIdle(now, r.idleThreshold); n > 0 {
				r.logger.Debug().Int("evicted", n).Msg("sweep pass complete")
			}
		}
	}
}
