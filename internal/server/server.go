/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/friendsincode/chorus/internal/api"
	"github.com/friendsincode/chorus/internal/cache"
	"github.com/friendsincode/chorus/internal/catalog"
	"github.com/friendsincode/chorus/internal/config"
	"github.com/friendsincode/chorus/internal/db"
	"github.com/friendsincode/chorus/internal/eventbus"
	"github.com/friendsincode/chorus/internal/events"
	"github.com/friendsincode/chorus/internal/logbuffer"
	"github.com/friendsincode/chorus/internal/media"
	"github.com/friendsincode/chorus/internal/player"
	"github.com/friendsincode/chorus/internal/telemetry"
	"github.com/friendsincode/chorus/internal/version"
)

// EventBus is the pubsub surface the server wires together. Satisfied by the
// in-process bus and by the Redis and NATS backed buses.
type EventBus interface {
	Subscribe(eventType events.EventType) events.Subscriber
	Unsubscribe(eventType events.EventType, sub events.Subscriber)
	Publish(eventType events.EventType, payload events.Payload)
}

// Server bundles HTTP and supporting services.
type Server struct {
	cfg        *config.Config
	logger     zerolog.Logger
	logBuffer  *logbuffer.Buffer
	router     chi.Router
	httpServer *http.Server
	closers    []func() error

	db         *gorm.DB
	cache      *cache.Cache
	bus        EventBus
	storage    media.Storage
	registry   *player.Registry
	controller *player.Controller
	catalog    *catalog.Service
	api        *api.API

	bgCancel context.CancelFunc
	bgWG     sync.WaitGroup
}

// New constructs the server and wires dependencies. logBuf may be nil to
// disable the recent-logs endpoint.
func New(cfg *config.Config, logBuf *logbuffer.Buffer, logger zerolog.Logger) (*Server, error) {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(securityHeadersMiddleware)
	router.Use(telemetry.TracingMiddleware("chorus-api"))
	router.Use(telemetry.MetricsMiddleware)
	// Skip the request timeout for the events WebSocket; it holds the
	// connection open for the client's whole listening session.
	router.Use(func(next http.Handler) http.Handler {
		timeout := middleware.Timeout(60 * time.Second)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Upgrade") == "websocket" {
				next.ServeHTTP(w, r)
				return
			}
			timeout(next).ServeHTTP(w, r)
		})
	})

	srv := &Server{
		cfg:       cfg,
		logger:    logger,
		logBuffer: logBuf,
		router:    router,
	}

	if err := srv.initDependencies(); err != nil {
		return nil, err
	}

	srv.configureRoutes()
	srv.startBackgroundWorkers()

	addr := fmt.Sprintf("%s:%d", cfg.HTTPBind, cfg.HTTPPort)
	srv.httpServer = &http.Server{
		Addr:    addr,
		Handler: srv.router,
		// Header deadline protects against slowloris. Write timeout stays
		// unset so the events WebSocket manages its own deadlines.
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	return srv, nil
}

func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Content-Security-Policy", "default-src 'self'; frame-ancestors 'none'; base-uri 'self'")

		// Only advertise HSTS for requests served over HTTPS.
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) initDependencies() error {
	database, err := db.Connect(s.cfg)
	if err != nil {
		return err
	}
	if err := db.Migrate(database); err != nil {
		return err
	}
	s.db = database
	s.DeferClose(func() error { return db.Close(database) })

	if err := s.initStorage(); err != nil {
		return err
	}

	// Redis track cache. Lookups fall through to the database when Redis is
	// down, so a failed init only costs performance.
	cacheCfg := cache.DefaultConfig()
	cacheCfg.RedisAddr = s.cfg.RedisAddr
	cacheCfg.RedisPassword = s.cfg.RedisPassword
	cacheCfg.RedisDB = s.cfg.RedisDB
	trackCache, err := cache.New(cacheCfg, s.logger)
	if err != nil {
		s.logger.Warn().Err(err).Msg("cache initialization failed, continuing without cache")
	} else {
		s.cache = trackCache
		s.DeferClose(func() error { return s.cache.Close() })
	}

	if err := s.initEventBus(); err != nil {
		return err
	}

	s.registry = player.NewRegistry(s.cfg.SessionIdleThreshold, s.cfg.RestartThreshold, s.logger)
	s.controller = player.NewController(s.registry, s.bus, s.logger)
	s.catalog = catalog.New(s.db, s.cache, s.storage, s.logger)

	s.api = api.New(s.controller, s.catalog, s.bus, []byte(s.cfg.JWTSigningKey), s.logger)
	if s.logBuffer != nil {
		s.api.SetLogBuffer(s.logBuffer)
	}

	return nil
}

// initStorage selects the media backend: S3 (or any S3-compatible service)
// when a bucket is configured, local filesystem otherwise.
func (s *Server) initStorage() error {
	if s.cfg.S3Bucket != "" {
		s3Storage, err := media.NewS3Storage(context.Background(), media.S3Config{
			AccessKeyID:     s.cfg.S3AccessKeyID,
			SecretAccessKey: s.cfg.S3SecretAccessKey,
			Region:          s.cfg.S3Region,
			Bucket:          s.cfg.S3Bucket,
			Endpoint:        s.cfg.S3Endpoint,
			PublicBaseURL:   s.cfg.S3PublicBaseURL,
			UsePathStyle:    s.cfg.S3UsePathStyle,
		}, s.logger)
		if err != nil {
			return fmt.Errorf("initialize S3 storage: %w", err)
		}
		s.storage = s3Storage
		s.logger.Info().Str("bucket", s.cfg.S3Bucket).Msg("S3 media storage ready")
		return nil
	}

	if err := os.MkdirAll(s.cfg.MediaRoot, 0755); err != nil {
		return fmt.Errorf("create media directory %s: %w", s.cfg.MediaRoot, err)
	}
	s.storage = media.NewFilesystemStorage(s.cfg.MediaRoot, s.cfg.BaseURL, s.logger)
	s.logger.Info().Str("path", s.cfg.MediaRoot).Msg("filesystem media storage ready")
	return nil
}

// initEventBus selects the event fan-out backend. Redis and NATS keep
// subscribers on every instance in sync; memory is fine for one node.
func (s *Server) initEventBus() error {
	nodeID := s.cfg.InstanceID
	if nodeID == "" {
		nodeID = uuid.NewString()
	}

	switch s.cfg.EventBusBackend {
	case "redis":
		redisCfg := eventbus.DefaultRedisConfig()
		redisCfg.Addr = s.cfg.RedisAddr
		redisCfg.Password = s.cfg.RedisPassword
		redisCfg.DB = s.cfg.RedisDB
		bus, err := eventbus.NewRedisBus(redisCfg, nodeID, s.logger)
		if err != nil {
			return fmt.Errorf("initialize redis event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
		s.logger.Info().Str("addr", s.cfg.RedisAddr).Msg("redis event bus ready")

	case "nats":
		natsCfg := eventbus.DefaultNATSConfig()
		natsCfg.URL = s.cfg.NATSURL
		bus, err := eventbus.NewNATSBus(natsCfg, nodeID, s.logger)
		if err != nil {
			return fmt.Errorf("initialize nats event bus: %w", err)
		}
		s.bus = bus
		s.DeferClose(bus.Close)
		s.logger.Info().Str("url", s.cfg.NATSURL).Msg("nats event bus ready")

	default:
		s.bus = events.NewBus()
	}
	return nil
}

// HTTPServer exposes the underlying net/http server.
func (s *Server) HTTPServer() *http.Server {
	return s.httpServer
}

// Close releases owned resources in reverse order.
func (s *Server) Close() error {
	s.stopBackgroundWorkers()
	var firstErr error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// DeferClose registers a cleanup hook.
func (s *Server) DeferClose(fn func() error) {
	s.closers = append(s.closers, fn)
}

func (s *Server) startBackgroundWorkers() {
	ctx, cancel := context.WithCancel(context.Background())
	s.bgCancel = cancel

	// Idle session eviction sweep
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		s.registry.Sweep(ctx, s.cfg.SessionSweepInterval)
	}()

	// Connection pool metrics
	s.bgWG.Add(1)
	go func() {
		defer s.bgWG.Done()
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				db.UpdateConnectionMetrics(s.db)
			}
		}
	}()

	if s.cache != nil {
		s.bgWG.Add(1)
		go func() {
			defer s.bgWG.Done()
			s.runCacheInvalidationListener(ctx)
		}()
	}
}

// runCacheInvalidationListener drops cached track metadata when the catalog
// announces an update or takedown, so stale titles never outlive the TTL.
func (s *Server) runCacheInvalidationListener(ctx context.Context) {
	trackUpdated := s.bus.Subscribe(events.EventTrackUpdated)
	trackDeleted := s.bus.Subscribe(events.EventTrackDeleted)

	defer func() {
		s.bus.Unsubscribe(events.EventTrackUpdated, trackUpdated)
		s.bus.Unsubscribe(events.EventTrackDeleted, trackDeleted)
	}()

	s.logger.Info().Msg("cache invalidation listener started")

	invalidate := func(payload events.Payload) {
		trackID, ok := payload["track_id"].(string)
		if !ok || trackID == "" {
			return
		}
		if err := s.catalog.Invalidate(ctx, trackID); err != nil {
			s.logger.Debug().Err(err).Str("track_id", trackID).Msg("cache invalidation failed")
		}
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("cache invalidation listener stopped")
			return
		case payload := <-trackUpdated:
			invalidate(payload)
		case payload := <-trackDeleted:
			invalidate(payload)
		}
	}
}

func (s *Server) stopBackgroundWorkers() {
	if s.bgCancel == nil {
		return
	}
	s.bgCancel()
	s.bgWG.Wait()
	s.bgCancel = nil
}

func (s *Server) configureRoutes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","version":%q}`, version.Version)))
	})

	s.router.Handle("/metrics", telemetry.Handler())

	s.api.Routes(s.router)
}
