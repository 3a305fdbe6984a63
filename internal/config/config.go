/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration. Values come from environment
// variables (CHORUS_* keys), with an optional YAML file supplying defaults
// for anything the environment leaves unset.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	BaseURL     string // Public base URL (e.g., https://chorus.example.com)
	DBBackend   DatabaseBackend
	DBDSN       string
	MediaRoot   string

	JWTSigningKey string
	MetricsBind   string

	// Playback session tuning
	SessionIdleThreshold time.Duration // evict sessions idle longer than this
	SessionSweepInterval time.Duration // how often the eviction sweep runs
	RestartThreshold     time.Duration // skip-previous restarts the track past this position

	// Redis (track cache + event fan-out)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATS event fan-out (optional; empty disables)
	NATSURL string

	// Event bus backend: "memory", "redis", or "nats"
	EventBusBackend string

	// S3 object storage (optional; MediaRoot is used when unset)
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3PublicBaseURL   string // Optional CDN/CloudFront URL
	S3UsePathStyle    bool   // Required for MinIO

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	InstanceID string
}

// fileConfig mirrors the YAML config file. Zero values mean "not set".
type fileConfig struct {
	Environment          string  `yaml:"environment"`
	HTTPBind             string  `yaml:"http_bind"`
	HTTPPort             int     `yaml:"http_port"`
	BaseURL              string  `yaml:"base_url"`
	DBBackend            string  `yaml:"db_backend"`
	DBDSN                string  `yaml:"db_dsn"`
	MediaRoot            string  `yaml:"media_root"`
	JWTSigningKey        string  `yaml:"jwt_signing_key"`
	MetricsBind          string  `yaml:"metrics_bind"`
	SessionIdleMinutes   int     `yaml:"session_idle_minutes"`
	SessionSweepSeconds  int     `yaml:"session_sweep_seconds"`
	RestartThresholdSecs float64 `yaml:"restart_threshold_seconds"`
	RedisAddr            string  `yaml:"redis_addr"`
	RedisPassword        string  `yaml:"redis_password"`
	RedisDB              int     `yaml:"redis_db"`
	NATSURL              string  `yaml:"nats_url"`
	EventBusBackend      string  `yaml:"event_bus_backend"`
	S3Bucket             string  `yaml:"s3_bucket"`
	S3Region             string  `yaml:"s3_region"`
	S3Endpoint           string  `yaml:"s3_endpoint"`
	S3PublicBaseURL      string  `yaml:"s3_public_base_url"`
	S3UsePathStyle       bool    `yaml:"s3_use_path_style"`
	TracingEnabled       bool    `yaml:"tracing_enabled"`
	OTLPEndpoint         string  `yaml:"otlp_endpoint"`
	TracingSampleRate    float64 `yaml:"tracing_sample_rate"`
	InstanceID           string  `yaml:"instance_id"`
}

// Load reads the optional config file and the environment, applies defaults,
// and validates the result. Environment variables win over the file.
func Load() (*Config, error) {
	file, err := loadFile(os.Getenv("CHORUS_CONFIG_FILE"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Environment: getEnvAny([]string{"CHORUS_ENV"}, pick(file.Environment, "development")),
		HTTPBind:    getEnvAny([]string{"CHORUS_HTTP_BIND"}, pick(file.HTTPBind, "0.0.0.0")),
		HTTPPort:    getEnvIntAny([]string{"CHORUS_HTTP_PORT"}, pickInt(file.HTTPPort, 8080)),
		BaseURL:     getEnvAny([]string{"CHORUS_BASE_URL"}, file.BaseURL),
		DBBackend:   DatabaseBackend(getEnvAny([]string{"CHORUS_DB_BACKEND"}, pick(file.DBBackend, string(DatabasePostgres)))),
		DBDSN:       getEnvAny([]string{"CHORUS_DB_DSN"}, file.DBDSN),
		MediaRoot:   getEnvAny([]string{"CHORUS_MEDIA_ROOT"}, pick(file.MediaRoot, "./media")),

		JWTSigningKey: getEnvAny([]string{"CHORUS_JWT_SIGNING_KEY"}, file.JWTSigningKey),
		MetricsBind:   getEnvAny([]string{"CHORUS_METRICS_BIND"}, pick(file.MetricsBind, "127.0.0.1:9000")),

		SessionIdleThreshold: time.Duration(getEnvIntAny([]string{"CHORUS_SESSION_IDLE_MINUTES"}, pickInt(file.SessionIdleMinutes, 30))) * time.Minute,
		SessionSweepInterval: time.Duration(getEnvIntAny([]string{"CHORUS_SESSION_SWEEP_SECONDS"}, pickInt(file.SessionSweepSeconds, 60))) * time.Second,
		RestartThreshold:     time.Duration(getEnvFloatAny([]string{"CHORUS_RESTART_THRESHOLD_SECONDS"}, pickFloat(file.RestartThresholdSecs, 3.0)) * float64(time.Second)),

		RedisAddr:     getEnvAny([]string{"CHORUS_REDIS_ADDR"}, pick(file.RedisAddr, "localhost:6379")),
		RedisPassword: getEnvAny([]string{"CHORUS_REDIS_PASSWORD"}, file.RedisPassword),
		RedisDB:       getEnvIntAny([]string{"CHORUS_REDIS_DB"}, file.RedisDB),

		NATSURL: getEnvAny([]string{"CHORUS_NATS_URL"}, file.NATSURL),

		EventBusBackend: getEnvAny([]string{"CHORUS_EVENT_BUS"}, pick(file.EventBusBackend, "memory")),

		S3AccessKeyID:     getEnvAny([]string{"CHORUS_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"CHORUS_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"CHORUS_S3_REGION", "AWS_REGION"}, pick(file.S3Region, "us-east-1")),
		S3Bucket:          getEnvAny([]string{"CHORUS_S3_BUCKET", "S3_BUCKET"}, file.S3Bucket),
		S3Endpoint:        getEnvAny([]string{"CHORUS_S3_ENDPOINT", "S3_ENDPOINT"}, file.S3Endpoint),
		S3PublicBaseURL:   getEnvAny([]string{"CHORUS_S3_PUBLIC_BASE_URL", "S3_PUBLIC_BASE_URL"}, file.S3PublicBaseURL),
		S3UsePathStyle:    getEnvBoolAny([]string{"CHORUS_S3_USE_PATH_STYLE", "S3_USE_PATH_STYLE"}, file.S3UsePathStyle),

		TracingEnabled:    getEnvBoolAny([]string{"CHORUS_TRACING_ENABLED"}, file.TracingEnabled),
		OTLPEndpoint:      getEnvAny([]string{"CHORUS_OTLP_ENDPOINT"}, pick(file.OTLPEndpoint, "localhost:4317")),
		TracingSampleRate: getEnvFloatAny([]string{"CHORUS_TRACING_SAMPLE_RATE"}, pickFloat(file.TracingSampleRate, 1.0)),

		InstanceID: getEnvAny([]string{"CHORUS_INSTANCE_ID"}, file.InstanceID),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("CHORUS_DB_DSN must be provided")
	}

	if cfg.JWTSigningKey == "" {
		return nil, fmt.Errorf("CHORUS_JWT_SIGNING_KEY must be provided")
	}

	switch cfg.EventBusBackend {
	case "memory", "redis", "nats":
	default:
		return nil, fmt.Errorf("unsupported event bus backend %q", cfg.EventBusBackend)
	}

	if cfg.EventBusBackend == "nats" && cfg.NATSURL == "" {
		return nil, fmt.Errorf("CHORUS_NATS_URL must be provided when the nats event bus is selected")
	}

	if cfg.SessionIdleThreshold <= 0 {
		return nil, fmt.Errorf("CHORUS_SESSION_IDLE_MINUTES must be positive")
	}

	if cfg.RestartThreshold < 0 {
		return nil, fmt.Errorf("CHORUS_RESTART_THRESHOLD_SECONDS must not be negative")
	}

	return cfg, nil
}

func loadFile(path string) (*fileConfig, error) {
	fc := &fileConfig{}
	if path == "" {
		return fc, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, fc); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func pick(fileVal, def string) string {
	if fileVal != "" {
		return fileVal
	}
	return def
}

func pickInt(fileVal, def int) int {
	if fileVal != 0 {
		return fileVal
	}
	return def
}

func pickFloat(fileVal, def float64) float64 {
	if fileVal != 0 {
		return fileVal
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvIntAny returns the first set integer environment variable value from keys, or def.
func getEnvIntAny(keys []string, def int) int {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.Atoi(v); err == nil {
				return parsed
			}
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}

// getEnvFloatAny returns the first set float environment variable value from keys, or def.
func getEnvFloatAny(keys []string, def float64) float64 {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			if parsed, err := strconv.ParseFloat(v, 64); err == nil {
				return parsed
			}
		}
	}
	return def
}
