// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package dashboard

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendPostgREST = "postgrest"
	BackendBadger    = "badger"
	BackendMemory    = "memory"
)

// Trace exporters.
const (
	TraceOTLP   = "otlp"
	TraceStdout = "stdout"
	TraceNone   = "none"
)

// ServiceName identifies the server in traces and logs.
const ServiceName = "dashhub-dashboard"

// =============================================================================
// Configuration
// =============================================================================

// Config holds the dashboard server configuration.
//
// # Description
//
// Values come from environment variables in cmd/dashboard, optionally
// overlaid by a YAML file (LoadConfigFile). Zero values are filled by
// applyConfigDefaults when the service is built.
//
// # Examples
//
//	// Self-hosted, single user, on-disk store
//	cfg := Config{StoreBackend: "badger", BadgerPath: "./data"}
//
//	// Hosted database with Google sign-in
//	cfg := Config{
//	    StoreBackend:    "postgrest",
//	    SupabaseURL:     "https://xyz.supabase.co",
//	    SupabaseAnonKey: key,
//	    SiteURL:         "https://dash.example.com",
//	}
type Config struct {
	// Port is the HTTP port. Default: 8080
	Port int `yaml:"port"`

	// StoreBackend is "postgrest", "badger" or "memory". Default: "badger"
	// unless SupabaseURL is set.
	StoreBackend string `yaml:"store_backend"`

	// SupabaseURL and SupabaseAnonKey address the hosted database and its
	// auth service. Required for the postgrest backend.
	SupabaseURL     string `yaml:"supabase_url"`
	SupabaseAnonKey string `yaml:"supabase_anon_key"`

	// BadgerPath is the data directory for the badger backend.
	// Default: "./data/dashhub"
	BadgerPath string `yaml:"badger_path"`

	// AdminEmail seeds an active admin profile on embedded backends.
	AdminEmail string `yaml:"admin_email"`

	// IconDir is the local icon directory, watched for changes.
	// Default: "./public/icons"
	IconDir string `yaml:"icon_dir"`

	// IconBucket switches the icon listing to a GCS bucket. IconPrefix
	// selects the folder, GCSCredentials the service account key.
	IconBucket     string `yaml:"icon_bucket"`
	IconPrefix     string `yaml:"icon_prefix"`
	GCSCredentials string `yaml:"gcs_credentials"`

	// SiteURL is where sign-in callbacks redirect. Empty uses the request
	// origin.
	SiteURL string `yaml:"site_url"`

	// SecureCookies marks session cookies Secure. Default: true when
	// SiteURL is https.
	SecureCookies bool `yaml:"secure_cookies"`

	// TraceExporter is "otlp", "stdout" or "none". Default: "otlp" when
	// OTelEndpoint is set, otherwise "none".
	TraceExporter string `yaml:"trace_exporter"`

	// OTelEndpoint is the OTLP gRPC collector address.
	OTelEndpoint string `yaml:"otel_endpoint"`

	// RateLimitPerMinute throttles mutations per caller. Negative disables it.
	// Default: 120
	RateLimitPerMinute float64 `yaml:"rate_limit_per_minute"`

	// RateLimitBurst is the limiter burst. Default: 20
	RateLimitBurst int `yaml:"rate_limit_burst"`

	// ShutdownTimeout bounds Close. Default: 10s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// GinMode is "debug", "release" or "test". Empty keeps gin's mode.
	GinMode string `yaml:"gin_mode"`

	// Logger is used for every component. Default: slog.Default()
	Logger *slog.Logger `yaml:"-"`
}

// applyConfigDefaults fills in missing configuration values.
func applyConfigDefaults(cfg Config) Config {
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.StoreBackend == "" {
		if cfg.SupabaseURL != "" {
			cfg.StoreBackend = BackendPostgREST
		} else {
			cfg.StoreBackend = BackendBadger
		}
	}
	if cfg.BadgerPath == "" {
		cfg.BadgerPath = "./data/dashhub"
	}
	if cfg.IconDir == "" {
		cfg.IconDir = "./public/icons"
	}
	if cfg.TraceExporter == "" {
		if cfg.OTelEndpoint != "" {
			cfg.TraceExporter = TraceOTLP
		} else {
			cfg.TraceExporter = TraceNone
		}
	}
	if cfg.RateLimitPerMinute == 0 {
		cfg.RateLimitPerMinute = 120
	}
	if cfg.RateLimitBurst == 0 {
		cfg.RateLimitBurst = 20
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if !cfg.SecureCookies && strings.HasPrefix(cfg.SiteURL, "https://") {
		cfg.SecureCookies = true
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return cfg
}

// LoadConfigFile overlays the YAML file at path onto cfg. Keys absent from
// the file keep cfg's values.
func LoadConfigFile(path string, cfg Config) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}
