// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Command dashboard starts the dashhub HTTP server.
//
// Configuration is read from the YAML file named by DASHBOARD_CONFIG, if
// any, and then overridden by the environment.
//
// # Environment Variables
//
//   - DASHBOARD_PORT: HTTP port (default: 8080)
//   - DASHBOARD_CONFIG: YAML config file path
//   - STORE_BACKEND: postgrest, badger or memory (default: badger, or postgrest when SUPABASE_URL is set)
//   - SUPABASE_URL, SUPABASE_ANON_KEY: hosted database and auth service
//   - BADGER_PATH: embedded database directory (default: ./data/dashhub)
//   - ADMIN_EMAIL: admin profile seeded on embedded backends
//   - ICON_DIR: icon directory (default: ./public/icons)
//   - ICON_BUCKET, ICON_PREFIX, GCS_CREDENTIALS: list icons from a GCS bucket instead
//   - SITE_URL: sign-in redirect target
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP gRPC collector
//   - TRACE_EXPORTER: otlp, stdout or none
//   - RATE_LIMIT_PER_MINUTE: mutation rate limit per caller (negative disables)
//   - LOG_LEVEL: debug, info, warn or error (default: info)
//   - LOG_DIR: directory for daily JSON log files
//   - LOG_JSON: "true" for JSON on stderr
//
// # Usage
//
//	go build -o dashboard ./cmd/dashboard
//	ICON_DIR=./public/icons ./dashboard
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/anhmake/dashhub/pkg/logging"
	"github.com/anhmake/dashhub/services/dashboard"
)

func main() {
	logger := logging.New(logging.Config{
		Level:   logging.ParseLevel(getEnvString("LOG_LEVEL", "info")),
		LogDir:  os.Getenv("LOG_DIR"),
		Service: "dashboard",
		JSON:    os.Getenv("LOG_JSON") == "true",
	})
	defer logger.Close()
	logger.SetDefault()

	cfg := dashboard.Config{}
	if path := os.Getenv("DASHBOARD_CONFIG"); path != "" {
		var err error
		cfg, err = dashboard.LoadConfigFile(path, cfg)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		slog.Info("Loaded config file", "path", path)
	}
	cfg = applyEnv(cfg)
	cfg.Logger = logger.Slog()

	svc, err := dashboard.New(cfg, nil)
	if err != nil {
		log.Fatalf("Failed to create dashboard: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("Shutting down dashboard")
		if err := svc.Close(); err != nil {
			slog.Error("Shutdown error", "error", err)
		}
	}()

	if err := svc.Run(); err != nil {
		log.Fatalf("Dashboard error: %v", err)
	}
}

// applyEnv overrides cfg with every variable that is set.
func applyEnv(cfg dashboard.Config) dashboard.Config {
	cfg.Port = getEnvInt("DASHBOARD_PORT", cfg.Port)
	cfg.StoreBackend = getEnvString("STORE_BACKEND", cfg.StoreBackend)
	cfg.SupabaseURL = getEnvString("SUPABASE_URL", cfg.SupabaseURL)
	cfg.SupabaseAnonKey = getEnvString("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey)
	cfg.BadgerPath = getEnvString("BADGER_PATH", cfg.BadgerPath)
	cfg.AdminEmail = getEnvString("ADMIN_EMAIL", cfg.AdminEmail)
	cfg.IconDir = getEnvString("ICON_DIR", cfg.IconDir)
	cfg.IconBucket = getEnvString("ICON_BUCKET", cfg.IconBucket)
	cfg.IconPrefix = getEnvString("ICON_PREFIX", cfg.IconPrefix)
	cfg.GCSCredentials = getEnvString("GCS_CREDENTIALS", cfg.GCSCredentials)
	cfg.SiteURL = getEnvString("SITE_URL", cfg.SiteURL)
	cfg.OTelEndpoint = getEnvString("OTEL_EXPORTER_OTLP_ENDPOINT", cfg.OTelEndpoint)
	cfg.TraceExporter = getEnvString("TRACE_EXPORTER", cfg.TraceExporter)
	cfg.GinMode = getEnvString("GIN_MODE", cfg.GinMode)
	if v := os.Getenv("RATE_LIMIT_PER_MINUTE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.RateLimitPerMinute = f
		}
	}
	return cfg
}

// getEnvString returns the environment variable value or a default.
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
