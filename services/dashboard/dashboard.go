// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package dashboard assembles the dashhub HTTP server.
//
// New wires the store backend, icon source, auth client, metrics, tracing
// and the route table from a Config. Everything except the store is
// optional: a bare Config gives a single-user server on an embedded
// database where every request is the local admin.
//
// # Extension Points
//
// extensions.ServiceOptions replaces the auth provider, the authorizer or
// the audit logger:
//
//	opts := &extensions.ServiceOptions{AuditLogger: myAudit}
//	svc, err := dashboard.New(cfg, opts)
//
// When the postgrest backend is configured and no AuthProvider is given,
// the hosted auth service validates sessions.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/cache"
	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/auth"
	"github.com/anhmake/dashhub/services/dashboard/handlers"
	"github.com/anhmake/dashhub/services/dashboard/icons"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
	"github.com/anhmake/dashhub/services/dashboard/observability"
	"github.com/anhmake/dashhub/services/dashboard/routes"
	"github.com/anhmake/dashhub/services/dashboard/store"
	"github.com/anhmake/dashhub/services/dashboard/store/badgerstore"
	"github.com/anhmake/dashhub/services/dashboard/store/postgrest"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Service is the dashboard server lifecycle.
//
// # Thread Safety
//
// Run blocks and is called once. Close may be called from another goroutine
// to stop Run, and more than once.
type Service interface {
	// Run serves HTTP until Close is called or the listener fails. A
	// server stopped by Close returns nil.
	Run() error

	// Router returns the configured engine, mainly for tests.
	Router() *gin.Engine

	// Close stops the server and releases the store, the icon watcher and
	// the tracer.
	Close() error
}

// =============================================================================
// Implementation
// =============================================================================

type service struct {
	config Config
	opts   extensions.ServiceOptions
	logger *slog.Logger

	registry *prometheus.Registry
	metrics  *observability.Metrics
	cache    *cache.Cache

	store   store.Store
	icons   *icons.Cached
	watcher *icons.Watcher
	bucket  *icons.BucketSource
	authc   *auth.Client

	router *gin.Engine
	server *http.Server

	tracerShutdown func(context.Context) error
	stopWatch      context.CancelFunc
	closeOnce      sync.Once
	closeErr       error
}

// =============================================================================
// Constructor
// =============================================================================

// New builds a ready-to-run Service.
//
// # Description
//
//  1. Applies configuration defaults
//  2. Initializes tracing
//  3. Creates the metrics registry and the shared cache
//  4. Opens the store (and seeds the admin profile on embedded backends)
//  5. Creates the auth client when the hosted backend is used
//  6. Sets up the icon source, watching local directories
//  7. Registers the routes
//
// If opts is nil, extensions.DefaultOptions() is used with an slog audit
// logger.
//
// # Outputs
//
//   - Service: ready to Run.
//   - error: any initialization failure. Partially created resources are
//     released.
func New(cfg Config, opts *extensions.ServiceOptions) (Service, error) {
	s := &service{config: applyConfigDefaults(cfg)}
	s.logger = s.config.Logger

	if opts != nil {
		s.opts = *opts
	}
	if s.opts.AuditLogger == nil {
		s.opts = s.opts.WithAudit(extensions.NewSlogAuditLogger(s.logger, 0))
	}

	if s.config.GinMode != "" {
		gin.SetMode(s.config.GinMode)
	}

	ctx := context.Background()

	shutdown, err := initTracer(ctx, s.config.TraceExporter, s.config.OTelEndpoint, os.Stdout)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}
	s.tracerShutdown = shutdown

	s.registry = prometheus.NewRegistry()
	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	s.metrics = observability.NewMetrics(s.registry)
	s.cache = cache.New(cache.WithObserver(s.metrics))

	if err := s.initStore(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	if err := s.initAuth(); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	if err := s.initIcons(ctx); err != nil {
		s.cleanup()
		return nil, fmt.Errorf("failed to initialize icons: %w", err)
	}

	s.initRouter()
	return s, nil
}

// =============================================================================
// Service Interface Methods
// =============================================================================

func (s *service) Run() error {
	s.logger.Info("Starting dashboard server",
		"port", s.config.Port,
		"store", s.config.StoreBackend,
		"trace_exporter", s.config.TraceExporter)

	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

func (s *service) Router() *gin.Engine {
	return s.router
}

func (s *service) Close() error {
	s.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if s.server != nil {
			if err := s.server.Shutdown(ctx); err != nil {
				s.closeErr = fmt.Errorf("shutdown server: %w", err)
			}
		}
		if err := s.cleanup(); err != nil && s.closeErr == nil {
			s.closeErr = err
		}
	})
	return s.closeErr
}

// =============================================================================
// Private Initialization Methods
// =============================================================================

func (s *service) initStore(ctx context.Context) error {
	switch s.config.StoreBackend {
	case BackendPostgREST:
		st, err := postgrest.New(postgrest.Config{
			URL:    s.config.SupabaseURL,
			APIKey: s.config.SupabaseAnonKey,
			Logger: s.logger,
		})
		if err != nil {
			return err
		}
		s.store = st
		s.logger.Info("Using hosted database", "url", s.config.SupabaseURL)
		return nil

	case BackendBadger, BackendMemory:
		bcfg := badgerstore.DefaultConfig(s.config.BadgerPath)
		if s.config.StoreBackend == BackendMemory {
			bcfg = badgerstore.InMemoryConfig()
		}
		bcfg.Logger = s.logger
		st, err := badgerstore.Open(bcfg)
		if err != nil {
			return err
		}
		s.store = st
		s.logger.Info("Using embedded database",
			"backend", s.config.StoreBackend, "path", bcfg.Path)
		return s.seedAdmin(ctx, st)

	default:
		return fmt.Errorf("unknown store backend %q", s.config.StoreBackend)
	}
}

// seedAdmin creates an active admin profile for AdminEmail unless one
// already exists.
func (s *service) seedAdmin(ctx context.Context, st *badgerstore.Store) error {
	if s.config.AdminEmail == "" {
		return nil
	}
	_, err := st.ProfileByEmail(ctx, s.config.AdminEmail)
	if err == nil {
		return nil
	}
	if !errors.Is(err, board.ErrNotFound) {
		return err
	}
	p, err := st.UpsertProfile(ctx, board.Profile{
		Email:  s.config.AdminEmail,
		Role:   board.RoleAdmin,
		Status: "active",
	})
	if err != nil {
		return fmt.Errorf("seed admin profile: %w", err)
	}
	s.logger.Info("Seeded admin profile", "email", p.Email, "id", p.ID)
	return nil
}

// initAuth creates the hosted auth client. It validates sessions unless
// the caller supplied an AuthProvider, and always serves the sign-in
// routes.
func (s *service) initAuth() error {
	if s.config.StoreBackend != BackendPostgREST {
		return nil
	}
	client, err := auth.New(auth.Config{
		URL:      s.config.SupabaseURL,
		APIKey:   s.config.SupabaseAnonKey,
		Profiles: s.store,
		Cache:    s.cache,
		Logger:   s.logger,
	})
	if err != nil {
		return err
	}
	s.authc = client
	if s.opts.AuthProvider == nil {
		s.opts = s.opts.WithAuth(client)
	}
	return nil
}

func (s *service) initIcons(ctx context.Context) error {
	if s.config.IconBucket != "" {
		src, err := icons.NewBucketSource(ctx, s.config.IconBucket, s.config.IconPrefix, s.config.GCSCredentials)
		if err != nil {
			return err
		}
		s.bucket = src
		s.icons = icons.NewCached(src, s.cache, s.logger)
		s.logger.Info("Listing icons from bucket", "bucket", s.config.IconBucket, "prefix", s.config.IconPrefix)
		return nil
	}

	s.icons = icons.NewCached(icons.NewDirSource(s.config.IconDir), s.cache, s.logger)

	w, err := icons.NewWatcher(s.config.IconDir, func() {
		s.icons.Invalidate()
		s.metrics.IconReload("watch")
	}, icons.WithWatcherLogger(s.logger))
	if err != nil {
		s.logger.Warn("Icon watcher unavailable, listing refreshes on TTL only", "error", err)
		return nil
	}
	watchCtx, cancel := context.WithCancel(context.Background())
	if err := w.Start(watchCtx); err != nil {
		cancel()
		w.Stop()
		s.logger.Warn("Icon directory not watched", "dir", s.config.IconDir, "error", err)
		return nil
	}
	s.watcher = w
	s.stopWatch = cancel
	s.logger.Info("Watching icon directory", "dir", s.config.IconDir)
	return nil
}

func (s *service) initRouter() {
	s.router = gin.Default()
	s.router.Use(otelgin.Middleware(ServiceName))
	s.router.Use(middleware.Metrics(s.metrics))

	deps := &handlers.Deps{
		Store:         s.store,
		Icons:         s.icons,
		Audit:         s.opts.AuditLogger,
		Metrics:       s.metrics,
		Logger:        s.logger,
		SiteURL:       s.config.SiteURL,
		SecureCookies: s.config.SecureCookies,
	}
	if s.authc != nil {
		deps.Sessions = s.authc
	}

	var limiter *middleware.RateLimiter
	if s.config.RateLimitPerMinute > 0 {
		limiter = middleware.NewRateLimiter(s.config.RateLimitPerMinute, s.config.RateLimitBurst)
	}

	routes.SetupRoutes(s.router, routes.Options{
		Deps:       deps,
		Extensions: s.opts,
		Gatherer:   s.registry,
		Limiter:    limiter,
	})

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.config.Port),
		Handler: s.router,
	}
}

// cleanup releases everything New acquired. Safe on a partially built
// service.
func (s *service) cleanup() error {
	var errs []error
	if s.stopWatch != nil {
		s.stopWatch()
	}
	if s.watcher != nil {
		s.watcher.Stop()
	}
	if s.bucket != nil {
		if err := s.bucket.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close icon bucket: %w", err))
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	if s.tracerShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.tracerShutdown(ctx); err != nil {
			s.logger.Error("failed to shutdown tracer", "error", err)
		}
	}
	return errors.Join(errs...)
}

// =============================================================================
// Compile-time Interface Compliance
// =============================================================================

var _ Service = (*service)(nil)
