// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package fetch provides cached resource loaders for the dashboard.
//
// # Description
//
// Each loader checks the cache, calls the remote on a miss and stores the
// result with a resource-specific TTL. Tree-shaped resources try the bulk
// endpoint first and fall back to per-entity assembly, caching the fallback
// result for a shorter time.
//
// Loaders never return transport errors. Failures are logged and the loader
// returns a safe default. The only error a caller sees is board.ErrNotFound
// for a dashboard that does not exist.
//
// # Thread Safety
//
// Fetcher is safe for concurrent use. Concurrent loads of the same key share
// a single remote call.
package fetch

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/cache"
	"github.com/anhmake/dashhub/pkg/board/tree"
)

var tracer = otel.Tracer("dashhub.fetch")

// Cache keys. Dashboard trees are keyed by DashboardKey.
const (
	KeyUser     = "auth-user"
	KeyIcons    = "icons"
	KeySections = "sections-with-cards"

	dashboardPrefix = "dashboard-full-"
)

// DefaultIcons is returned when the icon listing cannot be loaded.
var DefaultIcons = []string{board.DefaultIcon}

// DashboardKey returns the cache key of one dashboard tree.
func DashboardKey(id string) string {
	return dashboardPrefix + id
}

// Remote is the API surface the fetcher needs.
type Remote interface {
	tree.Source
	CurrentUser(ctx context.Context) (*board.User, error)
	Icons(ctx context.Context) ([]string, error)
	SectionsWithCards(ctx context.Context) ([]board.Section, error)
	DashboardFull(ctx context.Context, id string) (*board.DashboardTree, error)
}

// Fetcher loads dashboard resources through a shared cache.
type Fetcher struct {
	remote    Remote
	cache     *cache.Cache
	assembler *tree.Assembler
	logger    *slog.Logger
	flight    singleflight.Group
}

// New creates a fetcher. A nil logger uses slog.Default().
func New(remote Remote, c *cache.Cache, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		remote:    remote,
		cache:     c,
		assembler: tree.New(remote, logger),
		logger:    logger,
	}
}

// Cache returns the fetcher's cache.
func (f *Fetcher) Cache() *cache.Cache {
	return f.cache
}

// =============================================================================
// Loaders
// =============================================================================

// User returns the signed-in user, or nil when signed out or on failure.
func (f *Fetcher) User(ctx context.Context) *board.User {
	if u, ok := cache.GetAs[*board.User](f.cache, KeyUser); ok {
		return u
	}

	v, _, _ := f.flight.Do(KeyUser, func() (any, error) {
		u, err := f.remote.CurrentUser(ctx)
		if err != nil {
			f.logger.Debug("user load failed", "error", err)
			return (*board.User)(nil), nil
		}
		f.cache.Set(KeyUser, u, cache.UserTTL)
		return u, nil
	})
	return v.(*board.User)
}

// Icons returns icon filenames, or DefaultIcons on failure.
func (f *Fetcher) Icons(ctx context.Context) []string {
	if icons, ok := cache.GetAs[[]string](f.cache, KeyIcons); ok {
		return append([]string(nil), icons...)
	}

	v, _, _ := f.flight.Do(KeyIcons, func() (any, error) {
		icons, err := f.remote.Icons(ctx)
		if err != nil {
			f.logger.Warn("icon load failed, using default", "error", err)
			return DefaultIcons, nil
		}
		f.cache.Set(KeyIcons, icons, cache.IconsTTL)
		return icons, nil
	})
	return append([]string(nil), v.([]string)...)
}

// RootSections returns root sections with their cards.
//
// # Description
//
// Tries the bulk endpoint (cached cache.SectionsBulkTTL), then assembles the
// list call by call (cached cache.SectionsFallbackTTL). Returns an empty list
// when both fail.
func (f *Fetcher) RootSections(ctx context.Context) []board.Section {
	if sections, ok := cache.GetAs[[]board.Section](f.cache, KeySections); ok {
		return board.CloneSections(sections)
	}

	v, _, _ := f.flight.Do(KeySections, func() (any, error) {
		ctx, span := tracer.Start(ctx, "fetch.RootSections")
		defer span.End()

		sections, err := f.remote.SectionsWithCards(ctx)
		if err == nil {
			board.SortSections(sections)
			f.cache.Set(KeySections, sections, cache.SectionsBulkTTL)
			span.SetAttributes(attribute.String("fetch.path", "bulk"))
			return sections, nil
		}
		f.logger.Warn("bulk sections failed, falling back", "error", err)

		sections, err = f.assembler.SectionsWithCards(ctx, "")
		if err != nil {
			f.logger.Error("sections fallback failed", "error", err)
			span.RecordError(err)
			span.SetAttributes(attribute.String("fetch.path", "default"))
			return []board.Section{}, nil
		}
		f.cache.Set(KeySections, sections, cache.SectionsFallbackTTL)
		span.SetAttributes(attribute.String("fetch.path", "fallback"))
		return sections, nil
	})
	return board.CloneSections(v.([]board.Section))
}

// Dashboard returns the tree of one dashboard.
//
// # Description
//
// Tries the bulk endpoint (cached cache.DashboardBulkTTL). A 404 from the
// bulk endpoint is final. Any other failure falls back to the assembler
// (cached cache.DashboardFallbackTTL).
//
// # Outputs
//
//   - *board.DashboardTree: a private copy the caller may modify.
//   - error: board.ErrNotFound (wrapped) when the dashboard does not exist.
func (f *Fetcher) Dashboard(ctx context.Context, id string) (*board.DashboardTree, error) {
	key := DashboardKey(id)
	if t, ok := cache.GetAs[*board.DashboardTree](f.cache, key); ok {
		return cloneTree(t), nil
	}

	v, err, _ := f.flight.Do(key, func() (any, error) {
		ctx, span := tracer.Start(ctx, "fetch.Dashboard",
			trace.WithAttributes(attribute.String("dashboard.id", id)))
		defer span.End()

		t, err := f.remote.DashboardFull(ctx, id)
		if err == nil {
			board.SortSections(t.Sections)
			f.cache.Set(key, t, cache.DashboardBulkTTL)
			span.SetAttributes(attribute.String("fetch.path", "bulk"))
			return t, nil
		}
		if errors.Is(err, board.ErrNotFound) {
			return nil, err
		}
		f.logger.Warn("bulk dashboard failed, falling back", "dashboard_id", id, "error", err)

		t, err = f.assembler.Assemble(ctx, id)
		if err != nil {
			return nil, err
		}
		f.cache.Set(key, t, cache.DashboardFallbackTTL)
		span.SetAttributes(attribute.String("fetch.path", "fallback"))
		return t, nil
	})
	if err != nil {
		return nil, err
	}
	return cloneTree(v.(*board.DashboardTree)), nil
}

// =============================================================================
// Page Load
// =============================================================================

// Page is everything a dashboard view needs on mount.
type Page struct {
	User  *board.User
	Icons []string
	Tree  *board.DashboardTree
}

// LoadPage loads the user, the icons and the dashboard tree in parallel.
func (f *Fetcher) LoadPage(ctx context.Context, dashboardID string) (*Page, error) {
	var page Page
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		page.User = f.User(gctx)
		return nil
	})
	g.Go(func() error {
		page.Icons = f.Icons(gctx)
		return nil
	})
	g.Go(func() error {
		t, err := f.Dashboard(gctx, dashboardID)
		page.Tree = t
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &page, nil
}

// =============================================================================
// Invalidation
// =============================================================================

// Invalidate removes every cached entry whose key contains pattern.
func (f *Fetcher) Invalidate(pattern string) int {
	return f.cache.InvalidateMatching(pattern)
}

// InvalidateDashboard drops one cached dashboard tree.
func (f *Fetcher) InvalidateDashboard(id string) {
	f.cache.Invalidate(DashboardKey(id))
}

// InvalidateTrees drops every cached tree: root sections and all dashboards.
func (f *Fetcher) InvalidateTrees() {
	f.cache.Invalidate(KeySections)
	f.cache.InvalidateMatching(dashboardPrefix)
}

func cloneTree(t *board.DashboardTree) *board.DashboardTree {
	return &board.DashboardTree{
		Dashboard: t.Dashboard,
		Sections:  board.CloneSections(t.Sections),
	}
}
