// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/cache"
	"github.com/anhmake/dashhub/pkg/board/client"
	"github.com/anhmake/dashhub/pkg/board/fetch"
	"github.com/anhmake/dashhub/pkg/board/form"
	"github.com/anhmake/dashhub/pkg/board/mutation"
)

// session is one command's view of the server: the REST client, the cached
// fetcher, and the scope (root sections or one dashboard) that mutations
// apply to.
type session struct {
	client      *client.Client
	fetcher     *fetch.Fetcher
	logger      *slog.Logger
	dashboardID string
}

func newSession(cfg Config, dashboardID string, logger *slog.Logger) *session {
	opts := []client.Option{client.WithToken(cfg.Token)}
	if cfg.Timeout > 0 {
		opts = append(opts, client.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	c := client.New(cfg.Server, opts...)
	return &session{
		client:      c,
		fetcher:     fetch.New(c, cache.New(), logger),
		logger:      logger,
		dashboardID: dashboardID,
	}
}

// sections loads the sections in scope.
func (s *session) sections(ctx context.Context) ([]board.Section, error) {
	if s.dashboardID == "" {
		return s.fetcher.RootSections(ctx), nil
	}
	t, err := s.fetcher.Dashboard(ctx, s.dashboardID)
	if err != nil {
		if errors.Is(err, board.ErrNotFound) {
			return nil, fmt.Errorf("dashboard %s not found", s.dashboardID)
		}
		return nil, err
	}
	return t.Sections, nil
}

// resync drops the cached tree in scope and loads it again.
func (s *session) resync(ctx context.Context) ([]board.Section, error) {
	if s.dashboardID == "" {
		s.fetcher.InvalidateTrees()
	} else {
		s.fetcher.InvalidateDashboard(s.dashboardID)
	}
	return s.sections(ctx)
}

// controllers returns a mutation controller seeded with the sections in
// scope and a form controller that submits through it.
func (s *session) controllers(ctx context.Context) (*mutation.Controller, *form.Controller, error) {
	initial, err := s.sections(ctx)
	if err != nil {
		return nil, nil, err
	}
	mc := mutation.New(s.client, s.resync, initial, mutation.WithLogger(s.logger))
	return mc, form.New(mc), nil
}

// findCard locates a card in the given view.
func findCard(sections []board.Section, id string) (board.Card, bool) {
	for _, sec := range sections {
		for _, c := range sec.Cards {
			if c.ID == id {
				return c, true
			}
		}
	}
	return board.Card{}, false
}

// findSection locates a section in the given view.
func findSection(sections []board.Section, id string) (board.Section, bool) {
	for _, sec := range sections {
		if sec.ID == id {
			return sec, true
		}
	}
	return board.Section{}, false
}

// scopeHint explains a miss in the current scope.
func (s *session) scopeHint(kind, id string) error {
	if s.dashboardID == "" {
		return fmt.Errorf("%s %s not found among root sections (use --dashboard for a sub-dashboard): %w", kind, id, board.ErrNotFound)
	}
	return fmt.Errorf("%s %s not found in dashboard %s: %w", kind, id, s.dashboardID, board.ErrNotFound)
}
