// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package tree assembles dashboard trees from per-entity lookups.
//
// This is the slow path: one call for the dashboard card, one for its
// sections, then one call per section for cards, issued concurrently. The
// bulk endpoints produce the same shape in a single call.
package tree

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/anhmake/dashhub/pkg/board"
)

var tracer = otel.Tracer("dashhub.tree")

// Source resolves individual entities.
//
// Sections with an empty parentCardID returns root sections.
type Source interface {
	Card(ctx context.Context, id string) (board.Card, error)
	Sections(ctx context.Context, parentCardID string) ([]board.Section, error)
	Cards(ctx context.Context, sectionID string) ([]board.Card, error)
}

// Assembler builds DashboardTree values from a Source.
//
// # Thread Safety
//
// Assembler is stateless and safe for concurrent use.
type Assembler struct {
	src    Source
	logger *slog.Logger
}

// New creates an assembler. A nil logger uses slog.Default().
func New(src Source, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{src: src, logger: logger}
}

// Assemble resolves the dashboard card and its ordered sections.
//
// # Description
//
// Returns board.ErrNotFound when the dashboard card cannot be resolved. Any
// failure while loading sections or cards is logged and yields the
// dashboard with an empty section list. Hidden sections are dropped, as the
// bulk dashboard endpoint does.
//
// # Inputs
//
//   - ctx: cancels in-flight lookups.
//   - id: dashboard card id.
//
// # Outputs
//
//   - *board.DashboardTree: never nil when err is nil.
//   - error: board.ErrNotFound (wrapped) only.
func (a *Assembler) Assemble(ctx context.Context, id string) (*board.DashboardTree, error) {
	ctx, span := tracer.Start(ctx, "tree.Assemble")
	defer span.End()
	span.SetAttributes(attribute.String("dashboard.id", id))

	dashboard, err := a.src.Card(ctx, id)
	if err != nil {
		a.logger.Warn("dashboard card lookup failed", "dashboard_id", id, "error", err)
		span.SetStatus(codes.Error, "dashboard not found")
		return nil, fmt.Errorf("dashboard %s: %w", id, board.ErrNotFound)
	}

	sections, err := a.SectionsWithCards(ctx, id)
	if err != nil {
		a.logger.Error("dashboard sections failed, returning empty tree",
			"dashboard_id", id, "error", err)
		span.RecordError(err)
		sections = []board.Section{}
	}
	sections = board.WithoutHidden(sections)

	span.SetAttributes(attribute.Int("sections.count", len(sections)))
	return &board.DashboardTree{Dashboard: dashboard, Sections: sections}, nil
}

// SectionsWithCards loads sections under parentCardID ("" for root) and
// embeds each section's cards.
//
// Card lookups run concurrently. Results are zipped back by index, so the
// output does not depend on completion order. The first failure cancels the
// remaining lookups and is returned.
func (a *Assembler) SectionsWithCards(ctx context.Context, parentCardID string) ([]board.Section, error) {
	ctx, span := tracer.Start(ctx, "tree.SectionsWithCards")
	defer span.End()

	sections, err := a.src.Sections(ctx, parentCardID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list sections: %w", err)
	}

	cards := make([][]board.Card, len(sections))
	g, gctx := errgroup.WithContext(ctx)
	for i := range sections {
		sectionID := sections[i].ID
		g.Go(func() error {
			list, err := a.src.Cards(gctx, sectionID)
			if err != nil {
				return fmt.Errorf("cards for section %s: %w", sectionID, err)
			}
			cards[i] = list
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	out := make([]board.Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
		out[i].Cards = cards[i]
	}
	board.SortSections(out)

	span.SetAttributes(attribute.Int("sections.count", len(out)))
	return out, nil
}
