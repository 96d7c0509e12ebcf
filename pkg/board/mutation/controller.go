// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package mutation applies card and section changes optimistically.
//
// # Description
//
// Every operation follows the same protocol:
//
//  1. Snapshot the affected sub-tree.
//  2. Apply the change to local state and return a PendingMutation.
//  3. Send the remote mutation in the background.
//  4. On success, resync: reload authoritative state through the caller's
//     ResyncFunc, which replaces temporary ids.
//  5. On failure, undo the change from the snapshot and record the error.
//     Only the mutated entity is restored; state reloaded by other
//     mutations in the meantime is kept.
//
// Deletes require a DeleteRequest with Confirmed set.
package mutation

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anhmake/dashhub/pkg/board"
)

// TempIDPrefix marks ids assigned locally to inserted cards.
const TempIDPrefix = "tmp-"

// DefaultSectionOrder is assigned to new sections without an order.
const DefaultSectionOrder = 1

// Remote performs the authoritative mutations.
type Remote interface {
	CreateCard(ctx context.Context, in board.CardInput) (board.Card, error)
	UpdateCard(ctx context.Context, in board.CardInput) (board.Card, error)
	DeleteCard(ctx context.Context, id string) error
	CreateSection(ctx context.Context, in board.SectionInput) (board.Section, error)
	UpdateSection(ctx context.Context, in board.SectionInput) (board.Section, error)
	DeleteSection(ctx context.Context, id string) error
}

// ResyncFunc reloads the authoritative section list after a confirmed
// mutation. Implementations usually invalidate cached trees first.
type ResyncFunc func(ctx context.Context) ([]board.Section, error)

// DeleteRequest names the entity to delete. Confirmed must be set by the
// caller after the user agreed.
type DeleteRequest struct {
	ID        string
	Confirmed bool
}

// NewTempID returns a fresh temporary id.
func NewTempID() string {
	return TempIDPrefix + uuid.NewString()
}

// NewSectionID returns a client-generated section id.
func NewSectionID(now time.Time) string {
	return fmt.Sprintf("section_%d", now.UnixMilli())
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithClock sets the time source for optimistic timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		if now != nil {
			c.now = now
		}
	}
}

// WithOnChange registers a callback invoked with a copy of the sections
// after every local change, rollback and resync.
func WithOnChange(fn func([]board.Section)) Option {
	return func(c *Controller) {
		c.onChange = fn
	}
}

// Controller owns the section list of one mounted dashboard view.
//
// # Thread Safety
//
// Controller is safe for concurrent use.
type Controller struct {
	remote   Remote
	resync   ResyncFunc
	logger   *slog.Logger
	now      func() time.Time
	onChange func([]board.Section)

	mu       sync.Mutex
	sections []board.Section
	wg       sync.WaitGroup
}

// New creates a controller with an initial section list.
func New(remote Remote, resync ResyncFunc, initial []board.Section, opts ...Option) *Controller {
	c := &Controller{
		remote:   remote,
		resync:   resync,
		logger:   slog.Default(),
		now:      time.Now,
		sections: board.CloneSections(initial),
	}
	if c.sections == nil {
		c.sections = []board.Section{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sections returns a copy of the current local state.
func (c *Controller) Sections() []board.Section {
	c.mu.Lock()
	defer c.mu.Unlock()
	return board.CloneSections(c.sections)
}

// Replace swaps in a freshly loaded section list.
func (c *Controller) Replace(sections []board.Section) {
	c.mu.Lock()
	c.sections = board.CloneSections(sections)
	board.SortSections(c.sections)
	c.mu.Unlock()
	c.notify()
}

// Wait blocks until every background reconciliation has finished.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// =============================================================================
// Card Operations
// =============================================================================

// AddCard inserts a card with a temporary id into its section.
func (c *Controller) AddCard(ctx context.Context, in board.CardInput) (*PendingMutation, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	idx := c.sectionIndex(in.SectionID)
	if idx < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("section %s: %w", in.SectionID, board.ErrNotFound)
	}
	card := in.Card(NewTempID())
	card.CreatedAt = c.now()
	c.sections[idx].Cards = append(c.sections[idx].Cards, card)
	c.mu.Unlock()
	c.notify()

	p := newPending(OpInsert, cardsTarget(in.SectionID), card.ID, card, snapshot{sectionID: in.SectionID})
	c.reconcile(ctx, p, func(ctx context.Context) error {
		_, err := c.remote.CreateCard(ctx, in)
		return err
	})
	return p, nil
}

// EditCard updates the card named by in.ID, moving it when SectionID
// changed.
func (c *Controller) EditCard(ctx context.Context, in board.CardInput) (*PendingMutation, error) {
	in.Normalize()
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	si, ci := c.cardIndex(in.ID)
	if si < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("card %s: %w", in.ID, board.ErrNotFound)
	}
	dst := c.sectionIndex(in.SectionID)
	if dst < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("section %s: %w", in.SectionID, board.ErrNotFound)
	}

	old := c.sections[si].Cards[ci]
	snap := snapshot{sectionID: c.sections[si].ID, card: &old}
	card := in.Card(old.ID)
	card.CreatedAt = old.CreatedAt
	now := c.now()
	card.UpdatedAt = &now

	if si == dst {
		c.sections[si].Cards[ci] = card
	} else {
		c.sections[si].Cards = slices.Delete(c.sections[si].Cards, ci, ci+1)
		c.sections[dst].Cards = append(c.sections[dst].Cards, card)
		board.SortCards(c.sections[dst].Cards)
	}
	c.mu.Unlock()
	c.notify()

	p := newPending(OpUpdate, cardsTarget(in.SectionID), card.ID, card, snap)
	c.reconcile(ctx, p, func(ctx context.Context) error {
		_, err := c.remote.UpdateCard(ctx, in)
		return err
	})
	return p, nil
}

// DeleteCard removes a confirmed card.
func (c *Controller) DeleteCard(ctx context.Context, req DeleteRequest) (*PendingMutation, error) {
	if !req.Confirmed {
		return nil, board.ErrNotConfirmed
	}

	c.mu.Lock()
	si, ci := c.cardIndex(req.ID)
	if si < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("card %s: %w", req.ID, board.ErrNotFound)
	}
	sectionID := c.sections[si].ID
	card := c.sections[si].Cards[ci]
	c.sections[si].Cards = slices.Delete(c.sections[si].Cards, ci, ci+1)
	c.mu.Unlock()
	c.notify()

	p := newPending(OpDelete, cardsTarget(sectionID), req.ID, card, snapshot{sectionID: sectionID, card: &card})
	c.reconcile(ctx, p, func(ctx context.Context) error {
		return c.remote.DeleteCard(ctx, req.ID)
	})
	return p, nil
}

// =============================================================================
// Section Operations
// =============================================================================

// AddSection appends a section. A missing id is generated, a missing order
// defaults to DefaultSectionOrder.
func (c *Controller) AddSection(ctx context.Context, in board.SectionInput) (*PendingMutation, error) {
	if in.ID == "" {
		in.ID = NewSectionID(c.now())
	}
	if in.SectionOrder == nil {
		in.SectionOrder = board.IntPtr(DefaultSectionOrder)
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.sectionIndex(in.ID) >= 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: section %s already exists", board.ErrValidation, in.ID)
	}
	section := board.Section{
		ID:           in.ID,
		Title:        in.Title,
		SectionOrder: board.IntPtr(*in.SectionOrder),
		ParentCardID: in.ParentCardID,
		CreatedAt:    c.now(),
		Cards:        []board.Card{},
	}
	c.sections = append(c.sections, section)
	board.SortSections(c.sections)
	c.mu.Unlock()
	c.notify()

	p := newPending(OpInsert, "sections", section.ID, section, snapshot{})
	c.reconcile(ctx, p, func(ctx context.Context) error {
		_, err := c.remote.CreateSection(ctx, in)
		return err
	})
	return p, nil
}

// EditSection renames a section. A nil SectionOrder keeps the current one.
func (c *Controller) EditSection(ctx context.Context, in board.SectionInput) (*PendingMutation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	idx := c.sectionIndex(in.ID)
	if idx < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("section %s: %w", in.ID, board.ErrNotFound)
	}
	before := c.sections[idx].Clone()
	snap := snapshot{section: &before}
	current := c.sections[idx]
	if in.SectionOrder == nil && current.SectionOrder != nil {
		in.SectionOrder = board.IntPtr(*current.SectionOrder)
	}
	if in.ParentCardID == nil {
		in.ParentCardID = current.ParentCardID
	}
	current.Title = in.Title
	current.SectionOrder = in.SectionOrder
	c.sections[idx] = current
	board.SortSections(c.sections)
	updated := current.Clone()
	c.mu.Unlock()
	c.notify()

	p := newPending(OpUpdate, "sections", in.ID, updated, snap)
	c.reconcile(ctx, p, func(ctx context.Context) error {
		_, err := c.remote.UpdateSection(ctx, in)
		return err
	})
	return p, nil
}

// DeleteSection removes a confirmed section with its cards.
func (c *Controller) DeleteSection(ctx context.Context, req DeleteRequest) (*PendingMutation, error) {
	if !req.Confirmed {
		return nil, board.ErrNotConfirmed
	}

	c.mu.Lock()
	idx := c.sectionIndex(req.ID)
	if idx < 0 {
		c.mu.Unlock()
		return nil, fmt.Errorf("section %s: %w", req.ID, board.ErrNotFound)
	}
	removed := c.sections[idx].Clone()
	c.sections = slices.Delete(c.sections, idx, idx+1)
	c.mu.Unlock()
	c.notify()

	p := newPending(OpDelete, "sections", req.ID, removed, snapshot{section: &removed})
	c.reconcile(ctx, p, func(ctx context.Context) error {
		return c.remote.DeleteSection(ctx, req.ID)
	})
	return p, nil
}

// =============================================================================
// Reconciliation
// =============================================================================

// reconcile runs the remote call in the background and drives p to a final
// state.
func (c *Controller) reconcile(ctx context.Context, p *PendingMutation, call func(context.Context) error) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer p.finish()

		if err := call(ctx); err != nil {
			c.rollback(p)
			p.transition(StateRolledBack, fmt.Errorf("%s %s: %w", p.Op, p.Target, err))
			c.logger.Warn("mutation rolled back",
				"op", p.Op, "target", p.Target, "entity_id", p.EntityID, "error", err)
			c.notify()
			return
		}
		p.transition(StateConfirmed, nil)

		if c.resync == nil {
			return
		}
		sections, err := c.resync(ctx)
		if err != nil {
			c.logger.Error("resync after mutation failed",
				"op", p.Op, "target", p.Target, "error", err)
			return
		}
		c.Replace(sections)
		p.transition(StateResynced, nil)
	}()
}

// rollback undoes p's local change. Entities another mutation's resync
// already restored are not duplicated.
func (c *Controller) rollback(p *PendingMutation) {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := p.snap
	if _, ok := p.Entity.(board.Card); ok {
		switch p.Op {
		case OpInsert:
			c.removeCard(p.EntityID)
		case OpUpdate:
			c.removeCard(p.EntityID)
			c.restoreCard(snap.sectionID, *snap.card)
		case OpDelete:
			if si, _ := c.cardIndex(p.EntityID); si < 0 {
				c.restoreCard(snap.sectionID, *snap.card)
			}
		}
		return
	}

	switch p.Op {
	case OpInsert:
		if idx := c.sectionIndex(p.EntityID); idx >= 0 {
			c.sections = slices.Delete(c.sections, idx, idx+1)
		}
	case OpUpdate:
		if idx := c.sectionIndex(p.EntityID); idx >= 0 {
			c.sections[idx].Title = snap.section.Title
			c.sections[idx].SectionOrder = snap.section.SectionOrder
			board.SortSections(c.sections)
		}
	case OpDelete:
		if c.sectionIndex(p.EntityID) < 0 {
			c.sections = append(c.sections, snap.section.Clone())
			board.SortSections(c.sections)
		}
	}
}

// removeCard drops a card wherever it is. Caller holds mu.
func (c *Controller) removeCard(id string) {
	if si, ci := c.cardIndex(id); si >= 0 {
		c.sections[si].Cards = slices.Delete(c.sections[si].Cards, ci, ci+1)
	}
}

// restoreCard puts card back into its section, if that section is still
// present. Caller holds mu.
func (c *Controller) restoreCard(sectionID string, card board.Card) {
	idx := c.sectionIndex(sectionID)
	if idx < 0 {
		return
	}
	c.sections[idx].Cards = append(c.sections[idx].Cards, card)
	board.SortCards(c.sections[idx].Cards)
}

func (c *Controller) notify() {
	if c.onChange != nil {
		c.onChange(c.Sections())
	}
}

// sectionIndex returns the index of a section or -1. Caller holds mu.
func (c *Controller) sectionIndex(id string) int {
	return slices.IndexFunc(c.sections, func(s board.Section) bool { return s.ID == id })
}

// cardIndex locates a card across sections. Caller holds mu.
func (c *Controller) cardIndex(id string) (int, int) {
	for si, s := range c.sections {
		for ci, card := range s.Cards {
			if card.ID == id {
				return si, ci
			}
		}
	}
	return -1, -1
}

func cardsTarget(sectionID string) string {
	return "sections[" + sectionID + "].cards"
}
