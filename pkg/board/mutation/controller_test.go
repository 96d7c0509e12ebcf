// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package mutation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

// fakeRemote is an in-memory authoritative store. Calls block on gate when
// set, so tests can observe the optimistic state before reconciliation.
type fakeRemote struct {
	mu       sync.Mutex
	sections []board.Section
	fail     error
	gate     chan struct{}
	nextID   int
	calls    []string
	lastSect board.SectionInput
}

func (r *fakeRemote) wait() {
	if r.gate != nil {
		<-r.gate
	}
}

func (r *fakeRemote) record(call string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return r.fail
}

func (r *fakeRemote) CreateCard(_ context.Context, in board.CardInput) (board.Card, error) {
	r.wait()
	if err := r.record("create-card"); err != nil {
		return board.Card{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	card := in.Card(fmt.Sprintf("srv-%d", r.nextID))
	card.CreatedAt = base.Add(time.Hour)
	for i := range r.sections {
		if r.sections[i].ID == in.SectionID {
			r.sections[i].Cards = append(r.sections[i].Cards, card)
		}
	}
	return card, nil
}

func (r *fakeRemote) UpdateCard(_ context.Context, in board.CardInput) (board.Card, error) {
	r.wait()
	return in.Card(in.ID), r.record("update-card")
}

func (r *fakeRemote) DeleteCard(context.Context, string) error {
	r.wait()
	return r.record("delete-card")
}

func (r *fakeRemote) CreateSection(_ context.Context, in board.SectionInput) (board.Section, error) {
	r.wait()
	return board.Section{ID: in.ID}, r.record("create-section")
}

func (r *fakeRemote) UpdateSection(_ context.Context, in board.SectionInput) (board.Section, error) {
	r.wait()
	r.mu.Lock()
	r.lastSect = in
	r.mu.Unlock()
	return board.Section{ID: in.ID}, r.record("update-section")
}

func (r *fakeRemote) DeleteSection(context.Context, string) error {
	r.wait()
	return r.record("delete-section")
}

func (r *fakeRemote) resync(context.Context) ([]board.Section, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return board.CloneSections(r.sections), nil
}

func fixture() []board.Section {
	return []board.Section{
		{
			ID: "s1", Title: "Tools", SectionOrder: board.IntPtr(3), CreatedAt: base,
			Cards: []board.Card{
				{ID: "c1", SectionID: "s1", Title: "One", Type: board.CardTypeURL, URL: "https://1", CreatedAt: base},
				{ID: "c2", SectionID: "s1", Title: "Two", Type: board.CardTypeURL, URL: "https://2", CreatedAt: base.Add(time.Minute)},
			},
		},
		{ID: "s2", Title: "Docs", SectionOrder: board.IntPtr(5), CreatedAt: base, Cards: []board.Card{}},
	}
}

func newController(r *fakeRemote) *Controller {
	r.sections = fixture()
	return New(r, r.resync, fixture(), WithClock(func() time.Time { return base.Add(time.Minute * 30) }))
}

func cardInput() board.CardInput {
	return board.CardInput{SectionID: "s1", Title: "Three", Type: board.CardTypeURL, URL: "https://3"}
}

func TestAddCard_AppliesImmediatelyWithTempID(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	c := newController(r)

	p, err := c.AddCard(context.Background(), cardInput())
	require.NoError(t, err)

	assert.Equal(t, StateApplied, p.State())
	cards := c.Sections()[0].Cards
	require.Len(t, cards, 3)
	assert.True(t, strings.HasPrefix(cards[2].ID, TempIDPrefix))
	assert.Equal(t, board.DefaultIcon, cards[2].Icon)

	close(r.gate)
	require.NoError(t, p.Wait(context.Background()))
}

func TestAddCard_RollbackOnFailure(t *testing.T) {
	r := &fakeRemote{fail: errors.New("insert rejected")}
	c := newController(r)

	p, err := c.AddCard(context.Background(), cardInput())
	require.NoError(t, err)

	err = p.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert rejected")
	assert.Equal(t, StateRolledBack, p.State())

	cards := c.Sections()[0].Cards
	require.Len(t, cards, 2)
	assert.Equal(t, "c1", cards[0].ID)
	assert.Equal(t, "c2", cards[1].ID)
}

func TestAddCard_CommitReplacesTempID(t *testing.T) {
	r := &fakeRemote{}
	c := newController(r)

	p, err := c.AddCard(context.Background(), cardInput())
	require.NoError(t, err)
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, StateResynced, p.State())
	cards := c.Sections()[0].Cards
	require.Len(t, cards, 3)
	for _, card := range cards {
		assert.False(t, strings.HasPrefix(card.ID, TempIDPrefix), "temp id %s survived resync", card.ID)
	}
	assert.Equal(t, "srv-1", cards[2].ID)
}

func TestAddCard_ValidationFailsBeforeRemote(t *testing.T) {
	r := &fakeRemote{}
	c := newController(r)

	in := cardInput()
	in.URL = ""
	_, err := c.AddCard(context.Background(), in)

	assert.ErrorIs(t, err, board.ErrValidation)
	assert.Empty(t, r.calls)
	assert.Len(t, c.Sections()[0].Cards, 2)
}

func TestAddCard_UnknownSection(t *testing.T) {
	c := newController(&fakeRemote{})
	in := cardInput()
	in.SectionID = "nope"

	_, err := c.AddCard(context.Background(), in)

	assert.ErrorIs(t, err, board.ErrNotFound)
}

func TestEditCard_MovesBetweenSectionsAndRollsBack(t *testing.T) {
	r := &fakeRemote{fail: errors.New("update rejected")}
	c := newController(r)

	in := board.CardInput{ID: "c1", SectionID: "s2", Title: "Moved", Type: board.CardTypeCode}
	p, err := c.EditCard(context.Background(), in)
	require.NoError(t, err)

	require.Error(t, p.Wait(context.Background()))

	sections := c.Sections()
	assert.Len(t, sections[0].Cards, 2)
	assert.Equal(t, "One", sections[0].Cards[0].Title)
	assert.Empty(t, sections[1].Cards)
}

func TestEditCard_KeepsCreatedAt(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	c := newController(r)

	in := board.CardInput{ID: "c2", SectionID: "s1", Title: "Renamed", Type: board.CardTypeURL, URL: "https://2"}
	p, err := c.EditCard(context.Background(), in)
	require.NoError(t, err)

	card := c.Sections()[0].Cards[1]
	assert.Equal(t, "Renamed", card.Title)
	assert.Equal(t, base.Add(time.Minute), card.CreatedAt)
	require.NotNil(t, card.UpdatedAt)

	close(r.gate)
	require.NoError(t, p.Wait(context.Background()))
}

func TestDelete_RequiresConfirmation(t *testing.T) {
	r := &fakeRemote{}
	c := newController(r)

	_, err := c.DeleteCard(context.Background(), DeleteRequest{ID: "c1"})
	assert.ErrorIs(t, err, board.ErrNotConfirmed)

	_, err = c.DeleteSection(context.Background(), DeleteRequest{ID: "s1"})
	assert.ErrorIs(t, err, board.ErrNotConfirmed)

	assert.Empty(t, r.calls)
	assert.Len(t, c.Sections(), 2)
}

func TestDeleteCard_Confirmed(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	c := newController(r)

	p, err := c.DeleteCard(context.Background(), DeleteRequest{ID: "c1", Confirmed: true})
	require.NoError(t, err)
	assert.Len(t, c.Sections()[0].Cards, 1)

	close(r.gate)
	require.NoError(t, p.Wait(context.Background()))
	assert.Equal(t, []string{"delete-card"}, r.calls)
}

func TestDeleteSection_RollbackRestoresList(t *testing.T) {
	r := &fakeRemote{fail: errors.New("fk violation")}
	c := newController(r)

	p, err := c.DeleteSection(context.Background(), DeleteRequest{ID: "s1", Confirmed: true})
	require.NoError(t, err)
	require.Error(t, p.Wait(context.Background()))

	sections := c.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, "s1", sections[0].ID)
	assert.Len(t, sections[0].Cards, 2)
}

func TestEditSection_PreservesOrderWhenOmitted(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	c := newController(r)

	p, err := c.EditSection(context.Background(), board.SectionInput{ID: "s2", Title: "Reference"})
	require.NoError(t, err)

	for _, s := range c.Sections() {
		if s.ID == "s2" {
			require.NotNil(t, s.SectionOrder)
			assert.Equal(t, 5, *s.SectionOrder)
			assert.Equal(t, "Reference", s.Title)
		}
	}

	close(r.gate)
	require.NoError(t, p.Wait(context.Background()))
	require.NotNil(t, r.lastSect.SectionOrder)
	assert.Equal(t, 5, *r.lastSect.SectionOrder, "remote receives the preserved order")
}

func TestEditSection_ZeroOrderIsKept(t *testing.T) {
	r := &fakeRemote{}
	c := newController(r)

	p, err := c.EditSection(context.Background(), board.SectionInput{ID: "s2", Title: "Top", SectionOrder: board.IntPtr(0)})
	require.NoError(t, err)
	require.NoError(t, p.Wait(context.Background()))

	require.NotNil(t, r.lastSect.SectionOrder)
	assert.Equal(t, 0, *r.lastSect.SectionOrder)
}

func TestAddSection_DefaultsIDAndOrder(t *testing.T) {
	r := &fakeRemote{gate: make(chan struct{})}
	c := newController(r)

	p, err := c.AddSection(context.Background(), board.SectionInput{Title: "New"})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(p.EntityID, "section_"))
	sections := c.Sections()
	require.Len(t, sections, 3)
	assert.Equal(t, p.EntityID, sections[0].ID, "order 1 sorts before 3 and 5")
	assert.Equal(t, DefaultSectionOrder, *sections[0].SectionOrder)

	close(r.gate)
	require.NoError(t, p.Wait(context.Background()))
}

func TestResyncFailureKeepsConfirmedState(t *testing.T) {
	r := &fakeRemote{}
	r.sections = fixture()
	resyncErr := errors.New("reload failed")
	c := New(r, func(context.Context) ([]board.Section, error) { return nil, resyncErr }, fixture())

	p, err := c.AddCard(context.Background(), cardInput())
	require.NoError(t, err)
	require.NoError(t, p.Wait(context.Background()))

	assert.Equal(t, StateConfirmed, p.State())
	assert.Len(t, c.Sections()[0].Cards, 3)
}

func TestOnChangeNotified(t *testing.T) {
	r := &fakeRemote{fail: errors.New("no")}
	r.sections = fixture()
	var mu sync.Mutex
	var sizes []int
	c := New(r, r.resync, fixture(), WithOnChange(func(s []board.Section) {
		mu.Lock()
		sizes = append(sizes, len(s[0].Cards))
		mu.Unlock()
	}))

	p, err := c.AddCard(context.Background(), cardInput())
	require.NoError(t, err)
	_ = p.Wait(context.Background())
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{3, 2}, sizes)
}

// stalledDelete holds DeleteSection until release is closed, then fails it.
// Every other call goes straight to the embedded remote.
type stalledDelete struct {
	*fakeRemote
	release chan struct{}
}

func (r *stalledDelete) DeleteSection(context.Context, string) error {
	<-r.release
	return errors.New("delete rejected")
}

func sectionByID(sections []board.Section, id string) (board.Section, bool) {
	for _, s := range sections {
		if s.ID == id {
			return s, true
		}
	}
	return board.Section{}, false
}

func TestRollback_KeepsStateResyncedByOtherMutation(t *testing.T) {
	r := &fakeRemote{sections: fixture()}
	remote := &stalledDelete{fakeRemote: r, release: make(chan struct{})}
	c := New(remote, r.resync, fixture(), WithClock(func() time.Time { return base.Add(30 * time.Minute) }))
	ctx := context.Background()

	del, err := c.DeleteSection(ctx, DeleteRequest{ID: "s2", Confirmed: true})
	require.NoError(t, err)

	add, err := c.AddCard(ctx, cardInput())
	require.NoError(t, err)
	require.NoError(t, add.Wait(ctx))
	assert.Equal(t, StateResynced, add.State())

	s1, ok := sectionByID(c.Sections(), "s1")
	require.True(t, ok)
	require.Len(t, s1.Cards, 3)

	close(remote.release)
	require.Error(t, del.Wait(ctx))
	assert.Equal(t, StateRolledBack, del.State())

	sections := c.Sections()
	require.Len(t, sections, 2, "the failed delete must not duplicate s2")
	s1, _ = sectionByID(sections, "s1")
	require.Len(t, s1.Cards, 3)
	assert.Equal(t, "srv-1", s1.Cards[2].ID)
	_, ok = sectionByID(sections, "s2")
	assert.True(t, ok)
}

func TestEditSection_RollbackRestoresTitleAndOrder(t *testing.T) {
	r := &fakeRemote{fail: errors.New("update rejected")}
	c := newController(r)

	p, err := c.EditSection(context.Background(), board.SectionInput{ID: "s2", Title: "First", SectionOrder: board.IntPtr(0)})
	require.NoError(t, err)
	require.Error(t, p.Wait(context.Background()))

	sections := c.Sections()
	require.Len(t, sections, 2)
	assert.Equal(t, "s1", sections[0].ID)
	assert.Equal(t, "Docs", sections[1].Title)
	assert.Equal(t, 5, *sections[1].SectionOrder)
}
