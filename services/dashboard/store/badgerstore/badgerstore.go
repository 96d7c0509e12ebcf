// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package badgerstore implements store.Store on an embedded BadgerDB.
//
// # Layout
//
// Every entity is a JSON value under a typed prefix:
//
//	card/<id>      board.Card
//	section/<id>   board.Section (without cards)
//	snippet/<id>   board.CodeSnippet
//	link/<id>      board.Link
//	profile/<id>   board.Profile
//
// Listings scan a prefix and filter in memory. Dashboards hold tens of
// entities, not millions.
//
// # Thread Safety
//
// Safe for concurrent use; BadgerDB transactions provide isolation.
package badgerstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

const (
	prefixCard    = "card/"
	prefixSection = "section/"
	prefixSnippet = "snippet/"
	prefixLink    = "link/"
	prefixProfile = "profile/"
)

// Store is the BadgerDB-backed store.
type Store struct {
	db     *badger.DB
	gc     *gcRunner
	logger *slog.Logger
	now    func() time.Time
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Store{db: db, logger: logger, now: func() time.Time { return time.Now().UTC() }}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		gc, err := startGC(db, cfg.GCInterval, cfg.GCDiscardRatio, logger)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("start GC runner: %w", err)
		}
		s.gc = gc
	}
	return s, nil
}

// Close stops GC and closes the database.
func (s *Store) Close() error {
	if s.gc != nil {
		s.gc.stop()
	}
	return s.db.Close()
}

// =============================================================================
// Cards
// =============================================================================

func (s *Store) Card(ctx context.Context, id string) (board.Card, error) {
	var card board.Card
	err := s.get(ctx, prefixCard+id, &card)
	return card, err
}

func (s *Store) Cards(ctx context.Context, sectionID string) ([]board.Card, error) {
	cards, err := scan(ctx, s.db, prefixCard, func(c board.Card) bool {
		return c.SectionID == sectionID
	})
	if err != nil {
		return nil, err
	}
	board.SortCards(cards)
	return cards, nil
}

func (s *Store) CreateCard(ctx context.Context, in board.CardInput) (board.Card, error) {
	card := store.CardFromInput(uuid.NewString(), in, s.now())
	if err := s.put(ctx, prefixCard+card.ID, card); err != nil {
		return board.Card{}, err
	}
	return card, nil
}

// UpdateCard replaces the card's editable fields. The owning section is kept
// when in.SectionID is empty.
func (s *Store) UpdateCard(ctx context.Context, id string, in board.CardInput) (board.Card, error) {
	var out board.Card
	err := s.modify(ctx, prefixCard+id, &out, func() {
		next := store.CardFromInput(id, in, out.CreatedAt)
		if next.SectionID == "" {
			next.SectionID = out.SectionID
		}
		now := s.now()
		next.UpdatedAt = &now
		out = next
	})
	return out, err
}

// DeleteCard removes the card with its snippets, links and child sections.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteCardTxn(txn, id)
	})
}

// =============================================================================
// Sections
// =============================================================================

func (s *Store) Section(ctx context.Context, id string) (board.Section, error) {
	var section board.Section
	err := s.get(ctx, prefixSection+id, &section)
	return section, err
}

func (s *Store) Sections(ctx context.Context, parentCardID string) ([]board.Section, error) {
	sections, err := scan(ctx, s.db, prefixSection, func(sec board.Section) bool {
		return parentOf(sec) == parentCardID
	})
	if err != nil {
		return nil, err
	}
	board.SortSections(sections)
	return sections, nil
}

func (s *Store) ListSectionsWithCards(ctx context.Context, parentCardID string, includeHidden bool) ([]board.Section, error) {
	sections, err := s.Sections(ctx, parentCardID)
	if err != nil {
		return nil, err
	}
	if !includeHidden {
		sections = board.WithoutHidden(sections)
	}
	if len(sections) == 0 {
		return []board.Section{}, nil
	}

	index := make(map[string]int, len(sections))
	for i, sec := range sections {
		index[sec.ID] = i
		sections[i].Cards = []board.Card{}
	}
	cards, err := scan(ctx, s.db, prefixCard, func(c board.Card) bool {
		_, ok := index[c.SectionID]
		return ok
	})
	if err != nil {
		return nil, err
	}
	for _, c := range cards {
		i := index[c.SectionID]
		sections[i].Cards = append(sections[i].Cards, c)
	}
	board.SortSections(sections)
	return sections, nil
}

func (s *Store) CreateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	section := board.Section{
		ID:           in.ID,
		Title:        in.Title,
		SectionOrder: in.SectionOrder,
		ParentCardID: in.ParentCardID,
		CreatedAt:    s.now(),
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(prefixSection + in.ID)); err == nil {
			return fmt.Errorf("section %s already exists", in.ID)
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}
		return setJSON(txn, prefixSection+in.ID, section)
	})
	if err != nil {
		return board.Section{}, err
	}
	section.Cards = []board.Card{}
	return section, nil
}

// UpdateSection changes the title. Order and parent are kept when nil.
func (s *Store) UpdateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	var out board.Section
	err := s.modify(ctx, prefixSection+in.ID, &out, func() {
		out.Title = in.Title
		if in.SectionOrder != nil {
			out.SectionOrder = board.IntPtr(*in.SectionOrder)
		}
		if in.ParentCardID != nil {
			out.ParentCardID = board.StringPtr(*in.ParentCardID)
		}
	})
	if out.Cards == nil {
		out.Cards = []board.Card{}
	}
	return out, err
}

// DeleteSection removes the section and every card in it.
func (s *Store) DeleteSection(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return deleteSectionTxn(txn, id)
	})
}

// =============================================================================
// Snippets
// =============================================================================

func (s *Store) Snippets(ctx context.Context, cardID string) ([]board.CodeSnippet, error) {
	snippets, err := scan(ctx, s.db, prefixSnippet, func(sn board.CodeSnippet) bool {
		return sn.CardID == cardID
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(snippets, func(a, b board.CodeSnippet) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return snippets, nil
}

func (s *Store) CreateSnippet(ctx context.Context, in board.SnippetInput) (board.CodeSnippet, error) {
	snippet := board.CodeSnippet{
		ID:        uuid.NewString(),
		CardID:    in.CardID,
		Title:     in.Title,
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	if err := s.put(ctx, prefixSnippet+snippet.ID, snippet); err != nil {
		return board.CodeSnippet{}, err
	}
	return snippet, nil
}

func (s *Store) UpdateSnippet(ctx context.Context, id, title, content string) (board.CodeSnippet, error) {
	var out board.CodeSnippet
	err := s.modify(ctx, prefixSnippet+id, &out, func() {
		now := s.now()
		out.Title = title
		out.Content = content
		out.UpdatedAt = &now
	})
	return out, err
}

func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	return s.delete(ctx, prefixSnippet+id)
}

// =============================================================================
// Links
// =============================================================================

func (s *Store) Links(ctx context.Context, filter store.LinkFilter) ([]board.Link, error) {
	links, err := scan(ctx, s.db, prefixLink, func(l board.Link) bool {
		if filter.SectionID != "" {
			return l.SectionID != nil && *l.SectionID == filter.SectionID && l.CardID == nil
		}
		return l.CardID != nil && *l.CardID == filter.CardID && l.SectionID == nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(links, func(a, b board.Link) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return links, nil
}

func (s *Store) Link(ctx context.Context, id string) (board.Link, error) {
	var link board.Link
	err := s.get(ctx, prefixLink+id, &link)
	return link, err
}

func (s *Store) CreateLink(ctx context.Context, in board.LinkInput) (board.Link, error) {
	link := board.Link{
		ID:          uuid.NewString(),
		SectionID:   in.SectionID,
		CardID:      in.CardID,
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		Icon:        store.LinkIcon(in.Icon),
		CreatedAt:   s.now(),
	}
	if err := s.put(ctx, prefixLink+link.ID, link); err != nil {
		return board.Link{}, err
	}
	return link, nil
}

// UpdateLink changes the link's content; its parent is fixed at creation.
func (s *Store) UpdateLink(ctx context.Context, id string, in board.LinkInput) (board.Link, error) {
	var out board.Link
	err := s.modify(ctx, prefixLink+id, &out, func() {
		out.Title = in.Title
		out.URL = in.URL
		out.Description = in.Description
		out.Icon = store.LinkIcon(in.Icon)
	})
	return out, err
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return s.delete(ctx, prefixLink+id)
}

// =============================================================================
// Profiles
// =============================================================================

func (s *Store) ProfileByEmail(ctx context.Context, email string) (board.Profile, error) {
	profiles, err := scan(ctx, s.db, prefixProfile, func(p board.Profile) bool {
		return strings.EqualFold(p.Email, email)
	})
	if err != nil {
		return board.Profile{}, err
	}
	if len(profiles) == 0 {
		return board.Profile{}, fmt.Errorf("profile %s: %w", email, store.ErrNotFound)
	}
	return profiles[0], nil
}

func (s *Store) Profiles(ctx context.Context) ([]board.Profile, error) {
	profiles, err := scan[board.Profile](ctx, s.db, prefixProfile, nil)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(profiles, func(a, b board.Profile) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return profiles, nil
}

// UpsertProfile writes a profile, assigning an id and creation time when
// missing. Used to bootstrap the first admin on a fresh store.
func (s *Store) UpsertProfile(ctx context.Context, p board.Profile) (board.Profile, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	if err := s.put(ctx, prefixProfile+p.ID, p); err != nil {
		return board.Profile{}, err
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, update store.ProfileUpdate) error {
	var out board.Profile
	return s.modify(ctx, prefixProfile+id, &out, func() {
		now := s.now()
		out.Role = update.Role
		out.Status = update.Status
		out.UpdatedAt = &now
	})
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.delete(ctx, prefixProfile+id)
}

// =============================================================================
// Helpers
// =============================================================================

func (s *Store) get(ctx context.Context, key string, out any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return getJSON(txn, key, out)
	})
}

func (s *Store) put(ctx context.Context, key string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, v)
	})
}

func (s *Store) delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// modify loads key into out, applies fn and writes out back in one
// transaction.
func (s *Store) modify(ctx context.Context, key string, out any, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := getJSON(txn, key, out); err != nil {
			return err
		}
		fn()
		return setJSON(txn, key, out)
	})
}

func getJSON(txn *badger.Txn, key string, out any) error {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, out)
	})
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

// scan decodes every value under prefix and keeps those accepted by keep
// (all when keep is nil). The result is never nil.
func scan[T any](ctx context.Context, db *badger.DB, prefix string, keep func(T) bool) ([]T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var out []T
	err := db.View(func(txn *badger.Txn) error {
		var err error
		out, err = scanTxn(txn, prefix, keep, []T{})
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func scanTxn[T any](txn *badger.Txn, prefix string, keep func(T) bool, out []T) ([]T, error) {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		var v T
		if err := it.Item().Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("decode %s: %w", it.Item().Key(), err)
		}
		if keep == nil || keep(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

func deleteCardTxn(txn *badger.Txn, id string) error {
	snippets, err := scanTxn(txn, prefixSnippet, func(sn board.CodeSnippet) bool {
		return sn.CardID == id
	}, nil)
	if err != nil {
		return err
	}
	for _, sn := range snippets {
		if err := txn.Delete([]byte(prefixSnippet + sn.ID)); err != nil {
			return err
		}
	}

	links, err := scanTxn(txn, prefixLink, func(l board.Link) bool {
		return l.CardID != nil && *l.CardID == id
	}, nil)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := txn.Delete([]byte(prefixLink + l.ID)); err != nil {
			return err
		}
	}

	children, err := scanTxn(txn, prefixSection, func(sec board.Section) bool {
		return parentOf(sec) == id
	}, nil)
	if err != nil {
		return err
	}
	for _, sec := range children {
		if err := deleteSectionTxn(txn, sec.ID); err != nil {
			return err
		}
	}
	return txn.Delete([]byte(prefixCard + id))
}

func deleteSectionTxn(txn *badger.Txn, id string) error {
	cards, err := scanTxn(txn, prefixCard, func(c board.Card) bool {
		return c.SectionID == id
	}, nil)
	if err != nil {
		return err
	}
	for _, c := range cards {
		if err := deleteCardTxn(txn, c.ID); err != nil {
			return err
		}
	}

	links, err := scanTxn(txn, prefixLink, func(l board.Link) bool {
		return l.SectionID != nil && *l.SectionID == id
	}, nil)
	if err != nil {
		return err
	}
	for _, l := range links {
		if err := txn.Delete([]byte(prefixLink + l.ID)); err != nil {
			return err
		}
	}
	return txn.Delete([]byte(prefixSection + id))
}

func parentOf(sec board.Section) string {
	if sec.ParentCardID == nil {
		return ""
	}
	return *sec.ParentCardID
}

var _ store.Store = (*Store)(nil)
