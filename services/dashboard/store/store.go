// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package store defines the persistence contract of the dashboard server.
//
// # Backends
//
//   - postgrest: the hosted database, reached over its REST API
//   - badgerstore: an embedded key-value store for self-hosting and tests
//
// Both backends return board.ErrNotFound (wrapped) for ids that do not
// resolve, so handlers can map it to 404 with errors.Is.
package store

import (
	"context"
	"time"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/tree"
)

// ErrNotFound is board.ErrNotFound, re-exported for backend code.
var ErrNotFound = board.ErrNotFound

// LinkFilter selects links by their single parent. Exactly one field is
// set.
type LinkFilter struct {
	SectionID string
	CardID    string
}

// ProfileUpdate changes a profile's role and status.
type ProfileUpdate struct {
	Role   string `json:"role" validate:"required,oneof=admin user"`
	Status string `json:"status" validate:"required"`
}

// Store is the persistence contract.
//
// # Description
//
// Store embeds tree.Source so the N+1 assembler can run against it
// directly. ListSectionsWithCards is the bulk join; it returns the same
// shape the assembler produces.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type Store interface {
	tree.Source

	// ListSectionsWithCards returns the sections under parentCardID (""
	// for root) with embedded cards, ordered by board.SortSections. Hidden
	// sections are dropped unless includeHidden is set.
	ListSectionsWithCards(ctx context.Context, parentCardID string, includeHidden bool) ([]board.Section, error)

	CreateCard(ctx context.Context, in board.CardInput) (board.Card, error)
	UpdateCard(ctx context.Context, id string, in board.CardInput) (board.Card, error)
	DeleteCard(ctx context.Context, id string) error

	Section(ctx context.Context, id string) (board.Section, error)
	CreateSection(ctx context.Context, in board.SectionInput) (board.Section, error)
	// UpdateSection keeps the stored order when in.SectionOrder is nil.
	UpdateSection(ctx context.Context, in board.SectionInput) (board.Section, error)
	DeleteSection(ctx context.Context, id string) error

	// Snippets lists a card's snippets, newest first.
	Snippets(ctx context.Context, cardID string) ([]board.CodeSnippet, error)
	CreateSnippet(ctx context.Context, in board.SnippetInput) (board.CodeSnippet, error)
	// UpdateSnippet returns ErrNotFound when no row matched.
	UpdateSnippet(ctx context.Context, id, title, content string) (board.CodeSnippet, error)
	DeleteSnippet(ctx context.Context, id string) error

	// Links lists links under one parent, oldest first.
	Links(ctx context.Context, filter LinkFilter) ([]board.Link, error)
	Link(ctx context.Context, id string) (board.Link, error)
	CreateLink(ctx context.Context, in board.LinkInput) (board.Link, error)
	UpdateLink(ctx context.Context, id string, in board.LinkInput) (board.Link, error)
	DeleteLink(ctx context.Context, id string) error

	ProfileByEmail(ctx context.Context, email string) (board.Profile, error)
	// Profiles lists every profile, newest first.
	Profiles(ctx context.Context) ([]board.Profile, error)
	UpdateProfile(ctx context.Context, id string, update ProfileUpdate) error
	DeleteProfile(ctx context.Context, id string) error

	Close() error
}

type accessTokenKey struct{}

// WithAccessToken attaches the caller's session token so backends that
// enforce row-level security can act on the caller's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, accessTokenKey{}, token)
}

// AccessToken returns the token set by WithAccessToken, or "".
func AccessToken(ctx context.Context) string {
	token, _ := ctx.Value(accessTokenKey{}).(string)
	return token
}

// CardFromInput builds the stored card for an insert or update.
func CardFromInput(id string, in board.CardInput, now time.Time) board.Card {
	card := in.Card(id)
	card.CreatedAt = now
	return card
}

// LinkIcon returns the icon, falling back to board.DefaultLinkIcon.
func LinkIcon(icon string) string {
	if icon == "" {
		return board.DefaultLinkIcon
	}
	return icon
}
