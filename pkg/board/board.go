// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package board defines the dashboard data model shared by the server and
// the client-side state packages.
//
// # Model
//
// A dashboard is a card of type "dashboard". Resolving it yields a
// DashboardTree: the card itself plus its sections, each section embedding
// its cards. Root sections have no parent card.
//
//	DashboardTree
//	   ├── Dashboard (Card, type=dashboard)
//	   └── Sections (ordered by SectionOrder, then CreatedAt)
//	          └── Cards (ordered by CreatedAt)
//
// # Subpackages
//
//   - cache: injectable TTL cache
//   - client: HTTP client for the REST boundary
//   - tree: dashboard tree assembler (N+1 path)
//   - fetch: cached resource fetchers with bulk/fallback chains
//   - mutation: optimistic mutation controller
//   - form: modal/form controller
package board

import (
	"errors"
	"strings"
	"time"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// ErrNotFound is returned when a dashboard, card, section or snippet id
	// does not resolve.
	ErrNotFound = errors.New("not found")

	// ErrValidation wraps required-field failures on mutation inputs.
	ErrValidation = errors.New("validation failed")

	// ErrNotConfirmed is returned when a delete request arrives without the
	// caller's confirmation.
	ErrNotConfirmed = errors.New("delete not confirmed")
)

// =============================================================================
// Enumerations
// =============================================================================

// CardType identifies what a card opens.
type CardType string

const (
	CardTypeURL       CardType = "url"
	CardTypeDashboard CardType = "dashboard"
	CardTypeCode      CardType = "code"
)

// Visibility restricts which viewers see a card. The zero value behaves
// like VisibilityAll.
type Visibility string

const (
	VisibilityAdmin Visibility = "admin"
	VisibilityUser  Visibility = "user"
	VisibilityAll   Visibility = "all"
)

// Role values stored in the signin table.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// DefaultIcon is used whenever a card is saved without an icon.
const DefaultIcon = "logo.png"

// DefaultLinkIcon is used for standalone links saved without an icon.
const DefaultLinkIcon = "logo_link.png"

// HiddenSectionPrefix marks sections that are excluded from dashboard trees.
const HiddenSectionPrefix = "hidden_"

// =============================================================================
// Entities
// =============================================================================

// Card is a single tile: an external link, a sub-dashboard or a code board.
type Card struct {
	ID          string     `json:"id"`
	SectionID   string     `json:"section_id,omitempty"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	Type        CardType   `json:"type"`
	URL         string     `json:"url,omitempty"`
	Visibility  Visibility `json:"visibility,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// IsDashboard reports whether the card resolves to another DashboardTree.
func (c Card) IsDashboard() bool {
	return c.Type == CardTypeDashboard
}

// Section is an ordered, titled group of cards.
type Section struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	SectionOrder *int      `json:"section_order"`
	ParentCardID *string   `json:"parent_card_id"`
	CreatedAt    time.Time `json:"created_at"`
	Cards        []Card    `json:"cards"`
}

// IsHidden reports whether the section id carries the hidden prefix.
func (s Section) IsHidden() bool {
	return strings.HasPrefix(s.ID, HiddenSectionPrefix)
}

// Clone returns a deep copy of the section, including its cards.
func (s Section) Clone() Section {
	out := s
	if s.SectionOrder != nil {
		order := *s.SectionOrder
		out.SectionOrder = &order
	}
	if s.ParentCardID != nil {
		parent := *s.ParentCardID
		out.ParentCardID = &parent
	}
	if s.Cards != nil {
		out.Cards = make([]Card, len(s.Cards))
		copy(out.Cards, s.Cards)
	}
	return out
}

// CloneSections deep-copies a section list.
func CloneSections(sections []Section) []Section {
	if sections == nil {
		return nil
	}
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
	}
	return out
}

// DashboardTree is a dashboard card together with its ordered sections.
type DashboardTree struct {
	Dashboard Card      `json:"dashboard"`
	Sections  []Section `json:"sections"`
}

// CodeSnippet belongs to a card of type "code".
type CodeSnippet struct {
	ID        string     `json:"id"`
	CardID    string     `json:"card_id"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Link is a standalone URL entry attached to either a section or a card.
type Link struct {
	ID          string    `json:"id"`
	SectionID   *string   `json:"section_id"`
	CardID      *string   `json:"card_id"`
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile is a row of the signin table.
type Profile struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name,omitempty"`
	AvatarURL string     `json:"avatar_url,omitempty"`
	Role      string     `json:"role"`
	Status    string     `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// User is the authenticated identity joined with its profile.
type User struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role,omitempty"`
	Status    string `json:"status,omitempty"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IntPtr is a helper for optional section orders.
func IntPtr(v int) *int {
	return &v
}

// StringPtr is a helper for optional parent ids.
func StringPtr(v string) *string {
	return &v
}
