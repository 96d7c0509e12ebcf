// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package postgrest implements store.Store against a hosted database
// exposed through PostgREST (the /rest/v1 API of the database service).
//
// # Description
//
// Every call is one HTTP request. Reads filter with query parameters,
// writes send JSON with "Prefer: return=representation" so the stored row
// comes back. The sections-with-cards join uses PostgREST resource
// embedding, so it costs one request regardless of section count.
//
// # Identifiers
//
// The hosted schema may use integer keys. Ids are normalized to strings
// while decoding so board types stay string-keyed.
//
// # Thread Safety
//
// Safe for concurrent use.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 15 * time.Second

// codeNoRows is PostgREST's error code for a singular request matching
// zero rows.
const codeNoRows = "PGRST116"

// Table names in the hosted schema.
const (
	tableCards    = "cards"
	tableSections = "sections"
	tableSnippets = "code_snippets"
	tableLinks    = "urls"
	tableProfiles = "signin"
)

// embedCards embeds each section's cards through the section foreign key.
const embedCards = "*,cards!cards_section_id_fkey(*)"

// Error is a non-2xx PostgREST response.
type Error struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("postgrest %d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("postgrest %d: %s", e.Status, e.Message)
}

// Unwrap maps the no-rows code to store.ErrNotFound.
func (e *Error) Unwrap() error {
	if e.Code == codeNoRows {
		return store.ErrNotFound
	}
	return nil
}

// Config configures the client.
type Config struct {
	// URL is the project URL, e.g. https://xyz.supabase.co.
	URL string

	// APIKey is the anon key, sent as the apikey header and as the bearer
	// token when the request carries no session token.
	APIKey string

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Store is the PostgREST-backed store.
type Store struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
	now        func() time.Time
}

// New creates a store. URL and APIKey are required.
func New(cfg Config) (*Store, error) {
	if cfg.URL == "" {
		return nil, errors.New("postgrest: URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("postgrest: API key is required")
	}
	if _, err := url.Parse(cfg.URL); err != nil {
		return nil, fmt.Errorf("postgrest: invalid URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: hc,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

// Close is a no-op; the HTTP client holds no exclusive resources.
func (s *Store) Close() error { return nil }

// =============================================================================
// Row Shapes
// =============================================================================

// cardRow is the writable subset of the cards table. URL is a pointer so
// non-url cards store NULL.
type cardRow struct {
	SectionID   string           `json:"section_id,omitempty"`
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Icon        string           `json:"icon"`
	Type        board.CardType   `json:"type"`
	URL         *string          `json:"url"`
	Visibility  board.Visibility `json:"visibility,omitempty"`
	CreatedAt   *time.Time       `json:"created_at,omitempty"`
	UpdatedAt   *time.Time       `json:"updated_at,omitempty"`
}

func newCardRow(in board.CardInput) cardRow {
	row := cardRow{
		SectionID:   in.SectionID,
		Title:       in.Title,
		Description: in.Description,
		Icon:        in.Icon,
		Type:        in.Type,
		Visibility:  in.Visibility,
	}
	if in.Type == board.CardTypeURL && in.URL != "" {
		row.URL = board.StringPtr(in.URL)
	}
	return row
}

type linkRow struct {
	SectionID   *string    `json:"section_id,omitempty"`
	CardID      *string    `json:"card_id,omitempty"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	Description string     `json:"description"`
	Icon        string     `json:"icon"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

// =============================================================================
// Cards
// =============================================================================

func (s *Store) Card(ctx context.Context, id string) (board.Card, error) {
	return one[board.Card](ctx, s, from(tableCards).Select("*").Eq("id", id).Limit("1"), "card "+id)
}

func (s *Store) Cards(ctx context.Context, sectionID string) ([]board.Card, error) {
	var cards []board.Card
	q := from(tableCards).Select("*").Eq("section_id", sectionID).Order("created_at", true)
	if err := s.get(ctx, q, &cards); err != nil {
		return nil, err
	}
	board.SortCards(cards)
	return nonNil(cards), nil
}

func (s *Store) CreateCard(ctx context.Context, in board.CardInput) (board.Card, error) {
	row := newCardRow(in)
	now := s.now()
	row.CreatedAt = &now
	return insertOne[board.Card](ctx, s, tableCards, row)
}

func (s *Store) UpdateCard(ctx context.Context, id string, in board.CardInput) (board.Card, error) {
	row := newCardRow(in)
	now := s.now()
	row.UpdatedAt = &now
	return updateOne[board.Card](ctx, s, from(tableCards).Eq("id", id), row, "card "+id)
}

func (s *Store) DeleteCard(ctx context.Context, id string) error {
	return s.delete(ctx, from(tableCards).Eq("id", id))
}

// =============================================================================
// Sections
// =============================================================================

func (s *Store) Section(ctx context.Context, id string) (board.Section, error) {
	return one[board.Section](ctx, s, from(tableSections).Select("*").Eq("id", id).Limit("1"), "section "+id)
}

func (s *Store) Sections(ctx context.Context, parentCardID string) ([]board.Section, error) {
	var sections []board.Section
	q := withParent(from(tableSections).Select("*"), parentCardID).Order("section_order", true)
	if err := s.get(ctx, q, &sections); err != nil {
		return nil, err
	}
	board.SortSections(sections)
	return nonNil(sections), nil
}

// ListSectionsWithCards issues a single embedded-resource request. The
// result is re-sorted with the shared comparator, since the database
// orders nulls differently.
func (s *Store) ListSectionsWithCards(ctx context.Context, parentCardID string, includeHidden bool) ([]board.Section, error) {
	q := withParent(from(tableSections).Select(embedCards), parentCardID).
		Order("section_order", true).
		ForeignOrder(tableCards, "created_at", true)
	if !includeHidden {
		q.NotLike("id", board.HiddenSectionPrefix+"*")
	}

	var sections []board.Section
	if err := s.get(ctx, q, &sections); err != nil {
		return nil, err
	}
	if !includeHidden {
		sections = board.WithoutHidden(sections)
	}
	board.SortSections(sections)
	return nonNil(sections), nil
}

func (s *Store) CreateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	row := map[string]any{
		"id":             in.ID,
		"title":          in.Title,
		"section_order":  in.SectionOrder,
		"parent_card_id": in.ParentCardID,
	}
	section, err := insertOne[board.Section](ctx, s, tableSections, row)
	if err != nil {
		return board.Section{}, err
	}
	if section.Cards == nil {
		section.Cards = []board.Card{}
	}
	return section, nil
}

// UpdateSection sends only the columns that change; a nil order or parent
// leaves the stored value alone.
func (s *Store) UpdateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	row := map[string]any{"title": in.Title}
	if in.SectionOrder != nil {
		row["section_order"] = *in.SectionOrder
	}
	if in.ParentCardID != nil {
		row["parent_card_id"] = *in.ParentCardID
	}
	section, err := updateOne[board.Section](ctx, s, from(tableSections).Eq("id", in.ID), row, "section "+in.ID)
	if err != nil {
		return board.Section{}, err
	}
	if section.Cards == nil {
		section.Cards = []board.Card{}
	}
	return section, nil
}

func (s *Store) DeleteSection(ctx context.Context, id string) error {
	return s.delete(ctx, from(tableSections).Eq("id", id))
}

// =============================================================================
// Snippets
// =============================================================================

func (s *Store) Snippets(ctx context.Context, cardID string) ([]board.CodeSnippet, error) {
	var snippets []board.CodeSnippet
	q := from(tableSnippets).Select("*").Eq("card_id", cardID).Order("created_at", false)
	if err := s.get(ctx, q, &snippets); err != nil {
		return nil, err
	}
	return nonNil(snippets), nil
}

func (s *Store) CreateSnippet(ctx context.Context, in board.SnippetInput) (board.CodeSnippet, error) {
	return insertOne[board.CodeSnippet](ctx, s, tableSnippets, in)
}

func (s *Store) UpdateSnippet(ctx context.Context, id, title, content string) (board.CodeSnippet, error) {
	row := map[string]any{"title": title, "content": content, "updated_at": s.now()}
	return updateOne[board.CodeSnippet](ctx, s, from(tableSnippets).Eq("id", id), row, "snippet "+id)
}

func (s *Store) DeleteSnippet(ctx context.Context, id string) error {
	return s.delete(ctx, from(tableSnippets).Eq("id", id))
}

// =============================================================================
// Links
// =============================================================================

func (s *Store) Links(ctx context.Context, filter store.LinkFilter) ([]board.Link, error) {
	q := from(tableLinks).Select("*")
	if filter.SectionID != "" {
		q.Eq("section_id", filter.SectionID).IsNull("card_id")
	} else {
		q.Eq("card_id", filter.CardID).IsNull("section_id")
	}
	q.Order("created_at", true)

	var links []board.Link
	if err := s.get(ctx, q, &links); err != nil {
		return nil, err
	}
	return nonNil(links), nil
}

func (s *Store) Link(ctx context.Context, id string) (board.Link, error) {
	return one[board.Link](ctx, s, from(tableLinks).Select("*").Eq("id", id).Limit("1"), "link "+id)
}

func (s *Store) CreateLink(ctx context.Context, in board.LinkInput) (board.Link, error) {
	row := linkRow{
		SectionID:   in.SectionID,
		CardID:      in.CardID,
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		Icon:        store.LinkIcon(in.Icon),
	}
	return insertOne[board.Link](ctx, s, tableLinks, row)
}

func (s *Store) UpdateLink(ctx context.Context, id string, in board.LinkInput) (board.Link, error) {
	now := s.now()
	row := linkRow{
		Title:       in.Title,
		URL:         in.URL,
		Description: in.Description,
		Icon:        store.LinkIcon(in.Icon),
		UpdatedAt:   &now,
	}
	return updateOne[board.Link](ctx, s, from(tableLinks).Eq("id", id), row, "link "+id)
}

func (s *Store) DeleteLink(ctx context.Context, id string) error {
	return s.delete(ctx, from(tableLinks).Eq("id", id))
}

// =============================================================================
// Profiles
// =============================================================================

func (s *Store) ProfileByEmail(ctx context.Context, email string) (board.Profile, error) {
	return one[board.Profile](ctx, s, from(tableProfiles).Select("*").Eq("email", email).Limit("1"), "profile "+email)
}

func (s *Store) Profiles(ctx context.Context) ([]board.Profile, error) {
	var profiles []board.Profile
	if err := s.get(ctx, from(tableProfiles).Select("*").Order("created_at", false), &profiles); err != nil {
		return nil, err
	}
	return nonNil(profiles), nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, update store.ProfileUpdate) error {
	row := map[string]any{"role": update.Role, "status": update.Status, "updated_at": s.now()}
	_, err := updateOne[board.Profile](ctx, s, from(tableProfiles).Eq("id", id), row, "profile "+id)
	return err
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	return s.delete(ctx, from(tableProfiles).Eq("id", id))
}

// =============================================================================
// Transport
// =============================================================================

func (s *Store) get(ctx context.Context, q *query, out any) error {
	return s.do(ctx, http.MethodGet, q, nil, out)
}

func (s *Store) delete(ctx context.Context, q *query) error {
	return s.do(ctx, http.MethodDelete, q, nil, nil)
}

func one[T any](ctx context.Context, s *Store, q *query, what string) (T, error) {
	var zero T
	var rows []T
	if err := s.get(ctx, q, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return rows[0], nil
}

func insertOne[T any](ctx context.Context, s *Store, table string, row any) (T, error) {
	var zero T
	var rows []T
	if err := s.do(ctx, http.MethodPost, from(table), []any{row}, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("insert into %s returned no rows", table)
	}
	return rows[0], nil
}

// updateOne PATCHes the rows matched by q and returns the first. No match
// is store.ErrNotFound.
func updateOne[T any](ctx context.Context, s *Store, q *query, row any, what string) (T, error) {
	var zero T
	var rows []T
	if err := s.do(ctx, http.MethodPatch, q, row, &rows); err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, fmt.Errorf("%s: %w", what, store.ErrNotFound)
	}
	return rows[0], nil
}

func (s *Store) do(ctx context.Context, method string, q *query, in, out any) error {
	endpoint := s.baseURL + q.Path()
	if v := q.Values(); len(v) > 0 {
		endpoint += "?" + v.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	token := store.AccessToken(ctx)
	if token == "" {
		token = s.apiKey
	}
	req.Header.Set("apikey", s.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost || method == http.MethodPatch {
		req.Header.Set("Prefer", "return=representation")
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, q.table, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		perr := &Error{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, perr); jsonErr != nil || perr.Message == "" {
			perr.Message = strings.TrimSpace(string(data))
		}
		s.logger.Warn("postgrest request failed",
			"method", method, "table", q.table, "status", resp.StatusCode, "code", perr.Code)
		return perr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	data, err = normalizeIDs(data)
	if err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// idFields are converted from JSON numbers to strings.
var idFields = map[string]bool{
	"id":             true,
	"section_id":     true,
	"card_id":        true,
	"parent_card_id": true,
}

// normalizeIDs rewrites numeric id columns as strings, recursing into
// embedded resources.
func normalizeIDs(data []byte) ([]byte, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if !rewriteIDs(v) {
		return data, nil
	}
	return json.Marshal(v)
}

func rewriteIDs(v any) bool {
	changed := false
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if n, ok := val.(json.Number); ok && idFields[k] {
				t[k] = n.String()
				changed = true
				continue
			}
			if rewriteIDs(val) {
				changed = true
			}
		}
	case []any:
		for _, item := range t {
			if rewriteIDs(item) {
				changed = true
			}
		}
	}
	return changed
}

func withParent(q *query, parentCardID string) *query {
	if parentCardID == "" {
		return q.IsNull("parent_card_id")
	}
	return q.Eq("parent_card_id", parentCardID)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

var _ store.Store = (*Store)(nil)
