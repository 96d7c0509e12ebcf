// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package postgrest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// recorded captures the last request the fake server saw.
type recorded struct {
	method string
	path   string
	query  url.Values
	header http.Header
	body   []byte
}

func newTestStore(t *testing.T, status int, response string) (*Store, *recorded) {
	t.Helper()
	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.query = r.URL.Query()
		rec.header = r.Header.Clone()
		rec.body, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	s, err := New(Config{URL: srv.URL + "/", APIKey: "anon-key"})
	require.NoError(t, err)
	return s, rec
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "https://db.example.com"})
	assert.Error(t, err)
}

func TestQuery_Values(t *testing.T) {
	q := from("sections").Select(embedCards).IsNull("parent_card_id").
		Order("section_order", true).Order("created_at", false).
		ForeignOrder("cards", "created_at", true).NotLike("id", "hidden_*")

	v := q.Values()
	assert.Equal(t, "/rest/v1/sections", q.Path())
	assert.Equal(t, embedCards, v.Get("select"))
	assert.Equal(t, "is.null", v.Get("parent_card_id"))
	assert.Equal(t, "section_order.asc,created_at.desc", v.Get("order"))
	assert.Equal(t, "created_at.asc", v.Get("cards.order"))
	assert.Equal(t, "not.like.hidden_*", v.Get("id"))
}

func TestCard_NumericIDsAndHeaders(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK,
		`[{"id":42,"section_id":7,"title":"Grafana","description":"","icon":"g.png","type":"url","url":"https://g","created_at":"2025-01-01T00:00:00Z"}]`)

	card, err := s.Card(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "42", card.ID)
	assert.Equal(t, "7", card.SectionID)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/rest/v1/cards", rec.path)
	assert.Equal(t, "eq.42", rec.query.Get("id"))
	assert.Equal(t, "anon-key", rec.header.Get("apikey"))
	assert.Equal(t, "Bearer anon-key", rec.header.Get("Authorization"))
}

func TestCard_SessionTokenForwarded(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[{"id":"c1"}]`)

	ctx := store.WithAccessToken(context.Background(), "user-jwt")
	_, err := s.Card(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "Bearer user-jwt", rec.header.Get("Authorization"))
	assert.Equal(t, "anon-key", rec.header.Get("apikey"))
}

func TestCard_EmptyIsNotFound(t *testing.T) {
	s, _ := newTestStore(t, http.StatusOK, `[]`)

	_, err := s.Card(context.Background(), "missing")
	assert.ErrorIs(t, err, board.ErrNotFound)
}

func TestError_NoRowsCodeIsNotFound(t *testing.T) {
	s, _ := newTestStore(t, http.StatusNotAcceptable,
		`{"code":"PGRST116","message":"JSON object requested, multiple (or no) rows returned"}`)

	_, err := s.Section(context.Background(), "x")
	assert.ErrorIs(t, err, store.ErrNotFound)

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, http.StatusNotAcceptable, perr.Status)
}

func TestError_ServerFailure(t *testing.T) {
	s, _ := newTestStore(t, http.StatusInternalServerError, `upstream exploded`)

	_, err := s.Cards(context.Background(), "s1")
	require.Error(t, err)
	assert.False(t, errors.Is(err, store.ErrNotFound))

	var perr *Error
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "upstream exploded", perr.Message)
}

func TestListSectionsWithCards_BulkRequest(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[
		{"id":"b","title":"B","section_order":null,"parent_card_id":"d1","created_at":"2025-01-01T00:00:00Z","cards":[]},
		{"id":"a","title":"A","section_order":1,"parent_card_id":"d1","created_at":"2025-01-02T00:00:00Z","cards":[
			{"id":2,"section_id":"a","title":"second","created_at":"2025-01-03T00:00:00Z"},
			{"id":1,"section_id":"a","title":"first","created_at":"2025-01-02T00:00:00Z"}
		]},
		{"id":"hidden_x","title":"H","section_order":0,"parent_card_id":"d1","created_at":"2025-01-01T00:00:00Z"}
	]`)

	sections, err := s.ListSectionsWithCards(context.Background(), "d1", false)
	require.NoError(t, err)

	assert.Equal(t, "eq.d1", rec.query.Get("parent_card_id"))
	assert.Equal(t, embedCards, rec.query.Get("select"))
	assert.Equal(t, "not.like.hidden_*", rec.query.Get("id"))
	assert.Equal(t, "created_at.asc", rec.query.Get("cards.order"))

	require.Len(t, sections, 2, "hidden sections are dropped even if the server returns them")
	assert.Equal(t, "a", sections[0].ID, "ordered sections precede unordered ones")
	require.Len(t, sections[0].Cards, 2)
	assert.Equal(t, "1", sections[0].Cards[0].ID)
	assert.Equal(t, "b", sections[1].ID)
	assert.NotNil(t, sections[1].Cards)
}

func TestSections_RootFilter(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[]`)

	sections, err := s.Sections(context.Background(), "")
	require.NoError(t, err)
	assert.NotNil(t, sections)
	assert.Equal(t, "is.null", rec.query.Get("parent_card_id"))
}

func TestCreateCard_InsertBody(t *testing.T) {
	s, rec := newTestStore(t, http.StatusCreated, `[{"id":"new","title":"Docs","type":"code"}]`)

	card, err := s.CreateCard(context.Background(), board.CardInput{
		SectionID: "s1", Title: "Docs", Type: board.CardTypeCode, Icon: "logo.png", URL: "ignored",
	})
	require.NoError(t, err)
	assert.Equal(t, "new", card.ID)

	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "return=representation", rec.header.Get("Prefer"))

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "s1", rows[0]["section_id"])
	assert.Nil(t, rows[0]["url"], "non-url cards store a null url")
	assert.Contains(t, rows[0], "created_at")
}

func TestUpdateSection_OmitsNilOrder(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[{"id":"s1","title":"New","section_order":3}]`)

	section, err := s.UpdateSection(context.Background(), board.SectionInput{ID: "s1", Title: "New"})
	require.NoError(t, err)
	assert.Equal(t, 3, *section.SectionOrder)
	assert.NotNil(t, section.Cards)

	assert.Equal(t, http.MethodPatch, rec.method)
	assert.Equal(t, "eq.s1", rec.query.Get("id"))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &body))
	assert.Equal(t, "New", body["title"])
	assert.NotContains(t, body, "section_order")
	assert.NotContains(t, body, "parent_card_id")
}

func TestUpdateSnippet_NoRowsIsNotFound(t *testing.T) {
	s, _ := newTestStore(t, http.StatusOK, `[]`)

	_, err := s.UpdateSnippet(context.Background(), "gone", "t", "c")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestLinks_ParentFilters(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[{"id":5,"card_id":9,"section_id":null,"title":"x","url":"https://x"}]`)

	links, err := s.Links(context.Background(), store.LinkFilter{CardID: "9"})
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "5", links[0].ID)
	require.NotNil(t, links[0].CardID)
	assert.Equal(t, "9", *links[0].CardID)

	assert.Equal(t, "/rest/v1/urls", rec.path)
	assert.Equal(t, "eq.9", rec.query.Get("card_id"))
	assert.Equal(t, "is.null", rec.query.Get("section_id"))
	assert.Equal(t, "created_at.asc", rec.query.Get("order"))
}

func TestCreateLink_DefaultIcon(t *testing.T) {
	s, rec := newTestStore(t, http.StatusCreated, `[{"id":"l1"}]`)

	_, err := s.CreateLink(context.Background(), board.LinkInput{
		SectionID: board.StringPtr("s1"), Title: "t", URL: "https://t",
	})
	require.NoError(t, err)

	var rows []map[string]any
	require.NoError(t, json.Unmarshal(rec.body, &rows))
	assert.Equal(t, board.DefaultLinkIcon, rows[0]["icon"])
	assert.NotContains(t, rows[0], "card_id")
}

func TestProfiles_NewestFirstAndDelete(t *testing.T) {
	s, rec := newTestStore(t, http.StatusOK, `[]`)

	_, err := s.Profiles(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/rest/v1/signin", rec.path)
	assert.Equal(t, "created_at.desc", rec.query.Get("order"))

	require.NoError(t, s.DeleteProfile(context.Background(), "u1"))
	assert.Equal(t, http.MethodDelete, rec.method)
	assert.Equal(t, "eq.u1", rec.query.Get("id"))
}

func TestNormalizeIDs_LeavesOtherNumbers(t *testing.T) {
	out, err := normalizeIDs([]byte(`[{"id":1,"section_order":2,"cards":[{"id":3,"section_id":4}]}]`))
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"1","section_order":2,"cards":[{"id":"3","section_id":"4"}]}]`, string(out))
}
