// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/client"
	"github.com/anhmake/dashhub/pkg/board/tree"
	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/auth"
	"github.com/anhmake/dashhub/services/dashboard/handlers"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
	"github.com/anhmake/dashhub/services/dashboard/observability"
	"github.com/anhmake/dashhub/services/dashboard/routes"
	"github.com/anhmake/dashhub/services/dashboard/store/badgerstore"
)

// =============================================================================
// Test Setup
// =============================================================================

func init() {
	gin.SetMode(gin.TestMode)
}

const (
	adminToken = "admin-token"
	userToken  = "user-token"
)

type tokenAuth struct{}

func (tokenAuth) Validate(_ context.Context, token string) (*extensions.AuthInfo, error) {
	switch token {
	case adminToken:
		return &extensions.AuthInfo{UserID: "admin-1", Email: "admin@example.com", Name: "Ada", Role: extensions.RoleAdmin, Status: "active", Token: token}, nil
	case userToken:
		return &extensions.AuthInfo{UserID: "user-1", Email: "user@example.com", Role: extensions.RoleUser, Status: "active", Token: token}, nil
	case "orphan":
		return nil, extensions.ErrProfileMissing
	}
	return nil, extensions.ErrUnauthorized
}

type fakeIcons struct {
	names []string
	err   error
}

func (f fakeIcons) List(context.Context) ([]string, error) { return f.names, f.err }

type fakeSessions struct {
	signedOut []string
}

func (f *fakeSessions) LoginURL(provider, redirectTo string) (string, string, error) {
	if provider == "" {
		provider = "google"
	}
	q := url.Values{"provider": {provider}, "redirect_to": {redirectTo}}
	return "https://auth.example.com/authorize?" + q.Encode(), "verifier-1", nil
}

func (f *fakeSessions) Exchange(_ context.Context, code, verifier string) (*auth.Session, error) {
	if code != "good-code" || verifier != "verifier-1" {
		return nil, extensions.ErrUnauthorized
	}
	return &auth.Session{AccessToken: "access-1", RefreshToken: "refresh-1", ExpiresIn: 3600}, nil
}

func (f *fakeSessions) SignOut(_ context.Context, token string) error {
	f.signedOut = append(f.signedOut, token)
	return nil
}

type env struct {
	router   *gin.Engine
	store    *badgerstore.Store
	sessions *fakeSessions
	audit    *extensions.SlogAuditLogger
}

func newEnv(t *testing.T) *env {
	t.Helper()
	s, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	e := &env{store: s, sessions: &fakeSessions{}, audit: extensions.NewSlogAuditLogger(nil, 100)}
	deps := &handlers.Deps{
		Store:    s,
		Icons:    fakeIcons{names: []string{"a.png", "b.svg"}},
		Sessions: e.sessions,
		Audit:    e.audit,
		Metrics:  observability.NewMetrics(prometheus.NewRegistry()),
		SiteURL:  "https://dash.example.com",
	}
	e.router = gin.New()
	routes.SetupRoutes(e.router, routes.Options{
		Deps:       deps,
		Extensions: extensions.ServiceOptions{AuthProvider: tokenAuth{}},
		Gatherer:   prometheus.NewRegistry(),
	})
	return e
}

func (e *env) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]string](t, w)["error"]
}

func (e *env) seedSection(t *testing.T, id string, order *int, parent *string) {
	t.Helper()
	_, err := e.store.CreateSection(context.Background(), board.SectionInput{ID: id, Title: "S " + id, SectionOrder: order, ParentCardID: parent})
	require.NoError(t, err)
}

func (e *env) seedCard(t *testing.T, sectionID, title string, typ board.CardType) board.Card {
	t.Helper()
	in := board.CardInput{SectionID: sectionID, Title: title, Description: "d", Type: typ}
	if typ == board.CardTypeURL {
		in.URL = "https://example.com"
	}
	in.Normalize()
	card, err := e.store.CreateCard(context.Background(), in)
	require.NoError(t, err)
	return card
}

// =============================================================================
// Public reads
// =============================================================================

func TestHealthAndMethodNotAllowed(t *testing.T) {
	e := newEnv(t)

	w := e.do("GET", "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = e.do("PATCH", "/api/sections", adminToken, nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "method not allowed", errorOf(t, w))
}

func TestSectionsWithCards(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "b", nil, nil)
	e.seedSection(t, "a", board.IntPtr(0), nil)
	e.seedCard(t, "a", "Grafana", board.CardTypeURL)

	w := e.do("GET", "/api/sections-with-cards", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handlers.SectionsCacheControl, w.Header().Get("Cache-Control"))

	sections := decode[[]board.Section](t, w)
	require.Len(t, sections, 2)
	assert.Equal(t, "a", sections[0].ID)
	require.Len(t, sections[0].Cards, 1)
	assert.Equal(t, "Grafana", sections[0].Cards[0].Title)
	assert.NotNil(t, sections[1].Cards)
}

func TestDashboardFull(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "root", nil, nil)
	dash := e.seedCard(t, "root", "Ops", board.CardTypeDashboard)
	e.seedSection(t, "inner", board.IntPtr(1), &dash.ID)
	e.seedSection(t, "hidden_x", board.IntPtr(0), &dash.ID)

	w := e.do("GET", "/api/dashboard/"+dash.ID+"/full", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, handlers.DashboardCacheControl, w.Header().Get("Cache-Control"))

	got := decode[board.DashboardTree](t, w)
	assert.Equal(t, dash.ID, got.Dashboard.ID)
	require.Len(t, got.Sections, 1, "hidden sections are excluded")
	assert.Equal(t, "inner", got.Sections[0].ID)

	w = e.do("GET", "/api/dashboard/missing/full", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Dashboard not found", errorOf(t, w))
}

func TestDashboardFull_MatchesPerEntityAssembly(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "root", nil, nil)
	dash := e.seedCard(t, "root", "Ops", board.CardTypeDashboard)
	e.seedSection(t, "inner", board.IntPtr(1), &dash.ID)
	e.seedSection(t, "hidden_x", board.IntPtr(0), &dash.ID)
	e.seedCard(t, "inner", "Grafana", board.CardTypeURL)
	e.seedCard(t, "hidden_x", "Secret", board.CardTypeURL)

	srv := httptest.NewServer(e.router)
	t.Cleanup(srv.Close)
	c := client.New(srv.URL)
	ctx := context.Background()

	bulk, err := c.DashboardFull(ctx, dash.ID)
	require.NoError(t, err)
	assembled, err := tree.New(c, nil).Assemble(ctx, dash.ID)
	require.NoError(t, err)

	bulkJSON, err := json.Marshal(bulk.Sections)
	require.NoError(t, err)
	assembledJSON, err := json.Marshal(assembled.Sections)
	require.NoError(t, err)
	assert.JSONEq(t, string(bulkJSON), string(assembledJSON))
	require.Len(t, assembled.Sections, 1)
	assert.Equal(t, "inner", assembled.Sections[0].ID)
}

func TestListSections_ParentFilter(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "root", nil, nil)
	e.seedSection(t, "child", nil, board.StringPtr("card-1"))

	root := decode[[]board.Section](t, e.do("GET", "/api/sections", "", nil))
	require.Len(t, root, 1)
	assert.Equal(t, "root", root[0].ID)

	children := decode[[]board.Section](t, e.do("GET", "/api/sections?parent_card_id=card-1", "", nil))
	require.Len(t, children, 1)
	assert.Equal(t, "child", children[0].ID)
}

func TestIcons(t *testing.T) {
	e := newEnv(t)
	w := e.do("GET", "/api/icons", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["a.png","b.svg"]`, w.Body.String())
}

func TestIcons_Failure(t *testing.T) {
	s, err := badgerstore.Open(badgerstore.InMemoryConfig())
	require.NoError(t, err)
	defer s.Close()
	r := gin.New()
	r.GET("/api/icons", handlers.ListIcons(&handlers.Deps{Store: s, Icons: fakeIcons{err: errors.New("gone")}}))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/api/icons", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "Failed to read icon directory", errorOf(t, w))
}

// =============================================================================
// Cards
// =============================================================================

func TestCards_ListRequiresSection(t *testing.T) {
	e := newEnv(t)
	w := e.do("GET", "/api/cards", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "section_id is required", errorOf(t, w))
}

func TestCreateCard(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "s1", nil, nil)

	body := map[string]string{"section_id": "s1", "title": "Docs", "description": "team docs", "type": "url", "url": "https://docs"}

	assert.Equal(t, http.StatusUnauthorized, e.do("POST", "/api/cards", "", body).Code)
	assert.Equal(t, http.StatusForbidden, e.do("POST", "/api/cards", userToken, body).Code)

	w := e.do("POST", "/api/cards", adminToken, body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[struct {
		Success bool       `json:"success"`
		Data    board.Card `json:"data"`
	}](t, w)
	assert.True(t, resp.Success)
	assert.Equal(t, board.DefaultIcon, resp.Data.Icon)
	assert.NotEmpty(t, resp.Data.ID)

	w = e.do("GET", "/api/cards?section_id=s1", "", nil)
	cards := decode[[]board.Card](t, w)
	require.Len(t, cards, 1)

	events, err := e.audit.Query(context.Background(), extensions.AuditFilter{ResourceType: "card"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "admin-1", events[0].UserID)
	assert.Equal(t, extensions.ActionCreate, events[0].Action)
}

func TestCreateCard_Validation(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name string
		body map[string]string
		want string
	}{
		{"missing description", map[string]string{"section_id": "s1", "title": "t"}, "Title and description are required"},
		{"blank title", map[string]string{"section_id": "s1", "title": "  ", "description": "d"}, "Title and description are required"},
		{"missing section", map[string]string{"title": "t", "description": "d", "type": "code"}, "section_id is required"},
		{"url card without url", map[string]string{"section_id": "s1", "title": "t", "description": "d", "type": "url"}, "URL is required for URL type cards"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := e.do("POST", "/api/cards", adminToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tt.want, errorOf(t, w))
		})
	}

	w := e.do("POST", "/api/cards", adminToken, map[string]string{"section_id": "s1", "title": "t", "description": "d", "type": "bogus"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCardByID(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "s1", nil, nil)
	card := e.seedCard(t, "s1", "Old", board.CardTypeURL)

	w := e.do("GET", "/api/cards/"+card.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do("GET", "/api/cards/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Card not found", errorOf(t, w))

	w = e.do("PUT", "/api/cards/"+card.ID, adminToken, map[string]string{"description": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "title is required", errorOf(t, w))

	w = e.do("PUT", "/api/cards/"+card.ID, adminToken, map[string]string{"title": "New", "type": "code", "url": "ignored"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	updated := decode[board.Card](t, w)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, board.CardTypeCode, updated.Type)
	assert.Empty(t, updated.URL)
	assert.Equal(t, "s1", updated.SectionID, "section is kept when omitted")
	assert.NotNil(t, updated.UpdatedAt)

	w = e.do("PUT", "/api/cards/nope", adminToken, map[string]string{"title": "x", "type": "code"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = e.do("DELETE", "/api/cards/"+card.ID, adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"message":"Card deleted successfully"}`, w.Body.String())
	assert.Equal(t, http.StatusNotFound, e.do("GET", "/api/cards/"+card.ID, "", nil).Code)
}

func TestCardByBody(t *testing.T) {
	e := newEnv(t)
	e.seedSection(t, "s1", nil, nil)
	card := e.seedCard(t, "s1", "Old", board.CardTypeURL)

	w := e.do("PUT", "/api/cards", adminToken, map[string]string{"title": "x"})
	assert.Equal(t, "id and title are required", errorOf(t, w))

	w = e.do("PUT", "/api/cards", adminToken, map[string]string{"id": card.ID, "title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, board.CardTypeDashboard, decode[board.Card](t, w).Type, "a missing type becomes dashboard")

	w = e.do("DELETE", "/api/cards", adminToken, map[string]string{})
	assert.Equal(t, "id is required", errorOf(t, w))

	w = e.do("DELETE", "/api/cards", adminToken, map[string]string{"id": card.ID})
	assert.Equal(t, http.StatusOK, w.Code)
}

// =============================================================================
// Sections
// =============================================================================

func TestSectionMutations(t *testing.T) {
	e := newEnv(t)

	w := e.do("POST", "/api/sections", adminToken, map[string]string{"title": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "id and title are required", errorOf(t, w))

	w = e.do("POST", "/api/sections", adminToken, map[string]string{"id": "section_1", "title": "Tools"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[board.Section](t, w)
	require.NotNil(t, created.SectionOrder)
	assert.Equal(t, 1, *created.SectionOrder, "order defaults to 1")

	w = e.do("PUT", "/api/sections", adminToken, map[string]any{"id": "section_1", "title": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	updated := decode[board.Section](t, w)
	assert.Equal(t, "Renamed", updated.Title)
	assert.Equal(t, 1, *updated.SectionOrder, "omitted order is kept")

	w = e.do("PUT", "/api/sections", adminToken, map[string]any{"id": "section_1", "title": "Renamed", "section_order": 0})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, *decode[board.Section](t, w).SectionOrder)

	w = e.do("DELETE", "/api/sections", userToken, map[string]string{"id": "section_1"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do("DELETE", "/api/sections", adminToken, map[string]string{"id": "section_1"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]board.Section](t, e.do("GET", "/api/sections", "", nil)))
}

// =============================================================================
// Snippets and links
// =============================================================================

func TestSnippets(t *testing.T) {
	e := newEnv(t)

	w := e.do("GET", "/api/code-snippets", "", nil)
	assert.Equal(t, "Card ID is required", errorOf(t, w))

	w = e.do("POST", "/api/code-snippets", adminToken, map[string]string{"card_id": "c1", "title": "t"})
	assert.Equal(t, "Card ID, title, and content are required", errorOf(t, w))

	w = e.do("POST", "/api/code-snippets", adminToken, map[string]string{"card_id": "c1", "title": "Deploy", "content": "make deploy"})
	require.Equal(t, http.StatusCreated, w.Code)
	snippet := decode[board.CodeSnippet](t, w)

	w = e.do("PUT", "/api/code-snippets/"+snippet.ID, adminToken, map[string]string{"title": "Deploy"})
	assert.Equal(t, "Title and content are required", errorOf(t, w))

	w = e.do("PUT", "/api/code-snippets/missing", adminToken, map[string]string{"title": "a", "content": "b"})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Code snippet not found", errorOf(t, w))

	w = e.do("PUT", "/api/code-snippets/"+snippet.ID, adminToken, map[string]string{"title": "Deploy", "content": "make ship"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "make ship", decode[board.CodeSnippet](t, w).Content)

	list := decode[[]board.CodeSnippet](t, e.do("GET", "/api/code-snippets?card_id=c1", "", nil))
	require.Len(t, list, 1)

	w = e.do("DELETE", "/api/code-snippets/"+snippet.ID, adminToken, nil)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}

func TestLinks(t *testing.T) {
	e := newEnv(t)

	w := e.do("GET", "/api/urls", "", nil)
	assert.Equal(t, "Either section_id or card_id is required", errorOf(t, w))

	w = e.do("POST", "/api/urls", adminToken, map[string]string{"section_id": "s1", "card_id": "c1", "title": "t", "url": "https://t"})
	assert.Equal(t, "Cannot specify both section_id and card_id", errorOf(t, w))

	w = e.do("POST", "/api/urls", adminToken, map[string]string{"section_id": "s1", "title": "t"})
	assert.Equal(t, "Title and URL are required", errorOf(t, w))

	w = e.do("POST", "/api/urls", adminToken, map[string]string{"card_id": "c1", "title": "Runbook", "url": "https://runbook"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	link := decode[board.Link](t, w)
	assert.Equal(t, board.DefaultLinkIcon, link.Icon)

	w = e.do("GET", "/api/urls/"+link.ID, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do("GET", "/api/urls/missing", "", nil)
	assert.Equal(t, "URL not found", errorOf(t, w))

	list := decode[[]board.Link](t, e.do("GET", "/api/urls?card_id=c1", "", nil))
	require.Len(t, list, 1)

	w = e.do("DELETE", "/api/urls/"+link.ID, adminToken, nil)
	assert.JSONEq(t, `{"success":true,"message":"URL deleted successfully"}`, w.Body.String())
}

// =============================================================================
// Auth
// =============================================================================

func TestCurrentUser(t *testing.T) {
	e := newEnv(t)

	w := e.do("GET", "/api/auth/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Not authenticated", errorOf(t, w))

	w = e.do("GET", "/api/auth/user", "orphan", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "User profile not found", errorOf(t, w))

	w = e.do("GET", "/api/auth/user", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	user := decode[board.User](t, w)
	assert.Equal(t, "admin-1", user.ID)
	assert.Equal(t, "Ada", user.Name)
	assert.True(t, user.IsAdmin())
}

func TestLoginAndCallback(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest("GET", "/api/auth/login", nil)
	req.Header.Set("X-Forwarded-Host", "dash.example.com")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	loc, err := url.Parse(w.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "https://dash.example.com/api/auth/callback", loc.Query().Get("redirect_to"))
	assert.Equal(t, "google", loc.Query().Get("provider"))

	var verifier *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == "dashhub-pkce-verifier" {
			verifier = c
		}
	}
	require.NotNil(t, verifier)

	w = e.do("GET", "/api/auth/callback", "", nil)
	assert.Equal(t, "https://dash.example.com/?error=no_code", w.Header().Get("Location"))

	w = e.do("GET", "/api/auth/callback?code=bad", "", nil)
	assert.Equal(t, "https://dash.example.com/?error=auth_failed", w.Header().Get("Location"))

	req = httptest.NewRequest("GET", "/api/auth/callback?code=good-code", nil)
	req.AddCookie(verifier)
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	require.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "https://dash.example.com", w.Header().Get("Location"))

	got := map[string]string{}
	for _, c := range w.Result().Cookies() {
		got[c.Name] = c.Value
	}
	assert.Equal(t, "access-1", got[middleware.AccessTokenCookie])
	assert.Equal(t, "refresh-1", got[middleware.RefreshTokenCookie])
}

func TestLogout(t *testing.T) {
	e := newEnv(t)

	w := e.do("POST", "/api/auth/logout", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, []string{adminToken}, e.sessions.signedOut)

	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.AccessTokenCookie {
			assert.Empty(t, c.Value)
			assert.Less(t, c.MaxAge, 0)
		}
	}
}

// =============================================================================
// Admin users
// =============================================================================

func TestAdminUsers(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	_, err := e.store.UpsertProfile(ctx, board.Profile{ID: "admin-1", Email: "admin@example.com", Role: board.RoleAdmin, Status: "active"})
	require.NoError(t, err)
	_, err = e.store.UpsertProfile(ctx, board.Profile{ID: "user-1", Email: "user@example.com", Role: board.RoleUser, Status: "pending"})
	require.NoError(t, err)

	w := e.do("GET", "/api/admin/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Access denied", errorOf(t, w))

	w = e.do("GET", "/api/admin/users", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[struct {
		Users []board.Profile `json:"users"`
	}](t, w)
	assert.Len(t, list.Users, 2)

	w = e.do("PATCH", "/api/admin/users", adminToken, map[string]string{"user_id": "user-1"})
	assert.Equal(t, "Missing required fields", errorOf(t, w))

	w = e.do("PATCH", "/api/admin/users", adminToken, map[string]string{"user_id": "user-1", "role": "root", "status": "active"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do("PATCH", "/api/admin/users", adminToken, map[string]string{"user_id": "user-1", "role": "admin", "status": "active"})
	require.Equal(t, http.StatusOK, w.Code)
	p, err := e.store.ProfileByEmail(ctx, "user@example.com")
	require.NoError(t, err)
	assert.Equal(t, board.RoleAdmin, p.Role)

	w = e.do("DELETE", "/api/admin/users", adminToken, map[string]string{})
	assert.Equal(t, "Missing user_id", errorOf(t, w))

	w = e.do("DELETE", "/api/admin/users", adminToken, map[string]string{"user_id": "admin-1"})
	assert.Equal(t, "Cannot delete yourself", errorOf(t, w))

	w = e.do("DELETE", "/api/admin/users", adminToken, map[string]string{"user_id": "user-1"})
	require.Equal(t, http.StatusOK, w.Code)
	_, err = e.store.ProfileByEmail(ctx, "user@example.com")
	assert.Error(t, err)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	w := e.do("GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
