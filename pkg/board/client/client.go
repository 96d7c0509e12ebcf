// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package client talks to the dashboard REST API.
//
// The client implements the remotes consumed by the fetch, tree and mutation
// packages. A 404 maps to board.ErrNotFound, a 401 to ErrUnauthorized, and any
// other non-2xx status to *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/anhmake/dashhub/pkg/board"
)

// DefaultTimeout bounds every request when no custom http.Client is given.
const DefaultTimeout = 15 * time.Second

// ErrUnauthorized is returned for 401 responses.
var ErrUnauthorized = errors.New("not authenticated")

// APIError is a non-2xx response with the server's error message.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api error: status %d", e.Status)
	}
	return fmt.Sprintf("api error: status %d: %s", e.Status, e.Message)
}

// Client is a dashboard API client.
//
// # Thread Safety
//
// Client is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithToken sends the access token as a bearer credential.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// New creates a client for the API rooted at baseURL
// (e.g. "http://localhost:8080").
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// =============================================================================
// Reads
// =============================================================================

// CurrentUser returns the signed-in user.
func (c *Client) CurrentUser(ctx context.Context) (*board.User, error) {
	var u board.User
	if err := c.do(ctx, http.MethodGet, "/api/auth/user", nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// Icons lists icon filenames.
func (c *Client) Icons(ctx context.Context) ([]string, error) {
	var icons []string
	if err := c.do(ctx, http.MethodGet, "/api/icons", nil, nil, &icons); err != nil {
		return nil, err
	}
	return icons, nil
}

// SectionsWithCards calls the bulk endpoint for root sections.
func (c *Client) SectionsWithCards(ctx context.Context) ([]board.Section, error) {
	var sections []board.Section
	if err := c.do(ctx, http.MethodGet, "/api/sections-with-cards", nil, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// DashboardFull calls the bulk endpoint for one dashboard tree.
func (c *Client) DashboardFull(ctx context.Context, id string) (*board.DashboardTree, error) {
	var tree board.DashboardTree
	path := "/api/dashboard/" + url.PathEscape(id) + "/full"
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &tree); err != nil {
		return nil, err
	}
	return &tree, nil
}

// Card fetches one card by id.
func (c *Client) Card(ctx context.Context, id string) (board.Card, error) {
	var card board.Card
	err := c.do(ctx, http.MethodGet, "/api/cards/"+url.PathEscape(id), nil, nil, &card)
	return card, err
}

// Sections lists sections under a parent card, or root sections when
// parentCardID is empty.
func (c *Client) Sections(ctx context.Context, parentCardID string) ([]board.Section, error) {
	q := url.Values{}
	if parentCardID != "" {
		q.Set("parent_card_id", parentCardID)
	}
	var sections []board.Section
	if err := c.do(ctx, http.MethodGet, "/api/sections", q, nil, &sections); err != nil {
		return nil, err
	}
	return sections, nil
}

// Cards lists the cards of one section.
func (c *Client) Cards(ctx context.Context, sectionID string) ([]board.Card, error) {
	q := url.Values{"section_id": {sectionID}}
	var cards []board.Card
	if err := c.do(ctx, http.MethodGet, "/api/cards", q, nil, &cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// Snippets lists a code card's snippets, newest first.
func (c *Client) Snippets(ctx context.Context, cardID string) ([]board.CodeSnippet, error) {
	q := url.Values{"card_id": {cardID}}
	var snippets []board.CodeSnippet
	if err := c.do(ctx, http.MethodGet, "/api/code-snippets", q, nil, &snippets); err != nil {
		return nil, err
	}
	return snippets, nil
}

// =============================================================================
// Mutations
// =============================================================================

// envelope is the POST /api/cards response body.
type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// CreateCard inserts a card and returns the stored record.
func (c *Client) CreateCard(ctx context.Context, in board.CardInput) (board.Card, error) {
	var env envelope
	if err := c.do(ctx, http.MethodPost, "/api/cards", nil, in, &env); err != nil {
		return board.Card{}, err
	}
	var card board.Card
	if err := json.Unmarshal(env.Data, &card); err != nil {
		return board.Card{}, fmt.Errorf("decode created card: %w", err)
	}
	return card, nil
}

// UpdateCard updates the card named by in.ID.
func (c *Client) UpdateCard(ctx context.Context, in board.CardInput) (board.Card, error) {
	var card board.Card
	err := c.do(ctx, http.MethodPut, "/api/cards/"+url.PathEscape(in.ID), nil, in, &card)
	return card, err
}

// DeleteCard removes a card.
func (c *Client) DeleteCard(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/cards/"+url.PathEscape(id), nil, nil, nil)
}

// CreateSection inserts a section.
func (c *Client) CreateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	var section board.Section
	err := c.do(ctx, http.MethodPost, "/api/sections", nil, in, &section)
	return section, err
}

// UpdateSection updates the section named by in.ID.
func (c *Client) UpdateSection(ctx context.Context, in board.SectionInput) (board.Section, error) {
	var section board.Section
	err := c.do(ctx, http.MethodPut, "/api/sections", nil, in, &section)
	return section, err
}

// DeleteSection removes a section.
func (c *Client) DeleteSection(ctx context.Context, id string) error {
	body := map[string]string{"id": id}
	return c.do(ctx, http.MethodDelete, "/api/sections", nil, body, nil)
}

// =============================================================================
// Transport
// =============================================================================

type errorBody struct {
	Error string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = json.Unmarshal(raw, &eb)
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %s", board.ErrNotFound, eb.Error)
		case http.StatusUnauthorized:
			return ErrUnauthorized
		default:
			return &APIError{Status: resp.StatusCode, Message: eb.Error}
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
