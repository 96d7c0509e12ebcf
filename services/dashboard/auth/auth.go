// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package auth talks to the hosted auth service (a GoTrue-compatible API
// under /auth/v1) and joins identities with their signin profile.
//
// # Login Flow
//
//  1. LoginURL returns the provider authorize URL and a PKCE verifier. The
//     caller keeps the verifier (a short-lived cookie) and redirects.
//  2. The provider redirects back with ?code=. Exchange trades the code and
//     verifier for a Session.
//  3. Validate resolves a session's access token to an AuthInfo on every
//     request, joined with the signin profile for the role.
//
// # Thread Safety
//
// Client is safe for concurrent use.
package auth

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
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
	"github.com/anhmake/dashhub/pkg/board/cache"
	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// DefaultTimeout bounds every auth request.
const DefaultTimeout = 15 * time.Second

// DefaultProvider is the OAuth provider used by LoginURL.
const DefaultProvider = "google"

// ProfileSource resolves signin profiles by email.
type ProfileSource interface {
	ProfileByEmail(ctx context.Context, email string) (board.Profile, error)
}

// Session is the token pair returned by Exchange.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// identity is the /auth/v1/user body.
type identity struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata"`
}

func (i identity) meta(key string) string {
	v, _ := i.UserMetadata[key].(string)
	return v
}

// Config configures the client.
type Config struct {
	// URL is the project URL; requests go to URL + "/auth/v1".
	URL string

	// APIKey is the anon key.
	APIKey string

	// Profiles resolves the signin row for the role.
	Profiles ProfileSource

	// Cache, when set, memoizes validated tokens for CacheTTL.
	Cache    *cache.Cache
	CacheTTL time.Duration

	HTTPClient *http.Client
	Logger     *slog.Logger
}

// Client is the auth service client.
type Client struct {
	baseURL    string
	apiKey     string
	profiles   ProfileSource
	cache      *cache.Cache
	cacheTTL   time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// New creates a client. URL, APIKey and Profiles are required.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" || cfg.APIKey == "" {
		return nil, errors.New("auth: URL and API key are required")
	}
	if cfg.Profiles == nil {
		return nil, errors.New("auth: profile source is required")
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/") + "/auth/v1",
		apiKey:     cfg.APIKey,
		profiles:   cfg.Profiles,
		cache:      cfg.Cache,
		cacheTTL:   ttl,
		httpClient: hc,
		logger:     logger,
	}, nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate implements extensions.AuthProvider.
//
// # Description
//
// Resolves the token with the auth service, then loads the signin profile
// by email. The display name and avatar prefer the profile, falling back
// to the provider metadata.
//
// # Outputs
//
//   - extensions.ErrUnauthorized for an empty, expired or rejected token.
//   - extensions.ErrProfileMissing when the identity has no profile row.
//   - other errors for transport or store failures.
func (c *Client) Validate(ctx context.Context, token string) (*extensions.AuthInfo, error) {
	if token == "" {
		return nil, extensions.ErrUnauthorized
	}

	key := "auth-token-" + tokenDigest(token)
	if c.cache != nil {
		if info, ok := cache.GetAs[*extensions.AuthInfo](c.cache, key); ok {
			return info, nil
		}
	}

	var id identity
	if err := c.do(ctx, http.MethodGet, "/user", token, nil, &id); err != nil {
		return nil, err
	}

	profile, err := c.profiles.ProfileByEmail(store.WithAccessToken(ctx, token), id.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", extensions.ErrProfileMissing, id.Email)
	}
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}

	info := &extensions.AuthInfo{
		UserID:    id.ID,
		Email:     id.Email,
		Name:      firstNonEmpty(profile.Name, id.meta("name"), id.meta("full_name")),
		AvatarURL: firstNonEmpty(profile.AvatarURL, id.meta("avatar_url")),
		Role:      profile.Role,
		Status:    profile.Status,
		Token:     token,
	}
	if c.cache != nil {
		c.cache.Set(key, info, c.cacheTTL)
	}
	return info, nil
}

// Forget drops a cached validation, e.g. on logout.
func (c *Client) Forget(token string) {
	if c.cache != nil && token != "" {
		c.cache.Invalidate("auth-token-" + tokenDigest(token))
	}
}

// =============================================================================
// OAuth with PKCE
// =============================================================================

// LoginURL builds the provider authorize URL.
//
// # Outputs
//
//   - authURL: where to redirect the browser.
//   - verifier: the PKCE verifier to present to Exchange.
func (c *Client) LoginURL(provider, redirectTo string) (authURL, verifier string, err error) {
	if provider == "" {
		provider = DefaultProvider
	}
	verifier, err = newVerifier()
	if err != nil {
		return "", "", err
	}
	q := url.Values{}
	q.Set("provider", provider)
	q.Set("redirect_to", redirectTo)
	q.Set("code_challenge", challenge(verifier))
	q.Set("code_challenge_method", "s256")
	return c.baseURL + "/authorize?" + q.Encode(), verifier, nil
}

// Exchange trades an authorization code for a session.
func (c *Client) Exchange(ctx context.Context, code, verifier string) (*Session, error) {
	if code == "" || verifier == "" {
		return nil, fmt.Errorf("%w: code and verifier are required", extensions.ErrUnauthorized)
	}
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	var session Session
	if err := c.do(ctx, http.MethodPost, "/token?grant_type=pkce", "", body, &session); err != nil {
		return nil, err
	}
	if session.AccessToken == "" {
		return nil, errors.New("auth: token response carried no access token")
	}
	return &session, nil
}

// SignOut revokes the session server-side.
func (c *Client) SignOut(ctx context.Context, token string) error {
	c.Forget(token)
	if token == "" {
		return nil
	}
	return c.do(ctx, http.MethodPost, "/logout", token, nil, nil)
}

// newVerifier returns a 43-character URL-safe verifier.
func newVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:16])
}

// =============================================================================
// Transport
// =============================================================================

func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.apiKey)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("auth request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		_, _ = io.Copy(io.Discard, resp.Body)
		return extensions.ErrUnauthorized
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		c.logger.Warn("auth service request failed",
			"path", path, "status", resp.StatusCode)
		if resp.StatusCode == http.StatusBadRequest {
			// Invalid or expired grants come back as 400.
			return fmt.Errorf("%w: %s", extensions.ErrUnauthorized, strings.TrimSpace(string(data)))
		}
		return fmt.Errorf("auth service returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ extensions.AuthProvider = (*Client)(nil)
