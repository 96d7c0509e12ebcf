// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package extensions

import (
	"context"
	"errors"
	"fmt"
)

// ErrUnauthorized is returned when a token cannot be validated.
var ErrUnauthorized = errors.New("unauthorized")

// ErrForbidden is returned when an authenticated user lacks permission.
var ErrForbidden = errors.New("forbidden")

// ErrProfileMissing is returned when a valid identity has no profile row.
var ErrProfileMissing = errors.New("profile not found")

// Role names.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// Authorization actions.
const (
	ActionRead   = "read"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// AuthInfo is the identity of a signed-in user joined with the role and
// status stored in their profile.
//
// Required fields (always populated):
//   - UserID: provider user id
//
// Optional fields (may be empty):
//   - Email, Name, AvatarURL: provider metadata
//   - Role: "admin" or "user", empty when the profile is missing
//   - Status: profile status, e.g. "active"
type AuthInfo struct {
	UserID    string
	Email     string
	Name      string
	AvatarURL string
	Role      string
	Status    string

	// Token is the access token the identity was validated from.
	Token string
}

// IsAdmin reports whether the user holds the admin role.
func (a *AuthInfo) IsAdmin() bool {
	return a != nil && a.Role == RoleAdmin
}

// HasRole checks if the user has a specific role.
func (a *AuthInfo) HasRole(role string) bool {
	return a != nil && a.Role == role
}

// AuthProvider validates access tokens and returns the user's identity.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthProvider interface {
	// Validate checks the token and returns the identity.
	//
	// Returns:
	//   - *AuthInfo: identity with role, when valid
	//   - error: ErrUnauthorized (or wrapped) if invalid, ErrProfileMissing
	//     when the identity has no profile, other errors for failures
	Validate(ctx context.Context, token string) (*AuthInfo, error)
}

// AuthzRequest describes an authorization check as (subject, action,
// resource).
type AuthzRequest struct {
	User         *AuthInfo
	Action       string
	ResourceType string
	ResourceID   string
}

// AuthzProvider checks if a user is authorized to perform an action.
//
// Implementations must be safe for concurrent use by multiple goroutines.
type AuthzProvider interface {
	// Authorize returns nil when permitted, ErrForbidden (or wrapped) when
	// denied.
	Authorize(ctx context.Context, req AuthzRequest) error
}

// RoleAuthzProvider allows reads to everyone and every other action to
// admins only.
type RoleAuthzProvider struct{}

// Authorize implements AuthzProvider.
func (p *RoleAuthzProvider) Authorize(_ context.Context, req AuthzRequest) error {
	if req.Action == ActionRead {
		return nil
	}
	if req.User.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: %s %s requires admin", ErrForbidden, req.Action, req.ResourceType)
}

// NopAuthProvider accepts any token as a local admin. It serves
// single-user self-hosted deployments without an auth provider.
//
// Thread-safe: This implementation has no mutable state.
type NopAuthProvider struct{}

// Validate always returns the local admin user.
func (p *NopAuthProvider) Validate(_ context.Context, token string) (*AuthInfo, error) {
	return &AuthInfo{
		UserID: "local-user",
		Role:   RoleAdmin,
		Status: "active",
		Token:  token,
	}, nil
}

// NopAuthzProvider allows every action.
type NopAuthzProvider struct{}

// Authorize always returns nil.
func (p *NopAuthzProvider) Authorize(_ context.Context, _ AuthzRequest) error {
	return nil
}

// Compile-time interface compliance checks.
var (
	_ AuthProvider  = (*NopAuthProvider)(nil)
	_ AuthzProvider = (*NopAuthzProvider)(nil)
	_ AuthzProvider = (*RoleAuthzProvider)(nil)
)
