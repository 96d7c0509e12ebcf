// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package middleware provides HTTP middleware for the dashboard server.
//
// # Authentication Flow
//
// Session resolves the caller on every request but never rejects one: the
// read endpoints are public. Routes that need a user add RequireAuth or
// RequireAdmin after it.
//
//	Request
//	   │
//	   ▼
//	Session
//	   │
//	   ├─► token from "Authorization: Bearer <token>" or the session cookie
//	   │
//	   ├─► provider.Validate(ctx, token)
//	   │
//	   └─► AuthInfo (or the failure) stored in the Gin context
//	           │
//	           ▼
//	       RequireAuth / RequireAdmin ──► Handler (GetAuthInfo)
//
// # Self-Hosted Behavior
//
// With NopAuthProvider every request is the local admin, so a single-user
// deployment needs no auth service.
package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// Session cookie names.
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
)

// =============================================================================
// Context Keys
// =============================================================================

const (
	authInfoKey  = "dashhub_auth_info"
	authErrorKey = "dashhub_auth_error"
)

// =============================================================================
// Context Helpers
// =============================================================================

// SetAuthInfo stores the authenticated user in the Gin context.
//
// # Thread Safety
//
// Safe to call concurrently (Gin context is request-scoped).
func SetAuthInfo(c *gin.Context, info *extensions.AuthInfo) {
	c.Set(authInfoKey, info)
}

// GetAuthInfo returns the authenticated user, or nil for anonymous callers.
//
// # Examples
//
//	info := middleware.GetAuthInfo(c)
//	if info == nil {
//	    c.JSON(401, gin.H{"error": "Not authenticated"})
//	    return
//	}
func GetAuthInfo(c *gin.Context) *extensions.AuthInfo {
	if info, exists := c.Get(authInfoKey); exists {
		if authInfo, ok := info.(*extensions.AuthInfo); ok {
			return authInfo
		}
	}
	return nil
}

// GetAuthError returns why Session could not resolve a user, if it tried.
func GetAuthError(c *gin.Context) error {
	if v, exists := c.Get(authErrorKey); exists {
		if err, ok := v.(error); ok {
			return err
		}
	}
	return nil
}

// =============================================================================
// Session
// =============================================================================

// Session creates a middleware that resolves the caller.
//
// # Description
//
// Reads the bearer token, falling back to the session cookie, and validates
// it with provider. On success the AuthInfo is stored for handlers and the
// token is attached to the request context so store calls run as the user.
// Failures are recorded for RequireAuth and the request continues
// anonymously.
//
// # Inputs
//
//   - provider: validates tokens. Must not be nil.
//   - logger: nil uses slog.Default().
//
// # Thread Safety
//
// Thread-safe. The returned middleware can be used concurrently.
func Session(provider extensions.AuthProvider, logger *slog.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *gin.Context) {
		token := extractToken(c)

		info, err := provider.Validate(c.Request.Context(), token)
		if err != nil {
			if token != "" && !errors.Is(err, extensions.ErrUnauthorized) {
				logger.Warn("session validation failed",
					"path", c.Request.URL.Path, "error", err)
			}
			c.Set(authErrorKey, err)
			c.Next()
			return
		}

		SetAuthInfo(c, info)
		if token != "" {
			c.Request = c.Request.WithContext(store.WithAccessToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// RequireAuth rejects anonymous callers.
//
// # Outputs
//
//   - 403 {"error": "User profile not found"} when the identity is valid but
//     has no signin profile.
//   - 401 {"error": "Not authenticated"} otherwise.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetAuthInfo(c) != nil {
			c.Next()
			return
		}
		abortUnauthenticated(c)
	}
}

// RequireAdmin rejects callers the authorizer does not allow to mutate
// resourceType. The action is derived from the request method.
func RequireAdmin(authz extensions.AuthzProvider, resourceType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil {
			abortUnauthenticated(c)
			return
		}
		err := authz.Authorize(c.Request.Context(), extensions.AuthzRequest{
			User:         info,
			Action:       ActionFor(c.Request.Method),
			ResourceType: resourceType,
			ResourceID:   c.Param("id"),
		})
		if err != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// RequireRole rejects callers without role, whatever the method. Used for
// admin pages where even reads are privileged.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := GetAuthInfo(c)
		if info == nil {
			abortUnauthenticated(c)
			return
		}
		if !info.HasRole(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied"})
			return
		}
		c.Next()
	}
}

// ActionFor maps an HTTP method to an authorization action.
func ActionFor(method string) string {
	switch method {
	case http.MethodPost:
		return extensions.ActionCreate
	case http.MethodPut, http.MethodPatch:
		return extensions.ActionUpdate
	case http.MethodDelete:
		return extensions.ActionDelete
	default:
		return extensions.ActionRead
	}
}

func abortUnauthenticated(c *gin.Context) {
	if errors.Is(GetAuthError(c), extensions.ErrProfileMissing) {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "User profile not found"})
		return
	}
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
}

// =============================================================================
// Helper Functions
// =============================================================================

// extractToken returns the bearer token, or the session cookie when no
// Authorization header is present. The "Bearer" prefix is case-insensitive.
func extractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return ""
		}
		return strings.TrimSpace(parts[1])
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return cookie
	}
	return ""
}
