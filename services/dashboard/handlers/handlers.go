// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package handlers implements the dashboard's HTTP endpoints.
//
// Handlers are thin: they bind the request, call the store, and map the
// outcome to a status code. Failures answer {"error": "..."}; the messages
// are part of the API and the browser shows them verbatim.
package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/auth"
	"github.com/anhmake/dashhub/services/dashboard/icons"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
	"github.com/anhmake/dashhub/services/dashboard/observability"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// Cache-Control values for the bulk read endpoints.
const (
	SectionsCacheControl  = "public, max-age=60, s-maxage=300"
	DashboardCacheControl = "public, max-age=30, s-maxage=180"
)

// SessionProvider runs the OAuth sign-in flow. *auth.Client implements it.
type SessionProvider interface {
	LoginURL(provider, redirectTo string) (authURL, verifier string, err error)
	Exchange(ctx context.Context, code, verifier string) (*auth.Session, error)
	SignOut(ctx context.Context, token string) error
}

// Deps carries what the handlers need.
type Deps struct {
	Store store.Store
	Icons icons.Source

	// Sessions is nil when no auth service is configured; sign-in routes
	// then answer 501.
	Sessions SessionProvider

	Audit   extensions.AuditLogger
	Metrics *observability.Metrics
	Logger  *slog.Logger

	// SiteURL is where the OAuth callback lands the browser. Empty uses the
	// request origin.
	SiteURL string

	// SecureCookies marks session cookies Secure.
	SecureCookies bool
}

func (d *Deps) logger() *slog.Logger {
	if d.Logger != nil {
		return d.Logger
	}
	return slog.Default()
}

// =============================================================================
// Response helpers
// =============================================================================

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"error": msg})
}

// storeFailed maps a store error to a response. Not-found answers 404 with
// notFound when it is non-empty; everything else is a 500 with msg.
func (d *Deps) storeFailed(c *gin.Context, op string, err error, notFound, msg string) {
	if notFound != "" && errors.Is(err, store.ErrNotFound) {
		fail(c, http.StatusNotFound, notFound)
		return
	}
	if errors.Is(err, context.Canceled) {
		d.logger().Info("request cancelled", "operation", op)
		return
	}
	d.logger().Error("store operation failed", "operation", op, "error", err)
	d.Metrics.StoreError(op)
	fail(c, http.StatusInternalServerError, msg)
}

// audit records a mutation. Audit failures are logged, never returned.
func (d *Deps) audit(c *gin.Context, resourceType, resourceID string, err error) {
	if d.Audit == nil {
		return
	}
	event := extensions.AuditEvent{
		EventType:    "content.mutation",
		Timestamp:    time.Now().UTC(),
		Action:       middleware.ActionFor(c.Request.Method),
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Outcome:      extensions.OutcomeSuccess,
	}
	if resourceType == "user" {
		event.EventType = "admin.user"
	}
	if info := middleware.GetAuthInfo(c); info != nil {
		event.UserID = info.UserID
	}
	if err != nil {
		event.Outcome = extensions.OutcomeFailure
		event.Metadata = map[string]any{"error": err.Error()}
	}
	if aerr := d.Audit.Log(c.Request.Context(), event); aerr != nil {
		d.logger().Warn("audit log failed", "error", aerr)
	}
}

// bind decodes a JSON body, answering 400 on malformed input.
func bind(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// =============================================================================
// Health
// =============================================================================

// HealthCheck answers liveness checks.
func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// MethodNotAllowed answers known paths hit with an unsupported method.
func MethodNotAllowed(c *gin.Context) {
	fail(c, http.StatusMethodNotAllowed, "method not allowed")
}

// =============================================================================
// Icons
// =============================================================================

// ListIcons returns the icon file names.
func ListIcons(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		names, err := d.Icons.List(c.Request.Context())
		if err != nil {
			d.logger().Error("failed to read icon directory", "error", err)
			fail(c, http.StatusInternalServerError, "Failed to read icon directory")
			return
		}
		c.JSON(http.StatusOK, names)
	}
}
