// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/extensions"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
)

const (
	// verifierCookie holds the PKCE verifier between login and callback.
	verifierCookie = "dashhub-pkce-verifier"
	verifierMaxAge = 10 * 60

	refreshMaxAge = 30 * 24 * 60 * 60
	callbackPath  = "/api/auth/callback"
)

// =============================================================================
// Sign-in flow
// =============================================================================

// Login redirects the browser to the OAuth provider.
func Login(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Sessions == nil {
			fail(c, http.StatusNotImplemented, "Sign-in is not configured")
			return
		}
		redirectTo := requestOrigin(c) + callbackPath
		authURL, verifier, err := d.Sessions.LoginURL(c.Query("provider"), redirectTo)
		if err != nil {
			d.logger().Error("failed to build login URL", "error", err)
			fail(c, http.StatusInternalServerError, "Internal server error")
			return
		}
		d.setCookie(c, verifierCookie, verifier, verifierMaxAge)
		c.Redirect(http.StatusFound, authURL)
	}
}

// Callback exchanges the provider's code for a session, stores the tokens
// in cookies, and lands the browser on the site.
func Callback(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		site := d.siteURL(c)
		code := c.Query("code")
		if code == "" {
			c.Redirect(http.StatusFound, site+"/?error=no_code")
			return
		}
		if d.Sessions == nil {
			c.Redirect(http.StatusFound, site+"/?error=auth_failed")
			return
		}
		verifier, _ := c.Cookie(verifierCookie)
		session, err := d.Sessions.Exchange(c.Request.Context(), code, verifier)
		if err != nil {
			d.logger().Warn("session exchange failed", "error", err)
			c.Redirect(http.StatusFound, site+"/?error=auth_failed")
			return
		}

		d.setCookie(c, verifierCookie, "", -1)
		d.setCookie(c, middleware.AccessTokenCookie, session.AccessToken, session.ExpiresIn)
		if session.RefreshToken != "" {
			d.setCookie(c, middleware.RefreshTokenCookie, session.RefreshToken, refreshMaxAge)
		}
		c.Redirect(http.StatusFound, site)
	}
}

// Logout revokes the session and clears the cookies.
func Logout(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Sessions != nil {
			token, _ := c.Cookie(middleware.AccessTokenCookie)
			if info := middleware.GetAuthInfo(c); info != nil && info.Token != "" {
				token = info.Token
			}
			if err := d.Sessions.SignOut(c.Request.Context(), token); err != nil &&
				!errors.Is(err, extensions.ErrUnauthorized) {
				d.logger().Warn("sign-out failed", "error", err)
				fail(c, http.StatusBadRequest, err.Error())
				return
			}
		}
		d.clearSession(c)
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// CurrentUser returns the signed-in user. A valid identity without a
// profile is signed out and answered 403.
func CurrentUser(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		info := middleware.GetAuthInfo(c)
		if info == nil {
			if errors.Is(middleware.GetAuthError(c), extensions.ErrProfileMissing) {
				d.clearSession(c)
				fail(c, http.StatusForbidden, "User profile not found")
				return
			}
			fail(c, http.StatusUnauthorized, "Not authenticated")
			return
		}
		c.JSON(http.StatusOK, board.User{
			ID:        info.UserID,
			Email:     info.Email,
			Name:      info.Name,
			AvatarURL: info.AvatarURL,
			Role:      info.Role,
			Status:    info.Status,
		})
	}
}

// =============================================================================
// Helpers
// =============================================================================

func (d *Deps) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", d.SecureCookies, true)
}

func (d *Deps) clearSession(c *gin.Context) {
	d.setCookie(c, middleware.AccessTokenCookie, "", -1)
	d.setCookie(c, middleware.RefreshTokenCookie, "", -1)
}

func (d *Deps) siteURL(c *gin.Context) string {
	if d.SiteURL != "" {
		return strings.TrimRight(d.SiteURL, "/")
	}
	return requestOrigin(c)
}

// requestOrigin is the scheme and host the browser used, honouring a
// proxy's X-Forwarded-Host (always https).
func requestOrigin(c *gin.Context) string {
	if host := c.GetHeader("X-Forwarded-Host"); host != "" {
		return "https://" + host
	}
	scheme := "http"
	if c.Request.TLS != nil || strings.EqualFold(c.GetHeader("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host
}
