// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/services/dashboard/middleware"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// ListUsers returns every signin profile, newest first.
func ListUsers(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := d.Store.Profiles(c.Request.Context())
		if err != nil {
			d.storeFailed(c, "list_profiles", err, "", "Failed to fetch users")
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// UpdateUser changes a user's role and status.
func UpdateUser(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			UserID string `json:"user_id"`
			Role   string `json:"role"`
			Status string `json:"status"`
		}
		if !bind(c, &body) {
			return
		}
		if body.UserID == "" || body.Role == "" || body.Status == "" {
			fail(c, http.StatusBadRequest, "Missing required fields")
			return
		}
		update := store.ProfileUpdate{Role: body.Role, Status: body.Status}
		if err := board.ValidateStruct(update); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		err := d.Store.UpdateProfile(c.Request.Context(), body.UserID, update)
		d.audit(c, "user", body.UserID, err)
		if err != nil {
			d.storeFailed(c, "update_profile", err, "User not found", "Failed to update user")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// DeleteUser removes a user's profile. Admins cannot delete themselves.
func DeleteUser(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			UserID string `json:"user_id"`
		}
		if !bind(c, &body) {
			return
		}
		if body.UserID == "" {
			fail(c, http.StatusBadRequest, "Missing user_id")
			return
		}
		if info := middleware.GetAuthInfo(c); info != nil && info.UserID == body.UserID {
			fail(c, http.StatusBadRequest, "Cannot delete yourself")
			return
		}

		err := d.Store.DeleteProfile(c.Request.Context(), body.UserID)
		d.audit(c, "user", body.UserID, err)
		if err != nil {
			d.storeFailed(c, "delete_profile", err, "", "Failed to delete user")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}
