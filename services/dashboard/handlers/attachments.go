// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// =============================================================================
// Code snippets
// =============================================================================

// ListSnippets returns the snippets of ?card_id=, newest first.
func ListSnippets(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		cardID := c.Query("card_id")
		if cardID == "" {
			fail(c, http.StatusBadRequest, "Card ID is required")
			return
		}
		snippets, err := d.Store.Snippets(c.Request.Context(), cardID)
		if err != nil {
			d.storeFailed(c, "list_snippets", err, "", "Failed to fetch code snippets")
			return
		}
		c.JSON(http.StatusOK, snippets)
	}
}

// CreateSnippet attaches a snippet to a code card.
func CreateSnippet(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.SnippetInput
		if !bind(c, &in) {
			return
		}
		if in.CardID == "" || strings.TrimSpace(in.Title) == "" || in.Content == "" {
			fail(c, http.StatusBadRequest, "Card ID, title, and content are required")
			return
		}
		if err := in.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		snippet, err := d.Store.CreateSnippet(c.Request.Context(), in)
		d.audit(c, "code_snippet", snippet.ID, err)
		if err != nil {
			d.storeFailed(c, "create_snippet", err, "", "Failed to create code snippet")
			return
		}
		c.JSON(http.StatusCreated, snippet)
	}
}

// UpdateSnippet replaces a snippet's title and content.
func UpdateSnippet(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			Title   string `json:"title"`
			Content string `json:"content"`
		}
		if !bind(c, &body) {
			return
		}
		if strings.TrimSpace(body.Title) == "" || body.Content == "" {
			fail(c, http.StatusBadRequest, "Title and content are required")
			return
		}

		id := c.Param("id")
		snippet, err := d.Store.UpdateSnippet(c.Request.Context(), id, strings.TrimSpace(body.Title), body.Content)
		d.audit(c, "code_snippet", id, err)
		if err != nil {
			d.storeFailed(c, "update_snippet", err, "Code snippet not found", "Failed to update code snippet")
			return
		}
		c.JSON(http.StatusOK, snippet)
	}
}

// DeleteSnippet removes a snippet.
func DeleteSnippet(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := d.Store.DeleteSnippet(c.Request.Context(), id)
		d.audit(c, "code_snippet", id, err)
		if err != nil {
			d.storeFailed(c, "delete_snippet", err, "", "Failed to delete code snippet")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// =============================================================================
// Links
// =============================================================================

// ListLinks returns the links under ?section_id= or ?card_id=.
func ListLinks(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := store.LinkFilter{SectionID: c.Query("section_id"), CardID: c.Query("card_id")}
		if filter.SectionID == "" && filter.CardID == "" {
			fail(c, http.StatusBadRequest, "Either section_id or card_id is required")
			return
		}
		links, err := d.Store.Links(c.Request.Context(), filter)
		if err != nil {
			d.storeFailed(c, "list_links", err, "", "Failed to fetch URLs")
			return
		}
		c.JSON(http.StatusOK, links)
	}
}

// GetLink returns one link.
func GetLink(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		link, err := d.Store.Link(c.Request.Context(), c.Param("id"))
		if err != nil {
			d.storeFailed(c, "get_link", err, "URL not found", "Failed to fetch URL")
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// CreateLink attaches a link to exactly one section or card.
func CreateLink(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.LinkInput
		if !bind(c, &in) {
			return
		}
		if !checkLink(c, &in) {
			return
		}

		link, err := d.Store.CreateLink(c.Request.Context(), in)
		d.audit(c, "url", link.ID, err)
		if err != nil {
			d.storeFailed(c, "create_link", err, "", "Failed to create URL")
			return
		}
		c.JSON(http.StatusCreated, link)
	}
}

// UpdateLink replaces a link.
func UpdateLink(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.LinkInput
		if !bind(c, &in) {
			return
		}
		if !checkLink(c, &in) {
			return
		}

		id := c.Param("id")
		link, err := d.Store.UpdateLink(c.Request.Context(), id, in)
		d.audit(c, "url", id, err)
		if err != nil {
			d.storeFailed(c, "update_link", err, "URL not found", "Failed to update URL")
			return
		}
		c.JSON(http.StatusOK, link)
	}
}

// DeleteLink removes a link.
func DeleteLink(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		err := d.Store.DeleteLink(c.Request.Context(), id)
		d.audit(c, "url", id, err)
		if err != nil {
			d.storeFailed(c, "delete_link", err, "", "Failed to delete URL")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "URL deleted successfully"})
	}
}

// checkLink trims and validates a link body, answering 400 when invalid.
func checkLink(c *gin.Context, in *board.LinkInput) bool {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	in.SectionID = nonEmpty(in.SectionID)
	in.CardID = nonEmpty(in.CardID)

	switch {
	case in.Title == "" || in.URL == "":
		fail(c, http.StatusBadRequest, "Title and URL are required")
	case in.SectionID == nil && in.CardID == nil:
		fail(c, http.StatusBadRequest, "Either section_id or card_id is required")
	case in.SectionID != nil && in.CardID != nil:
		fail(c, http.StatusBadRequest, "Cannot specify both section_id and card_id")
	default:
		if err := in.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return false
		}
		return true
	}
	return false
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
