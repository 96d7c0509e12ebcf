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
	"github.com/anhmake/dashhub/services/dashboard/store"
)

// =============================================================================
// Bulk reads
// =============================================================================

// SectionsWithCards returns every root section with its cards in one
// response.
func SectionsWithCards(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sections, err := d.Store.ListSectionsWithCards(c.Request.Context(), "", true)
		if err != nil {
			d.storeFailed(c, "list_sections_with_cards", err, "", "Failed to fetch data")
			return
		}
		c.Header("Cache-Control", SectionsCacheControl)
		c.JSON(http.StatusOK, sections)
	}
}

// DashboardFull returns a dashboard card with its visible sections and
// their cards.
func DashboardFull(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		ctx := c.Request.Context()

		dashboard, err := d.Store.Card(ctx, id)
		if err != nil {
			d.storeFailed(c, "get_dashboard", err, "Dashboard not found", "Failed to fetch dashboard")
			return
		}
		sections, err := d.Store.ListSectionsWithCards(ctx, id, false)
		if err != nil {
			d.storeFailed(c, "list_dashboard_sections", err, "", "Failed to fetch sections")
			return
		}

		c.Header("Cache-Control", DashboardCacheControl)
		c.JSON(http.StatusOK, board.DashboardTree{Dashboard: dashboard, Sections: sections})
	}
}

// =============================================================================
// Sections
// =============================================================================

// ListSections returns the sections under ?parent_card_id=, or root
// sections when it is absent.
func ListSections(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sections, err := d.Store.Sections(c.Request.Context(), c.Query("parent_card_id"))
		if err != nil {
			d.storeFailed(c, "list_sections", err, "", "Failed to fetch sections")
			return
		}
		c.JSON(http.StatusOK, sections)
	}
}

// CreateSection inserts a section. The caller picks the id; the order
// defaults to 1.
func CreateSection(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.SectionInput
		if !bind(c, &in) {
			return
		}
		if in.ID == "" || strings.TrimSpace(in.Title) == "" {
			fail(c, http.StatusBadRequest, "id and title are required")
			return
		}
		if in.SectionOrder == nil {
			in.SectionOrder = board.IntPtr(1)
		}
		if err := in.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		section, err := d.Store.CreateSection(c.Request.Context(), in)
		d.audit(c, "section", in.ID, err)
		if err != nil {
			d.storeFailed(c, "create_section", err, "", "Failed to create section")
			return
		}
		d.logger().Info("section created", "id", section.ID)
		c.JSON(http.StatusCreated, section)
	}
}

// UpdateSection renames or reorders the section named in the body. An
// omitted order keeps the stored one.
func UpdateSection(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.SectionInput
		if !bind(c, &in) {
			return
		}
		if in.ID == "" || strings.TrimSpace(in.Title) == "" {
			fail(c, http.StatusBadRequest, "id and title are required")
			return
		}
		if err := in.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		section, err := d.Store.UpdateSection(c.Request.Context(), in)
		d.audit(c, "section", in.ID, err)
		if err != nil {
			d.storeFailed(c, "update_section", err, "Section not found", "Failed to update section")
			return
		}
		c.JSON(http.StatusOK, section)
	}
}

// DeleteSection removes the section named by {"id"} in the body.
func DeleteSection(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ID string `json:"id"`
		}
		if !bind(c, &body) {
			return
		}
		if body.ID == "" {
			fail(c, http.StatusBadRequest, "id is required")
			return
		}

		err := d.Store.DeleteSection(c.Request.Context(), body.ID)
		d.audit(c, "section", body.ID, err)
		if err != nil {
			d.storeFailed(c, "delete_section", err, "", "Failed to delete section")
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// =============================================================================
// Cards
// =============================================================================

// ListCards returns the cards of ?section_id=.
func ListCards(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		sectionID := c.Query("section_id")
		if sectionID == "" {
			fail(c, http.StatusBadRequest, "section_id is required")
			return
		}
		cards, err := d.Store.Cards(c.Request.Context(), sectionID)
		if err != nil {
			d.storeFailed(c, "list_cards", err, "", "Failed to fetch cards")
			return
		}
		c.JSON(http.StatusOK, cards)
	}
}

// GetCard returns one card.
func GetCard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		card, err := d.Store.Card(c.Request.Context(), c.Param("id"))
		if err != nil {
			d.storeFailed(c, "get_card", err, "Card not found", "Failed to fetch card")
			return
		}
		c.JSON(http.StatusOK, card)
	}
}

// CreateCard inserts a card and answers 201 with the stored record under
// "data".
func CreateCard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.CardInput
		if !bind(c, &in) {
			return
		}
		in.Normalize()
		if in.Title == "" || strings.TrimSpace(in.Description) == "" {
			fail(c, http.StatusBadRequest, "Title and description are required")
			return
		}
		if in.SectionID == "" {
			fail(c, http.StatusBadRequest, "section_id is required")
			return
		}
		if in.Type == board.CardTypeURL && in.URL == "" {
			fail(c, http.StatusBadRequest, "URL is required for URL type cards")
			return
		}
		if err := in.Validate(); err != nil {
			fail(c, http.StatusBadRequest, err.Error())
			return
		}

		card, err := d.Store.CreateCard(c.Request.Context(), in)
		d.audit(c, "card", card.ID, err)
		if err != nil {
			d.storeFailed(c, "create_card", err, "", "Failed to insert card")
			return
		}
		c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Card saved", "data": card})
	}
}

// UpdateCardByBody updates the card named by "id" in the body.
func UpdateCardByBody(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.CardInput
		if !bind(c, &in) {
			return
		}
		if in.ID == "" || strings.TrimSpace(in.Title) == "" {
			fail(c, http.StatusBadRequest, "id and title are required")
			return
		}
		d.updateCard(c, in.ID, in)
	}
}

// UpdateCard updates the card named in the path.
func UpdateCard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var in board.CardInput
		if !bind(c, &in) {
			return
		}
		if strings.TrimSpace(in.Title) == "" {
			fail(c, http.StatusBadRequest, "title is required")
			return
		}
		d.updateCard(c, c.Param("id"), in)
	}
}

func (d *Deps) updateCard(c *gin.Context, id string, in board.CardInput) {
	// Updates without a type become dashboard cards.
	if in.Type == "" {
		in.Type = board.CardTypeDashboard
	}
	in.Normalize()
	if in.Type == board.CardTypeURL && in.URL == "" {
		fail(c, http.StatusBadRequest, "URL is required for URL type cards")
		return
	}
	if err := validateCardUpdate(in); err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	card, err := d.Store.UpdateCard(c.Request.Context(), id, in)
	d.audit(c, "card", id, err)
	if err != nil {
		d.storeFailed(c, "update_card", err, "Card not found", "Failed to update card")
		return
	}
	c.JSON(http.StatusOK, card)
}

// validateCardUpdate validates in without requiring a section: updates
// keep the stored one when it is omitted.
func validateCardUpdate(in board.CardInput) error {
	if in.SectionID == "" {
		in.SectionID = "unchanged"
	}
	return in.Validate()
}

// DeleteCardByBody removes the card named by {"id"} in the body.
func DeleteCardByBody(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var body struct {
			ID string `json:"id"`
		}
		if !bind(c, &body) {
			return
		}
		if body.ID == "" {
			fail(c, http.StatusBadRequest, "id is required")
			return
		}
		d.deleteCard(c, body.ID)
	}
}

// DeleteCard removes the card named in the path.
func DeleteCard(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.deleteCard(c, c.Param("id"))
	}
}

func (d *Deps) deleteCard(c *gin.Context, id string) {
	err := d.Store.DeleteCard(c.Request.Context(), id)
	d.audit(c, "card", id, err)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		d.storeFailed(c, "delete_card", err, "", "Failed to delete card")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Card deleted successfully"})
}
