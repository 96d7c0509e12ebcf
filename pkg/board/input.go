// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package board

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// =============================================================================
// Shared Validator Instance
// =============================================================================

// boardValidate is the validator instance for mutation inputs.
var boardValidate *validator.Validate

func init() {
	boardValidate = validator.New()
	mustRegister(boardValidate, "notblank", validateNotBlank)
}

// mustRegister adds a custom rule and panics if the validator refuses it.
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("board: register %q validation: %v", tag, err))
	}
}

// validateNotBlank rejects strings that are empty after trimming spaces.
func validateNotBlank(fl validator.FieldLevel) bool {
	return strings.TrimSpace(fl.Field().String()) != ""
}

// ValidateStruct runs the board validator over any struct with validate
// tags. Failures wrap ErrValidation.
func ValidateStruct(v any) error {
	return validate(v)
}

// validate runs struct validation and wraps failures in ErrValidation.
func validate(v any) error {
	if err := boardValidate.Struct(v); err != nil {
		return fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return nil
}

// =============================================================================
// Card Input
// =============================================================================

// CardInput is the normalized request for creating or updating a card.
//
// # Description
//
// Produced by the form controller and sent by the mutation controller. ID is
// empty for inserts. Title and SectionID are always required, URL only when
// Type is "url".
//
// # Fields
//
//   - ID: card id, empty for inserts
//   - SectionID: owning section, required
//   - Title: required, not blank
//   - Type: url | dashboard | code, defaults to url
//   - URL: required when Type is url, cleared otherwise by Normalize
//   - Icon: defaults to DefaultIcon
//   - Visibility: admin | user | all, optional
type CardInput struct {
	ID          string     `json:"id,omitempty"`
	SectionID   string     `json:"section_id" validate:"required"`
	Title       string     `json:"title" validate:"required,notblank"`
	Description string     `json:"description"`
	Type        CardType   `json:"type" validate:"required,oneof=url dashboard code"`
	URL         string     `json:"url,omitempty" validate:"required_if=Type url,omitempty,notblank"`
	Icon        string     `json:"icon"`
	Visibility  Visibility `json:"visibility,omitempty" validate:"omitempty,oneof=admin user all"`
}

// Normalize applies defaults: type url, icon fallback, and no URL on
// non-url cards.
func (in *CardInput) Normalize() {
	in.Title = strings.TrimSpace(in.Title)
	in.URL = strings.TrimSpace(in.URL)
	if in.Type == "" {
		in.Type = CardTypeURL
	}
	if strings.TrimSpace(in.Icon) == "" {
		in.Icon = DefaultIcon
	}
	if in.Type != CardTypeURL {
		in.URL = ""
	}
}

// Validate checks required fields.
func (in *CardInput) Validate() error {
	return validate(in)
}

// Card converts the input into a card record with the given id.
func (in CardInput) Card(id string) Card {
	return Card{
		ID:          id,
		SectionID:   in.SectionID,
		Title:       in.Title,
		Description: in.Description,
		Icon:        in.Icon,
		Type:        in.Type,
		URL:         in.URL,
		Visibility:  in.Visibility,
	}
}

// =============================================================================
// Section Input
// =============================================================================

// SectionInput is the normalized request for creating or updating a section.
//
// A nil SectionOrder on update means "keep the current order".
type SectionInput struct {
	ID           string  `json:"id" validate:"required"`
	Title        string  `json:"title" validate:"required,notblank"`
	SectionOrder *int    `json:"section_order,omitempty" validate:"omitempty,gte=0"`
	ParentCardID *string `json:"parent_card_id,omitempty"`
}

// Validate checks required fields.
func (in *SectionInput) Validate() error {
	return validate(in)
}

// =============================================================================
// Snippet and Link Inputs
// =============================================================================

// SnippetInput creates or updates a code snippet.
type SnippetInput struct {
	CardID  string `json:"card_id" validate:"required"`
	Title   string `json:"title" validate:"required,notblank"`
	Content string `json:"content" validate:"required"`
}

// Validate checks required fields.
func (in *SnippetInput) Validate() error {
	return validate(in)
}

// LinkInput creates or updates a standalone link. Exactly one of SectionID
// and CardID must be set.
type LinkInput struct {
	SectionID   *string `json:"section_id,omitempty" validate:"required_without=CardID,excluded_with=CardID"`
	CardID      *string `json:"card_id,omitempty" validate:"required_without=SectionID,excluded_with=SectionID"`
	Title       string  `json:"title" validate:"required,notblank"`
	URL         string  `json:"url" validate:"required,url"`
	Description string  `json:"description"`
	Icon        string  `json:"icon"`
}

// Validate checks required fields.
func (in *LinkInput) Validate() error {
	return validate(in)
}
