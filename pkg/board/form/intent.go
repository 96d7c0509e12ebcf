// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package form

import (
	"strconv"

	"github.com/anhmake/dashhub/pkg/board"
)

// Field names accepted in Values.
const (
	FieldTitle        = "title"
	FieldDescription  = "description"
	FieldType         = "type"
	FieldURL          = "url"
	FieldIcon         = "icon"
	FieldIconURL      = "icon_url"
	FieldVisibility   = "visibility"
	FieldSectionOrder = "section_order"
)

// IconWebLink is the icon choice that takes the icon from FieldIconURL.
const IconWebLink = "web-link"

// Values is the flat field map a form submits.
type Values map[string]string

// Clone returns a copy.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Kind names an intent.
type Kind string

const (
	KindAddCard     Kind = "addCard"
	KindEditCard    Kind = "editCard"
	KindAddSection  Kind = "addSection"
	KindEditSection Kind = "editSection"
)

// Intent is what the modal was opened for. It is one of AddCard, EditCard,
// AddSection or EditSection.
type Intent interface {
	Kind() Kind
	// Fields lists the fields the modal shows, in display order.
	Fields() []string
	// Initial returns the prefilled values.
	Initial() Values
}

var cardFields = []string{FieldType, FieldTitle, FieldDescription, FieldIcon, FieldIconURL, FieldURL, FieldVisibility}

// AddCard opens an empty card form for a section.
type AddCard struct {
	SectionID string
}

func (AddCard) Kind() Kind       { return KindAddCard }
func (AddCard) Fields() []string { return cardFields }

func (AddCard) Initial() Values {
	return Values{FieldType: string(board.CardTypeURL), FieldIcon: board.DefaultIcon}
}

// EditCard opens a card form prefilled from an existing card.
type EditCard struct {
	Card board.Card
}

func (EditCard) Kind() Kind       { return KindEditCard }
func (EditCard) Fields() []string { return cardFields }

func (e EditCard) Initial() Values {
	icon := e.Card.Icon
	if icon == "" {
		icon = board.DefaultIcon
	}
	return Values{
		FieldType:        string(e.Card.Type),
		FieldTitle:       e.Card.Title,
		FieldDescription: e.Card.Description,
		FieldURL:         e.Card.URL,
		FieldIcon:        icon,
		FieldVisibility:  string(e.Card.Visibility),
	}
}

// AddSection opens an empty section form. ParentCardID is nil for root
// sections.
type AddSection struct {
	ParentCardID *string
}

func (AddSection) Kind() Kind       { return KindAddSection }
func (AddSection) Fields() []string { return []string{FieldTitle} }
func (AddSection) Initial() Values  { return Values{} }

// EditSection opens a section form prefilled from an existing section.
type EditSection struct {
	Section board.Section
}

func (EditSection) Kind() Kind       { return KindEditSection }
func (EditSection) Fields() []string { return []string{FieldTitle, FieldSectionOrder} }

func (e EditSection) Initial() Values {
	v := Values{FieldTitle: e.Section.Title}
	if e.Section.SectionOrder != nil {
		v[FieldSectionOrder] = strconv.Itoa(*e.Section.SectionOrder)
	}
	return v
}
