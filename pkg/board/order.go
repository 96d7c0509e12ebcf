// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package board

import (
	"cmp"
	"slices"
)

// CompareSections is the single section comparator used by every fetch path.
//
// # Description
//
// Sections with a non-nil SectionOrder precede sections without one. Two
// ordered sections compare by SectionOrder, then CreatedAt. Two unordered
// sections compare by CreatedAt. Remaining ties break on ID so the result is
// a total order.
//
// # Examples
//
//	a: order 2, created T1
//	b: order 1, created T2
//	c: no order, created T0
//	sorted: b, a, c
func CompareSections(a, b Section) int {
	switch {
	case a.SectionOrder != nil && b.SectionOrder == nil:
		return -1
	case a.SectionOrder == nil && b.SectionOrder != nil:
		return 1
	case a.SectionOrder != nil && b.SectionOrder != nil:
		if c := cmp.Compare(*a.SectionOrder, *b.SectionOrder); c != 0 {
			return c
		}
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// CompareCards orders cards oldest first, breaking ties on ID.
func CompareCards(a, b Card) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortSections sorts sections in place and sorts every section's cards.
// A nil card list becomes an empty one so both fetch paths serialize alike.
func SortSections(sections []Section) {
	slices.SortStableFunc(sections, CompareSections)
	for i := range sections {
		if sections[i].Cards == nil {
			sections[i].Cards = []Card{}
		}
		SortCards(sections[i].Cards)
	}
}

// SortCards sorts cards in place.
func SortCards(cards []Card) {
	slices.SortStableFunc(cards, CompareCards)
}

// WithoutHidden drops sections whose id carries HiddenSectionPrefix.
func WithoutHidden(sections []Section) []Section {
	out := make([]Section, 0, len(sections))
	for _, s := range sections {
		if !s.IsHidden() {
			out = append(out, s)
		}
	}
	return out
}
