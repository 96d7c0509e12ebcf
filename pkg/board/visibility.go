// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package board

// Viewer describes who is looking at a rendered tree.
type Viewer struct {
	SignedIn bool
	Admin    bool
}

// ViewerFor derives a Viewer from the current user, which may be nil.
func ViewerFor(u *User) Viewer {
	if u == nil {
		return Viewer{}
	}
	return Viewer{SignedIn: true, Admin: u.IsAdmin()}
}

// CanSee reports whether the viewer may see a card.
//
// Admin cards are shown to admins only. User cards are shown to any signed-in
// viewer. Cards without a visibility, or with an unknown one, are public.
func (v Viewer) CanSee(c Card) bool {
	switch c.Visibility {
	case VisibilityAdmin:
		return v.Admin
	case VisibilityUser:
		return v.SignedIn || v.Admin
	default:
		return true
	}
}

// VisibleCards returns the cards the viewer may see, preserving order.
func (v Viewer) VisibleCards(cards []Card) []Card {
	out := make([]Card, 0, len(cards))
	for _, c := range cards {
		if v.CanSee(c) {
			out = append(out, c)
		}
	}
	return out
}

// VisibleSections returns copies of the sections with hidden cards removed.
func (v Viewer) VisibleSections(sections []Section) []Section {
	out := make([]Section, len(sections))
	for i, s := range sections {
		out[i] = s.Clone()
		out[i].Cards = v.VisibleCards(s.Cards)
	}
	return out
}
