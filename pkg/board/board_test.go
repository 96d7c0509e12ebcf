// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package board

import (
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func sectionIDs(sections []Section) []string {
	ids := make([]string, len(sections))
	for i, s := range sections {
		ids[i] = s.ID
	}
	return ids
}

// =============================================================================
// Ordering
// =============================================================================

func TestSortSections_NullOrderSortsLast(t *testing.T) {
	sections := []Section{
		{ID: "a", SectionOrder: IntPtr(2), CreatedAt: at(1)},
		{ID: "b", SectionOrder: IntPtr(1), CreatedAt: at(2)},
		{ID: "c", CreatedAt: at(0)},
	}

	SortSections(sections)

	assert.Equal(t, []string{"b", "a", "c"}, sectionIDs(sections))
}

func TestSortSections_MixedOrders(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
		want     []string
	}{
		{
			name: "null orders compare by created_at",
			sections: []Section{
				{ID: "late", CreatedAt: at(5)},
				{ID: "early", CreatedAt: at(1)},
				{ID: "ordered", SectionOrder: IntPtr(9), CreatedAt: at(10)},
			},
			want: []string{"ordered", "early", "late"},
		},
		{
			name: "equal orders tie-break on created_at",
			sections: []Section{
				{ID: "x", SectionOrder: IntPtr(1), CreatedAt: at(3)},
				{ID: "y", SectionOrder: IntPtr(1), CreatedAt: at(2)},
			},
			want: []string{"y", "x"},
		},
		{
			name: "zero is a real order",
			sections: []Section{
				{ID: "none", CreatedAt: at(0)},
				{ID: "one", SectionOrder: IntPtr(1), CreatedAt: at(0)},
				{ID: "zero", SectionOrder: IntPtr(0), CreatedAt: at(9)},
			},
			want: []string{"zero", "one", "none"},
		},
		{
			name: "full tie falls back to id",
			sections: []Section{
				{ID: "s2", CreatedAt: at(0)},
				{ID: "s1", CreatedAt: at(0)},
			},
			want: []string{"s1", "s2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			SortSections(tt.sections)
			assert.Equal(t, tt.want, sectionIDs(tt.sections))
		})
	}
}

func TestSortSections_SortsCardsOldestFirst(t *testing.T) {
	sections := []Section{{
		ID: "s",
		Cards: []Card{
			{ID: "new", CreatedAt: at(3)},
			{ID: "old", CreatedAt: at(1)},
			{ID: "mid", CreatedAt: at(2)},
		},
	}}

	SortSections(sections)

	require.Len(t, sections[0].Cards, 3)
	assert.Equal(t, "old", sections[0].Cards[0].ID)
	assert.Equal(t, "mid", sections[0].Cards[1].ID)
	assert.Equal(t, "new", sections[0].Cards[2].ID)
}

func TestWithoutHidden(t *testing.T) {
	in := []Section{{ID: "hidden_abc"}, {ID: "visible"}, {ID: "xhidden_"}}
	assert.Equal(t, []string{"visible", "xhidden_"}, sectionIDs(WithoutHidden(in)))
}

func TestSectionClone_IsDeep(t *testing.T) {
	orig := Section{ID: "s", SectionOrder: IntPtr(1), ParentCardID: StringPtr("p"), Cards: []Card{{ID: "c"}}}

	cp := orig.Clone()
	*cp.SectionOrder = 7
	*cp.ParentCardID = "q"
	cp.Cards[0].ID = "changed"

	assert.Equal(t, 1, *orig.SectionOrder)
	assert.Equal(t, "p", *orig.ParentCardID)
	assert.Equal(t, "c", orig.Cards[0].ID)
}

// =============================================================================
// Visibility
// =============================================================================

func TestViewer_CanSee(t *testing.T) {
	admin := Card{ID: "a", Visibility: VisibilityAdmin}
	user := Card{ID: "u", Visibility: VisibilityUser}
	all := Card{ID: "all", Visibility: VisibilityAll}
	unset := Card{ID: "none"}

	tests := []struct {
		name   string
		viewer Viewer
		card   Card
		want   bool
	}{
		{"anonymous cannot see admin card", Viewer{}, admin, false},
		{"signed-in user cannot see admin card", Viewer{SignedIn: true}, admin, false},
		{"admin sees admin card", Viewer{SignedIn: true, Admin: true}, admin, true},
		{"anonymous cannot see user card", Viewer{}, user, false},
		{"signed-in user sees user card", Viewer{SignedIn: true}, user, true},
		{"anonymous sees all card", Viewer{}, all, true},
		{"anonymous sees card without visibility", Viewer{}, unset, true},
		{"admin sees card without visibility", Viewer{SignedIn: true, Admin: true}, unset, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.viewer.CanSee(tt.card))
		})
	}
}

func TestViewer_VisibleSections_DoesNotMutateInput(t *testing.T) {
	in := []Section{{ID: "s", Cards: []Card{
		{ID: "a", Visibility: VisibilityAdmin},
		{ID: "p"},
	}}}

	out := ViewerFor(nil).VisibleSections(in)

	require.Len(t, out[0].Cards, 1)
	assert.Equal(t, "p", out[0].Cards[0].ID)
	assert.Len(t, in[0].Cards, 2)
}

func TestViewerFor(t *testing.T) {
	assert.Equal(t, Viewer{}, ViewerFor(nil))
	assert.Equal(t, Viewer{SignedIn: true}, ViewerFor(&User{ID: "1", Role: RoleUser}))
	assert.Equal(t, Viewer{SignedIn: true, Admin: true}, ViewerFor(&User{ID: "1", Role: RoleAdmin}))
}

// =============================================================================
// Validation
// =============================================================================

func TestCardInput_Validate(t *testing.T) {
	tests := []struct {
		name    string
		input   CardInput
		wantErr bool
	}{
		{
			name:  "valid url card",
			input: CardInput{SectionID: "s", Title: "Docs", Type: CardTypeURL, URL: "https://example.com"},
		},
		{
			name:    "url card without url",
			input:   CardInput{SectionID: "s", Title: "Docs", Type: CardTypeURL},
			wantErr: true,
		},
		{
			name:  "dashboard card without url",
			input: CardInput{SectionID: "s", Title: "Team", Type: CardTypeDashboard},
		},
		{
			name:    "blank title",
			input:   CardInput{SectionID: "s", Title: "   ", Type: CardTypeCode},
			wantErr: true,
		},
		{
			name:    "missing section",
			input:   CardInput{Title: "Docs", Type: CardTypeCode},
			wantErr: true,
		},
		{
			name:    "unknown type",
			input:   CardInput{SectionID: "s", Title: "Docs", Type: "video"},
			wantErr: true,
		},
		{
			name:    "unknown visibility",
			input:   CardInput{SectionID: "s", Title: "Docs", Type: CardTypeCode, Visibility: "staff"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.input.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
				var verrs validator.ValidationErrors
				assert.True(t, errors.As(err, &verrs))
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestCardInput_Normalize(t *testing.T) {
	in := CardInput{SectionID: "s", Title: "  Board ", Type: CardTypeCode, URL: "https://stale"}

	in.Normalize()

	assert.Equal(t, "Board", in.Title)
	assert.Equal(t, DefaultIcon, in.Icon)
	assert.Empty(t, in.URL)

	var empty CardInput
	empty.Normalize()
	assert.Equal(t, CardTypeURL, empty.Type)
}

func TestSectionInput_Validate(t *testing.T) {
	assert.NoError(t, (&SectionInput{ID: "section_1", Title: "Tools"}).Validate())
	assert.NoError(t, (&SectionInput{ID: "section_1", Title: "Tools", SectionOrder: IntPtr(0)}).Validate())
	assert.ErrorIs(t, (&SectionInput{ID: "section_1"}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&SectionInput{Title: "Tools"}).Validate(), ErrValidation)
	assert.ErrorIs(t, (&SectionInput{ID: "s", Title: "Tools", SectionOrder: IntPtr(-1)}).Validate(), ErrValidation)
}

func TestLinkInput_Validate_ExactlyOneParent(t *testing.T) {
	base := LinkInput{Title: "Wiki", URL: "https://wiki.example.com"}

	none := base
	assert.ErrorIs(t, none.Validate(), ErrValidation)

	both := base
	both.SectionID = StringPtr("s")
	both.CardID = StringPtr("c")
	assert.ErrorIs(t, both.Validate(), ErrValidation)

	section := base
	section.SectionID = StringPtr("s")
	assert.NoError(t, section.Validate())

	card := base
	card.CardID = StringPtr("c")
	assert.NoError(t, card.Validate())
}

func TestMustRegister(t *testing.T) {
	v := validator.New()
	assert.NotPanics(t, func() { mustRegister(v, "notblank", validateNotBlank) })
	assert.Panics(t, func() { mustRegister(v, "", validateNotBlank) })

	type titled struct {
		Title string `validate:"notblank"`
	}
	assert.Error(t, v.Struct(titled{Title: " \t"}))
	assert.NoError(t, v.Struct(titled{Title: "Docs"}))
}
