// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/huh"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/form"
)

var fieldLabels = map[string]string{
	form.FieldTitle:        "Title",
	form.FieldDescription:  "Description",
	form.FieldType:         "Type",
	form.FieldURL:          "URL (url cards only)",
	form.FieldIcon:         "Icon",
	form.FieldIconURL:      "Icon URL (web-link icon only)",
	form.FieldVisibility:   "Visible to",
	form.FieldSectionOrder: "Order",
}

// promptValues shows the intent's fields prefilled from initial and returns
// what the user entered.
func promptValues(intent form.Intent, initial form.Values, icons []string, in io.Reader, out io.Writer) (form.Values, error) {
	fields := intent.Fields()
	vals := make([]string, len(fields))
	huhFields := make([]huh.Field, 0, len(fields))

	for i, name := range fields {
		vals[i] = initial[name]
		huhFields = append(huhFields, promptField(name, &vals[i], icons))
	}

	err := huh.NewForm(huh.NewGroup(huhFields...)).
		WithInput(in).
		WithOutput(out).
		Run()
	if err != nil {
		return nil, err
	}

	v := initial.Clone()
	for i, name := range fields {
		v[name] = vals[i]
	}
	return v, nil
}

func promptField(name string, value *string, icons []string) huh.Field {
	label := fieldLabels[name]
	switch name {
	case form.FieldType:
		return huh.NewSelect[string]().
			Title(label).
			Options(huh.NewOptions(
				string(board.CardTypeURL),
				string(board.CardTypeDashboard),
				string(board.CardTypeCode),
			)...).
			Value(value)
	case form.FieldVisibility:
		return huh.NewSelect[string]().
			Title(label).
			Options(
				huh.NewOption("everyone", ""),
				huh.NewOption("admins", string(board.VisibilityAdmin)),
				huh.NewOption("users", string(board.VisibilityUser)),
				huh.NewOption("all", string(board.VisibilityAll)),
			).
			Value(value)
	case form.FieldIcon:
		choices := slices.Clone(icons)
		if *value != "" && !slices.Contains(choices, *value) && *value != form.IconWebLink {
			choices = append(choices, *value)
		}
		choices = append(choices, form.IconWebLink)
		return huh.NewSelect[string]().
			Title(label).
			Options(huh.NewOptions(choices...)...).
			Value(value)
	case form.FieldDescription:
		return huh.NewText().Title(label).Value(value)
	default:
		if label == "" {
			label = name
		}
		return huh.NewInput().Title(label).Value(value)
	}
}

// confirm asks a yes/no question.
func confirm(question string, in io.Reader, out io.Writer) (bool, error) {
	var ok bool
	err := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title(question).
			Affirmative("Delete").
			Negative("Cancel").
			Value(&ok),
	)).WithInput(in).WithOutput(out).Run()
	if err != nil {
		return false, fmt.Errorf("confirmation aborted: %w", err)
	}
	return ok, nil
}
