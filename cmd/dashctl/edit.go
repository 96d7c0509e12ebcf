// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/board/form"
	"github.com/anhmake/dashhub/pkg/board/mutation"
	"github.com/anhmake/dashhub/pkg/ux"
)

// =============================================================================
// Shared
// =============================================================================

// flagFields maps value flags to form fields.
var flagFields = map[string]string{
	"title":       form.FieldTitle,
	"description": form.FieldDescription,
	"type":        form.FieldType,
	"url":         form.FieldURL,
	"icon":        form.FieldIcon,
	"icon-url":    form.FieldIconURL,
	"visibility":  form.FieldVisibility,
}

// changedValues overlays the flags the user set on v.
func changedValues(cmd *cobra.Command, v form.Values) form.Values {
	out := v.Clone()
	for flag, field := range flagFields {
		f := cmd.Flags().Lookup(flag)
		if f == nil || !f.Changed {
			continue
		}
		out[field] = f.Value.String()
	}
	if cmd.Flags().Changed("icon-url") && !cmd.Flags().Changed("icon") {
		out[form.FieldIcon] = form.IconWebLink
	}
	if f := cmd.Flags().Lookup("order"); f != nil && f.Changed {
		out[form.FieldSectionOrder] = f.Value.String()
	}
	return out
}

// submit opens intent on fc, overlays the flags and submits. With
// interactive set the form is prompted and re-prompted with the retained
// values until it succeeds or the user aborts.
func (a *app) submit(cmd *cobra.Command, s *session, fc *form.Controller, intent form.Intent, interactive bool) error {
	ctx := cmd.Context()
	fc.Open(intent)
	defer fc.Close()

	v := changedValues(cmd, fc.Values())
	if !interactive {
		return fc.Submit(ctx, v)
	}
	if !ux.IsTerminal(a.stdin) {
		return errors.New("--interactive needs a terminal")
	}

	p := a.printer(cmd)
	icons := s.fetcher.Icons(ctx)
	for {
		entered, err := promptValues(intent, v, icons, a.stdin, cmd.ErrOrStderr())
		if err != nil {
			return err
		}
		err = fc.Submit(ctx, entered)
		if err == nil {
			return nil
		}
		p.Error(err.Error())
		v = fc.Values()
	}
}

// confirmDelete returns yes, or asks on a terminal.
func (a *app) confirmDelete(cmd *cobra.Command, yes bool, question string) (bool, error) {
	if yes || !ux.IsTerminal(a.stdin) {
		return yes, nil
	}
	return confirm(question, a.stdin, cmd.ErrOrStderr())
}

func notConfirmed(err error) error {
	if errors.Is(err, board.ErrNotConfirmed) {
		return fmt.Errorf("%w: pass --yes to delete", err)
	}
	return err
}

// =============================================================================
// Cards
// =============================================================================

func (a *app) cardCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "card",
		Short: "Add, edit or delete cards",
	}
	cmd.AddCommand(a.cardAddCmd(), a.cardEditCmd(), a.cardDeleteCmd())
	return cmd
}

func bindCardFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("title", "", "card title")
	f.String("description", "", "card description")
	f.String("type", "", "url, dashboard or code")
	f.String("url", "", "link target (url cards)")
	f.String("icon", "", "icon name, or web-link to use --icon-url")
	f.String("icon-url", "", "icon image URL")
	f.String("visibility", "", "admin, user or all")
}

func (a *app) cardAddCmd() *cobra.Command {
	var (
		sectionID   string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a card to a section",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			mc, fc, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			if _, ok := findSection(mc.Sections(), sectionID); !ok {
				return s.scopeHint("section", sectionID)
			}

			if err := a.submit(cmd, s, fc, form.AddCard{SectionID: sectionID}, interactive); err != nil {
				return err
			}
			a.printer(cmd).Success(fmt.Sprintf("Added card to section %s", sectionID))
			return nil
		},
	}
	cmd.Flags().StringVar(&sectionID, "section", "", "section id")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "fill in the card form")
	bindCardFlags(cmd)
	_ = cmd.MarkFlagRequired("section")
	return cmd
}

func (a *app) cardEditCmd() *cobra.Command {
	var (
		sectionID   string
		interactive bool
	)
	cmd := &cobra.Command{
		Use:   "edit <card-id>",
		Short: "Edit a card; only the flags given change",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			mc, fc, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			card, ok := findCard(mc.Sections(), id)
			if !ok {
				return s.scopeHint("card", id)
			}
			if cmd.Flags().Changed("section") {
				if _, ok := findSection(mc.Sections(), sectionID); !ok {
					return s.scopeHint("section", sectionID)
				}
				card.SectionID = sectionID
			}

			if err := a.submit(cmd, s, fc, form.EditCard{Card: card}, interactive); err != nil {
				return err
			}
			a.printer(cmd).Success(fmt.Sprintf("Updated card %s", id))
			return nil
		},
	}
	cmd.Flags().StringVar(&sectionID, "section", "", "move the card to this section")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "edit the card form")
	bindCardFlags(cmd)
	return cmd
}

func (a *app) cardDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <card-id>",
		Short: "Delete a card",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			mc, _, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			card, ok := findCard(mc.Sections(), id)
			if !ok {
				return s.scopeHint("card", id)
			}

			confirmed, err := a.confirmDelete(cmd, yes, fmt.Sprintf("Delete card %q?", card.Title))
			if err != nil {
				return err
			}
			pm, err := mc.DeleteCard(cmd.Context(), mutation.DeleteRequest{ID: id, Confirmed: confirmed})
			if err != nil {
				return notConfirmed(err)
			}
			if err := pm.Wait(cmd.Context()); err != nil {
				return err
			}
			a.printer(cmd).Success(fmt.Sprintf("Deleted card %q", card.Title))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

// =============================================================================
// Sections
// =============================================================================

func (a *app) sectionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "section",
		Short: "Add, edit or delete sections",
	}
	cmd.AddCommand(a.sectionAddCmd(), a.sectionEditCmd(), a.sectionDeleteCmd())
	return cmd
}

func (a *app) sectionAddCmd() *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a section to the root or to --dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			_, fc, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			intent := form.AddSection{}
			if s.dashboardID != "" {
				intent.ParentCardID = board.StringPtr(s.dashboardID)
			}

			if err := a.submit(cmd, s, fc, intent, interactive); err != nil {
				return err
			}
			a.printer(cmd).Success("Added section")
			return nil
		},
	}
	cmd.Flags().String("title", "", "section title")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "fill in the section form")
	return cmd
}

func (a *app) sectionEditCmd() *cobra.Command {
	var interactive bool
	cmd := &cobra.Command{
		Use:   "edit <section-id>",
		Short: "Rename or reorder a section",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			mc, fc, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			section, ok := findSection(mc.Sections(), id)
			if !ok {
				return s.scopeHint("section", id)
			}

			if err := a.submit(cmd, s, fc, form.EditSection{Section: section}, interactive); err != nil {
				return err
			}
			a.printer(cmd).Success(fmt.Sprintf("Updated section %s", id))
			return nil
		},
	}
	cmd.Flags().String("title", "", "section title")
	cmd.Flags().Int("order", 0, "section order")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "edit the section form")
	return cmd
}

func (a *app) sectionDeleteCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <section-id>",
		Short: "Delete a section and its cards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := args[0]
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			mc, _, err := s.controllers(cmd.Context())
			if err != nil {
				return err
			}
			section, ok := findSection(mc.Sections(), id)
			if !ok {
				return s.scopeHint("section", id)
			}

			question := fmt.Sprintf("Delete section %q and its %s?", section.Title, cardCount(len(section.Cards)))
			confirmed, err := a.confirmDelete(cmd, yes, question)
			if err != nil {
				return err
			}
			pm, err := mc.DeleteSection(cmd.Context(), mutation.DeleteRequest{ID: id, Confirmed: confirmed})
			if err != nil {
				return notConfirmed(err)
			}
			if err := pm.Wait(cmd.Context()); err != nil {
				return err
			}
			a.printer(cmd).Success(fmt.Sprintf("Deleted section %q", section.Title))
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "delete without asking")
	return cmd
}

func cardCount(n int) string {
	if n == 1 {
		return "1 card"
	}
	return strconv.Itoa(n) + " cards"
}
