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

	"github.com/spf13/cobra"

	"github.com/anhmake/dashhub/pkg/board"
)

func (a *app) treeCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "tree [dashboard-id]",
		Short: "Show sections and cards",
		Long: `Show the root sections with their cards, or the tree of one
sub-dashboard when an id is given (or --dashboard is set). Cards are
filtered by their visibility for the signed-in user unless --all is set.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			p := a.printer(cmd)

			id := a.dashboardID
			if len(args) == 1 {
				id = args[0]
			}
			visible := func(sections []board.Section) []board.Section { return sections }
			if !all {
				viewer := board.ViewerFor(s.fetcher.User(cmd.Context()))
				visible = viewer.VisibleSections
			}

			if id == "" {
				printSections(p, visible(s.fetcher.RootSections(cmd.Context())))
				return nil
			}

			t, err := s.fetcher.Dashboard(cmd.Context(), id)
			if errors.Is(err, board.ErrNotFound) {
				return fmt.Errorf("dashboard %s not found", id)
			}
			if err != nil {
				return fmt.Errorf("failed to load dashboard %s: %w", id, err)
			}
			t.Sections = visible(t.Sections)
			printTree(p, t)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "show cards regardless of visibility")
	return cmd
}

func (a *app) iconsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "icons",
		Short: "List icon names available for cards",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			p := a.printer(cmd)
			for _, name := range s.fetcher.Icons(cmd.Context()) {
				p.Println("%s", name)
			}
			return nil
		},
	}
}

func (a *app) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			u := s.fetcher.User(cmd.Context())
			if u == nil {
				return errors.New("not signed in (set --token or DASHHUB_TOKEN)")
			}
			printUser(a.printer(cmd), u)
			return nil
		},
	}
}
