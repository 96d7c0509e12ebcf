// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"strconv"

	"github.com/anhmake/dashhub/pkg/board"
	"github.com/anhmake/dashhub/pkg/ux"
)

// printTree prints a dashboard card and its sections.
func printTree(p *ux.Printer, t *board.DashboardTree) {
	var desc string
	if t.Dashboard.Description != "" {
		desc = p.Theme.Muted.Render(t.Dashboard.Description)
	}
	p.Box(t.Dashboard.Title, desc)
	p.Muted("id " + t.Dashboard.ID)
	printSections(p, t.Sections)
}

// printSections prints sections with their cards, in the given order.
//
//	├─ Tools  tools · order 1
//	│  • Grafana  url · https://grafana.local
//	└─ Empty  empty
//	   (no cards)
func printSections(p *ux.Printer, sections []board.Section) {
	th := p.Theme
	if len(sections) == 0 {
		p.Muted("(no sections)")
		return
	}
	for i, s := range sections {
		branch, indent := "├─", "│  "
		if i == len(sections)-1 {
			branch, indent = "└─", "   "
		}
		meta := s.ID
		if s.SectionOrder != nil {
			meta += " · order " + strconv.Itoa(*s.SectionOrder)
		}
		p.Println("%s %s  %s", th.Muted.Render(branch), th.Heading.Render(s.Title), th.Muted.Render(meta))

		if len(s.Cards) == 0 {
			p.Println("%s%s", th.Muted.Render(indent), th.Muted.Render("(no cards)"))
			continue
		}
		for _, c := range s.Cards {
			p.Println("%s%s %s  %s", th.Muted.Render(indent), ux.IconBullet,
				th.Subtitle.Render(c.Title), th.Muted.Render(cardMeta(c)))
		}
	}
}

// printUser prints the signed-in identity.
func printUser(p *ux.Printer, u *board.User) {
	name := u.Name
	if name == "" {
		name = u.Email
	}
	if name == "" {
		name = u.ID
	}
	p.Println("%s  %s", p.Theme.Title.Render(name), p.Theme.Muted.Render(u.Email))
	p.Println("role %s · status %s · id %s", orDash(u.Role), orDash(u.Status), u.ID)
}

func cardMeta(c board.Card) string {
	meta := string(c.Type) + " · " + c.ID
	if c.URL != "" {
		meta = string(c.Type) + " · " + c.URL
	}
	if c.Visibility != "" && c.Visibility != board.VisibilityAll {
		meta += " · " + string(c.Visibility) + " only"
	}
	return meta
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
