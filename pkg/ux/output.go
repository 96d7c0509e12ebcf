// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the dashhub CLI.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Color palette - deep ocean teals
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - section headings
	ColorTealOcean   = lipgloss.Color("#157483") // Ocean teal - borders

	ColorSlate = lipgloss.Color("#5C7A84") // Slate - muted text

	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Theme holds the styles a Printer renders with. The zero Theme renders
// plain text.
type Theme struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Heading  lipgloss.Style
	Muted    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Error    lipgloss.Style
	Box      lipgloss.Style

	colored bool
}

// NewTheme returns the colored theme, or the plain one when color is false.
func NewTheme(color bool) Theme {
	if !color {
		return Theme{}
	}
	return Theme{
		colored:  true,
		Title:    lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
		Subtitle: lipgloss.NewStyle().Foreground(ColorTealPrimary),
		Heading:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealDeep),
		Muted:    lipgloss.NewStyle().Foreground(ColorSlate),
		Success:  lipgloss.NewStyle().Foreground(ColorTealBright),
		Warning:  lipgloss.NewStyle().Foreground(ColorWarning),
		Error:    lipgloss.NewStyle().Foreground(ColorError),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorTealOcean).
			Padding(0, 1),
	}
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Printer writes themed lines to w.
type Printer struct {
	W     io.Writer
	Theme Theme
}

// NewPrinter returns a printer on w. Color is used only when color is true
// and w is a terminal.
func NewPrinter(w io.Writer, color bool) *Printer {
	return &Printer{W: w, Theme: NewTheme(color && IsTerminal(w))}
}

// Println writes one line.
func (p *Printer) Println(format string, args ...any) {
	fmt.Fprintf(p.W, format+"\n", args...)
}

// Success prints a success message with checkmark
func (p *Printer) Success(text string) {
	p.Println("%s %s", p.Theme.Success.Render(string(IconSuccess)), text)
}

// Warning prints a warning message
func (p *Printer) Warning(text string) {
	p.Println("%s %s", p.Theme.Warning.Render(string(IconWarning)), p.Theme.Warning.Render(text))
}

// Error prints an error message
func (p *Printer) Error(text string) {
	p.Println("%s %s", p.Theme.Error.Render(string(IconError)), p.Theme.Error.Render(text))
}

// Muted prints secondary text
func (p *Printer) Muted(text string) {
	p.Println("%s", p.Theme.Muted.Render(text))
}

// Box prints a title and content in a rounded box. Without color the box is
// dropped and the lines are printed as is.
func (p *Printer) Box(title, content string) {
	if !p.Theme.colored {
		p.Println("%s", title)
		if content != "" {
			p.Println("%s", content)
		}
		return
	}
	body := p.Theme.Title.Render(title)
	if content != "" {
		body += "\n" + content
	}
	p.Println("%s", p.Theme.Box.Render(body))
}
