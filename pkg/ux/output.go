// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux renders gridsim command output.
//
// A Printer styles its output with lipgloss when writing to a terminal and
// falls back to plain, tab-separated text otherwise, so output stays
// pipeable.
package ux

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Palette.
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7")
	ColorTealPrimary = lipgloss.Color("#20B9B4")
	ColorTealDeep    = lipgloss.Color("#16858E")
	ColorSlate       = lipgloss.Color("#2C4A54")

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles.
var Styles = struct {
	Title   lipgloss.Style
	Header  lipgloss.Style
	Bold    lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Box     lipgloss.Style
}{
	Title:   lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Header:  lipgloss.NewStyle().Bold(true).Foreground(ColorTealPrimary),
	Bold:    lipgloss.NewStyle().Bold(true),
	Muted:   lipgloss.NewStyle().Foreground(ColorSlate),
	Success: lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning: lipgloss.NewStyle().Foreground(ColorWarning),
	Error:   lipgloss.NewStyle().Foreground(ColorError),
	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
}

// Icon is a status glyph.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconBullet  Icon = "•"
)

// Render returns the icon with its style.
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	default:
		return string(i)
	}
}

// Printer writes command output.
type Printer struct {
	out    io.Writer
	errOut io.Writer
	plain  bool
}

// NewPrinter returns a printer for out and errOut. Output is plain unless
// out is a terminal.
func NewPrinter(out, errOut io.Writer) *Printer {
	return &Printer{out: out, errOut: errOut, plain: !isTerminal(out)}
}

// Stdio returns a printer for stdout and stderr.
func Stdio() *Printer {
	return NewPrinter(os.Stdout, os.Stderr)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Plain reports whether styling is disabled.
func (p *Printer) Plain() bool {
	return p.plain
}

// WithPlain returns a copy of p with styling forced on or off.
func (p *Printer) WithPlain(plain bool) *Printer {
	c := *p
	c.plain = plain
	return &c
}

// Title prints a heading. Plain output omits it.
func (p *Printer) Title(text string) {
	if p.plain {
		return
	}
	fmt.Fprintln(p.out, Styles.Title.Render(text))
}

// Success prints a confirmation.
func (p *Printer) Success(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.plain {
		fmt.Fprintf(p.out, "OK: %s\n", text)
		return
	}
	fmt.Fprintf(p.out, "%s %s\n", IconSuccess.Render(), Styles.Success.Render(text))
}

// Warning prints to the error stream.
func (p *Printer) Warning(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.plain {
		fmt.Fprintf(p.errOut, "WARN: %s\n", text)
		return
	}
	fmt.Fprintf(p.errOut, "%s %s\n", IconWarning.Render(), Styles.Warning.Render(text))
}

// Error prints to the error stream.
func (p *Printer) Error(format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if p.plain {
		fmt.Fprintf(p.errOut, "ERROR: %s\n", text)
		return
	}
	fmt.Fprintf(p.errOut, "%s %s\n", IconError.Render(), Styles.Error.Render(text))
}

// Field is one line of a KV block.
type Field struct {
	Key   string
	Value any
}

// KV prints aligned key/value pairs, boxed under title when styled.
func (p *Printer) KV(title string, fields ...Field) {
	if p.plain {
		for _, f := range fields {
			fmt.Fprintf(p.out, "%s\t%v\n", f.Key, f.Value)
		}
		return
	}
	width := 0
	for _, f := range fields {
		width = max(width, lipgloss.Width(f.Key))
	}
	lines := []string{Styles.Title.Render(title)}
	for _, f := range fields {
		key := Styles.Muted.Render(f.Key + strings.Repeat(" ", width-lipgloss.Width(f.Key)))
		lines = append(lines, fmt.Sprintf("%s  %v", key, f.Value))
	}
	fmt.Fprintln(p.out, Styles.Box.Render(strings.Join(lines, "\n")))
}

// List prints one bulleted item per line.
func (p *Printer) List(items []string) {
	for _, item := range items {
		if p.plain {
			fmt.Fprintln(p.out, item)
			continue
		}
		fmt.Fprintf(p.out, "%s %s\n", Styles.Muted.Render(string(IconBullet)), item)
	}
}
