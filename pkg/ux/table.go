// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Table is a header row and data rows of equal width.
type Table struct {
	Headers []string
	Rows    [][]string
}

// Render lays the table out. Plain tables are tab-separated with the
// header first; styled tables pad columns and style the header.
func (t Table) Render(plain bool) string {
	var b strings.Builder
	if plain {
		b.WriteString(strings.Join(t.Headers, "\t"))
		b.WriteByte('\n')
		for _, row := range t.Rows {
			b.WriteString(strings.Join(row, "\t"))
			b.WriteByte('\n')
		}
		return b.String()
	}

	widths := make([]int, len(t.Headers))
	for i, h := range t.Headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range t.Rows {
		for i := 0; i < len(row) && i < len(widths); i++ {
			widths[i] = max(widths[i], lipgloss.Width(row[i]))
		}
	}

	line := func(cells []string, style *lipgloss.Style) {
		for i, w := range widths {
			cell := ""
			if i < len(cells) {
				cell = cells[i]
			}
			padded := cell
			if i < len(widths)-1 {
				padded += strings.Repeat(" ", w-lipgloss.Width(cell))
			}
			if style != nil {
				padded = style.Render(padded)
			}
			if i > 0 {
				b.WriteString("  ")
			}
			b.WriteString(padded)
		}
		b.WriteByte('\n')
	}
	line(t.Headers, &Styles.Header)
	for _, row := range t.Rows {
		line(row, nil)
	}
	return b.String()
}

// Table prints t.
func (p *Printer) Table(t Table) {
	if len(t.Rows) == 0 && !p.plain {
		fmt.Fprintln(p.out, Styles.Muted.Render("(none)"))
		return
	}
	fmt.Fprint(p.out, t.Render(p.plain))
}
