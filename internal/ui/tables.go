package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

const maxCellWidth = 80

// Table renders rows under headers as space-separated, left-aligned
// columns. A positive entry in widths fixes that column's width; other
// columns fit their widest cell, up to maxCellWidth.
func Table(c *ColorConfig, headers []string, rows [][]string, widths []int) string {
	cols := make([]int, len(headers))
	for i, h := range headers {
		cols[i] = lipgloss.Width(h)
	}
	for _, r := range rows {
		for i := 0; i < len(r) && i < len(cols); i++ {
			cols[i] = max(cols[i], min(lipgloss.Width(r[i]), maxCellWidth))
		}
	}
	for i := 0; i < len(widths) && i < len(cols); i++ {
		if widths[i] > 0 {
			cols[i] = widths[i]
		}
	}

	var b strings.Builder
	writeRow := func(cells []string, style func(string) string) {
		for i, w := range cols {
			if i > 0 {
				b.WriteByte(' ')
			}
			var cell string
			if i < len(cells) {
				cell = clip(cells[i], maxCellWidth)
			}
			b.WriteString(style(cell))
			if pad := w - lipgloss.Width(cell); pad > 0 {
				b.WriteString(strings.Repeat(" ", pad))
			}
		}
		b.WriteByte('\n')
	}

	writeRow(headers, c.Label)
	total := len(cols) - 1
	for _, w := range cols {
		total += w
	}
	b.WriteString(strings.Repeat("-", max(total, 0)))
	b.WriteByte('\n')
	for _, r := range rows {
		writeRow(r, c.Value)
	}
	return b.String()
}

func clip(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
