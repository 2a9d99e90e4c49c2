// Package ui formats the tool's tabular and time output.
package ui

import (
	"strings"
	"unicode/utf8"
)

// FormatTable renders headers and rows as an aligned plain-text table.
// Cells never contain control sequences; alignment is by rune count.
func FormatTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, header := range headers {
		widths[i] = utf8.RuneCountInString(header)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			if n := utf8.RuneCountInString(cell); n > widths[i] {
				widths[i] = n
			}
		}
	}

	var builder strings.Builder
	writeRow := func(row []string) {
		for i, cell := range row {
			builder.WriteString(cell)
			if i == len(row)-1 {
				builder.WriteByte('\n')
				continue
			}
			builder.WriteString(strings.Repeat(" ", widths[i]-utf8.RuneCountInString(cell)+2))
		}
	}

	writeRow(headers)
	for _, row := range rows {
		writeRow(row)
	}

	return builder.String()
}
