package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette shared by the inspectors.
var (
	PrimaryColor   = lipgloss.AdaptiveColor{Light: "#5A56E0", Dark: "#7C3AED"}
	SecondaryColor = lipgloss.AdaptiveColor{Light: "#EE6FF8", Dark: "#06B6D4"}
	SuccessColor   = lipgloss.AdaptiveColor{Light: "#02BA84", Dark: "#10B981"}
	WarningColor   = lipgloss.AdaptiveColor{Light: "#FF8C00", Dark: "#F59E0B"}
	ErrorColor     = lipgloss.AdaptiveColor{Light: "#FF5F56", Dark: "#EF4444"}
	MutedColor     = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#94A3B8"}
	FgColor        = lipgloss.AdaptiveColor{Light: "#1E1E2E", Dark: "#CDD6F4"}
)

var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(PrimaryColor).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	HeaderStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 1)

	TableHeaderStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(SecondaryColor).
				Bold(true).
				Padding(0, 1)

	CellStyle = lipgloss.NewStyle().
			Foreground(FgColor).
			Padding(0, 1)

	DetailStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(PrimaryColor).
			Padding(0, 2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(SecondaryColor).
			Bold(true)

	ValueStyle = lipgloss.NewStyle().
			Foreground(FgColor)

	PageInfoStyle = lipgloss.NewStyle().
			Foreground(SuccessColor).
			Bold(true).
			Padding(0, 1)

	MutedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ErrorColor).
			Bold(true).
			Padding(0, 1)

	WarningStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Bold(true).
			Padding(0, 1)
)

// PadString right-pads s with spaces to width.
func PadString(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// TruncateString shortens s to maxWidth, ending in "..." when cut.
func TruncateString(s string, maxWidth int) string {
	if len(s) <= maxWidth {
		return s
	}
	if maxWidth < 3 {
		return s[:maxWidth]
	}
	return s[:maxWidth-3] + "..."
}

func RenderError(err error) string {
	return ErrorStyle.Render("Error: " + err.Error())
}

// RenderTitle renders a title with an icon
func RenderTitle(icon, title string) string {
	return TitleStyle.Render(icon + "  " + title)
}

// RenderHeaderWithCount renders a header with optional count
func RenderHeaderWithCount(text string, count int) string {
	if count >= 0 {
		return HeaderStyle.Render(fmt.Sprintf(" %s (%d) ", text, count))
	}
	return HeaderStyle.Render(" " + text + " ")
}

// RenderKeyValues renders label/value pairs, one per line, inside a box.
func RenderKeyValues(pairs [][2]string) string {
	width := 0
	for _, p := range pairs {
		width = max(width, len(p[0]))
	}

	lines := make([]string, len(pairs))
	for i, p := range pairs {
		lines[i] = LabelStyle.Render(PadString(p[0], width)) + "  " + ValueStyle.Render(p[1])
	}
	return DetailStyle.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

// RenderTable renders headers and rows with columns sized to their widest
// cell, capped at maxCol characters.
func RenderTable(headers []string, data [][]string, maxCol int) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range data {
		for i, cell := range row {
			if i < len(widths) {
				widths[i] = min(max(widths[i], len(cell)), maxCol)
			}
		}
	}

	var b strings.Builder

	headerRow := make([]string, len(headers))
	for i, header := range headers {
		headerRow[i] = TableHeaderStyle.Render(PadString(header, widths[i]))
	}
	b.WriteString(strings.Join(headerRow, " ") + "\n")

	separator := make([]string, len(widths))
	for i, width := range widths {
		separator[i] = strings.Repeat("─", width+2)
	}
	b.WriteString(MutedStyle.Render(strings.Join(separator, "┼")) + "\n")

	for _, row := range data {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = CellStyle.Render(PadString(TruncateString(cell, widths[i]), widths[i]))
		}
		b.WriteString(strings.Join(cells, " ") + "\n")
	}

	return b.String()
}
