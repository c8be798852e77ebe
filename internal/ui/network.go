package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/wifiprov/internal/provision"
)

// SignalBars renders a 0-100 signal quality as four bars.
func SignalBars(signal int) string {
	if signal <= 0 {
		return "····"
	}
	filled := (signal + 24) / 25
	if filled > 4 {
		filled = 4
	}
	return strings.Repeat("█", filled) + strings.Repeat("·", 4-filled)
}

// signalStyle colors a signal by quality.
func signalStyle(signal int) lipgloss.Style {
	switch {
	case signal <= 0:
		return TableMutedCellStyle
	case signal >= 60:
		return lipgloss.NewStyle().Foreground(SuccessColor)
	case signal >= 30:
		return lipgloss.NewStyle().Foreground(WarningColor)
	default:
		return lipgloss.NewStyle().Foreground(ErrorColor)
	}
}

// RenderNetworks renders scan results as a numbered table, in the order given.
func RenderNetworks(networks []provision.NetworkInfo, width int) string {
	width = clampWidth(width)
	if len(networks) == 0 {
		return TableMutedCellStyle.Render("  No networks found.")
	}

	ssidWidth := width - 32

	row := func(num, ssid, security, signal string) string {
		return fmt.Sprintf("  %-4s%-*s %-9s %s", num, ssidWidth, truncate(ssid, ssidWidth), security, signal)
	}

	lines := []string{
		TableHeaderStyle.Render(row("#", "SSID", "SECURITY", "SIGNAL")),
		RenderHorizontalDivider(width-2, "─"),
	}
	for i, n := range networks {
		ssid := n.SSID
		style := TableCellStyle
		if ssid == "" {
			ssid = "(hidden)"
			style = TableMutedCellStyle
		}
		signal := SignalBars(n.Signal)
		if n.Signal > 0 {
			signal = fmt.Sprintf("%s %3d%%", signal, n.Signal)
		}
		text := row(fmt.Sprintf("%d", i+1), ssid, n.Security.String(), "")
		lines = append(lines, style.Render(text)+signalStyle(n.Signal).Render(signal))
	}
	return strings.Join(lines, "\n")
}

// truncate shortens s to width cells, marking the cut with an ellipsis.
func truncate(s string, width int) string {
	if lipgloss.Width(s) <= width {
		return s
	}
	r := []rune(s)
	for len(r) > 0 && lipgloss.Width(string(r))+1 > width {
		r = r[:len(r)-1]
	}
	return string(r) + "…"
}
