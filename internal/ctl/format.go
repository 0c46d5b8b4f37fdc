// Package ctl implements the client-side commands for cybotctl.
// It talks to a running cybotd over HTTP and WebSocket and renders the
// results to the terminal.
package ctl

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Styles. lipgloss drops the color codes when stdout is not a terminal.
var (
	boldStyle   = lipgloss.NewStyle().Bold(true)
	dimStyle    = lipgloss.NewStyle().Faint(true)
	redStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	greenStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	yellowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	blueStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	cyanStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	plainStyle  = lipgloss.NewStyle()
)

// statusStyle picks the style for a robot link status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case "CONNECTED":
		return greenStyle
	case "CONNECTING":
		return yellowStyle
	case "DISCONNECTED":
		return redStyle
	default:
		return plainStyle
	}
}

func colorize(style lipgloss.Style, text string) string {
	return style.Render(text)
}

func header(title string) string {
	return boldStyle.Render(title)
}

func rule(width int) string {
	return dimStyle.Render("  " + strings.Repeat("─", width))
}

// padRight pads s with spaces to reach the given width.
func padRight(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration renders a duration as a compact string like "2h 14m 8s".
func formatDuration(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

// formatLogLevel returns a colored, fixed-width log level label.
func formatLogLevel(level string) string {
	switch level {
	case "info":
		return colorize(greenStyle, "INFO ")
	case "warn":
		return colorize(yellowStyle, "WARN ")
	case "error":
		return colorize(redStyle, "ERROR")
	default:
		return padRight(strings.ToUpper(level), 5)
	}
}

// formatTS shortens an RFC 3339 timestamp to local wall-clock time.
func formatTS(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		if len(ts) > 8 {
			return ts[:8]
		}
		return ts
	}
	return t.Local().Format("15:04:05")
}

func field(label string, val any) {
	fmt.Printf("  %s %v\n", colorize(dimStyle, padRight(label, 14)), val)
}
