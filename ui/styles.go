package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Colors adapt to light and dark terminals.
var (
	mutedColor  = lipgloss.AdaptiveColor{Light: "8", Dark: "7"}
	accentColor = lipgloss.AdaptiveColor{Light: "4", Dark: "12"}
	promptColor = lipgloss.AdaptiveColor{Light: "2", Dark: "10"}
	markColor   = lipgloss.AdaptiveColor{Light: "3", Dark: "11"}
	errorColor  = lipgloss.AdaptiveColor{Light: "1", Dark: "9"}
)

var (
	// UserStyle renders the input prompt and echoed user messages.
	UserStyle = lipgloss.NewStyle().Foreground(promptColor).Bold(true)
	// DimStyle renders status lines, tool calls and timestamps.
	DimStyle = lipgloss.NewStyle().Foreground(mutedColor)
	// TitleStyle renders the banner.
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor)
	// SelectedStyle marks the active thread and extension questions.
	SelectedStyle = lipgloss.NewStyle().Foreground(markColor).Bold(true)
	ErrorStyle    = lipgloss.NewStyle().Foreground(errorColor)

	hintStyle = lipgloss.NewStyle().Foreground(accentColor)
)

// FormatFooter lays out command/description pairs on one line:
//
//	FormatFooter("/help", "Commands", "/quit", "Exit")
//
// A trailing command without a description is dropped.
func FormatFooter(pairs ...string) string {
	parts := make([]string, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		parts = append(parts, pairs[i]+" "+hintStyle.Render(pairs[i+1]))
	}
	return strings.Join(parts, "  ")
}
