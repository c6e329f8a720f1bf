package ui

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"tether/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

// RenderMarkdown renders assistant text for the terminal. Links are reduced
// to their URL so the terminal can detect them.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	p := parser.NewWithExtensions(markdown.Extensions() &^ parser.Autolink)
	doc := p.Parse([]byte(content))
	rendered := string(gomarkdown.Render(doc, markdown.NewRenderer(width-4, 0)))

	// Blue background italics read poorly on most themes; use red text.
	rendered = inlineCodeRegex.ReplaceAllString(rendered, "\x1b[31m$1\x1b[0m")
	return strings.TrimRight(rendered, "\n")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}

// fit truncates s to width display cells and pads it to exactly width.
func fit(s string, width int) string {
	if width < 4 {
		width = 4
	}
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "...")
	}
	return s + strings.Repeat(" ", width-runewidth.StringWidth(s))
}

// RenderThreadList renders one line per thread: a marker for the active
// thread, the name cut to fit, and the last update time.
func RenderThreadList(threads []model.ThreadMeta, activeID string, width int) string {
	if len(threads) == 0 {
		return DimStyle.Render("No threads")
	}

	const timeWidth = 16
	nameWidth := width - timeWidth - 4
	if nameWidth < 10 {
		nameWidth = 10
	}

	var sb strings.Builder
	for i, t := range threads {
		marker := "  "
		name := fit(t.Name, nameWidth)
		if t.ID == activeID {
			marker = "* "
			name = SelectedStyle.Render(name)
		}
		sb.WriteString(marker + name + "  " + DimStyle.Render(t.UpdatedAt.Format("2006-01-02 15:04")))
		if i < len(threads)-1 {
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// FormatToolCall renders a one-line summary of a tool call, with its result
// when it has one.
func FormatToolCall(call *model.ToolCall, width int) string {
	args, _ := json.Marshal(call.Arguments)
	line := fmt.Sprintf("⚙ %s %s", call.Name, args)
	if call.Result != nil {
		status := "ok"
		if call.Result.IsError {
			status = "error"
		}
		summary := strings.Join(strings.Fields(call.Result.Content), " ")
		line += fmt.Sprintf(" → %s: %s", status, summary)
	}
	if width > 0 && runewidth.StringWidth(line) > width {
		line = runewidth.Truncate(line, width, "...")
	}
	if call.Result != nil && call.Result.IsError {
		return ErrorStyle.Render(line)
	}
	return DimStyle.Render(line)
}
