package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"claridoc/internal/buffer"
	"claridoc/internal/chat"
	"claridoc/internal/diff"
	"claridoc/internal/search"
)

var (
	gutterStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			Align(lipgloss.Right)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	matchStyle = lipgloss.NewStyle().
			Reverse(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	addedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("34"))

	removedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("160"))

	hunkStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("38"))
)

// renderDocument prints content with a right-aligned line-number gutter.
func renderDocument(title, content string) string {
	lines := buffer.FromContent(content).Lines()
	width := len(strconv.Itoa(len(lines)))

	var b strings.Builder
	if title != "" {
		b.WriteString(style(titleStyle, title))
		b.WriteByte('\n')
	}
	for i, line := range lines {
		n := strconv.Itoa(i + 1)
		if plain {
			fmt.Fprintf(&b, "%*s | %s\n", width, n, line)
			continue
		}
		b.WriteString(gutterStyle.Width(width).Render(n))
		b.WriteString(dimStyle.Render(" │ "))
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}

// renderDiff prints the changes between two revisions with a summary line.
// Identical revisions render as "no changes".
func renderDiff(before, after string) string {
	res := diff.Compute(before, after)
	if res.Empty() {
		return style(dimStyle, "no changes") + "\n"
	}

	var b strings.Builder
	for _, h := range res.Hunks {
		b.WriteString(style(hunkStyle, h.Header()))
		b.WriteByte('\n')
		for _, l := range h.Lines {
			text := l.Type.Prefix() + l.Content
			switch l.Type {
			case diff.LineAdded:
				text = style(addedStyle, text)
			case diff.LineRemoved:
				text = style(removedStyle, text)
			}
			b.WriteString(text)
			b.WriteByte('\n')
		}
	}
	b.WriteString(style(dimStyle, res.Summary()))
	b.WriteByte('\n')
	return b.String()
}

// renderReply renders an assistant reply as markdown unless --plain.
func renderReply(t chat.Turn) string {
	var b strings.Builder
	if t.ToolCall != nil {
		b.WriteString(style(dimStyle, "[tool: "+t.ToolCall.Name+"]"))
		b.WriteByte('\n')
	}
	b.WriteString(renderMarkdown(t.Text))
	return b.String()
}

func renderMarkdown(text string) string {
	if plain {
		return text + "\n"
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return text + "\n"
	}
	out, err := r.Render(text)
	if err != nil {
		return text + "\n"
	}
	return out
}

// renderTurn formats one chat history entry.
func renderTurn(t chat.Turn) string {
	if t.Role == chat.RoleModel {
		return style(titleStyle, "assistant:") + "\n" + renderReply(t)
	}
	text := t.Text
	if t.Attachment != nil {
		text += " " + style(dimStyle, "("+t.Attachment.String()+")")
	}
	return style(titleStyle, "you:") + " " + text + "\n"
}

// position converts a rune offset into a 1-based line and column.
func position(content string, offset int) (line, col int) {
	line, col = 1, 1
	i := 0
	for _, r := range content {
		if i == offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col++
		}
		i++
	}
	return line, col
}

// renderMatches lists every match with its line, highlighting the active one.
func renderMatches(content string, matches []search.Match, active int) string {
	if len(matches) == 0 {
		return "no matches\n"
	}
	lines := buffer.FromContent(content).Lines()
	var b strings.Builder
	for i, m := range matches {
		line, col := position(content, m.Start)
		marker := "  "
		if i == active {
			marker = "> "
		}
		text := ""
		if line <= len(lines) {
			text = highlight(lines[line-1], col-1, col-1+m.End-m.Start)
		}
		fmt.Fprintf(&b, "%s%d:%d  %s\n", marker, line, col, text)
	}
	return b.String()
}

// highlight marks runes [start, end) of line. A match that crosses the end of
// the line is highlighted to the end.
func highlight(line string, start, end int) string {
	r := []rune(line)
	if start > len(r) {
		return line
	}
	if end > len(r) {
		end = len(r)
	}
	hit := string(r[start:end])
	if plain {
		hit = "[" + hit + "]"
	} else {
		hit = matchStyle.Render(hit)
	}
	return string(r[:start]) + hit + string(r[end:])
}

func style(s lipgloss.Style, text string) string {
	if plain {
		return text
	}
	return s.Render(text)
}
