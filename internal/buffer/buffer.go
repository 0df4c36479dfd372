// Package buffer is the line-indexed view of a document.
//
// A Buffer is derived from content by splitting on '\n' and always joins back to
// exactly the same content. Line numbers exposed to callers are 1-indexed.
package buffer

import (
	"fmt"
	"strings"
)

// Buffer is an immutable sequence of lines.
type Buffer struct {
	lines []string
}

// FromContent splits content into lines. Empty content is a single empty line.
func FromContent(content string) Buffer {
	return Buffer{lines: strings.Split(content, "\n")}
}

// FromLines builds a buffer from an explicit line slice. The slice is copied.
func FromLines(lines []string) Buffer {
	if len(lines) == 0 {
		return Buffer{lines: []string{""}}
	}
	cp := make([]string, len(lines))
	copy(cp, lines)
	return Buffer{lines: cp}
}

// Content joins the lines back with '\n'.
func (b Buffer) Content() string {
	return strings.Join(b.lines, "\n")
}

// LineCount returns the number of lines (at least 1).
func (b Buffer) LineCount() int {
	if b.lines == nil {
		return 1
	}
	return len(b.lines)
}

// Line returns the 1-indexed line n.
func (b Buffer) Line(n int) (string, bool) {
	if n < 1 || n > len(b.lines) {
		return "", false
	}
	return b.lines[n-1], true
}

// Lines returns a copy of the underlying lines.
func (b Buffer) Lines() []string {
	if b.lines == nil {
		return []string{""}
	}
	cp := make([]string, len(b.lines))
	copy(cp, b.lines)
	return cp
}

// Numbered renders the buffer as "N. line" rows, the form the model sees.
func (b Buffer) Numbered() string {
	lines := b.Lines()
	var sb strings.Builder
	for i, line := range lines {
		if i > 0 {
			sb.WriteByte('\n')
		}
		fmt.Fprintf(&sb, "%d. %s", i+1, line)
	}
	return sb.String()
}

// LineCount is a shortcut for FromContent(content).LineCount().
func LineCount(content string) int {
	return strings.Count(content, "\n") + 1
}
