// Package diff computes line diffs between two revisions of a document using
// the sergi/go-diff engine.
package diff

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// LineType represents the type of diff line
type LineType int

const (
	LineContext LineType = iota // Unchanged context line
	LineAdded                   // Added line
	LineRemoved                 // Removed line
)

// Prefix returns the unified-diff marker for the line type.
func (t LineType) Prefix() string {
	switch t {
	case LineAdded:
		return "+"
	case LineRemoved:
		return "-"
	default:
		return " "
	}
}

// Line is a single line in the diff. OldNum and NewNum are 1-based and zero
// when the line does not exist on that side.
type Line struct {
	OldNum  int
	NewNum  int
	Content string
	Type    LineType
}

// Hunk represents a group of changes
type Hunk struct {
	OldStart int
	OldCount int
	NewStart int
	NewCount int
	Lines    []Line
}

// Header returns the hunk's "@@ -a,b +c,d @@" line.
func (h Hunk) Header() string {
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@", h.OldStart, h.OldCount, h.NewStart, h.NewCount)
}

// Result is the diff between two document revisions.
type Result struct {
	Hunks   []Hunk
	Added   int
	Removed int
}

// Empty reports whether the revisions are identical.
func (r *Result) Empty() bool { return len(r.Hunks) == 0 }

// Summary returns e.g. "+2 -1".
func (r *Result) Summary() string {
	return fmt.Sprintf("+%d -%d", r.Added, r.Removed)
}

// Unified renders the diff in unified format with the given file labels.
func (r *Result) Unified(oldLabel, newLabel string) string {
	if r.Empty() {
		return ""
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "--- %s\n+++ %s\n", oldLabel, newLabel)
	for _, h := range r.Hunks {
		sb.WriteString(h.Header())
		sb.WriteByte('\n')
		for _, l := range h.Lines {
			sb.WriteString(l.Type.Prefix())
			sb.WriteString(l.Content)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Engine computes diffs with a fixed amount of context.
type Engine struct {
	dmp     *diffmatchpatch.DiffMatchPatch
	context int
}

// NewEngine creates an engine showing contextLines unchanged lines around
// each change.
func NewEngine(contextLines int) *Engine {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = 0 // Disable timeout for accuracy
	if contextLines < 0 {
		contextLines = 0
	}
	return &Engine{dmp: dmp, context: contextLines}
}

// DefaultEngine is a shared engine using DefaultContext.
var DefaultEngine = NewEngine(DefaultContext)

// Compute diffs two revisions using the default engine.
func Compute(oldContent, newContent string) *Result {
	return DefaultEngine.Compute(oldContent, newContent)
}

// Compute diffs two document revisions line by line. A document's last line
// has no trailing newline, so appending a line does not mark the previous
// last line as changed.
func (e *Engine) Compute(oldContent, newContent string) *Result {
	res := &Result{}
	if oldContent == newContent {
		return res
	}

	// line-level reduction avoids newline boundary artifacts
	a, b, lineArray := e.dmp.DiffLinesToChars(terminate(oldContent), terminate(newContent))
	diffs := e.dmp.DiffMain(a, b, false)
	diffs = e.dmp.DiffCharsToLines(diffs, lineArray)

	lines := e.toLines(diffs)
	for _, l := range lines {
		switch l.Type {
		case LineAdded:
			res.Added++
		case LineRemoved:
			res.Removed++
		}
	}
	res.Hunks = e.group(lines)
	return res
}

// terminate gives every line, including the last, a trailing newline. The
// empty document has no lines.
func terminate(content string) string {
	if content == "" {
		return ""
	}
	return content + "\n"
}

// toLines converts diffmatchpatch diffs to numbered lines.
func (e *Engine) toLines(diffs []diffmatchpatch.Diff) []Line {
	var out []Line
	oldNum, newNum := 0, 0
	for _, d := range diffs {
		if d.Text == "" {
			continue
		}
		for _, text := range strings.Split(strings.TrimSuffix(d.Text, "\n"), "\n") {
			switch d.Type {
			case diffmatchpatch.DiffEqual:
				oldNum++
				newNum++
				out = append(out, Line{OldNum: oldNum, NewNum: newNum, Content: text, Type: LineContext})
			case diffmatchpatch.DiffDelete:
				oldNum++
				out = append(out, Line{OldNum: oldNum, Content: text, Type: LineRemoved})
			case diffmatchpatch.DiffInsert:
				newNum++
				out = append(out, Line{NewNum: newNum, Content: text, Type: LineAdded})
			}
		}
	}
	return out
}

// group splits lines into hunks. Changes separated by no more than twice the
// context share a hunk.
func (e *Engine) group(lines []Line) []Hunk {
	var hunks []Hunk
	// old and new lines consumed before index i
	oldBefore := make([]int, len(lines)+1)
	newBefore := make([]int, len(lines)+1)
	for i, l := range lines {
		oldBefore[i+1], newBefore[i+1] = oldBefore[i], newBefore[i]
		if l.Type != LineAdded {
			oldBefore[i+1]++
		}
		if l.Type != LineRemoved {
			newBefore[i+1]++
		}
	}

	i := 0
	for i < len(lines) {
		if lines[i].Type == LineContext {
			i++
			continue
		}
		start := max(i-e.context, 0)
		last := i
		for j := i + 1; j < len(lines); j++ {
			if lines[j].Type != LineContext {
				last = j
				continue
			}
			if j-last > 2*e.context {
				break
			}
		}
		end := min(last+e.context+1, len(lines))

		h := Hunk{
			OldCount: oldBefore[end] - oldBefore[start],
			NewCount: newBefore[end] - newBefore[start],
			Lines:    append([]Line(nil), lines[start:end]...),
		}
		h.OldStart = oldBefore[start]
		if h.OldCount > 0 {
			h.OldStart++
		}
		h.NewStart = newBefore[start]
		if h.NewCount > 0 {
			h.NewStart++
		}
		hunks = append(hunks, h)
		i = end
	}
	return hunks
}
