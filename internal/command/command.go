// Package command implements the deterministic edit commands the AI agent can issue.
//
// Command is a closed union of five cases. Execute maps a command and the current
// content to new content or a validation error; it performs no I/O and never mutates
// its input.
package command

import (
	"fmt"
	"strings"

	"claridoc/internal/buffer"
)

// Tool names as they appear at the model boundary.
const (
	NameUpdateByLine    = "update_doc_by_line"
	NameUpdateByReplace = "update_doc_by_replace"
	NameInsertAtLine    = "insert_at_line"
	NameDeleteLines     = "delete_lines"
	NameAppend          = "append_to_document"
)

// Names lists every known command name in declaration order.
var Names = []string{
	NameUpdateByLine,
	NameUpdateByReplace,
	NameInsertAtLine,
	NameDeleteLines,
	NameAppend,
}

// Occurrence selects how many literal matches UpdateByReplace affects.
type Occurrence string

const (
	OccurrenceFirst Occurrence = "first"
	OccurrenceLast  Occurrence = "last"
	OccurrenceAll   Occurrence = "all"
)

// Position selects which side of the target line InsertAtLine uses.
type Position string

const (
	PositionBefore Position = "before"
	PositionAfter  Position = "after"
)

// Command is one of UpdateByLine, UpdateByReplace, InsertAtLine, DeleteLines, Append.
type Command interface {
	// Name returns the boundary tool name.
	Name() string
	isCommand()
}

// UpdateByLine replaces the inclusive range [StartLine, EndLine] with one line.
type UpdateByLine struct {
	StartLine  int
	EndLine    int
	NewContent string
}

// UpdateByReplace replaces literal occurrences of OldText with NewText.
type UpdateByReplace struct {
	OldText    string
	NewText    string
	Occurrence Occurrence
}

// InsertAtLine inserts Content as a single new line before or after LineNumber.
type InsertAtLine struct {
	LineNumber int
	Content    string
	Position   Position
}

// DeleteLines removes the inclusive range [StartLine, EndLine].
type DeleteLines struct {
	StartLine int
	EndLine   int
}

// Append adds a newline and Content to the end of the document.
type Append struct {
	Content string
}

func (UpdateByLine) Name() string    { return NameUpdateByLine }
func (UpdateByReplace) Name() string { return NameUpdateByReplace }
func (InsertAtLine) Name() string    { return NameInsertAtLine }
func (DeleteLines) Name() string     { return NameDeleteLines }
func (Append) Name() string          { return NameAppend }

func (UpdateByLine) isCommand()    {}
func (UpdateByReplace) isCommand() {}
func (InsertAtLine) isCommand()    {}
func (DeleteLines) isCommand()     {}
func (Append) isCommand()          {}

// Execute applies cmd to content and returns the new content.
// On failure the returned error is a *Error and content is untouched.
func Execute(cmd Command, content string) (string, error) {
	switch c := cmd.(type) {
	case UpdateByLine:
		return updateByLine(c, content)
	case UpdateByReplace:
		return updateByReplace(c, content)
	case InsertAtLine:
		return insertAtLine(c, content)
	case DeleteLines:
		return deleteLines(c, content)
	case Append:
		return content + "\n" + c.Content, nil
	case nil:
		return "", newError(KindUnknownCommand, "Unknown command: <nil>")
	default:
		return "", newError(KindUnknownCommand, fmt.Sprintf("Unknown command: %s", cmd.Name()))
	}
}

func validRange(start, end, count int) bool {
	return start >= 1 && start <= end && end <= count
}

func rangeError(start, end, count int) error {
	return newError(KindInvalidRange,
		fmt.Sprintf("Invalid line range: %d-%d. Document has %d lines.", start, end, count))
}

func updateByLine(c UpdateByLine, content string) (string, error) {
	lines := buffer.FromContent(content).Lines()
	if !validRange(c.StartLine, c.EndLine, len(lines)) {
		return "", rangeError(c.StartLine, c.EndLine, len(lines))
	}

	out := make([]string, 0, len(lines)-(c.EndLine-c.StartLine))
	out = append(out, lines[:c.StartLine-1]...)
	out = append(out, c.NewContent)
	out = append(out, lines[c.EndLine:]...)
	return strings.Join(out, "\n"), nil
}

func updateByReplace(c UpdateByReplace, content string) (string, error) {
	if c.OldText == "" {
		return "", newError(KindInvalidArgument, "Text to replace must not be empty.")
	}
	if !strings.Contains(content, c.OldText) {
		return "", newError(KindTextNotFound, fmt.Sprintf("Text \"%s\" not found in document.", c.OldText))
	}

	switch c.Occurrence {
	case OccurrenceFirst, "":
		return strings.Replace(content, c.OldText, c.NewText, 1), nil
	case OccurrenceLast:
		i := strings.LastIndex(content, c.OldText)
		return content[:i] + c.NewText + content[i+len(c.OldText):], nil
	case OccurrenceAll:
		return strings.ReplaceAll(content, c.OldText, c.NewText), nil
	default:
		return "", newError(KindInvalidArgument,
			fmt.Sprintf("Invalid occurrence: %q. Use first, last, or all.", string(c.Occurrence)))
	}
}

func insertAtLine(c InsertAtLine, content string) (string, error) {
	lines := buffer.FromContent(content).Lines()
	if c.LineNumber < 1 || c.LineNumber > len(lines) {
		return "", newError(KindInvalidRange,
			fmt.Sprintf("Invalid line number: %d. Document has %d lines.", c.LineNumber, len(lines)))
	}

	var at int
	switch c.Position {
	case PositionBefore:
		at = c.LineNumber - 1
	case PositionAfter, "":
		at = c.LineNumber
	default:
		return "", newError(KindInvalidArgument,
			fmt.Sprintf("Invalid position: %q. Use before or after.", string(c.Position)))
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:at]...)
	out = append(out, c.Content)
	out = append(out, lines[at:]...)
	return strings.Join(out, "\n"), nil
}

func deleteLines(c DeleteLines, content string) (string, error) {
	lines := buffer.FromContent(content).Lines()
	if !validRange(c.StartLine, c.EndLine, len(lines)) {
		return "", rangeError(c.StartLine, c.EndLine, len(lines))
	}

	out := make([]string, 0, len(lines)-(c.EndLine-c.StartLine+1))
	out = append(out, lines[:c.StartLine-1]...)
	out = append(out, lines[c.EndLine:]...)
	return strings.Join(out, "\n"), nil
}
