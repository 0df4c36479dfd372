package command

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"claridoc/internal/logging"
)

// Parse translates a model tool call (name + loosely typed arguments) into a Command.
// Integers are coerced from JSON numbers, Go integers and numeric strings; strings
// from any scalar. A missing string argument is the empty string.
func Parse(name string, args map[string]any) (Command, error) {
	switch name {
	case NameUpdateByLine:
		start, err := intArg(args, "start_line")
		if err != nil {
			return nil, err
		}
		end, err := intArg(args, "end_line")
		if err != nil {
			return nil, err
		}
		return UpdateByLine{StartLine: start, EndLine: end, NewContent: stringArg(args, "new_content")}, nil

	case NameUpdateByReplace:
		old := stringArg(args, "old_string")
		if old == "" {
			return nil, newError(KindInvalidArgument, "Text to replace must not be empty.")
		}
		occ, err := occurrenceArg(args)
		if err != nil {
			return nil, err
		}
		return UpdateByReplace{OldText: old, NewText: stringArg(args, "new_string"), Occurrence: occ}, nil

	case NameInsertAtLine:
		n, err := intArg(args, "line_number")
		if err != nil {
			return nil, err
		}
		pos, err := positionArg(args)
		if err != nil {
			return nil, err
		}
		return InsertAtLine{LineNumber: n, Content: stringArg(args, "content"), Position: pos}, nil

	case NameDeleteLines:
		start, err := intArg(args, "start_line")
		if err != nil {
			return nil, err
		}
		end, err := intArg(args, "end_line")
		if err != nil {
			return nil, err
		}
		return DeleteLines{StartLine: start, EndLine: end}, nil

	case NameAppend:
		return Append{Content: stringArg(args, "content")}, nil
	}

	return nil, newError(KindUnknownCommand, fmt.Sprintf("Unknown command: %s", name))
}

func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, newError(KindInvalidArgument, fmt.Sprintf("Missing argument: %s.", key))
	}

	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		return int(n), nil
	case int64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, notANumber(key, v)
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, notANumber(key, v)
		}
		f = parsed
	default:
		return 0, notANumber(key, v)
	}

	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) ||
		f > math.MaxInt32 || f < math.MinInt32 {
		return 0, notANumber(key, v)
	}
	return int(f), nil
}

func notANumber(key string, v any) error {
	return newError(KindInvalidArgument, fmt.Sprintf("Argument %s must be a whole number, got %v.", key, v))
}

func stringArg(args map[string]any, key string) string {
	switch s := args[key].(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func occurrenceArg(args map[string]any) (Occurrence, error) {
	raw := strings.ToLower(strings.TrimSpace(stringArg(args, "occurrence")))
	switch Occurrence(raw) {
	case "":
		return OccurrenceFirst, nil
	case OccurrenceFirst, OccurrenceLast, OccurrenceAll:
		return Occurrence(raw), nil
	}
	return "", newError(KindInvalidArgument, fmt.Sprintf("Invalid occurrence: %q. Use first, last, or all.", raw))
}

func positionArg(args map[string]any) (Position, error) {
	raw := strings.ToLower(strings.TrimSpace(stringArg(args, "position")))
	switch Position(raw) {
	case "":
		return PositionAfter, nil
	case PositionBefore, PositionAfter:
		return Position(raw), nil
	}
	return "", newError(KindInvalidArgument, fmt.Sprintf("Invalid position: %q. Use before or after.", raw))
}

// Result is the outcome of running a tool call: new content on success,
// an error message on failure, never both.
type Result struct {
	Success bool   `json:"success"`
	Content string `json:"new_content,omitempty"`
	Error   string `json:"error,omitempty"`
	Kind    Kind   `json:"kind,omitempty"`
}

// Run parses and executes a boundary tool call against content.
func Run(name string, args map[string]any, content string) Result {
	cmd, err := Parse(name, args)
	if err == nil {
		var out string
		out, err = Execute(cmd, content)
		if err == nil {
			logging.ToolsDebug("%s applied: %d -> %d bytes", name, len(content), len(out))
			return Result{Success: true, Content: out}
		}
	}

	logging.ToolsWarn("%s rejected: %v", name, err)
	return Result{Success: false, Error: err.Error(), Kind: KindOf(err)}
}
