package command

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		want Command
	}{
		{
			name: "update by line from json numbers",
			tool: NameUpdateByLine,
			args: map[string]any{"start_line": float64(2), "end_line": float64(3), "new_content": "x"},
			want: UpdateByLine{StartLine: 2, EndLine: 3, NewContent: "x"},
		},
		{
			name: "numeric strings coerce",
			tool: NameDeleteLines,
			args: map[string]any{"start_line": "1", "end_line": " 4 "},
			want: DeleteLines{StartLine: 1, EndLine: 4},
		},
		{
			name: "go ints",
			tool: NameInsertAtLine,
			args: map[string]any{"line_number": 3, "content": "c", "position": "before"},
			want: InsertAtLine{LineNumber: 3, Content: "c", Position: PositionBefore},
		},
		{
			name: "position defaults to after",
			tool: NameInsertAtLine,
			args: map[string]any{"line_number": json.Number("1"), "content": "c"},
			want: InsertAtLine{LineNumber: 1, Content: "c", Position: PositionAfter},
		},
		{
			name: "occurrence defaults to first",
			tool: NameUpdateByReplace,
			args: map[string]any{"old_string": "a", "new_string": "b"},
			want: UpdateByReplace{OldText: "a", NewText: "b", Occurrence: OccurrenceFirst},
		},
		{
			name: "occurrence is case-insensitive",
			tool: NameUpdateByReplace,
			args: map[string]any{"old_string": "a", "new_string": "b", "occurrence": "ALL"},
			want: UpdateByReplace{OldText: "a", NewText: "b", Occurrence: OccurrenceAll},
		},
		{
			name: "string coercion of numbers",
			tool: NameAppend,
			args: map[string]any{"content": float64(42)},
			want: Append{Content: "42"},
		},
		{
			name: "missing content is empty",
			tool: NameAppend,
			args: map[string]any{},
			want: Append{Content: ""},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.tool, tt.args)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.tool, got.Name())
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		tool string
		args map[string]any
		kind Kind
	}{
		{"unknown tool", "rewrite_everything", nil, KindUnknownCommand},
		{"missing line", NameDeleteLines, map[string]any{"end_line": 1}, KindInvalidArgument},
		{"fractional line", NameDeleteLines, map[string]any{"start_line": 1.5, "end_line": 2}, KindInvalidArgument},
		{"non numeric", NameInsertAtLine, map[string]any{"line_number": "two"}, KindInvalidArgument},
		{"huge float line", NameDeleteLines, map[string]any{"start_line": 1e20, "end_line": 2}, KindInvalidArgument},
		{"huge string line", NameDeleteLines, map[string]any{"start_line": "1", "end_line": "99999999999"}, KindInvalidArgument},
		{"huge int64 line", NameInsertAtLine, map[string]any{"line_number": int64(1) << 40}, KindInvalidArgument},
		{"bad occurrence", NameUpdateByReplace, map[string]any{"old_string": "a", "occurrence": "second"}, KindInvalidArgument},
		{"bad position", NameInsertAtLine, map[string]any{"line_number": 1, "position": "middle"}, KindInvalidArgument},
		{"empty old string", NameUpdateByReplace, map[string]any{"old_string": ""}, KindInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.tool, tt.args)
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
		})
	}
}

func TestRun(t *testing.T) {
	res := Run(NameDeleteLines, map[string]any{"start_line": float64(2), "end_line": float64(2)}, "a\nb\nc")
	assert.True(t, res.Success)
	assert.Equal(t, "a\nc", res.Content)
	assert.Empty(t, res.Error)

	res = Run(NameUpdateByLine, map[string]any{"start_line": float64(0), "end_line": float64(1), "new_content": "x"}, "a\nb\nc")
	assert.False(t, res.Success)
	assert.Empty(t, res.Content)
	assert.Equal(t, "Invalid line range: 0-1. Document has 3 lines.", res.Error)
	assert.Equal(t, KindInvalidRange, res.Kind)

	res = Run("format_disk", nil, "a")
	assert.False(t, res.Success)
	assert.Equal(t, "Unknown command: format_disk", res.Error)
	assert.Equal(t, KindUnknownCommand, res.Kind)
}
