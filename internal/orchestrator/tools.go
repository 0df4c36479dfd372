package orchestrator

import (
	"google.golang.org/genai"

	"claridoc/internal/command"
)

func intProp(desc string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeInteger, Description: desc}
}

func stringProp(desc string, enum ...string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: desc, Enum: enum}
}

// Tools declares the five edit commands to the model.
func Tools() []*genai.Tool {
	return []*genai.Tool{{
		FunctionDeclarations: []*genai.FunctionDeclaration{
			{
				Name:        command.NameUpdateByLine,
				Description: "Replace content of specific line(s) in the document. Use this when user asks to change specific lines.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start_line":  intProp("Starting line number (1-indexed)"),
						"end_line":    intProp("Ending line number (inclusive)"),
						"new_content": stringProp("New content to replace the specified lines"),
					},
					Required: []string{"start_line", "end_line", "new_content"},
				},
			},
			{
				Name:        command.NameUpdateByReplace,
				Description: "Find and replace text in the document. Use when user wants to replace specific words/phrases.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"old_string": stringProp("Exact text to find (case-sensitive)"),
						"new_string": stringProp("Text to replace with"),
						"occurrence": stringProp("Which occurrence to replace: first, last, or all",
							string(command.OccurrenceFirst), string(command.OccurrenceLast), string(command.OccurrenceAll)),
					},
					Required: []string{"old_string", "new_string", "occurrence"},
				},
			},
			{
				Name:        command.NameInsertAtLine,
				Description: "Insert new content at a specific line without replacing existing content.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"line_number": intProp("Line number where to insert (1-indexed)"),
						"content":     stringProp("Content to insert"),
						"position": stringProp("Insert before or after the specified line",
							string(command.PositionBefore), string(command.PositionAfter)),
					},
					Required: []string{"line_number", "content", "position"},
				},
			},
			{
				Name:        command.NameDeleteLines,
				Description: "Delete specific lines from the document.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"start_line": intProp("First line to delete (1-indexed)"),
						"end_line":   intProp("Last line to delete (inclusive)"),
					},
					Required: []string{"start_line", "end_line"},
				},
			},
			{
				Name:        command.NameAppend,
				Description: "Add content to the end of the document.",
				Parameters: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"content": stringProp("Content to append"),
					},
					Required: []string{"content"},
				},
			},
		},
	}}
}
