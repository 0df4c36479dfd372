package orchestrator

import (
	"fmt"
	"strings"

	"google.golang.org/genai"

	"claridoc/internal/buffer"
	"claridoc/internal/chat"
)

const (
	primingAck  = "I understand. I'm ready to help you edit your document. I can see the current document content with line numbers. What would you like me to do?"
	followupAck = "I understand. I'm ready to help you edit your document."
)

// SystemPrompt renders the instruction block carrying the numbered document.
func SystemPrompt(content string) string {
	b := buffer.FromContent(content)

	var sb strings.Builder
	sb.WriteString("You are a helpful AI assistant for a document editor, similar to Cursor IDE.\n\n")
	fmt.Fprintf(&sb, "**CURRENT DOCUMENT (%d lines):**\n```\n%s\n```\n\n", b.LineCount(), b.Numbered())
	sb.WriteString(`You have tools to manipulate the document:
- update_doc_by_line: Replace specific lines (use start_line and end_line, 1-indexed)
- update_doc_by_replace: Find and replace text strings
- insert_at_line: Insert new content before or after a specific line
- delete_lines: Remove specific lines
- append_to_document: Add content at the end

Rules:
1. Always check the current document state above before making changes
2. Be precise with line numbers (1-indexed)
3. When the user asks to edit, use the appropriate tool
4. Confirm your changes after editing
5. If the document is empty, use append_to_document to add content`)
	return sb.String()
}

func textContent(role genai.Role, text string) *genai.Content {
	return genai.NewContentFromParts([]*genai.Part{genai.NewPartFromText(text)}, role)
}

// userParts is the new user turn: the attachment first, then the text.
func userParts(msg string, att *chat.Attachment) []*genai.Part {
	parts := make([]*genai.Part, 0, 2)
	if att != nil {
		parts = append(parts, genai.NewPartFromBytes(att.Data, att.MIMEType))
	}
	return append(parts, genai.NewPartFromText(msg))
}

// firstCallContents builds the context for the tool-enabled call: priming turn,
// acknowledgement, prior turns as text, then the new user turn.
func firstCallContents(system string, history []chat.Turn, user []*genai.Part) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+3)
	contents = append(contents,
		textContent(genai.RoleUser, system),
		textContent(genai.RoleModel, primingAck),
	)
	for _, t := range history {
		var role genai.Role = genai.RoleModel
		if t.Role == chat.RoleUser {
			role = genai.RoleUser
		}
		contents = append(contents, textContent(role, t.Text))
	}
	return append(contents, genai.NewContentFromParts(user, genai.RoleUser))
}

// followupContents builds the context for the confirmation call after a
// successful edit. Prior turns are not included.
func followupContents(system string, user []*genai.Part, call *genai.FunctionCall, newContent string) []*genai.Content {
	b := buffer.FromContent(newContent)
	response := map[string]any{
		"success":         true,
		"updatedDocument": b.Numbered(),
		"totalLines":      b.LineCount(),
	}
	return []*genai.Content{
		textContent(genai.RoleUser, system),
		textContent(genai.RoleModel, followupAck),
		genai.NewContentFromParts(user, genai.RoleUser),
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromFunctionCall(call.Name, call.Args)}, genai.RoleModel),
		genai.NewContentFromParts([]*genai.Part{genai.NewPartFromFunctionResponse(call.Name, response)}, genai.RoleUser),
	}
}
