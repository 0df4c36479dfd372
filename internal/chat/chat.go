// Package chat defines the conversation turns exchanged with the model and the
// attachments a user turn may carry.
package chat

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// Role is the speaker of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// MaxAttachmentSize is the largest inline attachment accepted.
const MaxAttachmentSize = 10 << 20

var (
	ErrAttachmentTooLarge = errors.New("attachment too large")
	ErrInvalidDataURL     = errors.New("invalid data url")
)

// Attachment is a single inline file sent with a user turn.
type Attachment struct {
	Name     string
	MIMEType string
	Data     []byte
}

// ToolCall records the command the model issued during a turn.
type ToolCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

// Turn is one message in the conversation.
type Turn struct {
	Role       Role
	Text       string
	Attachment *Attachment
	ToolCall   *ToolCall
	At         time.Time
}

// UserTurn builds a user turn stamped with the current time.
func UserTurn(text string, att *Attachment) Turn {
	return Turn{Role: RoleUser, Text: text, Attachment: att, At: time.Now()}
}

// ModelTurn builds a model turn stamped with the current time.
func ModelTurn(text string, call *ToolCall) Turn {
	return Turn{Role: RoleModel, Text: text, ToolCall: call, At: time.Now()}
}

// Validate checks the size limit and that a MIME type is present.
func (a *Attachment) Validate() error {
	if a == nil {
		return nil
	}
	if len(a.Data) > MaxAttachmentSize {
		return fmt.Errorf("%w: %s exceeds %s", ErrAttachmentTooLarge,
			humanize.IBytes(uint64(len(a.Data))), humanize.IBytes(MaxAttachmentSize))
	}
	if a.MIMEType == "" {
		return fmt.Errorf("attachment %q has no mime type", a.Name)
	}
	return nil
}

// String describes the attachment for display, e.g. "notes.pdf (application/pdf, 12 KiB)".
func (a *Attachment) String() string {
	if a == nil {
		return ""
	}
	name := a.Name
	if name == "" {
		name = "attachment"
	}
	return fmt.Sprintf("%s (%s, %s)", name, a.MIMEType, humanize.IBytes(uint64(len(a.Data))))
}

// ParseDataURL decodes a base64 data URL of the form data:<mime>;base64,<payload>.
func ParseDataURL(s string) (*Attachment, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return nil, fmt.Errorf("%w: missing data: prefix", ErrInvalidDataURL)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, fmt.Errorf("%w: missing payload", ErrInvalidDataURL)
	}
	mimeType, enc, ok := strings.Cut(meta, ";")
	if !ok || enc != "base64" {
		return nil, fmt.Errorf("%w: only base64 payloads are supported", ErrInvalidDataURL)
	}
	if mimeType == "" {
		return nil, fmt.Errorf("%w: missing mime type", ErrInvalidDataURL)
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	att := &Attachment{MIMEType: mimeType, Data: data}
	if err := att.Validate(); err != nil {
		return nil, err
	}
	return att, nil
}

// DataURL encodes the attachment back into data URL form.
func (a *Attachment) DataURL() string {
	return "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}

// AttachmentFromFile reads path into an attachment. The MIME type comes from the
// extension, falling back to content sniffing.
func AttachmentFromFile(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat attachment: %w", err)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %s is %s, limit %s", ErrAttachmentTooLarge, filepath.Base(path),
			humanize.IBytes(uint64(info.Size())), humanize.IBytes(MaxAttachmentSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if base, _, err := mime.ParseMediaType(mimeType); err == nil {
		mimeType = base
	}

	att := &Attachment{Name: filepath.Base(path), MIMEType: mimeType, Data: data}
	if err := att.Validate(); err != nil {
		return nil, err
	}
	return att, nil
}
