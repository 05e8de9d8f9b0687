package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Message constraints.
const (
	// DefaultMaxTextLength is the default cap on message text, in characters.
	DefaultMaxTextLength = 500

	// MaxAuthorLength bounds the author field of restored messages.
	MaxAuthorLength = 64
)

// AttachmentKind identifies what an attachment reference points to.
type AttachmentKind string

const (
	// AttachmentImage references an image id in the image store.
	AttachmentImage AttachmentKind = "image"

	// AttachmentLink references an external URL.
	AttachmentLink AttachmentKind = "link"
)

// Valid reports whether k is a known attachment kind.
func (k AttachmentKind) Valid() bool {
	return k == AttachmentImage || k == AttachmentLink
}

// Attachment is an opaque reference carried by a message. The log never
// holds raw image bytes.
type Attachment struct {
	Kind      AttachmentKind `json:"kind"`
	Reference string         `json:"reference"`
}

// Empty reports whether the attachment carries no usable reference.
func (a *Attachment) Empty() bool {
	return a == nil || strings.TrimSpace(a.Reference) == ""
}

// ChatMessage is one event of the message log.
// Only ID changes after append (when the log renumbers).
type ChatMessage struct {
	ID            uint64      `json:"id"`
	Author        string      `json:"author"`
	Text          string      `json:"text,omitempty"`
	Attachment    *Attachment `json:"attachment,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
	SourceAddress string      `json:"source_address,omitempty"`
}

// Clone returns a deep copy of the message.
func (m ChatMessage) Clone() ChatMessage {
	if m.Attachment != nil {
		a := *m.Attachment
		m.Attachment = &a
	}
	return m
}

// HasContent reports whether the message has text or a non-empty attachment.
func (m ChatMessage) HasContent() bool {
	return strings.TrimSpace(m.Text) != "" || !m.Attachment.Empty()
}

// NewMessage holds the caller-supplied fields of a message to append.
type NewMessage struct {
	Author        string
	Text          string
	Attachment    *Attachment
	SourceAddress string
}

// Validate checks the message content against the length cap.
func (n NewMessage) Validate(maxTextLength int) error {
	if strings.TrimSpace(n.Text) == "" && n.Attachment.Empty() {
		return ErrEmptyMessage
	}
	if maxTextLength > 0 && utf8.RuneCountInString(n.Text) > maxTextLength {
		return ErrMessageTooLong
	}
	if n.Attachment != nil && !n.Attachment.Empty() && !n.Attachment.Kind.Valid() {
		return ErrEmptyMessage.WithDetails("unknown attachment kind")
	}
	return nil
}
