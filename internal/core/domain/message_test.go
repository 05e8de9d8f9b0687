package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestNewMessage_Validate(t *testing.T) {
	tests := []struct {
		name string
		msg  NewMessage
		want error
	}{
		{"text", NewMessage{Author: "bob", Text: "hi"}, nil},
		{"image", NewMessage{Author: "bob", Attachment: &Attachment{Kind: AttachmentImage, Reference: "abc"}}, nil},
		{"blank", NewMessage{Author: "bob", Text: "   "}, ErrEmptyMessage},
		{"empty attachment", NewMessage{Author: "bob", Attachment: &Attachment{Kind: AttachmentImage}}, ErrEmptyMessage},
		{"unknown kind", NewMessage{Author: "bob", Attachment: &Attachment{Kind: "video", Reference: "x"}}, ErrEmptyMessage},
		{"too long", NewMessage{Author: "bob", Text: strings.Repeat("a", 501)}, ErrMessageTooLong},
		{"at cap", NewMessage{Author: "bob", Text: strings.Repeat("é", 500)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate(DefaultMaxTextLength)
			if tt.want == nil && err != nil {
				t.Fatalf("Validate() = %v, want nil", err)
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Fatalf("Validate() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestChatMessage_CloneIsDeep(t *testing.T) {
	m := ChatMessage{ID: 1, Attachment: &Attachment{Kind: AttachmentLink, Reference: "a"}}
	c := m.Clone()
	c.Attachment.Reference = "b"
	if m.Attachment.Reference != "a" {
		t.Fatal("Clone shares the attachment pointer")
	}
}
