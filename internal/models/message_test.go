package models

import (
	"errors"
	"testing"
	"time"
)

func TestNewMessage(t *testing.T) {
	attachment, err := NewMessageAttachment(AttachmentImage, "https://cdn.example.com/scan.png")
	if err != nil {
		t.Fatalf("NewMessageAttachment: %v", err)
	}

	tests := []struct {
		name        string
		text        string
		attachments []MessageAttachment
		wantErr     error
	}{
		{"text only", "hello", nil, nil},
		{"attachment only", "", []MessageAttachment{attachment}, nil},
		{"text and attachment", "see attached", []MessageAttachment{attachment}, nil},
		{"empty", "", nil, ErrEmptyMessage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := NewMessage(42, tt.text, tt.attachments)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewMessage: %v", err)
			}
			if msg.SenderID != 42 {
				t.Errorf("SenderID = %d, want 42", msg.SenderID)
			}
			if msg.SchemaVersion != MessageSchemaVersion {
				t.Errorf("SchemaVersion = %d, want %d", msg.SchemaVersion, MessageSchemaVersion)
			}
			if time.Since(msg.Timestamp) > time.Minute {
				t.Errorf("Timestamp = %v, want recent", msg.Timestamp)
			}
		})
	}
}

func TestNewMessageAttachment(t *testing.T) {
	for _, kind := range []AttachmentKind{AttachmentVideo, AttachmentAudio, AttachmentImage, AttachmentFile} {
		attachment, err := NewMessageAttachment(kind, "https://cdn.example.com/a")
		if err != nil {
			t.Errorf("NewMessageAttachment(%s): %v", kind, err)
			continue
		}
		if attachment.SchemaVersion != AttachmentSchemaVersion {
			t.Errorf("SchemaVersion = %d, want %d", attachment.SchemaVersion, AttachmentSchemaVersion)
		}
	}

	if _, err := NewMessageAttachment("hologram", "https://cdn.example.com/a"); err == nil {
		t.Error("expected error for unsupported kind")
	}

	if _, err := NewMessageAttachment(AttachmentImage, ""); !errors.Is(err, ErrEmptyAttachmentURL) {
		t.Errorf("err = %v, want ErrEmptyAttachmentURL", err)
	}
}
